package resilience

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter bounds concurrent calls and, optionally, their rate.
// A nil *Limiter admits everything.
type Limiter struct {
	sem *semaphore.Weighted
	rl  *rate.Limiter
}

// NewLimiter creates a limiter. maxInFlight <= 0 disables the concurrency bound,
// rps <= 0 disables the rate bound. burst below 1 is raised to 1.
func NewLimiter(maxInFlight int, rps float64, burst int) *Limiter {
	l := &Limiter{}
	if maxInFlight > 0 {
		l.sem = semaphore.NewWeighted(int64(maxInFlight))
	}
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		l.rl = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return l
}

// Acquire blocks until a call may proceed. The returned release must be
// called exactly once when the call completes.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	if l.rl != nil {
		if err := l.rl.Wait(ctx); err != nil {
			if l.sem != nil {
				l.sem.Release(1)
			}
			return nil, err
		}
	}
	if l.sem == nil {
		return func() {}, nil
	}
	return func() { l.sem.Release(1) }, nil
}
