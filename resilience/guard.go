package resilience

import (
	"context"
	"log/slog"
)

// Guard applies a Limiter and a retry Policy to every call.
// It is safe for concurrent use.
type Guard struct {
	name    string
	limiter *Limiter
	policy  Policy
	logger  *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard) error

// WithLimiter sets the limiter. A nil limiter admits everything.
func WithLimiter(l *Limiter) GuardOption {
	return func(g *Guard) error {
		g.limiter = l
		return nil
	}
}

// WithPolicy sets the retry policy.
func WithPolicy(p Policy) GuardOption {
	return func(g *Guard) error {
		if err := p.Validate(); err != nil {
			return err
		}
		g.policy = p
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) error {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger
		return nil
	}
}

// NewGuard creates a guard with DefaultPolicy and no limiter unless configured.
func NewGuard(name string, opts ...GuardOption) (*Guard, error) {
	if name == "" {
		return nil, ErrGuardNameRequired
	}
	g := &Guard{
		name:   name,
		policy: DefaultPolicy(),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With("component", "guard", "guard", name)
	return g, nil
}

// Name returns the guard name.
func (g *Guard) Name() string { return g.name }

// Do runs op under the limiter with retries. The limiter slot is held for
// one attempt at a time and released during backoff. A nil Guard runs op once.
func (g *Guard) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if g == nil {
		return op(ctx)
	}
	return Retry(ctx, g.policy, func(ctx context.Context) error {
		release, err := g.limiter.Acquire(ctx)
		if err != nil {
			return Permanent(err)
		}
		defer release()
		return op(ctx)
	})
}

// Call runs op through g and returns its value.
func Call[T any](ctx context.Context, g *Guard, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// CallWithFallback runs op through g and returns fallback() when every attempt
// failed. The second result reports whether the fallback was used.
func CallWithFallback[T any](ctx context.Context, g *Guard, op func(ctx context.Context) (T, error), fallback func() T) (T, bool) {
	v, err := Call(ctx, g, op)
	if err != nil {
		logger := slog.Default()
		if g != nil {
			logger = g.logger
		}
		logger.Warn("call failed, using fallback", "error", err)
		return fallback(), true
	}
	return v, false
}
