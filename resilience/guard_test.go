package resilience

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr int

func (e statusErr) Error() string   { return "http failure" }
func (e statusErr) StatusCode() int { return int(e) }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unknown", errors.New("boom"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"net timeout", timeoutErr{}, true},
		{"status 500 in message", errors.New("API returned unexpected status code: 500"), true},
		{"status 502 coder", statusErr(502), true},
		{"status 429", statusErr(429), true},
		{"status 400", statusErr(400), false},
		{"status 403 in message", errors.New("status code: 403 forbidden"), false},
		{"auth sentinel", ErrAuthentication, false},
		{"validation sentinel", ErrValidation, false},
		{"permanent", Permanent(statusErr(503)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}

func TestNewGuard(t *testing.T) {
	_, err := NewGuard("")
	assert.ErrorIs(t, err, ErrGuardNameRequired)

	_, err = NewGuard("chat", WithPolicy(Policy{}))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	g, err := NewGuard("chat", WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, "chat", g.Name())
}

func TestGuard_BoundsInFlight(t *testing.T) {
	g, err := NewGuard("chat",
		WithLimiter(NewLimiter(2, 0, 0)),
		WithPolicy(fastPolicy(1)),
	)
	require.NoError(t, err)

	var inFlight, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Do(context.Background(), func(context.Context) error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestCall_ReturnsValue(t *testing.T) {
	g, err := NewGuard("embed", WithPolicy(fastPolicy(3)))
	require.NoError(t, err)

	calls := 0
	v, err := Call(context.Background(), g, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, statusErr(503)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 2, calls)
}

func TestCallWithFallback(t *testing.T) {
	g, err := NewGuard("chat", WithPolicy(fastPolicy(2)))
	require.NoError(t, err)

	t.Run("exhausted retries fall back", func(t *testing.T) {
		calls := 0
		v, used := CallWithFallback(context.Background(), g,
			func(context.Context) (string, error) {
				calls++
				return "", statusErr(500)
			},
			func() string { return "template" })
		assert.True(t, used)
		assert.Equal(t, "template", v)
		assert.Equal(t, 2, calls)
	})

	t.Run("auth failure falls back without retry", func(t *testing.T) {
		calls := 0
		v, used := CallWithFallback(context.Background(), g,
			func(context.Context) (string, error) {
				calls++
				return "", ErrAuthentication
			},
			func() string { return "template" })
		assert.True(t, used)
		assert.Equal(t, "template", v)
		assert.Equal(t, 1, calls)
	})

	t.Run("success skips fallback", func(t *testing.T) {
		v, used := CallWithFallback(context.Background(), g,
			func(context.Context) (string, error) { return "enhanced", nil },
			func() string { return "template" })
		assert.False(t, used)
		assert.Equal(t, "enhanced", v)
	})

	t.Run("nil guard runs once", func(t *testing.T) {
		calls := 0
		v, used := CallWithFallback(context.Background(), nil,
			func(context.Context) (string, error) {
				calls++
				return "", errors.New("down")
			},
			func() string { return "template" })
		assert.True(t, used)
		assert.Equal(t, "template", v)
		assert.Equal(t, 1, calls)
	})
}

func TestLimiter_AcquireHonorsContext(t *testing.T) {
	l := NewLimiter(1, 0, 0)
	release, err := l.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiter_NilAndUnbounded(t *testing.T) {
	var nilLimiter *Limiter
	release, err := nilLimiter.Acquire(context.Background())
	require.NoError(t, err)
	release()

	release, err = NewLimiter(0, 0, 0).Acquire(context.Background())
	require.NoError(t, err)
	release()
}
