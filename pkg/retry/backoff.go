package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy returns how long to wait after the given failed attempt.
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ConstantBackoff waits Delay after every failed attempt.
type ConstantBackoff struct {
	Delay time.Duration
}

func (b ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return b.Delay
}

// ExponentialBackoff grows the delay by Factor per attempt up to Max, then
// spreads it by up to +/- Jitter of itself.
type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

// DefaultExponentialBackoff starts at one second and caps at thirty.
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{Base: time.Second, Max: 30 * time.Second, Factor: 2, Jitter: 0.1}
}

func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}

	d := math.Min(float64(b.Base)*math.Pow(b.Factor, float64(attempt-1)), float64(b.Max))
	if b.Jitter > 0 {
		d *= 1 + b.Jitter*(2*rand.Float64()-1)
	}
	return time.Duration(math.Max(d, 0))
}

// Wait sleeps for d. It returns ctx.Err() if ctx ends first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
