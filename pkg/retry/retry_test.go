package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "setupsync/pkg/errors"
	"setupsync/pkg/logger"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		Base:   100 * time.Millisecond,
		Max:    1 * time.Second,
		Factor: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{9, 1 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{Base: time.Second, Max: time.Minute, Factor: 2, Jitter: 0.3}
	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(1)
		assert.GreaterOrEqual(t, d, 700*time.Millisecond)
		assert.LessOrEqual(t, d, 1300*time.Millisecond)
	}
}

func TestConstantBackoff(t *testing.T) {
	b := ConstantBackoff{Delay: 2 * time.Second}
	assert.Equal(t, time.Duration(0), b.NextDelay(0))
	assert.Equal(t, 2*time.Second, b.NextDelay(1))
	assert.Equal(t, 2*time.Second, b.NextDelay(7))
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	log := logger.NewTestLogger()
	var delays []time.Duration

	cfg := Config{
		MaxAttempts: 5,
		Backoff:     ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(error) bool { return true },
		OnRetry:     func(_ int, _ error, d time.Duration) { delays = append(delays, d) },
		Logger:      log,
	}

	calls := 0
	err := Do(context.Background(), cfg, func(attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if attempt < 3 {
			return errors.New("site reported a failure")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, delays, 2)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 2)
}

func TestDoAttemptCap(t *testing.T) {
	waits := 0
	cfg := Config{
		MaxAttempts: 2,
		Backoff:     ConstantBackoff{Delay: 2 * time.Second},
		RetryIf:     func(error) bool { return true },
		Wait: func(context.Context, time.Duration) error {
			waits++
			return nil
		},
	}

	calls := 0
	err := Do(context.Background(), cfg, func(int) error {
		calls++
		return errors.New("persistent")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retry attempts (2) exceeded")
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, waits, "no wait after the final attempt")
}

func TestDoNonRetryable(t *testing.T) {
	calls := 0
	authErr := &errs.Error{Type: errs.ErrorTypeAuth, Message: "login required", Code: 401}

	err := Do(context.Background(), Config{MaxAttempts: 5}, func(int) error {
		calls++
		return authErr
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, authErr)
}

func TestDoWaitInterrupted(t *testing.T) {
	cfg := Config{
		MaxAttempts: 3,
		Backoff:     ConstantBackoff{Delay: time.Second},
		RetryIf:     func(error) bool { return true },
		Wait: func(context.Context, time.Duration) error {
			return errors.New("stop requested")
		},
	}

	err := Do(context.Background(), cfg, func(int) error { return errors.New("try again") })
	assert.ErrorIs(t, err, ErrCancelled)
	assert.False(t, DefaultRetryIf(err))
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := Config{MaxAttempts: 3, Backoff: ConstantBackoff{Delay: time.Second}, RetryIf: func(error) bool { return true }}
	err := Do(ctx, cfg, func(int) error { return errors.New("try again") })
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.True(t, DefaultRetryIf(errors.New("unknown")))
	assert.True(t, DefaultRetryIf(errs.Network("reset", nil)))
	assert.False(t, DefaultRetryIf(errs.Organize("no setup files", nil)))
}

func TestDoWithResult(t *testing.T) {
	cfg := Config{MaxAttempts: 3, Backoff: ConstantBackoff{}, RetryIf: func(error) bool { return true }}
	got, err := DoWithResult(context.Background(), cfg, func(attempt int) (string, error) {
		if attempt == 1 {
			return "", errors.New("first try fails")
		}
		return "setup.zip", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "setup.zip", got)
}
