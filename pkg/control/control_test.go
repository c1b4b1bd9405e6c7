package control

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignals(t *testing.T) {
	s := NewSignals()
	assert.False(t, s.Stopped())
	assert.False(t, s.ItemCancelled())

	s.Skip()
	assert.True(t, s.Skipped())
	assert.True(t, s.ItemCancelled())
	assert.False(t, s.Stopped())

	s.ResetSkip()
	assert.False(t, s.Skipped())

	s.Stop()
	assert.True(t, s.ItemCancelled())
	s.ResetSkip()
	assert.True(t, s.Stopped(), "ResetSkip must not clear stop")

	s.Reset()
	assert.False(t, s.Stopped())
}

func TestSleepCompletes(t *testing.T) {
	s := NewSignals()
	start := time.Now()
	assert.Equal(t, Ok, s.Sleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, Ok, s.Sleep(context.Background(), 0))
}

func TestSleepInterruptedByStop(t *testing.T) {
	s := NewSignals()
	go func() {
		time.Sleep(50 * time.Millisecond)
		s.Stop()
	}()

	start := time.Now()
	outcome := s.Sleep(context.Background(), 10*time.Second)
	assert.Equal(t, Cancelled, outcome)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSleepIgnoresSkipUnlessItemScoped(t *testing.T) {
	s := NewSignals()
	s.Skip()
	assert.Equal(t, Ok, s.Sleep(context.Background(), 10*time.Millisecond))
	assert.Equal(t, Cancelled, s.SleepItem(context.Background(), 10*time.Second))
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, Cancelled, NewSignals().Sleep(ctx, time.Second))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "ok", Ok.String())
	assert.Equal(t, "cancelled", Cancelled.String())
	assert.Equal(t, "failed", Failed.String())
}
