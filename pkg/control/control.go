// Package control holds the cooperative cancellation flags shared between a
// run and its controller, and the tri-state outcome every checkpoint returns.
package control

import (
	"context"
	"sync/atomic"
	"time"
)

// CheckInterval is how often interruptible sleeps re-check the flags.
const CheckInterval = 100 * time.Millisecond

// Outcome is the result of a cancellable step.
type Outcome int

const (
	Ok Outcome = iota
	Cancelled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Ok:
		return "ok"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Signals is the pair of flags set by an external controller. Stop aborts the
// remainder of a run, skip aborts only the item in flight. The core reads
// them; only ResetSkip is called from inside a run.
type Signals struct {
	stop atomic.Bool
	skip atomic.Bool
}

// NewSignals returns cleared flags.
func NewSignals() *Signals {
	return &Signals{}
}

// Stop requests that the run end at its next checkpoint.
func (s *Signals) Stop() { s.stop.Store(true) }

// Skip requests that the current item be abandoned.
func (s *Signals) Skip() { s.skip.Store(true) }

// Stopped reports whether stop has been requested.
func (s *Signals) Stopped() bool { return s.stop.Load() }

// Skipped reports whether skip has been requested for the current item.
func (s *Signals) Skipped() bool { return s.skip.Load() }

// ItemCancelled reports whether the current item should be abandoned for
// either reason.
func (s *Signals) ItemCancelled() bool { return s.Stopped() || s.Skipped() }

// ResetSkip clears skip before the next item begins.
func (s *Signals) ResetSkip() { s.skip.Store(false) }

// Reset clears both flags for a new run.
func (s *Signals) Reset() {
	s.stop.Store(false)
	s.skip.Store(false)
}

// Sleep waits for d, returning Cancelled early if stop is set or ctx ends.
func (s *Signals) Sleep(ctx context.Context, d time.Duration) Outcome {
	return sleep(ctx, d, s.Stopped)
}

// SleepItem is Sleep that also gives up when skip is set.
func (s *Signals) SleepItem(ctx context.Context, d time.Duration) Outcome {
	return sleep(ctx, d, s.ItemCancelled)
}

func sleep(ctx context.Context, d time.Duration, cancelled func() bool) Outcome {
	if cancelled() || ctx.Err() != nil {
		return Cancelled
	}
	if d <= 0 {
		return Ok
	}

	deadline := time.NewTimer(d)
	defer deadline.Stop()
	ticker := time.NewTicker(CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-deadline.C:
			if cancelled() {
				return Cancelled
			}
			return Ok
		case <-ticker.C:
			if cancelled() {
				return Cancelled
			}
		case <-ctx.Done():
			return Cancelled
		}
	}
}
