// Package progress carries progress and log events from a run to whatever is
// watching it. Publishing never blocks: a full channel drops the event.
package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// Kind distinguishes progress updates from forwarded log lines.
type Kind int

const (
	KindProgress Kind = iota
	KindLog
)

// Event is one message to the observer.
type Event struct {
	Kind          Kind
	Value         int
	Max           int
	Indeterminate bool
	Label         string
	Installed     int
	Failed        int
	Level         string
	Message       string
	Time          time.Time
}

// Sink receives events. Implementations must not block.
type Sink interface {
	Publish(Event)
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// Channel is a buffered, non-blocking Sink.
type Channel struct {
	mu      sync.RWMutex
	ch      chan Event
	closed  bool
	dropped atomic.Int64
}

// NewChannel creates a Channel holding up to buffer undelivered events.
func NewChannel(buffer int) *Channel {
	if buffer < 1 {
		buffer = 1
	}
	return &Channel{ch: make(chan Event, buffer)}
}

// Publish enqueues e, or drops it if the buffer is full or the channel closed.
func (c *Channel) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.dropped.Add(1)
		return
	}
	select {
	case c.ch <- e:
	default:
		c.dropped.Add(1)
	}
}

// Events returns the receive side.
func (c *Channel) Events() <-chan Event {
	return c.ch
}

// Dropped returns how many events were discarded.
func (c *Channel) Dropped() int64 {
	return c.dropped.Load()
}

// Close ends the stream. Later publishes are dropped.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// Counts are the running outcome totals of a run.
type Counts struct {
	Installed int
	Failed    int
}

// State is a snapshot of a Reporter.
type State struct {
	Value         int
	Max           int
	Indeterminate bool
	Label         string
	Counts
}

// Reporter keeps the (value, max) pair of one run. Value never decreases and
// max is fixed by the first Start call.
type Reporter struct {
	mu       sync.Mutex
	sink     Sink
	state    State
	maxFixed bool
}

// NewReporter returns a Reporter publishing to sink. A nil sink discards.
func NewReporter(sink Sink) *Reporter {
	if sink == nil {
		sink = Discard
	}
	return &Reporter{sink: sink}
}

// Indeterminate switches the observer to an activity indicator with label.
func (r *Reporter) Indeterminate(label string) {
	r.mu.Lock()
	r.state.Indeterminate = true
	r.state.Label = label
	ev := r.eventLocked()
	r.mu.Unlock()
	r.sink.Publish(ev)
}

// Start fixes max for the run and leaves indeterminate mode.
func (r *Reporter) Start(max int) {
	r.mu.Lock()
	if !r.maxFixed {
		if max < 0 {
			max = 0
		}
		r.state.Max = max
		r.maxFixed = true
	}
	r.state.Indeterminate = false
	r.state.Label = ""
	ev := r.eventLocked()
	r.mu.Unlock()
	r.sink.Publish(ev)
}

// Advance moves value forward and records the outcome totals so far. Lower
// values are ignored and values above max are clamped. The totals travel on
// every progress event, so a dropped event is repaired by the next one.
func (r *Reporter) Advance(value int, counts Counts) {
	r.mu.Lock()
	if value > r.state.Value {
		r.state.Value = value
	}
	r.state.Installed = max(r.state.Installed, counts.Installed)
	r.state.Failed = max(r.state.Failed, counts.Failed)
	if r.maxFixed && r.state.Value > r.state.Max {
		r.state.Value = r.state.Max
	}
	ev := r.eventLocked()
	r.mu.Unlock()
	r.sink.Publish(ev)
}

// Log forwards a log line.
func (r *Reporter) Log(level, message string) {
	r.sink.Publish(Event{Kind: KindLog, Level: level, Message: message, Time: time.Now()})
}

// State returns the current snapshot.
func (r *Reporter) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reporter) eventLocked() Event {
	return Event{
		Kind:          KindProgress,
		Value:         r.state.Value,
		Max:           r.state.Max,
		Indeterminate: r.state.Indeterminate,
		Label:         r.state.Label,
		Installed:     r.state.Installed,
		Failed:        r.state.Failed,
		Time:          time.Now(),
	}
}
