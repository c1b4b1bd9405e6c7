package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"setupsync/pkg/progress"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
	barWidth      = 24
)

// Printer renders progress events as console lines. The indeterminate phase
// shows a spinner; log events are ignored because the console logger already
// prints them.
type Printer struct {
	mu        sync.Mutex
	w         io.Writer
	spin      *spinner.Spinner
	spinning  bool
	startTime time.Time
	last      progress.State
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(w))
	return &Printer{w: w, spin: s, startTime: time.Now()}
}

// Consume handles events until the channel is closed.
func (p *Printer) Consume(events <-chan progress.Event) {
	for ev := range events {
		p.Handle(ev)
	}
	p.Finish()
}

// Handle renders one event.
func (p *Printer) Handle(ev progress.Event) {
	if ev.Kind != progress.KindProgress {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.Indeterminate {
		p.spin.Suffix = " " + ev.Label
		if !p.spinning {
			p.spin.Start()
			p.spinning = true
		}
		return
	}

	p.stopSpinner()
	state := progress.State{Value: ev.Value, Max: ev.Max}
	if state == p.last || state.Max == 0 {
		p.last = state
		return
	}
	p.last = state
	fmt.Fprintln(p.w, p.line(state))
}

// Finish stops the spinner if it is still running.
func (p *Printer) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopSpinner()
}

func (p *Printer) stopSpinner() {
	if p.spinning {
		p.spin.Stop()
		p.spinning = false
	}
}

func (p *Printer) line(state progress.State) string {
	return fmt.Sprintf("%s [%s] %d/%d • %s",
		Cyan("setups"),
		RenderBar(state.Value, state.Max, barWidth),
		state.Value,
		state.Max,
		FormatDuration(time.Since(p.startTime)),
	)
}

// RenderBar draws value/total as a bar of width cells.
func RenderBar(value, total, width int) string {
	filled := 0
	if total > 0 {
		filled = value * width / total
	}
	filled = min(max(filled, 0), width)
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
