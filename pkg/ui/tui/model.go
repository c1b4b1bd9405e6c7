package tui

import (
	"strings"
	"time"

	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"setupsync/pkg/control"
	"setupsync/pkg/models"
	"setupsync/pkg/progress"
)

// Model is the dashboard state. It is only touched from the bubbletea loop.
type Model struct {
	spinner spinner.Model
	bar     progressbar.Model

	signals *control.Signals
	events  <-chan progress.Event

	// progress
	state     progress.State
	installed int
	failed    int
	startTime time.Time

	// run lifecycle
	done   bool
	result *models.RunResult

	// UI state
	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a dashboard fed by events and controlling signals.
func NewModel(signals *control.Signals, events <-chan progress.Event) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	bar := progressbar.New(progressbar.WithDefaultGradient())
	bar.Width = 40

	if signals == nil {
		signals = control.NewSignals()
	}

	return Model{
		spinner:        s,
		bar:            bar,
		signals:        signals,
		events:         events,
		startTime:      time.Now(),
		logMessages:    []LogMessage{},
		maxLogMessages: 50,
	}
}

// Init starts the spinner and the event pump.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd(), waitForEvent(m.events))
}

// State returns the last progress snapshot.
func (m *Model) State() progress.State {
	return m.state
}

// Done reports whether the run has finished.
func (m *Model) Done() bool {
	return m.done
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   levelColor(level),
	})

	// Keep only the last N messages
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Percent is the completed fraction of the determinate phase.
func (m *Model) Percent() float64 {
	if m.state.Max <= 0 {
		return 0
	}
	p := float64(m.state.Value) / float64(m.state.Max)
	if p > 1 {
		p = 1
	}
	return p
}

func (m *Model) applyEvent(ev progress.Event) {
	switch ev.Kind {
	case progress.KindProgress:
		m.state = progress.State{
			Value:         ev.Value,
			Max:           ev.Max,
			Indeterminate: ev.Indeterminate,
			Label:         ev.Label,
			Counts:        progress.Counts{Installed: ev.Installed, Failed: ev.Failed},
		}
		m.installed = max(m.installed, ev.Installed)
		m.failed = max(m.failed, ev.Failed)
	case progress.KindLog:
		m.AddLogMessage(strings.ToUpper(ev.Level), ev.Message)
	}
}
