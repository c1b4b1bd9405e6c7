package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"setupsync/pkg/models"
	"setupsync/pkg/progress"
)

// Message types for the TUI

// EventMsg carries one progress or log event from the run.
type EventMsg progress.Event

// eventsClosedMsg is sent once the event channel is closed.
type eventsClosedMsg struct{}

// RunDoneMsg is sent when the run has returned.
type RunDoneMsg struct {
	Result models.RunResult
}

// TickMsg is sent periodically to refresh the elapsed time
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(10, msg.Width-30)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()

	case EventMsg:
		m.applyEvent(progress.Event(msg))
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		return m, nil

	case RunDoneMsg:
		m.done = true
		result := msg.Result
		m.result = &result
		m.installed = len(result.Processed)
		m.failed = len(result.Failed)
		m.AddLogMessage("SUCCESS", "Run finished, press q to exit")
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if m.done {
			return m, tea.Quit
		}
		if m.signals.Stopped() && msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if !m.signals.Stopped() {
			m.signals.Stop()
			m.AddLogMessage("WARN", "Stop requested, finishing the current step")
		}
		return m, nil

	case "s", "S":
		if m.done || m.signals.Stopped() {
			return m, nil
		}
		m.signals.Skip()
		m.AddLogMessage("WARN", "Skipping the current setup")
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = []LogMessage{}
		return m, nil
	}

	return m, nil
}

// Commands

// waitForEvent receives the next event from the run.
func waitForEvent(events <-chan progress.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return EventMsg(ev)
	}
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
