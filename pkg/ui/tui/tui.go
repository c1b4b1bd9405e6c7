package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"setupsync/pkg/control"
	"setupsync/pkg/models"
	"setupsync/pkg/progress"
)

// TUI represents the terminal user interface
type TUI struct {
	program *tea.Program
	model   *Model
}

// New creates a dashboard that reads events and writes skip/stop requests
// into signals. Extra program options are passed to bubbletea.
func New(signals *control.Signals, events <-chan progress.Event, opts ...tea.ProgramOption) *TUI {
	model := NewModel(signals, events)
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	program := tea.NewProgram(&model, opts...)

	return &TUI{
		program: program,
		model:   &model,
	}
}

// Run blocks until the user quits.
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Done hands the finished run to the dashboard.
func (t *TUI) Done(result models.RunResult) {
	t.program.Send(RunDoneMsg{Result: result})
}

// Quit stops the TUI gracefully
func (t *TUI) Quit() {
	t.program.Quit()
}
