// Package tui is the full-screen progress view enabled with --tui.
package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"moodlescraper/pkg/ui"
)

var timeSince = time.Since

// TUI represents the terminal user interface. It implements ui.Reporter.
type TUI struct {
	program *tea.Program
	model   *Model
}

var _ ui.Reporter = (*TUI)(nil)

// NewTUI creates a new TUI instance
func NewTUI(account string, opts ...tea.ProgramOption) *TUI {
	model := NewModel(account)
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)

	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Start runs the TUI until it is stopped or the user quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// Summary returns the final summary once the run has finished
func (t *TUI) Summary() (ui.Summary, bool) {
	return t.model.Summary()
}

func (t *TUI) StageChanged(stage string) {
	t.Send(StageMsg{Stage: stage})
}

func (t *TUI) EntryStarted(index, total int, name string) {
	t.Send(EntryMsg{Index: index, Total: total, Name: name})
}

func (t *TUI) FileStaged(entry, group, name string) {
	t.Send(FileMsg{Entry: entry, Group: group, Name: name})
}

func (t *TUI) Warning(message string) {
	t.Send(LogMsg{Level: "WARN", Message: message})
}

func (t *TUI) Failure(err error) {
	t.Send(FailureMsg{Err: err})
}

func (t *TUI) Finished(summary ui.Summary) {
	t.Send(FinishedMsg{Summary: summary})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}
