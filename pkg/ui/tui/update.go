package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"moodlescraper/pkg/ui"
)

// Message types for the TUI

// StageMsg is sent when the pipeline enters a stage
type StageMsg struct {
	Stage string
}

// EntryMsg is sent when traversal of an entry begins
type EntryMsg struct {
	Index int
	Total int
	Name  string
}

// FileMsg is sent when a download has been staged
type FileMsg struct {
	Entry string
	Group string
	Name  string
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// FailureMsg is sent when the run aborts
type FailureMsg struct {
	Err error
}

// FinishedMsg carries the final summary
type FinishedMsg struct {
	Summary ui.Summary
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Init starts the spinner and the refresh tick
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(10, msg.Width/2-10)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		updated, cmd := m.progress.Update(msg)
		if p, ok := updated.(progress.Model); ok {
			m.progress = p
		}
		return m, cmd

	case TickMsg:
		if m.Done() {
			return m, nil
		}
		return m, tickCmd()

	case StageMsg:
		m.setStage(msg.Stage)
		return m, nil

	case EntryMsg:
		m.startEntry(msg.Index, msg.Total, msg.Name)
		return m, nil

	case FileMsg:
		m.addFile(FileItem{Entry: msg.Entry, Group: msg.Group, Name: msg.Name, Time: time.Now()})
		return m, nil

	case LogMsg:
		if msg.Level == "WARN" {
			m.warnings++
		}
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil

	case FailureMsg:
		m.failure = msg.Err
		m.AddLogMessage("ERROR", msg.Err.Error())
		return m, nil

	case FinishedMsg:
		summary := msg.Summary
		m.summary = &summary
		if summary.Succeeded() {
			m.AddLogMessage("SUCCESS", fmt.Sprintf("Done: %d entries, %d files organized", summary.Entries, summary.Moved+summary.Recovered))
		}
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*250, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
