package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"moodlescraper/pkg/ui"
)

// FileItem is one staged download shown in the recent files panel
type FileItem struct {
	Entry string
	Group string
	Name  string
	Time  time.Time
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model represents the TUI model
type Model struct {
	// UI components
	spinner  spinner.Model
	progress progress.Model

	account string

	// Pipeline state
	stage        string
	entryIndex   int
	entryTotal   int
	currentEntry string
	filesStaged  int
	warnings     int
	recentFiles  []FileItem
	maxRecent    int
	failure      error
	summary      *ui.Summary

	sessionStartTime time.Time

	// UI state
	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int
}

// NewModel creates a new TUI model
func NewModel(account string) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accentCyan)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return &Model{
		spinner:          s,
		progress:         p,
		account:          account,
		stage:            "STARTING",
		maxRecent:        10,
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
	}
}

// Done reports whether the run has finished or aborted
func (m *Model) Done() bool {
	return m.summary != nil
}

// Summary returns the final summary once the run is done
func (m *Model) Summary() (ui.Summary, bool) {
	if m.summary == nil {
		return ui.Summary{}, false
	}
	return *m.summary, true
}

func (m *Model) setStage(stage string) {
	m.stage = stage
	m.AddLogMessage("INFO", "Stage "+stage)
}

func (m *Model) startEntry(index, total int, name string) {
	m.entryIndex = index
	m.entryTotal = total
	m.currentEntry = name
}

func (m *Model) addFile(item FileItem) {
	m.filesStaged++
	m.recentFiles = append(m.recentFiles, item)
	if len(m.recentFiles) > m.maxRecent {
		m.recentFiles = m.recentFiles[len(m.recentFiles)-m.maxRecent:]
	}
}

// entryPercent is the share of catalog entries traversed so far
func (m *Model) entryPercent() float64 {
	if m.entryTotal == 0 {
		return 0
	}
	return float64(m.entryIndex) / float64(m.entryTotal)
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = accentRed
	case "WARN":
		color = accentOrange
	case "SUCCESS":
		color = accentGreen
	case "INFO":
		color = accentCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	// Keep only the last N messages
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}
