package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"moodlescraper/pkg/ui"
)

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	sections := []string{
		m.renderHeader(),
		m.renderProgress(),
		lipgloss.JoinHorizontal(lipgloss.Top, m.renderFilesPanel(), " ", m.renderLogsPanel()),
	}

	if m.showHelp {
		sections = append(sections, helpStyle.Render("q quit • ctrl+l clear logs • ? hide help"))
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderHeader() string {
	status := m.spinner.View()
	switch {
	case m.failure != nil:
		status = errorStyle.Render("✗")
	case m.Done():
		status = successStyle.Render("✓")
	}
	return headerStyle.Render(fmt.Sprintf("%s moodlescraper • %s • %s", status, m.account, m.stage))
}

func (m *Model) renderProgress() string {
	rows := []string{
		fmt.Sprintf("%s %s", m.progress.ViewAs(m.entryPercent()), statsValueStyle.Render(fmt.Sprintf("%d/%d entries", m.entryIndex, m.entryTotal))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Current:"), statsValueStyle.Render(m.currentEntry)),
		fmt.Sprintf("%s %s   %s %s   %s %s",
			statsLabelStyle.Render("Files:"), statsValueStyle.Render(fmt.Sprint(m.filesStaged)),
			statsLabelStyle.Render("Warnings:"), statsValueStyle.Render(fmt.Sprint(m.warnings)),
			statsLabelStyle.Render("Elapsed:"), statsValueStyle.Render(ui.FormatDuration(timeSince(m.sessionStartTime)))),
	}
	if m.failure != nil {
		rows = append(rows, errorStyle.Render("Aborted: "+m.failure.Error()))
	}
	return panelStyle.Width(max(20, m.width-2)).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderFilesPanel() string {
	width := max(20, (m.width-4)/2)

	lines := []string{titleStyle.Render(" STAGED FILES ")}
	if len(m.recentFiles) == 0 {
		lines = append(lines, fileStyle.Render("nothing yet"))
	}
	for _, f := range m.recentFiles {
		name := f.Name
		if f.Group != "" && f.Group != f.Name {
			name = f.Group + " / " + f.Name
		}
		lines = append(lines, fileStyle.Render(truncate(f.Entry+": "+name, width-4)))
	}
	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderLogsPanel() string {
	width := max(20, (m.width-4)/2)

	lines := []string{titleStyle.Render(" LOG ")}
	visible := m.logMessages
	if limit := max(5, m.height-14); len(visible) > limit {
		visible = visible[len(visible)-limit:]
	}
	for _, msg := range visible {
		text := lipgloss.NewStyle().Foreground(msg.Color).Render(truncate(msg.Message, width-14))
		lines = append(lines, fmt.Sprintf("%s %s", logTimestampStyle.Render(msg.Time.Format("15:04:05")), text))
	}
	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 3 || len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}
