package ui

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// NewTable creates a table writer with the CLI's style
func NewTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

// RenderSummary prints the end-of-run table
func RenderSummary(out io.Writer, s Summary) {
	t := NewTable(out)
	t.SetTitle("Run summary")

	status := Green("done")
	if s.Err != nil {
		status = Red("aborted in " + s.Stage)
	}

	t.AppendRows([]table.Row{
		{"Status", status},
		{"Account", s.Account},
		{"Run", s.RunID},
		{"Entries", s.Entries},
		{"Files staged", s.Files},
		{"Files skipped", s.Skipped},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Moved", s.Moved},
		{"Recovered", s.Recovered},
		{"Missing", s.Missing},
		{"Warnings", s.Warnings},
		{"Duration", FormatDuration(s.Duration)},
	})
	if s.Err != nil {
		t.AppendFooter(table.Row{"Error", s.Err.Error()})
	}
	t.Render()
}
