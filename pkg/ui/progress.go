package ui

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
)

// StatusTracker keeps track of traversal progress
type StatusTracker struct {
	Stage        string
	CurrentEntry string
	EntryIndex   int
	EntryTotal   int
	FilesStaged  int
	Warnings     int
	StartTime    time.Time
}

// NewStatusTracker creates a new status tracker
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		StartTime: time.Now(),
	}
}

// StartEntry records the entry being traversed
func (st *StatusTracker) StartEntry(index, total int, name string) {
	st.EntryIndex = index
	st.EntryTotal = total
	st.CurrentEntry = name
}

// IncrementFiles counts one staged file
func (st *StatusTracker) IncrementFiles() {
	st.FilesStaged++
}

// IncrementWarnings counts one warning
func (st *StatusTracker) IncrementWarnings() {
	st.Warnings++
}

// GetEntryProgress returns a formatted progress bar over the catalog
func (st *StatusTracker) GetEntryProgress(width int) string {
	filled := 0
	if st.EntryTotal > 0 {
		filled = st.EntryIndex * width / st.EntryTotal
	}
	if filled > width {
		filled = width
	}

	bar := strings.Repeat(ProgressBar, filled) +
		strings.Repeat(ProgressEmpty, width-filled)

	return fmt.Sprintf("[%s] %d/%d", bar, st.EntryIndex, st.EntryTotal)
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.StartTime)
}

// GetDownloadRate returns the average download rate (files per minute)
func (st *StatusTracker) GetDownloadRate() float64 {
	elapsed := st.GetElapsedTime().Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(st.FilesStaged) / elapsed
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
