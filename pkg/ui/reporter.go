// Package ui reports pipeline progress to the terminal: a one-line progress
// display, desktop notifications and the end-of-run summary table.
package ui

import (
	"time"
)

// Reporter receives pipeline progress. Calls come from the pipeline goroutine.
type Reporter interface {
	StageChanged(stage string)
	EntryStarted(index, total int, name string)
	FileStaged(entry, group, name string)
	Warning(message string)
	Failure(err error)
	Finished(summary Summary)
}

// Summary describes a finished or aborted run
type Summary struct {
	RunID     string
	Account   string
	Stage     string
	Entries   int
	Files     int
	Skipped   int
	Warnings  int
	Moved     int
	Recovered int
	Missing   int
	Duration  time.Duration
	Err       error
}

// Succeeded reports whether the run reached the end without a fatal error
func (s Summary) Succeeded() bool {
	return s.Err == nil
}

// NopReporter discards all progress
type NopReporter struct{}

func (NopReporter) StageChanged(string)               {}
func (NopReporter) EntryStarted(int, int, string)     {}
func (NopReporter) FileStaged(string, string, string) {}
func (NopReporter) Warning(string)                    {}
func (NopReporter) Failure(error)                     {}
func (NopReporter) Finished(Summary)                  {}

// MultiReporter fans progress out to several reporters
type MultiReporter []Reporter

func (m MultiReporter) StageChanged(stage string) {
	for _, r := range m {
		r.StageChanged(stage)
	}
}

func (m MultiReporter) EntryStarted(index, total int, name string) {
	for _, r := range m {
		r.EntryStarted(index, total, name)
	}
}

func (m MultiReporter) FileStaged(entry, group, name string) {
	for _, r := range m {
		r.FileStaged(entry, group, name)
	}
}

func (m MultiReporter) Warning(message string) {
	for _, r := range m {
		r.Warning(message)
	}
}

func (m MultiReporter) Failure(err error) {
	for _, r := range m {
		r.Failure(err)
	}
}

func (m MultiReporter) Finished(summary Summary) {
	for _, r := range m {
		r.Finished(summary)
	}
}
