package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// ProgressDisplay is a Reporter that keeps a single progress line on the
// terminal. In verbose mode every event gets its own line instead.
type ProgressDisplay struct {
	mu       sync.Mutex
	out      io.Writer
	account  string
	tracker  *StatusTracker
	notifier *Notifier
	verbose  bool
}

// NewProgressDisplay creates a progress display writing to out. notifier may be nil.
func NewProgressDisplay(out io.Writer, account string, notifier *Notifier, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:      out,
		account:  account,
		tracker:  NewStatusTracker(),
		notifier: notifier,
		verbose:  verbose,
	}
}

// Tracker returns the counters behind the display
func (p *ProgressDisplay) Tracker() *StatusTracker {
	return p.tracker
}

func (p *ProgressDisplay) StageChanged(stage string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.Stage = stage
	fmt.Fprintf(p.out, "\n%s %s\n", Magenta("→"), stage)
}

func (p *ProgressDisplay) EntryStarted(index, total int, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.StartEntry(index, total, name)
	if p.verbose {
		fmt.Fprintf(p.out, "%s [%d/%d] %s\n", Cyan("▸"), index, total, name)
		return
	}
	p.printProgress()
}

func (p *ProgressDisplay) FileStaged(entry, group, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.IncrementFiles()
	if p.verbose {
		if group != "" && group != name {
			fmt.Fprintf(p.out, "  %s %s / %s\n", Green("✓"), group, name)
		} else {
			fmt.Fprintf(p.out, "  %s %s\n", Green("✓"), name)
		}
		return
	}
	p.printProgress()
}

func (p *ProgressDisplay) Warning(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.IncrementWarnings()
	fmt.Fprintf(p.out, "\n%s %s\n", Yellow("⚠"), message)
}

func (p *ProgressDisplay) Failure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n%s %v\n", Red("✗"), err)
	if p.notifier != nil {
		p.notifier.NotifyFailure(err)
	}
}

func (p *ProgressDisplay) Finished(summary Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out)
	RenderSummary(p.out, summary)
	if p.notifier != nil && summary.Succeeded() {
		p.notifier.NotifyComplete(summary)
	}
}

// printProgress redraws the progress line
func (p *ProgressDisplay) printProgress() {
	t := p.tracker
	line := fmt.Sprintf("%s %s • %d files • %.1f/min • %s",
		Cyan(p.account),
		t.GetEntryProgress(20),
		t.FilesStaged,
		t.GetDownloadRate(),
		FormatDuration(t.GetElapsedTime()),
	)
	if t.CurrentEntry != "" {
		line += fmt.Sprintf(" • %s", truncate(t.CurrentEntry, 40))
	}
	if t.Warnings > 0 {
		line += fmt.Sprintf(" • %s", Yellow(fmt.Sprintf("%d warnings", t.Warnings)))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
