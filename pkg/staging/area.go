// Package staging manages the flat directory that receives every download
// before the organizer moves files into place. It owns the in-progress marker
// convention and the wait that blocks until no download is mid-flight.
package staging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"moodlescraper/pkg/config"
	errs "moodlescraper/pkg/errors"
	"moodlescraper/pkg/logger"
)

// Area is the staging directory shared by the resolver and the organizer
type Area struct {
	fs           afero.Fs
	dir          string
	marker       string
	pollInterval time.Duration
	idleTimeout  time.Duration
	logger       logger.Logger
}

// NewArea creates a staging area rooted at cfg.StagingDirectory
func NewArea(fs afero.Fs, cfg config.DownloadConfig, log logger.Logger) *Area {
	if log == nil {
		log = logger.NewNopLogger()
	}
	marker := cfg.InProgressMarker
	if marker == "" {
		marker = ".crdownload"
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	return &Area{
		fs:           fs,
		dir:          cfg.StagingDirectory,
		marker:       marker,
		pollInterval: poll,
		idleTimeout:  cfg.IdleTimeout,
		logger:       log.WithField("component", "staging"),
	}
}

// Fs returns the filesystem the area lives on
func (a *Area) Fs() afero.Fs { return a.fs }

// Dir returns the staging directory
func (a *Area) Dir() string { return a.dir }

// Marker returns the in-progress suffix
func (a *Area) Marker() string { return a.marker }

// Path joins name onto the staging directory
func (a *Area) Path(name ...string) string {
	return filepath.Join(append([]string{a.dir}, name...)...)
}

// Ensure creates the staging directory if absent
func (a *Area) Ensure() error {
	if err := a.fs.MkdirAll(a.dir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	return nil
}

// IsInProgress reports whether name marks a download that has not finished
func (a *Area) IsInProgress(name string) bool {
	return strings.Contains(name, a.marker)
}

// InProgressPath returns the path a download of name is written to while in flight
func (a *Area) InProgressPath(name string) string {
	return a.Path(name + a.marker)
}

// InProgress lists names in the staging directory carrying the marker.
// A missing staging directory has nothing in progress.
func (a *Area) InProgress() ([]string, error) {
	entries, err := afero.ReadDir(a.fs, a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list staging directory: %w", err)
	}

	var pending []string
	for _, e := range entries {
		if a.IsInProgress(e.Name()) {
			pending = append(pending, e.Name())
		}
	}
	return pending, nil
}

// Files lists finished regular files in the staging directory, sorted by name
func (a *Area) Files() ([]string, error) {
	entries, err := afero.ReadDir(a.fs, a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list staging directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.Mode().IsRegular() && !a.IsInProgress(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// AwaitIdle blocks until a listing of the staging directory shows no
// in-progress marker. The first listing happens immediately, so a clean
// directory returns without sleeping. The wait ends early with ctx's error
// when ctx is done, and with a timeout error once the idle timeout elapses
// (a zero timeout waits indefinitely).
func (a *Area) AwaitIdle(ctx context.Context) error {
	start := time.Now()
	polls := 0

	for {
		pending, err := a.InProgress()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			if polls > 0 {
				a.logger.DebugWithFields("Staging area idle", map[string]interface{}{
					"waited": time.Since(start),
					"polls":  polls,
				})
			}
			return nil
		}

		if a.idleTimeout > 0 && time.Since(start) >= a.idleTimeout {
			return errs.Timeout("downloads still in progress after %s: %s",
				a.idleTimeout, strings.Join(pending, ", "))
		}

		if polls == 0 {
			a.logger.DebugWithFields("Waiting for downloads to finish", map[string]interface{}{
				"pending": pending,
			})
		}
		polls++

		timer := time.NewTimer(a.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
