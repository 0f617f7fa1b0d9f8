// Package organizer moves staged downloads into one folder per entry, with a
// sub-folder per file group, recovering files staged under numbered names.
package organizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/spf13/afero"
	"moodlescraper/pkg/config"
	"moodlescraper/pkg/logger"
	"moodlescraper/pkg/models"
	"moodlescraper/pkg/sanitize"
	"moodlescraper/pkg/staging"
)

// Report counts the outcome of an organize pass
type Report struct {
	// Moved files were found under their recorded name
	Moved int
	// Recovered files were found under a numbered or similar name
	Recovered int
	// AlreadyPlaced files were found at their destination
	AlreadyPlaced int
	Missing       int
	MissingFiles  []string
}

// Organizer arranges the staging area as <entry>/<group>/<file>
type Organizer struct {
	area           *staging.Area
	snapshotExt    string
	fuzzyThreshold float64
	logger         logger.Logger
}

// New creates an Organizer over area
func New(area *staging.Area, cfg config.OrganizeConfig, log logger.Logger) *Organizer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	ext := cfg.SnapshotExtension
	if ext == "" {
		ext = "html"
	}
	return &Organizer{
		area:           area,
		snapshotExt:    ext,
		fuzzyThreshold: cfg.FuzzyThreshold,
		logger:         log.WithField("component", "organizer"),
	}
}

// Organize waits for the staging area to go idle, then moves every file the
// catalog records into place. Files that cannot be found are counted and
// logged; only filesystem failures are returned as errors. Running it again
// over an organized tree moves nothing.
func (o *Organizer) Organize(ctx context.Context, catalog *models.Catalog) (Report, error) {
	var report Report
	if err := o.area.AwaitIdle(ctx); err != nil {
		return report, err
	}

	for _, entry := range catalog.Entries() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if entry.FileGroups.Len() == 0 {
			continue
		}
		if err := o.organizeEntry(entry, &report); err != nil {
			return report, fmt.Errorf("organize %q: %w", entry.Name, err)
		}
	}

	o.logger.InfoWithFields("Staging area organized", map[string]interface{}{
		"moved":          report.Moved,
		"recovered":      report.Recovered,
		"already_placed": report.AlreadyPlaced,
		"missing":        report.Missing,
	})
	return report, nil
}

func (o *Organizer) organizeEntry(entry *models.Entry, report *Report) error {
	entryDir := o.area.Path(entry.Name)
	if !sanitize.Usable(entry.Name) || !o.within(entryDir) {
		o.logger.WithField("entry", entry.Name).Warn("Entry name leaves the staging area, files left in place")
		return nil
	}
	created, err := o.ensureDir(entryDir)
	if err != nil {
		return err
	}
	if created && entry.Snapshot != nil {
		snapshot := filepath.Join(entryDir, entry.Name+"."+o.snapshotExt)
		if err := afero.WriteFile(o.area.Fs(), snapshot, []byte(*entry.Snapshot), 0644); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
	}

	for _, group := range entry.FileGroups.All() {
		if group.IsScalar() {
			if err := o.move(group.File, entryDir, report); err != nil {
				return err
			}
			continue
		}
		if len(group.Files) == 0 {
			continue
		}

		groupDir := filepath.Join(entryDir, group.Name)
		if !sanitize.Usable(group.Name) || !o.within(groupDir) {
			o.logger.WithFields(map[string]interface{}{
				"entry": entry.Name,
				"group": group.Name,
			}).Warn("Group name leaves the entry folder, files left in place")
			continue
		}
		if _, err := o.ensureDir(groupDir); err != nil {
			return err
		}
		for _, file := range group.Files {
			if err := o.move(file, groupDir, report); err != nil {
				return err
			}
		}
	}
	return nil
}

// ensureDir creates dir if absent and reports whether it did
func (o *Organizer) ensureDir(dir string) (bool, error) {
	exists, err := afero.DirExists(o.area.Fs(), dir)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := o.area.Fs().MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return true, nil
}

// move relocates file from the staging directory into dir. When the exact
// name is gone it looks for "<file> (<n>)", then for the most similar name
// if fuzzy matching is enabled.
func (o *Organizer) move(file, dir string, report *Report) error {
	fs := o.area.Fs()
	log := o.logger.WithFields(map[string]interface{}{"file": file, "destination": dir})
	if !sanitize.Usable(file) {
		report.Missing++
		report.MissingFiles = append(report.MissingFiles, file)
		log.Warn("Recorded file name is not usable")
		return nil
	}

	err := fs.Rename(o.area.Path(file), filepath.Join(dir, file))
	if err == nil {
		report.Moved++
		log.Debug("File moved")
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to move %s: %w", file, err)
	}

	pattern := numberedPattern(file)
	if placed, err := o.hasMatch(dir, pattern); err != nil {
		return err
	} else if placed {
		report.AlreadyPlaced++
		return nil
	}

	staged, err := o.area.Files()
	if err != nil {
		return err
	}

	candidate := ""
	for _, name := range staged {
		if pattern.MatchString(name) {
			candidate = name
			break
		}
	}
	if candidate == "" && o.fuzzyThreshold > 0 {
		candidate = o.closest(file, staged)
	}
	if candidate == "" {
		report.Missing++
		report.MissingFiles = append(report.MissingFiles, file)
		log.Warn("Recorded file not found in staging area")
		return nil
	}

	if err := fs.Rename(o.area.Path(candidate), filepath.Join(dir, candidate)); err != nil {
		return fmt.Errorf("failed to move %s: %w", candidate, err)
	}
	report.Recovered++
	log.WithField("staged_as", candidate).Info("File recovered under a different name")
	return nil
}

// within reports whether path lies strictly below the staging directory
func (o *Organizer) within(path string) bool {
	rel, err := filepath.Rel(o.area.Dir(), path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// closest returns the staged name most similar to file, if any reaches the threshold
func (o *Organizer) closest(file string, staged []string) string {
	best, bestScore := "", 0.0
	for _, name := range staged {
		score := matchr.JaroWinkler(file, name, false)
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	if bestScore < o.fuzzyThreshold {
		return ""
	}
	o.logger.DebugWithFields("Fuzzy match", map[string]interface{}{
		"file":  file,
		"match": best,
		"score": bestScore,
	})
	return best
}

// hasMatch reports whether dir already holds a file matching pattern
func (o *Organizer) hasMatch(dir string, pattern *regexp.Regexp) (bool, error) {
	infos, err := afero.ReadDir(o.area.Fs(), dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	for _, info := range infos {
		if info.Mode().IsRegular() && pattern.MatchString(info.Name()) {
			return true, nil
		}
	}
	return false, nil
}

// numberedPattern matches file and the names the resolver derives from it
func numberedPattern(file string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(file) + `( \(\d+\))?$`)
}
