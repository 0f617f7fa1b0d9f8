package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"moodlescraper/pkg/browser"
	"moodlescraper/pkg/checkpoint"
	"moodlescraper/pkg/config"
	errs "moodlescraper/pkg/errors"
	"moodlescraper/pkg/logger"
	"moodlescraper/pkg/models"
	"moodlescraper/pkg/organizer"
	"moodlescraper/pkg/ui"
)

// Stage is a state of the run state machine
type Stage string

const (
	StageDiscover  Stage = "DISCOVER"
	StageTraverse  Stage = "TRAVERSE"
	StageAwaitIdle Stage = "AWAIT_IDLE"
	StageOrganize  Stage = "ORGANIZE"
	StageDone      Stage = "DONE"
	StageAborted   Stage = "ABORTED"
)

// Scraper orchestrates discovery, traversal and organization for one account
type Scraper struct {
	browser     browser.Browser
	poller      Poller
	resolver    Resolver
	organizer   Organizer
	checkpoints *checkpoint.Manager
	reporter    ui.Reporter

	portal     config.PortalConfig
	selectors  config.SelectorConfig
	stagingDir string
	account    string
	logger     logger.Logger

	stats runStats
}

type runStats struct {
	files    int
	skipped  int
	warnings int
}

// Option configures a Scraper
type Option func(*Scraper)

// WithReporter sends progress to r
func WithReporter(r ui.Reporter) Option {
	return func(s *Scraper) { s.reporter = r }
}

// WithCheckpoints saves the catalog after traversal
func WithCheckpoints(m *checkpoint.Manager) Option {
	return func(s *Scraper) { s.checkpoints = m }
}

// WithLogger replaces the global logger
func WithLogger(l logger.Logger) Option {
	return func(s *Scraper) { s.logger = l }
}

// WithAccount names the account the run belongs to
func WithAccount(account string) Option {
	return func(s *Scraper) { s.account = account }
}

// New creates a Scraper
func New(b browser.Browser, poller Poller, resolver Resolver, org Organizer, cfg *config.Config, opts ...Option) *Scraper {
	s := &Scraper{
		browser:    b,
		poller:     poller,
		resolver:   resolver,
		organizer:  org,
		reporter:   ui.NopReporter{},
		portal:     cfg.Portal,
		selectors:  cfg.Selectors,
		stagingDir: cfg.Download.StagingDirectory,
		logger:     logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("component", "scraper")
	if w, ok := resolver.(WarningSource); ok {
		w.OnWarning(s.warn)
	}
	return s
}

// Result describes a pipeline run
type Result struct {
	RunID     string
	Stage     Stage
	Catalog   *models.Catalog
	Report    organizer.Report
	Files     int
	Skipped   int
	Warnings  int
	StartedAt time.Time
	Duration  time.Duration
}

// Summary converts the result for the reporter
func (r *Result) Summary(account string, err error) ui.Summary {
	s := ui.Summary{
		RunID:     r.RunID,
		Account:   account,
		Stage:     string(r.Stage),
		Files:     r.Files,
		Skipped:   r.Skipped,
		Warnings:  r.Warnings,
		Moved:     r.Report.Moved,
		Recovered: r.Report.Recovered,
		Missing:   r.Report.Missing,
		Duration:  r.Duration,
		Err:       err,
	}
	if r.Catalog != nil {
		s.Entries = r.Catalog.Len()
	}
	return s
}

// Run executes DISCOVER, TRAVERSE, AWAIT_IDLE and ORGANIZE in order. The
// browser is shut down when Run returns. A fatal error aborts the run; the
// partial result is returned alongside it.
func (s *Scraper) Run(ctx context.Context) (*Result, error) {
	s.stats = runStats{}
	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := s.logger.WithField("run_id", res.RunID)

	err := s.run(ctx, res, log)

	res.Files = s.stats.files
	res.Skipped = s.stats.skipped
	res.Warnings = s.stats.warnings
	res.Duration = time.Since(res.StartedAt)

	if err != nil {
		log.WithError(err).ErrorWithFields("Run aborted", map[string]interface{}{
			"stage": string(res.Stage),
		})
		s.reporter.Failure(err)
	}
	if shutdownErr := s.browser.Shutdown(); shutdownErr != nil {
		log.WithError(shutdownErr).Warn("Browser shutdown failed")
	}

	if err == nil {
		res.Stage = StageDone
		s.enter(log, StageDone, map[string]interface{}{
			"entries": res.Catalog.Len(),
			"files":   res.Files,
			"moved":   res.Report.Moved + res.Report.Recovered,
		})
	}
	// the summary keeps the stage the run failed in
	summary := res.Summary(s.account, err)
	if err != nil {
		res.Stage = StageAborted
	}
	s.reporter.Finished(summary)

	return res, err
}

func (s *Scraper) run(ctx context.Context, res *Result, log logger.Logger) error {
	res.Stage = StageDiscover
	s.enter(log, StageDiscover, nil)
	catalog, err := s.ScrapeEntries(ctx)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	res.Catalog = catalog

	res.Stage = StageTraverse
	s.enter(log, StageTraverse, map[string]interface{}{"entries": catalog.Len()})
	if err := s.Traverse(ctx, catalog); err != nil {
		return fmt.Errorf("traverse: %w", err)
	}
	s.saveCheckpoint(res, log)

	res.Stage = StageAwaitIdle
	s.enter(log, StageAwaitIdle, nil)
	if err := s.poller.AwaitIdle(ctx); err != nil {
		return fmt.Errorf("await idle: %w", err)
	}

	res.Stage = StageOrganize
	s.enter(log, StageOrganize, map[string]interface{}{"files": catalog.FileCount()})
	report, err := s.organizer.Organize(ctx, catalog)
	res.Report = report
	if err != nil {
		return fmt.Errorf("organize: %w", err)
	}
	return nil
}

func (s *Scraper) enter(log logger.Logger, stage Stage, fields map[string]interface{}) {
	logger.LogStage(log, string(stage), fields)
	s.reporter.StageChanged(string(stage))
}

// saveCheckpoint stores the catalog so the organizer can be re-run offline.
// Failures only warn.
func (s *Scraper) saveCheckpoint(res *Result, log logger.Logger) {
	if s.checkpoints == nil {
		return
	}
	cp := checkpoint.New(s.account, s.portal.BaseURL, s.stagingDir, res.Catalog)
	cp.RunID = res.RunID
	if err := s.checkpoints.Save(cp); err != nil {
		log.WithError(err).Warn("Failed to save catalog checkpoint")
		s.warn(fmt.Sprintf("catalog checkpoint not saved: %v", err))
		return
	}
	log.WithField("path", s.checkpoints.Path()).Debug("Catalog checkpoint saved")
}

// visit waits for pending downloads, then navigates
func (s *Scraper) visit(ctx context.Context, address string) error {
	if err := s.poller.AwaitIdle(ctx); err != nil {
		return err
	}
	return s.browser.Navigate(ctx, address)
}

// click waits for pending downloads, then clicks el, which may navigate
func (s *Scraper) click(ctx context.Context, el browser.Element) error {
	if err := s.poller.AwaitIdle(ctx); err != nil {
		return err
	}
	return el.Click(ctx)
}

// portalURL resolves a path against the portal base URL
func (s *Scraper) portalURL(path string) (string, error) {
	base, err := url.Parse(s.portal.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", errs.MalformedAddress(s.portal.BaseURL, err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", errs.MalformedAddress(path, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func (s *Scraper) warn(message string) {
	s.stats.warnings++
	s.reporter.Warning(message)
}

// skip records a download that failed without aborting the run
func (s *Scraper) skip(entry, group, name string, err error) {
	s.stats.skipped++
	logger.LogDownload(s.logger, entry, group, name, err)
	s.warn(fmt.Sprintf("skipped %s in %s: %v", name, entry, err))
}

// linkOf returns the element's href, or that of the first link inside it
func linkOf(el browser.Element, selector string) (string, bool) {
	if href, ok := el.Attribute("href"); ok && strings.TrimSpace(href) != "" {
		return href, true
	}
	link, err := el.Find(selector)
	if err != nil {
		return "", false
	}
	href, ok := link.Attribute("href")
	return href, ok && strings.TrimSpace(href) != ""
}

func isDisabled(el browser.Element) bool {
	if v, ok := el.Attribute("aria-disabled"); ok && v == "true" {
		return true
	}
	if _, ok := el.Attribute("disabled"); ok {
		return true
	}
	class, _ := el.Attribute("class")
	for _, c := range strings.Fields(class) {
		if c == "disabled" {
			return true
		}
	}
	return false
}
