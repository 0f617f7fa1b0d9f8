package scraper

import (
	"context"
	"fmt"

	errs "moodlescraper/pkg/errors"
	"moodlescraper/pkg/logger"
	"moodlescraper/pkg/models"
	"moodlescraper/pkg/sanitize"
)

// row is a labelled link read off an entry page before navigating away
type row struct {
	label string
	link  string
}

// Traverse visits every entry in catalog order, records its page snapshot
// and downloads its assignment attachments and resources. Downloads that
// fail are skipped with a warning; anything else aborts the traversal.
func (s *Scraper) Traverse(ctx context.Context, catalog *models.Catalog) error {
	entries := catalog.Entries()
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.reporter.EntryStarted(i+1, len(entries), entry.Name)
		if err := s.traverseEntry(ctx, entry); err != nil {
			return fmt.Errorf("entry %q: %w", entry.Name, err)
		}
	}
	return nil
}

func (s *Scraper) traverseEntry(ctx context.Context, entry *models.Entry) error {
	log := s.logger.WithField("entry", entry.Name)

	if err := s.visit(ctx, entry.SourceLocation); err != nil {
		return err
	}
	entry.SetSnapshot(s.browser.PageSnapshot())

	assignments, err := s.collectRows(s.selectors.AssignmentRow)
	if err != nil {
		return err
	}
	resources, err := s.collectRows(s.selectors.ResourceRow)
	if err != nil {
		return err
	}
	log.DebugWithFields("Entry page read", map[string]interface{}{
		"assignments": len(assignments),
		"resources":   len(resources),
	})

	for _, r := range assignments {
		if err := s.downloadAssignment(ctx, entry, r); err != nil {
			return err
		}
	}
	for _, r := range resources {
		if err := s.downloadResource(ctx, entry, r); err != nil {
			return err
		}
	}
	return nil
}

// collectRows reads label and link of every row matching selector
func (s *Scraper) collectRows(selector string) ([]row, error) {
	var rows []row
	for _, el := range s.browser.FindAll(selector) {
		label, err := el.Find(s.selectors.RowLabel)
		if err != nil {
			return nil, errs.Structural("%s row without %s label", selector, s.selectors.RowLabel)
		}
		link, ok := linkOf(el, s.selectors.RowLink)
		if !ok {
			return nil, errs.Structural("%s row %q without link", selector, label.Text())
		}
		rows = append(rows, row{label: label.Text(), link: link})
	}
	return rows, nil
}

// downloadAssignment opens the assignment page, reveals collapsed
// submissions and downloads every attachment into the group named after it
func (s *Scraper) downloadAssignment(ctx context.Context, entry *models.Entry, r row) error {
	group := sanitize.Label(r.label)
	if !sanitize.Usable(group) {
		s.logger.WithFields(map[string]interface{}{"link": r.link, "name": group}).Debug("Skipping assignment with no usable name")
		return nil
	}

	if err := s.visit(ctx, r.link); err != nil {
		return err
	}
	s.reveal(ctx)

	var attachments []row
	for _, a := range s.browser.FindAll(s.selectors.Attachment) {
		href, ok := a.Attribute("href")
		if !ok || href == "" {
			continue
		}
		attachments = append(attachments, row{label: a.Text(), link: href})
	}
	if len(attachments) == 0 {
		s.logger.WithField("assignment", group).Debug("Assignment has no attachments")
		return nil
	}

	for _, a := range attachments {
		desired := sanitize.Label(a.label)
		name, err := s.resolve(ctx, entry.Name, group, a.link, desired)
		if err != nil {
			return err
		}
		if name != "" {
			entry.AppendFile(group, name)
		}
	}
	return nil
}

// reveal expands collapsed controls; ones that cannot be clicked are skipped
func (s *Scraper) reveal(ctx context.Context) {
	for _, toggle := range s.browser.FindAll(s.selectors.CollapsedToggle) {
		if err := toggle.Click(ctx); err != nil {
			s.logger.WithError(err).Debug("Collapsed section not expanded")
		}
	}
}

func (s *Scraper) downloadResource(ctx context.Context, entry *models.Entry, r row) error {
	name, err := s.resolve(ctx, entry.Name, "", r.link, sanitize.Label(r.label))
	if err != nil {
		return err
	}
	if name != "" {
		entry.SetFile(name)
	}
	return nil
}

// resolve downloads one file. Non-fatal failures are skipped and reported
// with an empty name and a nil error.
func (s *Scraper) resolve(ctx context.Context, entry, group, address, desired string) (string, error) {
	name, err := s.resolver.Resolve(ctx, address, desired)
	if err != nil {
		if errs.IsFatal(err) {
			return "", err
		}
		label := desired
		if label == "" {
			label = address
		}
		s.skip(entry, group, label, err)
		return "", nil
	}

	s.stats.files++
	logger.LogDownload(s.logger, entry, group, name, nil)
	s.reporter.FileStaged(entry, group, name)
	return name, nil
}
