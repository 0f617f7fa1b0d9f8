package scraper

import (
	"context"
	"fmt"

	"moodlescraper/pkg/browser"
	errs "moodlescraper/pkg/errors"
	"moodlescraper/pkg/models"
	"moodlescraper/pkg/retry"
	"moodlescraper/pkg/sanitize"
)

// ScrapeEntries walks the paginated listing and returns the catalog of
// entries in order of first sighting. A name seen again replaces the earlier
// entry's location but keeps its position.
func (s *Scraper) ScrapeEntries(ctx context.Context) (*models.Catalog, error) {
	listing, err := s.portalURL(s.portal.ListingPath)
	if err != nil {
		return nil, err
	}
	if err := s.visit(ctx, listing); err != nil {
		return nil, err
	}
	if err := s.showAll(ctx); err != nil {
		return nil, err
	}

	catalog := models.NewCatalog()
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.scrapePage(page, catalog); err != nil {
			return nil, err
		}

		next, err := s.browser.Find(s.selectors.NextPage)
		if err != nil {
			return nil, errs.Structural("next page control %q not found on listing page %d", s.selectors.NextPage, page)
		}
		if isDisabled(next) {
			s.logger.DebugWithFields("Last listing page reached", map[string]interface{}{
				"pages":   page,
				"entries": catalog.Len(),
			})
			return catalog, nil
		}
		if s.portal.MaxPages > 0 && page >= s.portal.MaxPages {
			s.logger.WarnWithFields("Listing page limit reached, stopping discovery", map[string]interface{}{
				"max_pages": s.portal.MaxPages,
				"entries":   catalog.Len(),
			})
			s.warn(fmt.Sprintf("stopped discovery after %d listing pages", page))
			return catalog, nil
		}

		if err := s.nextPage(ctx, next, page); err != nil {
			return nil, err
		}
	}
}

// scrapePage adds the entries listed on the current page to catalog
func (s *Scraper) scrapePage(page int, catalog *models.Catalog) error {
	container, err := s.browser.Find(s.selectors.Listing)
	if err != nil {
		return errs.Structural("listing container %q not found on listing page %d", s.selectors.Listing, page)
	}

	added := 0
	for _, row := range container.FindAll(s.selectors.EntryRow) {
		text := row.Text()
		if text == "" {
			continue
		}
		name := sanitize.EntryLabel(text)
		if !sanitize.Usable(name) {
			s.logger.WithFields(map[string]interface{}{"text": text, "name": name}).Debug("Skipping entry row with no usable name")
			continue
		}
		href, ok := linkOf(row, "a")
		if !ok {
			return errs.Structural("entry row %q on listing page %d has no link", name, page)
		}

		if replaced := catalog.Put(models.NewEntry(name, href)); replaced {
			s.logger.DebugWithFields("Entry listed again, keeping the latest location", map[string]interface{}{
				"entry": name,
				"url":   href,
			})
		}
		added++
	}

	s.logger.DebugWithFields("Listing page scraped", map[string]interface{}{
		"page":    page,
		"rows":    added,
		"entries": catalog.Len(),
	})
	return nil
}

// nextPage clicks the next control and checks that the listing advanced
func (s *Scraper) nextPage(ctx context.Context, next browser.Element, page int) error {
	beforeURL, beforePage := s.browser.CurrentURL(), s.browser.PageSnapshot()

	if err := s.click(ctx, next); err != nil {
		if errs.Is(err, errs.ErrorTypeNotInteractable) {
			return errs.Wrap(errs.ErrorTypeStructural, err, fmt.Sprintf("next page control on listing page %d cannot be used", page))
		}
		return err
	}
	if err := retry.Wait(ctx, s.portal.SettleDelay); err != nil {
		return err
	}

	if s.browser.CurrentURL() == beforeURL && s.browser.PageSnapshot() == beforePage {
		return errs.Structural("next page control on listing page %d did not advance the listing", page)
	}
	return nil
}

// showAll switches the listing to show every entry. The controls are
// optional; only cancellation or a stuck download stops the run here.
func (s *Scraper) showAll(ctx context.Context) error {
	steps := []string{s.selectors.GroupingDropdown, s.selectors.ShowAllOption}
	for _, selector := range steps {
		if selector == "" {
			continue
		}
		el, err := s.browser.Find(selector)
		if err != nil {
			s.logger.WithField("selector", selector).Debug("Listing filter control not present")
			continue
		}
		if err := s.click(ctx, el); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errs.Is(err, errs.ErrorTypeTimeout) {
				return err
			}
			s.logger.WithError(err).WithField("selector", selector).Debug("Listing filter control not usable")
		}
	}
	return retry.Wait(ctx, s.portal.SettleDelay)
}
