package scraper

import (
	"context"

	"moodlescraper/pkg/models"
	"moodlescraper/pkg/organizer"
)

// Poller blocks until no download is in flight
type Poller interface {
	AwaitIdle(ctx context.Context) error
}

// Resolver downloads address into the staging area and returns the name used
type Resolver interface {
	Resolve(ctx context.Context, address, desired string) (string, error)
}

// WarningSource is implemented by collaborators that raise warnings of their
// own; the scraper counts and reports them with its own
type WarningSource interface {
	OnWarning(fn func(message string))
}

// Organizer moves staged files into the catalog's folder hierarchy
type Organizer interface {
	Organize(ctx context.Context, catalog *models.Catalog) (organizer.Report, error)
}
