// Package browser defines the page automation surface the scraper drives and
// an HTTP implementation of it. Session loads pages through the portal
// client, queries them with CSS selectors and emulates clicks: links are
// followed, in-page toggles flip their aria-expanded state.
package browser

import "context"

// Browser navigates pages and queries the current one
type Browser interface {
	// Navigate loads address, which must be an absolute http(s) URL
	Navigate(ctx context.Context, address string) error
	// Find returns the first element matching selector or a not_found error
	Find(selector string) (Element, error)
	FindAll(selector string) []Element
	// PageSnapshot returns the raw content of the current page as loaded
	PageSnapshot() string
	CurrentURL() string
	Shutdown() error
}

// Element is a node of the current page
type Element interface {
	// Text returns the element's text, one trimmed line per text block
	Text() string
	// Attribute returns the attribute value; href and src are made absolute
	Attribute(name string) (string, bool)
	// Click activates the element or returns a not_interactable error
	Click(ctx context.Context) error
	Find(selector string) (Element, error)
	FindAll(selector string) []Element
}
