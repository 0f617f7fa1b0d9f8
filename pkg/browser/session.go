package browser

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"moodlescraper/pkg/config"
	errs "moodlescraper/pkg/errors"
	"moodlescraper/pkg/logger"
	"moodlescraper/pkg/portal"
	"moodlescraper/pkg/retry"
)

// Session is a Browser backed by plain HTTP requests
type Session struct {
	client    *portal.Client
	loadDelay time.Duration
	retry     *retry.Config
	logger    logger.Logger

	doc     *goquery.Document
	raw     string
	current *url.URL
	closed  bool
}

// NewSession creates a browser over an authenticated portal client
func NewSession(client *portal.Client, cfg *config.Config, log logger.Logger) *Session {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Session{
		client:    client,
		loadDelay: cfg.Portal.LoadDelay,
		retry:     retry.FromSettings(cfg.Retry, log),
		logger:    log.WithField("component", "browser"),
	}
}

// Navigate loads address and makes it the current page
func (s *Session) Navigate(ctx context.Context, address string) error {
	if s.closed {
		return errs.New(errs.ErrorTypeUnknown, "browser session is shut down")
	}
	target, err := parseAddress(address)
	if err != nil {
		return err
	}

	loaded, err := retry.DoWithResult(ctx, func(ctx context.Context) (page, error) {
		return s.fetch(ctx, target)
	}, s.retry)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", address, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(loaded.content))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", address, err)
	}
	s.doc = doc
	s.raw = string(loaded.content)
	s.current = loaded.url
	s.logger.DebugWithFields("Page loaded", map[string]interface{}{
		"url":   s.current.String(),
		"bytes": len(loaded.content),
	})

	return sleep(ctx, s.loadDelay)
}

type page struct {
	content []byte
	url     *url.URL
}

func (s *Session) fetch(ctx context.Context, target *url.URL) (page, error) {
	address := target.String()
	res, err := s.client.Pages().R().SetContext(ctx).Get(address)
	if err != nil {
		return page{}, errs.Wrap(errs.ErrorTypeNetwork, err, "request failed")
	}
	if res.IsError() {
		return page{}, &errs.Error{
			Type:    errs.FromStatusCode(res.StatusCode()),
			Message: fmt.Sprintf("unexpected status loading %s", address),
			Code:    res.StatusCode(),
		}
	}

	final := target
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		final = res.RawResponse.Request.URL
	}
	return page{content: res.Body(), url: final}, nil
}

func parseAddress(address string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(address))
	if err != nil {
		return nil, errs.MalformedAddress(address, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errs.MalformedAddress(address, nil)
	}
	return u, nil
}

// Find returns the first element matching selector on the current page
func (s *Session) Find(selector string) (Element, error) {
	if s.doc == nil {
		return nil, errs.NotFound(selector)
	}
	return find(s, s.doc.Selection, selector)
}

// FindAll returns every element matching selector on the current page
func (s *Session) FindAll(selector string) []Element {
	if s.doc == nil {
		return nil
	}
	return findAll(s, s.doc.Selection, selector)
}

// PageSnapshot returns the current page as it was loaded
func (s *Session) PageSnapshot() string {
	return s.raw
}

// CurrentURL returns the address of the current page after redirects
func (s *Session) CurrentURL() string {
	if s.current == nil {
		return ""
	}
	return s.current.String()
}

// Shutdown ends the session; later navigations fail
func (s *Session) Shutdown() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.doc = nil
	s.client.Close()
	s.logger.Debug("Browser session shut down")
	return nil
}

func (s *Session) resolve(ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	if s.current != nil {
		return s.current.ResolveReference(u).String()
	}
	return s.client.BaseURL().ResolveReference(u).String()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
