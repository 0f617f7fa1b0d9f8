// Package portal owns the authenticated HTTP session with the Moodle portal.
// Page navigation (pkg/browser) and file transfers (pkg/transfer) share its
// cookie jar, rate limiter and request logging.
package portal

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"moodlescraper/pkg/config"
	errs "moodlescraper/pkg/errors"
	"moodlescraper/pkg/logger"
	"moodlescraper/pkg/ratelimit"
)

// Client is an authenticated session with the portal
type Client struct {
	baseURL   *url.URL
	cfg       config.PortalConfig
	pages     *resty.Client
	downloads *resty.Client
	limiter   ratelimit.Limiter
	logger    logger.Logger
}

// NewClient creates a portal session. Page requests are bounded by
// cfg.RequestTimeout and downloads by downloadTimeout; both share one cookie jar.
func NewClient(cfg config.PortalConfig, downloadTimeout time.Duration, limiter ratelimit.Limiter, log logger.Logger) (*Client, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, errs.MalformedAddress(cfg.BaseURL, err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		baseURL: baseURL,
		cfg:     cfg,
		limiter: limiter,
		logger:  log.WithField("component", "portal"),
	}
	c.pages = c.newResty(jar, cfg.RequestTimeout)
	c.downloads = c.newResty(jar, downloadTimeout)
	return c, nil
}

func (c *Client) newResty(jar *cookiejar.Jar, timeout time.Duration) *resty.Client {
	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(c.baseURL.String(), "/"))
	client.SetCookieJar(jar)
	if c.cfg.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	if c.cfg.UserAgent != "" {
		client.SetHeader("User-Agent", c.cfg.UserAgent)
	}
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	client.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if c.limiter == nil {
			return nil
		}
		return c.limiter.Wait(r.Context())
	})
	client.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
		logger.LogRequest(c.logger, r.Request.Method, r.Request.URL, r.StatusCode(), r.Time())
		return nil
	})
	return client
}

// Pages returns the client used for page navigation
func (c *Client) Pages() *resty.Client { return c.pages }

// Downloads returns the client used for file transfers
func (c *Client) Downloads() *resty.Client { return c.downloads }

// BaseURL returns the portal root
func (c *Client) BaseURL() *url.URL { return c.baseURL }

// ResolveReference turns ref into an absolute URL relative to the portal root
func (c *Client) ResolveReference(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", errs.MalformedAddress(ref, err)
	}
	return c.baseURL.ResolveReference(u).String(), nil
}

// Login completes the portal's username/password form. The login token is
// read from the form first; a failure message or a second login form in
// the response means the credentials were rejected.
func (c *Client) Login(ctx context.Context, username, password, failureSelector string) error {
	loginPath := c.cfg.LoginPath
	if loginPath == "" {
		loginPath = "/login/index.php"
	}

	res, err := c.pages.R().SetContext(ctx).Get(loginPath)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, err, "failed to fetch login page")
	}
	if res.IsError() {
		return &errs.Error{Type: errs.FromStatusCode(res.StatusCode()), Message: "login page unavailable", Code: res.StatusCode()}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return fmt.Errorf("failed to parse login page: %w", err)
	}

	form := map[string]string{
		"username": username,
		"password": password,
	}
	if token := doc.Find("input[name=logintoken]").AttrOr("value", ""); token != "" {
		form["logintoken"] = token
	} else {
		c.logger.Debug("Login form has no login token")
	}

	res, err = c.pages.R().
		SetContext(ctx).
		SetFormData(form).
		Post(loginPath)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, err, "failed to submit login form")
	}
	if res.IsError() {
		return &errs.Error{Type: errs.ErrorTypeAuth, Message: "login rejected", Code: res.StatusCode()}
	}

	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return fmt.Errorf("failed to parse login response: %w", err)
	}
	if failureSelector != "" && doc.Find(failureSelector).Length() > 0 {
		msg := strings.TrimSpace(doc.Find(failureSelector).First().Text())
		return errs.New(errs.ErrorTypeAuth, fmt.Sprintf("login failed: %s", msg))
	}
	if doc.Find("input[name=password]").Length() > 0 {
		return errs.New(errs.ErrorTypeAuth, "login failed: still on the login form")
	}

	c.logger.WithField("username", username).Info("Logged in to portal")
	return nil
}

// Close releases idle connections held by the session
func (c *Client) Close() {
	c.pages.GetClient().CloseIdleConnections()
	c.downloads.GetClient().CloseIdleConnections()
}
