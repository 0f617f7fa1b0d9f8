package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moodlescraper/pkg/config"
	errs "moodlescraper/pkg/errors"
	"moodlescraper/pkg/portal"
)

const coursePage = `<html><body>
<div class="coursename"><span class="sr-only">Course name</span>
    CS101 -   Algorithms
</div>
<a id="next" href="/page2">Next</a>
<a id="rel" href="files/a.pdf">A</a>
<button id="disabled" disabled><a href="/never">x</a></button>
<div style="display: none"><a id="hidden" href="/never">hidden</a></div>
<a id="toggle" href="#region" aria-expanded="false" aria-controls="region">Show</a>
<div id="region" hidden><div class="fileuploadsubmission"><a href="/f/b.pdf">b.pdf</a></div></div>
<span id="plain">no action</span>
</body></html>`

func newTestSession(t *testing.T) (*Session, string) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/course", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, coursePage)
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Second</h1></body></html>`)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page2", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig()
	cfg.Portal.BaseURL = server.URL
	cfg.Portal.LoadDelay = 0
	cfg.Retry.MaxAttempts = 1

	client, err := portal.NewClient(cfg.Portal, time.Minute, nil, nil)
	require.NoError(t, err)
	return NewSession(client, cfg, nil), server.URL
}

func TestNavigateAndQuery(t *testing.T) {
	s, base := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.Navigate(ctx, base+"/course"))
	assert.Equal(t, base+"/course", s.CurrentURL())
	assert.Contains(t, s.PageSnapshot(), "fileuploadsubmission")

	row, err := s.Find(".coursename")
	require.NoError(t, err)
	assert.Equal(t, "Course name\nCS101 - Algorithms", row.Text())

	rel, err := s.Find("#rel")
	require.NoError(t, err)
	href, ok := rel.Attribute("href")
	assert.True(t, ok)
	assert.Equal(t, base+"/files/a.pdf", href)

	_, ok = rel.Attribute("data-missing")
	assert.False(t, ok)

	assert.Len(t, s.FindAll("a"), 6)
	assert.Empty(t, s.FindAll(".nothing"))
}

func TestFindNotFound(t *testing.T) {
	s, base := newTestSession(t)

	_, err := s.Find("#anything")
	assert.True(t, errs.Is(err, errs.ErrorTypeNotFound), "no page loaded yet")

	require.NoError(t, s.Navigate(context.Background(), base+"/course"))
	_, err = s.Find("#missing")
	assert.True(t, errs.Is(err, errs.ErrorTypeNotFound))
}

func TestNavigateMalformed(t *testing.T) {
	s, _ := newTestSession(t)

	for _, address := range []string{"", "course/view.php", "ftp://host/file", "http://%zz", "javascript:void(0)"} {
		err := s.Navigate(context.Background(), address)
		assert.True(t, errs.Is(err, errs.ErrorTypeMalformedAddress), "address %q: %v", address, err)
		assert.True(t, errs.IsFatal(err))
	}
}

func TestNavigateHTTPError(t *testing.T) {
	s, base := newTestSession(t)

	err := s.Navigate(context.Background(), base+"/missing")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeNotFound))
}

func TestNavigateFollowsRedirects(t *testing.T) {
	s, base := newTestSession(t)

	require.NoError(t, s.Navigate(context.Background(), base+"/moved"))
	assert.Equal(t, base+"/page2", s.CurrentURL())
}

func TestClickFollowsLink(t *testing.T) {
	s, base := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, base+"/course"))

	next, err := s.Find("#next")
	require.NoError(t, err)
	require.NoError(t, next.Click(ctx))

	assert.Equal(t, base+"/page2", s.CurrentURL())
	h1, err := s.Find("h1")
	require.NoError(t, err)
	assert.Equal(t, "Second", h1.Text())

	// elements from the previous page are stale
	err = next.Click(ctx)
	assert.True(t, errs.Is(err, errs.ErrorTypeNotInteractable))
}

func TestClickToggleReveals(t *testing.T) {
	s, base := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, base+"/course"))

	collapsed := s.FindAll("a[aria-expanded='false']")
	require.Len(t, collapsed, 1)
	require.NoError(t, collapsed[0].Click(ctx))

	assert.Empty(t, s.FindAll("a[aria-expanded='false']"))
	assert.Equal(t, base+"/course", s.CurrentURL(), "toggles do not navigate")

	region, err := s.Find("#region")
	require.NoError(t, err)
	_, hidden := region.Attribute("hidden")
	assert.False(t, hidden)

	attachments := s.FindAll("div.fileuploadsubmission > a")
	require.Len(t, attachments, 1)
	href, _ := attachments[0].Attribute("href")
	assert.Equal(t, base+"/f/b.pdf", href)
}

func TestClickNotInteractable(t *testing.T) {
	s, base := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, base+"/course"))

	for _, selector := range []string{"#disabled", "#hidden", "#plain"} {
		el, err := s.Find(selector)
		require.NoError(t, err)
		err = el.Click(ctx)
		assert.True(t, errs.Is(err, errs.ErrorTypeNotInteractable), "%s: %v", selector, err)
		assert.False(t, errs.IsFatal(err))
	}
	assert.Equal(t, base+"/course", s.CurrentURL())
}

func TestShutdown(t *testing.T) {
	s, base := newTestSession(t)
	require.NoError(t, s.Shutdown())
	require.NoError(t, s.Shutdown())

	assert.Error(t, s.Navigate(context.Background(), base+"/course"))
}
