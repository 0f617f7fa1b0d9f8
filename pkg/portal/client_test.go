package portal

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
	"moodlescraper/pkg/logger"
	"moodlescraper/pkg/ratelimit"
)

func newLoginServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/index.php", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `<form><input name="logintoken" value="tok123"><input name="username"><input name="password"></form>`)
			return
		}
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("logintoken") != "tok123" {
			http.Error(w, "bad token", http.StatusForbidden)
			return
		}
		if r.PostForm.Get("username") == "student" && r.PostForm.Get("password") == "secret" {
			http.SetCookie(w, &http.Cookie{Name: "MoodleSession", Value: "abc", Path: "/"})
			http.Redirect(w, r, "/my/", http.StatusSeeOther)
			return
		}
		fmt.Fprint(w, `<div id="loginerrormessage">Invalid login, please try again</div><input name="password">`)
	})
	mux.HandleFunc("/my/", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("MoodleSession"); err != nil || c.Value != "abc" {
			http.Redirect(w, r, "/login/index.php", http.StatusSeeOther)
			return
		}
		fmt.Fprint(w, `<html><body>Dashboard</body></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, baseURL string, log logger.Logger) *Client {
	t.Helper()
	c, err := NewClient(config.PortalConfig{
		BaseURL:        baseURL,
		LoginPath:      "/login/index.php",
		RequestTimeout: 5 * time.Second,
		UserAgent:      "moodlescraper-test",
	}, 5*time.Second, ratelimit.NewTokenBucket(100, time.Second), log)
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsBadBaseURL(t *testing.T) {
	_, err := NewClient(config.PortalConfig{BaseURL: "not a url"}, time.Second, nil, nil)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeMalformedAddress))
}

func TestLogin(t *testing.T) {
	server := newLoginServer(t)
	tl := logger.NewTestLogger()
	c := newTestClient(t, server.URL, tl)

	err := c.Login(context.Background(), "student", "secret", "#loginerrormessage")
	require.NoError(t, err)

	res, err := c.Pages().R().Get("/my/")
	require.NoError(t, err)
	assert.Contains(t, res.String(), "Dashboard")
	assert.True(t, tl.HasMessage("Logged in to portal"))
	assert.NotEmpty(t, tl.GetMessagesByLevel("DEBUG"), "requests are logged")
}

func TestLoginSharesCookiesWithDownloads(t *testing.T) {
	server := newLoginServer(t)
	c := newTestClient(t, server.URL, nil)
	require.NoError(t, c.Login(context.Background(), "student", "secret", "#loginerrormessage"))

	res, err := c.Downloads().R().Get("/my/")
	require.NoError(t, err)
	assert.Contains(t, res.String(), "Dashboard")
}

func TestLoginRejected(t *testing.T) {
	server := newLoginServer(t)
	c := newTestClient(t, server.URL, nil)

	err := c.Login(context.Background(), "student", "wrong", "#loginerrormessage")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeAuth))
	assert.Contains(t, err.Error(), "Invalid login")
}

func TestResolveReference(t *testing.T) {
	c := newTestClient(t, "https://moodle.example.edu/lms/", nil)

	got, err := c.ResolveReference("course/view.php?id=3")
	require.NoError(t, err)
	assert.Equal(t, "https://moodle.example.edu/lms/course/view.php?id=3", got)

	_, err = c.ResolveReference("%zz")
	assert.Error(t, err)
}
