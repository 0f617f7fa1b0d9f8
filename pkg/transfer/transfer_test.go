package transfer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "moodlescraper/pkg/errors"
	"moodlescraper/pkg/retry"
)

func quickRetry(attempts int) *retry.Config {
	return &retry.Config{
		MaxAttempts: attempts,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
	}
}

func TestOpenStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 content"))
	}))
	defer server.Close()

	tr := NewHTTPTransfer(resty.New(), nil, nil)
	body, err := tr.OpenStream(context.Background(), server.URL+"/a.pdf")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 content", string(data))
}

func TestOpenStreamClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	tr := NewHTTPTransfer(resty.New(), quickRetry(3), nil)
	_, err := tr.OpenStream(context.Background(), server.URL+"/gone.pdf")
	require.Error(t, err)

	assert.True(t, errs.Is(err, errs.ErrorTypeTransfer))
	assert.False(t, errs.IsFatal(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenStreamRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	tr := NewHTTPTransfer(resty.New(), quickRetry(3), nil)
	body, err := tr.OpenStream(context.Background(), server.URL)
	require.NoError(t, err)
	body.Close()
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestOpenStreamExhaustedRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	tr := NewHTTPTransfer(resty.New(), quickRetry(2), nil)
	_, err := tr.OpenStream(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeTransfer))
}

func TestOpenStreamCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := NewHTTPTransfer(resty.New(), nil, nil)
	_, err := tr.OpenStream(ctx, "http://127.0.0.1:1/a.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
