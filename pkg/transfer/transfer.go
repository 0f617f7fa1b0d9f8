// Package transfer opens download streams over the authenticated portal session.
package transfer

import (
	"context"
	"fmt"
	"io"

	"github.com/go-resty/resty/v2"
	errs "moodlescraper/pkg/errors"
	"moodlescraper/pkg/logger"
	"moodlescraper/pkg/retry"
)

// Opener starts the transfer of the content at address
type Opener interface {
	OpenStream(ctx context.Context, address string) (io.ReadCloser, error)
}

// HTTPTransfer streams content with the portal's download client
type HTTPTransfer struct {
	client *resty.Client
	retry  *retry.Config
	logger logger.Logger
}

// NewHTTPTransfer creates an Opener over client. Retryable failures are
// retried according to retryCfg; a nil retryCfg makes a single attempt.
func NewHTTPTransfer(client *resty.Client, retryCfg *retry.Config, log logger.Logger) *HTTPTransfer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if retryCfg == nil {
		retryCfg = &retry.Config{MaxAttempts: 1, Logger: log}
	}
	return &HTTPTransfer{
		client: client,
		retry:  retryCfg,
		logger: log.WithField("component", "transfer"),
	}
}

// OpenStream returns the response body for address. The caller must close it.
func (t *HTTPTransfer) OpenStream(ctx context.Context, address string) (io.ReadCloser, error) {
	body, err := retry.DoWithResult(ctx, func(ctx context.Context) (io.ReadCloser, error) {
		return t.open(ctx, address)
	}, t.retry)
	if err != nil {
		if errs.Is(err, errs.ErrorTypeTransfer) {
			return nil, err
		}
		return nil, errs.Transfer(address, 0, err)
	}
	return body, nil
}

func (t *HTTPTransfer) open(ctx context.Context, address string) (io.ReadCloser, error) {
	res, err := t.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(address)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, fmt.Sprintf("request for %s failed", address))
	}

	body := res.RawBody()
	if res.StatusCode() >= 400 {
		if body != nil {
			body.Close()
		}
		return nil, errs.Transfer(address, res.StatusCode(), nil)
	}
	if body == nil {
		return nil, errs.Transfer(address, res.StatusCode(), fmt.Errorf("empty response body"))
	}

	t.logger.DebugWithFields("Transfer started", map[string]interface{}{
		"url":            address,
		"content_length": res.RawResponse.ContentLength,
	})
	return body, nil
}
