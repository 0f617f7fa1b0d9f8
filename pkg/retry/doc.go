// Package retry provides backoff and retry logic for transient failures while
// transferring files from the portal.
//
// Basic usage:
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//		return fetch(ctx, address)
//	}, retry.FromSettings(cfg.Retry, log))
//
// Typed errors from pkg/errors are retried only when their status code or
// type is retryable; context cancellation is never retried.
package retry
