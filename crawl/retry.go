package crawl

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fwojciec/partcrawl"
)

// FetchFunc is the signature for a fetch function.
type FetchFunc func(ctx context.Context, url string) (string, error)

// DefaultRetryDelays returns the backoff delays for fetch retries: 1s, 2s, 4s.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
}

// ExponentialDelays returns n delays starting at base and doubling each time.
func ExponentialDelays(base time.Duration, n int) []time.Duration {
	delays := make([]time.Duration, n)
	d := base
	for i := range delays {
		delays[i] = d
		d *= 2
	}
	return delays
}

// FetchWithRetry fetches a URL, retrying transient failures after each of
// the given delays (len(delays)+1 attempts in total).
//
// Permanent failures return immediately. Errors that are not a
// *partcrawl.FetchError are treated as transient. When attempts run out the
// last error is returned as a transient *partcrawl.FetchError.
func FetchWithRetry(ctx context.Context, url string, fetch FetchFunc, logger *slog.Logger, delays []time.Duration) (string, error) {
	maxAttempts := len(delays) + 1 // 1 initial + N retries

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		html, err := fetch(ctx, url)
		if err == nil {
			return html, nil
		}
		if partcrawl.IsPermanent(err) {
			return "", err
		}
		lastErr = err

		// Don't retry after the last attempt
		if attempt >= maxAttempts-1 {
			break
		}

		// Check context before sleeping
		if ctx.Err() != nil {
			return "", partcrawl.TransientError(url, ctx.Err())
		}

		if logger != nil {
			logger.Debug("retry", "url", url, "attempt", attempt+2, "delay", delays[attempt], "err", err)
		}

		timer := time.NewTimer(delays[attempt])
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", partcrawl.TransientError(url, ctx.Err())
		case <-timer.C:
		}
	}

	var fe *partcrawl.FetchError
	if errors.As(lastErr, &fe) {
		return "", lastErr
	}
	return "", partcrawl.TransientError(url, lastErr)
}
