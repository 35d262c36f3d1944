package partcrawl

import (
	"context"
	"errors"
	"fmt"
)

// Fetcher retrieves page content from URLs.
// Implementations may use browser automation to handle JavaScript-rendered content.
type Fetcher interface {
	// Fetch retrieves the page at url and returns its HTML.
	// Failures should be reported as *FetchError so callers can tell
	// transient failures from permanent ones.
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, url string) (html string, err error)

	// Close releases fetcher resources.
	// Must be called when the Fetcher is no longer needed.
	Close() error
}

// FetchFailureKind classifies why a fetch failed.
type FetchFailureKind int

const (
	// FetchTransient failures (timeouts, 5xx, connection resets, driver
	// crashes) are worth retrying.
	FetchTransient FetchFailureKind = iota
	// FetchPermanent failures (404, malformed responses) are not.
	FetchPermanent
)

func (k FetchFailureKind) String() string {
	if k == FetchPermanent {
		return "permanent"
	}
	return "transient"
}

// FetchError is returned by a Fetcher when a page cannot be retrieved.
type FetchError struct {
	Kind FetchFailureKind
	URL  string
	// NotFound is set when the source reported the page does not exist.
	NotFound bool
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ErrorCode maps the failure kind onto the application error codes.
func (e *FetchError) ErrorCode() string {
	if e.Kind == FetchPermanent {
		return EPERMANENT
	}
	return ETRANSIENT
}

// TransientError wraps err as a retryable fetch failure.
func TransientError(url string, err error) *FetchError {
	return &FetchError{Kind: FetchTransient, URL: url, Err: err}
}

// PermanentError wraps err as a non-retryable fetch failure.
func PermanentError(url string, err error) *FetchError {
	return &FetchError{Kind: FetchPermanent, URL: url, Err: err}
}

// NotFoundError reports that url does not exist at the source.
func NotFoundError(url string) *FetchError {
	return &FetchError{Kind: FetchPermanent, URL: url, NotFound: true, Err: errors.New("page not found")}
}

// IsPermanent reports whether err is a fetch failure that must not be retried.
func IsPermanent(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchPermanent
}

// IsNotFound reports whether err says the requested page does not exist.
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.NotFound
}
