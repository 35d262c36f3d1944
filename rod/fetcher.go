// Package rod implements partcrawl.Fetcher with headless Chrome via go-rod.
package rod

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fwojciec/partcrawl"
	"github.com/fwojciec/partcrawl/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// DefaultFetchTimeout bounds navigation plus load of a single page.
const DefaultFetchTimeout = 45 * time.Second

// DefaultBrowsers is the default browser pool size.
const DefaultBrowsers = 1

var (
	errFetcherClosed = errors.New("fetcher closed")
	errAccessDenied  = errors.New("access denied")
)

// Ensure Fetcher implements partcrawl.Fetcher at compile time.
var _ partcrawl.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves rendered HTML using a pool of browsers.
// Fetcher is safe for concurrent use by multiple goroutines.
type Fetcher struct {
	pool     *BrowserPool
	timeout  time.Duration
	browsers int
	managed  []ManagerOption
	closed   atomic.Bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithFetchTimeout sets the per-fetch timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithBrowsers sets the browser pool size.
func WithBrowsers(n int) Option {
	return func(f *Fetcher) {
		f.browsers = n
	}
}

// WithRecycleAfter sets how many pages a browser serves before relaunch.
func WithRecycleAfter(pages int64) Option {
	return func(f *Fetcher) {
		f.managed = append(f.managed, WithPageLimit(pages))
	}
}

// WithBlockedRelaunch sets how many consecutive access-denied pages make a
// browser relaunch.
func WithBlockedRelaunch(n int64) Option {
	return func(f *Fetcher) {
		f.managed = append(f.managed, WithBlockLimit(n))
	}
}

// NewFetcher launches the browser pool.
// Close must be called when the Fetcher is no longer needed.
//
// Returns an error if Chrome/Chromium cannot be found or launched.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		timeout:  DefaultFetchTimeout,
		browsers: DefaultBrowsers,
	}
	for _, opt := range opts {
		opt(f)
	}

	pool, err := NewBrowserPool(f.browsers, f.managed...)
	if err != nil {
		return nil, err
	}
	f.pool = pool
	return f, nil
}

// Fetch checks out a browser, loads url in a stealth page and returns the
// rendered HTML. The browser is returned to the pool on every path. The fetch
// timeout starts once a browser is checked out.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.closed.Load() {
		return "", partcrawl.PermanentError(url, errFetcherClosed)
	}
	if err := ctx.Err(); err != nil {
		return "", partcrawl.TransientError(url, err)
	}

	bm, err := f.pool.Acquire(ctx)
	if err != nil {
		if partcrawl.ErrorCode(err) == partcrawl.EINVALID {
			return "", partcrawl.PermanentError(url, errFetcherClosed)
		}
		return "", partcrawl.TransientError(url, err)
	}
	defer f.pool.Release(bm)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	html, err := f.load(ctx, bm, url)
	if err != nil {
		if ctx.Err() == nil && !isNavigationError(err) {
			bm.MarkDead()
		}
		return "", partcrawl.TransientError(url, err)
	}
	blocked := goquery.IsAccessDenied(html)
	bm.PageServed(blocked)
	if blocked {
		return "", partcrawl.TransientError(url, errAccessDenied)
	}
	if goquery.IsSoftNotFound(html) {
		return "", partcrawl.NotFoundError(url)
	}
	return html, nil
}

func (f *Fetcher) load(ctx context.Context, bm *BrowserManager, url string) (string, error) {
	browser := bm.Browser()
	if browser == nil {
		return "", errors.New("no browser available")
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return "", fmt.Errorf("creating page: %w", err)
	}
	defer page.Close()

	p := page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return "", err
	}
	if err := p.WaitLoad(); err != nil {
		return "", err
	}
	return p.HTML()
}

// isNavigationError reports failures that come from the target site rather
// than the browser, which do not warrant a relaunch.
func isNavigationError(err error) bool {
	var navErr *rod.NavigationError
	return errors.As(err, &navErr)
}

// LauncherPIDs returns the process IDs of the pool's browser launchers.
// This method exists for testing purposes to verify proper cleanup.
func (f *Fetcher) LauncherPIDs() []int {
	return f.pool.LauncherPIDs()
}

// Close releases browser resources. Close is safe to call multiple times.
func (f *Fetcher) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	return f.pool.Close()
}
