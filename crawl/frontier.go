package crawl

import (
	"context"
	"strings"
	"sync"

	"github.com/fwojciec/partcrawl"
	"github.com/fwojciec/partcrawl/bloom"
)

// Compile-time interface verification.
var _ partcrawl.Frontier = (*Frontier)(nil)

// Frontier is an in-memory FIFO queue of crawl units with URL deduplication.
// Units are served breadth-first. It is safe for concurrent use by multiple
// goroutines.
//
// The frontier tracks units that have been popped but not yet marked Done.
// When the queue is empty and nothing is in flight no more work can appear,
// so the frontier closes itself and every blocked Pop returns false.
type Frontier struct {
	mu       sync.Mutex
	seen     *bloom.Filter
	exact    map[string]struct{}
	queue    []partcrawl.Unit
	inflight int
	closed   bool
	// wake is closed and replaced whenever the state changes.
	wake chan struct{}
}

// NewFrontier creates a new Frontier sized for n expected URLs
// with the given false positive rate for the Bloom filter.
func NewFrontier(n uint, fpRate float64) *Frontier {
	return &Frontier{
		seen:  bloom.NewFilter(n, fpRate),
		exact: make(map[string]struct{}),
		wake:  make(chan struct{}),
	}
}

// Push adds a unit to the back of the queue.
// Returns false if the URL has already been pushed or the frontier is closed.
// URL fragments are stripped before deduplication.
func (f *Frontier) Push(u partcrawl.Unit) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}

	u.URL = stripFragment(u.URL)

	// The Bloom filter answers "definitely new" without touching the map;
	// a positive is confirmed against the exact set.
	if f.seen.TestAndAdd(u.URL) {
		if _, ok := f.exact[u.URL]; ok {
			return false
		}
	}
	f.exact[u.URL] = struct{}{}

	f.queue = append(f.queue, u)
	f.signal()
	return true
}

// Pop removes and returns the unit at the front of the queue, blocking
// while the queue is empty and other units are still in flight.
// The caller must call Done once it has finished with the unit.
func (f *Frontier) Pop(ctx context.Context) (partcrawl.Unit, bool) {
	for {
		if ctx.Err() != nil {
			return partcrawl.Unit{}, false
		}
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return partcrawl.Unit{}, false
		}
		if len(f.queue) > 0 {
			u := f.queue[0]
			f.queue[0] = partcrawl.Unit{}
			f.queue = f.queue[1:]
			f.inflight++
			f.mu.Unlock()
			return u, true
		}
		if f.inflight == 0 {
			f.closeLocked()
			f.mu.Unlock()
			return partcrawl.Unit{}, false
		}
		wake := f.wake
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return partcrawl.Unit{}, false
		case <-wake:
		}
	}
}

// Done marks one popped unit as finished.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inflight > 0 {
		f.inflight--
	}
	if f.inflight == 0 && len(f.queue) == 0 {
		f.closeLocked()
		return
	}
	f.signal()
}

// Close stops the frontier. Queued units are discarded and blocked Pop
// calls return false.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = nil
	f.closeLocked()
}

// Len returns the number of units in the queue.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Seen returns true if the URL has been queued during this run.
// URL fragments are stripped before checking.
func (f *Frontier) Seen(rawURL string) bool {
	url := stripFragment(rawURL)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.seen.Test(url) {
		return false
	}
	_, ok := f.exact[url]
	return ok
}

func (f *Frontier) closeLocked() {
	if f.closed {
		return
	}
	f.closed = true
	close(f.wake)
}

// signal wakes every blocked Pop. Must be called with mu held.
func (f *Frontier) signal() {
	close(f.wake)
	f.wake = make(chan struct{})
}

func stripFragment(url string) string {
	if idx := strings.Index(url, "#"); idx != -1 {
		return url[:idx]
	}
	return url
}
