package rod

import (
	"context"
	"errors"
	"sync"

	"github.com/fwojciec/partcrawl"
)

// BrowserPool holds a fixed set of browsers shared by all fetches. The pool
// size is independent of the number of crawl workers: a worker that finds
// every browser checked out blocks in Acquire.
type BrowserPool struct {
	idle     chan *BrowserManager
	managers []*BrowserManager

	mu     sync.Mutex
	closed bool
}

// NewBrowserPool launches size browsers. If any launch fails, the browsers
// already started are closed.
func NewBrowserPool(size int, opts ...ManagerOption) (*BrowserPool, error) {
	if size < 1 {
		return nil, partcrawl.Errorf(partcrawl.EINVALID, "browser pool size must be positive, got %d", size)
	}

	p := &BrowserPool{idle: make(chan *BrowserManager, size)}
	for range size {
		bm, err := NewBrowserManager(opts...)
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		p.managers = append(p.managers, bm)
		p.idle <- bm
	}
	return p, nil
}

// Size returns the number of browsers in the pool.
func (p *BrowserPool) Size() int {
	return len(p.managers)
}

// Acquire checks out a browser, blocking until one is free or ctx is done.
// Every successful Acquire must be paired with Release.
func (p *BrowserPool) Acquire(ctx context.Context) (*BrowserManager, error) {
	select {
	case bm, ok := <-p.idle:
		if !ok {
			return nil, partcrawl.Errorf(partcrawl.EINVALID, "browser pool closed")
		}
		return bm, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a browser to the pool.
func (p *BrowserPool) Release(bm *BrowserManager) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.idle <- bm
}

// Close shuts down every browser. Close is safe to call multiple times.
func (p *BrowserPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.idle)
	p.mu.Unlock()

	var errs []error
	for _, bm := range p.managers {
		if err := bm.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LauncherPIDs returns the launcher process IDs of every browser.
// This method exists for testing purposes to verify proper cleanup.
func (p *BrowserPool) LauncherPIDs() []int {
	pids := make([]int, 0, len(p.managers))
	for _, bm := range p.managers {
		pids = append(pids, bm.LauncherPID())
	}
	return pids
}
