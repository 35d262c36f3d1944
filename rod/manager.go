package rod

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// DefaultRecycleAfter is the number of pages a browser serves before it is
// relaunched.
const DefaultRecycleAfter = 75

// DefaultBlockLimit is the number of consecutive access-denied pages after
// which a browser is relaunched with a fresh profile.
const DefaultBlockLimit = 3

// BrowserManager owns one browser process. The browser is relaunched after
// it has served its page limit, after a run of consecutive pages came
// back access-denied, or after a fetch reports it dead. A relaunch drops the
// cookies and fingerprint state the site keyed its block on.
//
// BrowserManager is safe for concurrent use.
type BrowserManager struct {
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	health   browserHealth
	closed   atomic.Bool
}

// ManagerOption configures a BrowserManager.
type ManagerOption func(*BrowserManager)

// WithPageLimit sets how many pages a browser serves before relaunch.
// Zero disables recycling.
func WithPageLimit(pages int64) ManagerOption {
	return func(bm *BrowserManager) {
		bm.health.recycleAfter = pages
	}
}

// WithBlockLimit sets how many consecutive access-denied pages trigger a
// relaunch. Zero disables the check.
func WithBlockLimit(n int64) ManagerOption {
	return func(bm *BrowserManager) {
		bm.health.blockLimit = n
	}
}

// NewBrowserManager creates a BrowserManager and launches its headless browser.
// Close must be called when the BrowserManager is no longer needed.
func NewBrowserManager(opts ...ManagerOption) (*BrowserManager, error) {
	bm := &BrowserManager{
		health: browserHealth{recycleAfter: DefaultRecycleAfter, blockLimit: DefaultBlockLimit},
	}
	for _, opt := range opts {
		opt(bm)
	}

	if err := bm.launch(); err != nil {
		return nil, err
	}
	return bm, nil
}

// Browser returns the current browser, relaunching it first when it is due.
func (bm *BrowserManager) Browser() *rod.Browser {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.health.due() {
		bm.relaunch()
	}
	return bm.browser
}

// PageServed records one loaded page. blocked reports whether the site
// answered with its access-denied page.
func (bm *BrowserManager) PageServed(blocked bool) {
	bm.health.served(blocked)
}

// MarkDead schedules a relaunch on the next call to Browser.
func (bm *BrowserManager) MarkDead() {
	bm.health.dead.Store(true)
}

// Close releases browser resources. Close is safe to call multiple times.
func (bm *BrowserManager) Close() error {
	if !bm.closed.CompareAndSwap(false, true) {
		return nil
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()

	var err error
	if bm.browser != nil {
		err = bm.browser.Close()
		bm.browser = nil
	}
	if bm.launcher != nil {
		bm.launcher.Kill()
		bm.launcher = nil
	}
	return err
}

func (bm *BrowserManager) launch() error {
	l := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Set("disable-hang-monitor").
		Set("disable-blink-features", "AutomationControlled").
		Leakless(true).
		Headless(true)

	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("connecting to browser: %w", err)
	}

	bm.browser = browser
	bm.launcher = l
	return nil
}

// relaunch swaps in a fresh browser. If the launch fails the old browser is
// kept and the relaunch is retried on the next checkout.
// Must be called with mu held.
func (bm *BrowserManager) relaunch() {
	oldBrowser, oldLauncher := bm.browser, bm.launcher

	if err := bm.launch(); err != nil {
		bm.browser, bm.launcher = oldBrowser, oldLauncher
		return
	}

	if oldBrowser != nil {
		_ = oldBrowser.Close()
	}
	if oldLauncher != nil {
		oldLauncher.Kill()
	}
	bm.health.reset()
}

// LauncherPID returns the process ID of the browser launcher.
// This method exists for testing purposes to verify proper cleanup.
func (bm *BrowserManager) LauncherPID() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.launcher == nil {
		return 0
	}
	return bm.launcher.PID()
}

// browserHealth decides when a browser should be replaced.
type browserHealth struct {
	recycleAfter int64
	blockLimit   int64

	pages   atomic.Int64
	blocked atomic.Int64 // consecutive access-denied pages
	dead    atomic.Bool
}

func (h *browserHealth) served(blocked bool) {
	h.pages.Add(1)
	if !blocked {
		h.blocked.Store(0)
		return
	}
	if n := h.blocked.Add(1); h.blockLimit > 0 && n >= h.blockLimit {
		h.dead.Store(true)
	}
}

func (h *browserHealth) due() bool {
	return h.dead.Load() || (h.recycleAfter > 0 && h.pages.Load() >= h.recycleAfter)
}

func (h *browserHealth) reset() {
	h.pages.Store(0)
	h.blocked.Store(0)
	h.dead.Store(false)
}
