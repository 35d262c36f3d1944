// Package crawl provides catalog crawling orchestration.
// It coordinates the frontier, fetching, extraction, deduplication, and
// persistence of appliance models and parts.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/fwojciec/partcrawl"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Frontier and deduplicator sizing.
const (
	// frontierExpectedURLs is the expected number of URLs for Bloom filter sizing.
	frontierExpectedURLs = 10000
	// frontierFalsePositiveRate is the acceptable false positive rate for deduplication.
	frontierFalsePositiveRate = 0.01
	// dedupExpectedKeys is the expected number of natural keys per run.
	dedupExpectedKeys = 50000
)

// DefaultFetchTimeout bounds a single fetch attempt.
const DefaultFetchTimeout = 45 * time.Second

// DefaultBaseURL is the catalog the crawler targets unless configured.
const DefaultBaseURL = "https://www.partselect.com"

// Crawler runs bounded crawls of the parts catalog.
type Crawler struct {
	Fetcher   partcrawl.Fetcher
	Extractor partcrawl.Extractor
	// Store receives every admitted batch. It may be nil, in which case
	// records are counted but not persisted.
	Store       partcrawl.BatchWriter
	RateLimiter partcrawl.DomainLimiter
	Observer    partcrawl.Observer
	Logger      *slog.Logger

	RetryDelays  []time.Duration
	FetchTimeout time.Duration
}

// RunConfig holds the parameters of one crawl.
type RunConfig struct {
	Types            []partcrawl.ApplianceType
	MaxModels        int
	MaxPartsPerModel int
	Workers          int
	BaseURL          string
	// RunID identifies the run in logs and sinks. Generated when empty.
	RunID string
}

// Validate returns an error if the configuration cannot start a run.
func (cfg RunConfig) Validate() error {
	if len(cfg.Types) == 0 {
		return partcrawl.Errorf(partcrawl.EINVALID, "at least one appliance type required")
	}
	for _, t := range cfg.Types {
		if !t.Valid() {
			return partcrawl.Errorf(partcrawl.EINVALID, "invalid appliance type %q", t)
		}
	}
	if cfg.MaxModels <= 0 {
		return partcrawl.Errorf(partcrawl.EINVALID, "max models must be positive, got %d", cfg.MaxModels)
	}
	if cfg.MaxPartsPerModel <= 0 {
		return partcrawl.Errorf(partcrawl.EINVALID, "max parts per model must be positive, got %d", cfg.MaxPartsPerModel)
	}
	if cfg.Workers <= 0 {
		return partcrawl.Errorf(partcrawl.EINVALID, "workers must be positive, got %d", cfg.Workers)
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return partcrawl.Errorf(partcrawl.EINVALID, "invalid base URL %q", cfg.BaseURL)
	}
	return nil
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID    string
	Duration time.Duration
	// Stopped is set when the run ended on the stop signal rather than by
	// draining the frontier.
	Stopped bool

	Models int
	Parts  int
	Links  int
	Pages  int

	Failures map[partcrawl.FailureCategory]int
	Phases   map[partcrawl.ApplianceType]Phase

	rootsFailed bool
}

// Failed returns the total number of failed units.
func (s *Summary) Failed() int {
	var n int
	for _, c := range s.Failures {
		n += c
	}
	return n
}

// Admitted returns the total number of admitted records.
func (s *Summary) Admitted() int {
	return s.Models + s.Parts + s.Links
}

// Unreachable reports whether the source could not be reached at all:
// every root page failed and nothing was admitted.
func (s *Summary) Unreachable() bool {
	return s.rootsFailed && s.Admitted() == 0
}

// run holds the state of a single Run call.
type run struct {
	id         string
	crawler    *Crawler
	frontier   *Frontier
	controller *Controller
	logger     *slog.Logger
	observer   partcrawl.Observer
	delays     []time.Duration
	timeout    time.Duration

	models   atomic.Int64
	parts    atomic.Int64
	links    atomic.Int64
	pages    atomic.Int64
	failures map[partcrawl.FailureCategory]*atomic.Int64
}

// Run crawls the catalog until the frontier drains or ctx is canceled.
// Per-unit failures are counted in the summary and never abort the run.
// Canceling ctx stops dispatch; units already being processed are finished.
func (c *Crawler) Run(ctx context.Context, cfg RunConfig) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := c.newRun(cfg)
	start := time.Now()
	r.logger.Info("crawl started",
		"types", cfg.Types,
		"max_models", cfg.MaxModels,
		"max_parts_per_model", cfg.MaxPartsPerModel,
		"workers", cfg.Workers,
	)

	r.controller.Seed(cfg.Types)
	stop := context.AfterFunc(ctx, r.frontier.Close)
	defer stop()

	var g errgroup.Group
	for i := 0; i < cfg.Workers; i++ {
		g.Go(func() error {
			r.work(ctx)
			return nil
		})
	}
	_ = g.Wait()

	s := r.summary()
	s.Duration = time.Since(start)
	s.Stopped = ctx.Err() != nil
	r.logger.Info("crawl finished",
		"models", s.Models,
		"parts", s.Parts,
		"links", s.Links,
		"pages", s.Pages,
		"failed", s.Failed(),
		"stopped", s.Stopped,
		"duration", s.Duration,
	)
	return s, nil
}

func (c *Crawler) newRun(cfg RunConfig) *run {
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	id := cfg.RunID
	if id == "" {
		id = uuid.NewString()
	}
	logger = logger.With("run_id", id)

	delays := c.RetryDelays
	if delays == nil {
		delays = DefaultRetryDelays()
	}
	timeout := c.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	observer := c.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	frontier := NewFrontier(frontierExpectedURLs, frontierFalsePositiveRate)
	budget := Budget{MaxModels: cfg.MaxModels, MaxPartsPerModel: cfg.MaxPartsPerModel}

	r := &run{
		id:         id,
		crawler:    c,
		frontier:   frontier,
		controller: NewController(frontier, NewDeduplicator(dedupExpectedKeys), budget, cfg.BaseURL, logger),
		logger:     logger,
		observer:   observer,
		delays:     delays,
		timeout:    timeout,
		failures:   make(map[partcrawl.FailureCategory]*atomic.Int64),
	}
	for _, cat := range partcrawl.FailureCategories {
		r.failures[cat] = new(atomic.Int64)
	}
	return r
}

// work pulls units until the frontier closes.
func (r *run) work(ctx context.Context) {
	for {
		u, ok := r.frontier.Pop(ctx)
		if !ok {
			return
		}
		r.process(ctx, u)
		r.controller.Finish(u)
		r.frontier.Done()
	}
}

// process runs one unit end to end. It never returns an error: failures
// are recorded against the run and the unit is discarded.
func (r *run) process(ctx context.Context, u partcrawl.Unit) {
	defer func() {
		if p := recover(); p != nil {
			r.fail(u, partcrawl.Errorf(partcrawl.EINTERNAL, "panic processing %s: %v", u.URL, p))
		}
	}()

	if lim := r.crawler.RateLimiter; lim != nil {
		if err := lim.Wait(ctx, hostOf(u.URL)); err != nil {
			r.controller.Fail(u, err)
			r.logger.Debug("unit abandoned", "url", u.URL, "kind", u.Kind)
			return
		}
	}

	start := time.Now()
	html, err := FetchWithRetry(ctx, u.URL, r.fetchAttempt(ctx, u.Kind), r.logger, r.delays)
	r.observer.PageFetched(u.Kind, time.Since(start), err)
	if err != nil {
		r.fail(u, err)
		return
	}
	r.pages.Add(1)

	ext, err := r.crawler.Extractor.Extract(u.Kind, u.URL, html)
	if err != nil {
		r.fail(u, err)
		return
	}

	adm, err := r.controller.Admit(u, ext)
	if err != nil {
		r.fail(u, err)
		return
	}

	// Writes are detached from the stop signal so a batch is never cut
	// short mid-commit.
	wctx := context.WithoutCancel(ctx)
	r.persist(wctx, u, adm.Batch)
	if u.Kind == partcrawl.PartDetail {
		if links := r.controller.Settle(u); len(links) > 0 {
			r.persist(wctx, u, &partcrawl.Batch{ApplianceType: u.ApplianceType, Links: links})
		}
	}
	r.controller.Enqueue(adm.Units)
}

// fetchAttempt returns a fetch function whose attempts are bounded by the
// fetch timeout and survive the stop signal.
func (r *run) fetchAttempt(ctx context.Context, kind partcrawl.PageKind) FetchFunc {
	base := partcrawl.WithPageKind(context.WithoutCancel(ctx), kind)
	return func(_ context.Context, url string) (string, error) {
		actx, cancel := context.WithTimeout(base, r.timeout)
		defer cancel()
		return r.crawler.Fetcher.Fetch(actx, url)
	}
}

func (r *run) persist(ctx context.Context, u partcrawl.Unit, b *partcrawl.Batch) {
	if b.Len() == 0 {
		return
	}
	r.models.Add(int64(len(b.Models)))
	r.parts.Add(int64(len(b.Parts)))
	r.links.Add(int64(len(b.Links)))
	r.observer.RecordsAdmitted(b)

	if r.crawler.Store == nil {
		return
	}
	if err := r.crawler.Store.WriteBatch(ctx, b); err != nil {
		r.failures[partcrawl.FailurePersistence].Add(1)
		r.observer.UnitFailed(u.Kind, partcrawl.FailurePersistence)
		r.logger.Error("batch dropped",
			"url", u.URL,
			"kind", u.Kind,
			"records", b.Len(),
			"err", err,
		)
	}
}

func (r *run) fail(u partcrawl.Unit, err error) {
	if !r.controller.Fail(u, err) {
		r.logger.Debug("end of pagination", "url", u.URL, "kind", u.Kind)
		return
	}
	cat := partcrawl.CategoryOf(err)
	r.failures[cat].Add(1)
	r.observer.UnitFailed(u.Kind, cat)
	r.logger.Warn("unit failed",
		"url", u.URL,
		"kind", u.Kind,
		"category", cat,
		"err", err,
	)
}

func (r *run) summary() *Summary {
	s := &Summary{
		RunID:       r.id,
		Models:      int(r.models.Load()),
		Parts:       int(r.parts.Load()),
		Links:       int(r.links.Load()),
		Pages:       int(r.pages.Load()),
		Failures:    make(map[partcrawl.FailureCategory]int, len(r.failures)),
		Phases:      r.controller.Phases(),
		rootsFailed: r.controller.RootsFailed(),
	}
	for cat, n := range r.failures {
		s.Failures[cat] = int(n.Load())
	}
	return s
}

// String renders the summary for operators.
func (s *Summary) String() string {
	return fmt.Sprintf("run %s: %d models, %d parts, %d links from %d pages; failures: transient_fetch=%d permanent_fetch=%d extraction=%d persistence=%d",
		s.RunID, s.Models, s.Parts, s.Links, s.Pages,
		s.Failures[partcrawl.FailureTransientFetch],
		s.Failures[partcrawl.FailurePermanentFetch],
		s.Failures[partcrawl.FailureExtraction],
		s.Failures[partcrawl.FailurePersistence],
	)
}

type nopObserver struct{}

func (nopObserver) PageFetched(partcrawl.PageKind, time.Duration, error)     {}
func (nopObserver) RecordsAdmitted(*partcrawl.Batch)                         {}
func (nopObserver) UnitFailed(partcrawl.PageKind, partcrawl.FailureCategory) {}
