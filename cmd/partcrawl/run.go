package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fwojciec/partcrawl"
	"github.com/fwojciec/partcrawl/crawl"
	"github.com/fwojciec/partcrawl/fs"
	"github.com/fwojciec/partcrawl/goquery"
	pchttp "github.com/fwojciec/partcrawl/http"
	"github.com/fwojciec/partcrawl/postgres"
	"github.com/fwojciec/partcrawl/prometheus"
	"github.com/fwojciec/partcrawl/rod"
	pcslog "github.com/fwojciec/partcrawl/slog"
	"github.com/fwojciec/partcrawl/sqlite"
	"github.com/google/uuid"
)

// Run wires the crawl from flags and executes it.
func (c *CLI) Run(deps *Dependencies) error {
	if err := c.Validate(); err != nil {
		return err
	}

	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(deps.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := deps.Ctx
	if c.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Deadline)
		defer cancel()
	}

	runID := uuid.NewString()
	pipeline, store, jsonSink, err := c.openSinks(deps.Ctx, runID, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher, err = c.openFetcher()
		if err != nil {
			fmt.Fprintln(deps.Stderr, "Hint: use --fetcher http when Chrome or Chromium is not installed")
			return fmt.Errorf("failed to start fetcher: %w", err)
		}
	}
	fetcher = pcslog.NewLoggingFetcher(fetcher, logger)
	defer fetcher.Close()

	crawler := &crawl.Crawler{
		Fetcher:      fetcher,
		Extractor:    pcslog.NewLoggingExtractor(goquery.NewDefaultRegistry(), logger),
		RateLimiter:  crawl.NewDomainLimiter(c.RPS),
		Logger:       logger,
		FetchTimeout: c.FetchTimeout,
	}
	if pipeline.Len() > 0 {
		crawler.Store = pipeline
	}

	if c.MetricsAddr != "" {
		metrics, err := prometheus.NewMetrics()
		if err != nil {
			return err
		}
		crawler.Observer = metrics
		shutdown := serveMetrics(c.MetricsAddr, metrics.Handler(), logger)
		defer shutdown()
	}

	summary, err := crawler.Run(ctx, c.runConfig(runID))
	if err != nil {
		return err
	}

	if jsonSink != nil {
		if err := jsonSink.Commit(); err != nil {
			_ = jsonSink.Abort()
			return fmt.Errorf("failed to write JSON output: %w", err)
		}
		for _, t := range c.types() {
			fmt.Fprintf(deps.Stdout, "Wrote %s\n", jsonSink.Path(t))
		}
	}

	fmt.Fprintln(deps.Stdout, summary)
	if store != nil {
		counts, err := store.Counts(deps.Ctx)
		if err != nil {
			return fmt.Errorf("failed to count catalog rows: %w", err)
		}
		fmt.Fprintf(deps.Stdout, "catalog: %d models, %d parts, %d links\n", counts.Models, counts.Parts, counts.Links)
	}

	if summary.Unreachable() {
		return errors.New("could not reach the catalog: every appliance root failed to fetch")
	}
	return nil
}

// openSinks builds the persistence pipeline. The returned store and sink
// are nil when disabled.
func (c *CLI) openSinks(ctx context.Context, runID string, logger *slog.Logger) (*crawl.Pipeline, partcrawl.CatalogStore, *fs.JSONSink, error) {
	var sinks []crawl.Sink

	var store partcrawl.CatalogStore
	if c.DB {
		s, name, err := c.openStore(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		store = pcslog.NewLoggingStore(s, logger)
		sinks = append(sinks, crawl.Sink{Name: name, Writer: store})
	}

	var jsonSink *fs.JSONSink
	if !c.NoJSON {
		jsonSink = fs.NewJSONSink(c.OutputDir, runID, c.types(), fs.WithPrefix(c.OutputPrefix))
		sinks = append(sinks, crawl.Sink{Name: "json", Writer: jsonSink})
	}

	return crawl.NewPipeline(logger, sinks...), store, jsonSink, nil
}

func (c *CLI) openStore(ctx context.Context) (partcrawl.CatalogStore, string, error) {
	if c.usePostgres() {
		s, err := postgres.Open(ctx, c.DBURL)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open postgres catalog: %w", err)
		}
		return s, "postgres", nil
	}

	db := sqlite.NewDB(c.DBURL)
	if err := db.Open(); err != nil {
		return nil, "", fmt.Errorf("failed to open database at %q: %w", c.DBURL, err)
	}
	return sqlite.NewCatalogStore(db), "sqlite", nil
}

func (c *CLI) openFetcher() (partcrawl.Fetcher, error) {
	if c.Fetcher == "http" {
		return pchttp.NewFetcher(pchttp.WithTimeout(c.FetchTimeout)), nil
	}
	return rod.NewFetcher(
		rod.WithFetchTimeout(c.FetchTimeout),
		rod.WithBrowsers(c.browsers()),
		rod.WithRecycleAfter(c.RecycleAfter),
		rod.WithBlockedRelaunch(c.BlockLimit),
	)
}

// serveMetrics starts the metrics endpoint and returns a function that
// stops it.
func serveMetrics(addr string, h http.Handler, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
