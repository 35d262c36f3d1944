package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/partcrawl"
)

// Ensure LoggingStore implements partcrawl.CatalogStore.
var _ partcrawl.CatalogStore = (*LoggingStore)(nil)

// LoggingStore wraps a CatalogStore with logging of batch writes.
type LoggingStore struct {
	next   partcrawl.CatalogStore
	logger *slog.Logger
}

// NewLoggingStore creates a new LoggingStore.
func NewLoggingStore(next partcrawl.CatalogStore, logger *slog.Logger) *LoggingStore {
	return &LoggingStore{next: next, logger: logger}
}

// WriteBatch delegates to the wrapped store and logs the batch size.
func (s *LoggingStore) WriteBatch(ctx context.Context, b *partcrawl.Batch) (err error) {
	defer func(begin time.Time) {
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "write batch",
			"appliance_type", b.ApplianceType,
			"models", len(b.Models),
			"parts", len(b.Parts),
			"links", len(b.Links),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.WriteBatch(ctx, b)
}

// Counts delegates to the wrapped store.
func (s *LoggingStore) Counts(ctx context.Context) (partcrawl.Counts, error) {
	return s.next.Counts(ctx)
}

// Close delegates to the wrapped store.
func (s *LoggingStore) Close() error {
	return s.next.Close()
}
