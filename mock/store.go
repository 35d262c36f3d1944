package mock

import (
	"context"

	"github.com/fwojciec/partcrawl"
)

var _ partcrawl.BatchWriter = (*BatchWriter)(nil)

// BatchWriter is a mock implementation of partcrawl.BatchWriter.
type BatchWriter struct {
	WriteBatchFn func(ctx context.Context, b *partcrawl.Batch) error
}

func (w *BatchWriter) WriteBatch(ctx context.Context, b *partcrawl.Batch) error {
	return w.WriteBatchFn(ctx, b)
}

var _ partcrawl.CatalogStore = (*CatalogStore)(nil)

// CatalogStore is a mock implementation of partcrawl.CatalogStore.
type CatalogStore struct {
	WriteBatchFn func(ctx context.Context, b *partcrawl.Batch) error
	CountsFn     func(ctx context.Context) (partcrawl.Counts, error)
	CloseFn      func() error
}

func (s *CatalogStore) WriteBatch(ctx context.Context, b *partcrawl.Batch) error {
	return s.WriteBatchFn(ctx, b)
}

func (s *CatalogStore) Counts(ctx context.Context) (partcrawl.Counts, error) {
	return s.CountsFn(ctx)
}

func (s *CatalogStore) Close() error {
	return s.CloseFn()
}
