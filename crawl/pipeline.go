package crawl

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fwojciec/partcrawl"
)

var _ partcrawl.BatchWriter = (*Pipeline)(nil)

// Sink is a named destination for admitted batches.
type Sink struct {
	Name   string
	Writer partcrawl.BatchWriter
}

// Pipeline fans each batch out to every sink. Sinks are independent: a
// failure in one does not stop the batch reaching the others.
type Pipeline struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewPipeline creates a Pipeline writing to sinks in order.
func NewPipeline(logger *slog.Logger, sinks ...Sink) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{sinks: sinks, logger: logger}
}

// Len returns the number of sinks.
func (p *Pipeline) Len() int { return len(p.sinks) }

// WriteBatch writes b to every sink. The returned error joins one
// *partcrawl.PersistenceError per failed sink.
func (p *Pipeline) WriteBatch(ctx context.Context, b *partcrawl.Batch) error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.Writer.WriteBatch(ctx, b); err != nil {
			p.logger.Warn("sink write failed", "sink", s.Name, "records", b.Len(), "err", err)
			errs = append(errs, &partcrawl.PersistenceError{Sink: s.Name, Err: err})
		}
	}
	return errors.Join(errs...)
}
