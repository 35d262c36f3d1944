package slog

import (
	"log/slog"
	"time"

	"github.com/fwojciec/partcrawl"
)

// Ensure LoggingExtractor implements partcrawl.Extractor.
var _ partcrawl.Extractor = (*LoggingExtractor)(nil)

// LoggingExtractor wraps an Extractor with debug logging.
type LoggingExtractor struct {
	next   partcrawl.Extractor
	logger *slog.Logger
}

// NewLoggingExtractor creates a new LoggingExtractor.
func NewLoggingExtractor(next partcrawl.Extractor, logger *slog.Logger) *LoggingExtractor {
	return &LoggingExtractor{next: next, logger: logger}
}

// Extract delegates and logs what the page yielded.
func (e *LoggingExtractor) Extract(kind partcrawl.PageKind, pageURL, html string) (ext *partcrawl.Extraction, err error) {
	defer func(begin time.Time) {
		attrs := []any{
			"url", pageURL,
			"kind", kind,
			"duration", time.Since(begin),
		}
		if ext != nil {
			attrs = append(attrs,
				"models", len(ext.Models),
				"parts", len(ext.Parts),
				"links", len(ext.Links),
				"next", ext.Next,
				"records", recordKeys(ext),
			)
		}
		if err != nil {
			attrs = append(attrs, "err", err)
		}
		e.logger.Debug("extract", attrs...)
	}(time.Now())
	return e.next.Extract(kind, pageURL, html)
}

func recordKeys(ext *partcrawl.Extraction) []string {
	records := ext.Records()
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.RecordKey()
	}
	return keys
}
