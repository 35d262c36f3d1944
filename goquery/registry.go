package goquery

import (
	"fmt"

	"github.com/fwojciec/partcrawl"
)

var _ partcrawl.Extractor = (*Registry)(nil)

// Registry dispatches extraction to the PageExtractor registered for a
// page kind.
type Registry struct {
	extractors map[partcrawl.PageKind]partcrawl.PageExtractor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[partcrawl.PageKind]partcrawl.PageExtractor)}
}

// NewDefaultRegistry creates a Registry with an extractor for every page kind.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewListingExtractor(partcrawl.ApplianceRoot))
	r.Register(NewListingExtractor(partcrawl.ModelListing))
	r.Register(NewModelExtractor())
	r.Register(NewPartListingExtractor())
	r.Register(NewPartExtractor())
	return r
}

// Register adds an extractor under its own page kind, replacing any
// extractor already registered for that kind.
func (r *Registry) Register(e partcrawl.PageExtractor) {
	r.extractors[e.Kind()] = e
}

// Get returns the extractor for kind, or nil.
func (r *Registry) Get(kind partcrawl.PageKind) partcrawl.PageExtractor {
	return r.extractors[kind]
}

// Extract implements partcrawl.Extractor.
func (r *Registry) Extract(kind partcrawl.PageKind, pageURL, html string) (*partcrawl.Extraction, error) {
	e, ok := r.extractors[kind]
	if !ok {
		return nil, partcrawl.Errorf(partcrawl.EINVALID, "no extractor registered for page kind %s", kind)
	}
	ext, err := e.Extract(pageURL, html)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", kind, err)
	}
	return ext, nil
}
