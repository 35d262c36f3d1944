package mock

import "github.com/fwojciec/partcrawl"

var _ partcrawl.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of partcrawl.Extractor.
type Extractor struct {
	ExtractFn func(kind partcrawl.PageKind, pageURL, html string) (*partcrawl.Extraction, error)
}

func (e *Extractor) Extract(kind partcrawl.PageKind, pageURL, html string) (*partcrawl.Extraction, error) {
	return e.ExtractFn(kind, pageURL, html)
}

var _ partcrawl.PageExtractor = (*PageExtractor)(nil)

// PageExtractor is a mock implementation of partcrawl.PageExtractor.
type PageExtractor struct {
	KindFn    func() partcrawl.PageKind
	ExtractFn func(pageURL, html string) (*partcrawl.Extraction, error)
}

func (e *PageExtractor) Kind() partcrawl.PageKind {
	return e.KindFn()
}

func (e *PageExtractor) Extract(pageURL, html string) (*partcrawl.Extraction, error) {
	return e.ExtractFn(pageURL, html)
}
