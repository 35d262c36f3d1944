package partcrawl

import "fmt"

// Extractor parses raw page content into typed records.
// Extraction is pure: no I/O and no retries, so it can be tested against
// captured pages.
type Extractor interface {
	// Extract parses html fetched from pageURL according to the rule for kind.
	// A record is either fully well-formed or not emitted. Pages whose
	// structure is not recognizable return an *ExtractionError.
	Extract(kind PageKind, pageURL string, html string) (*Extraction, error)
}

// ExtractionError reports a page whose structure did not match its kind.
type ExtractionError struct {
	URL    string
	Kind   PageKind
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s %s: %s", e.Kind, e.URL, e.Reason)
}

// ErrorCode returns EEXTRACT.
func (e *ExtractionError) ErrorCode() string { return EEXTRACT }

// PageExtractor is the parsing rule for a single page kind.
type PageExtractor interface {
	// Kind returns the page kind this rule handles.
	Kind() PageKind

	// Extract parses html fetched from pageURL.
	Extract(pageURL string, html string) (*Extraction, error)
}
