package partcrawl

import "context"

// PageKind identifies which extraction rule applies to a page.
// The set is closed: adding a page kind means adding a constant and
// registering an extractor for it.
type PageKind int

// Page kinds in traversal order.
const (
	PageUnknown PageKind = iota
	ApplianceRoot
	ModelListing
	ModelDetail
	PartListing
	PartDetail
)

var pageKindNames = map[PageKind]string{
	PageUnknown:   "unknown",
	ApplianceRoot: "appliance_root",
	ModelListing:  "model_listing",
	ModelDetail:   "model_detail",
	PartListing:   "part_listing",
	PartDetail:    "part_detail",
}

// String returns the snake_case name used in logs and metric labels.
func (k PageKind) String() string {
	if name, ok := pageKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// PageKinds lists every crawlable page kind.
var PageKinds = []PageKind{ApplianceRoot, ModelListing, ModelDetail, PartListing, PartDetail}

// Unit is one frontier work item: a page locator plus the context needed to
// interpret what is found there.
type Unit struct {
	URL           string
	Kind          PageKind
	ApplianceType ApplianceType

	// ModelNumber is set for ModelDetail and PartListing units.
	ModelNumber string
	// PartNumber is set for PartDetail units.
	PartNumber string
	// Page is the 1-based pagination index for listing units.
	Page int
	// Summary carries the listing-level view of a part so the detail page
	// can fall back to it for fields it does not show.
	Summary *Part
}

// Extraction holds the records parsed from a single page.
type Extraction struct {
	Models []*Model
	Parts  []*Part
	Links  []ModelPartLink

	// Next is the locator of the page that continues this one: the next
	// listing page, or the part listing for a model detail page.
	Next string

	// Entries is the number of candidate entries seen on a listing page,
	// including ones that did not yield a well-formed record.
	Entries int
}

// Empty reports whether the extraction yielded nothing to act on.
func (e *Extraction) Empty() bool {
	return e == nil || (len(e.Models) == 0 && len(e.Parts) == 0 && len(e.Links) == 0 && e.Next == "")
}

// Record is one typed item produced by an extractor.
type Record interface {
	// RecordKey returns the natural key of the record.
	RecordKey() string
}

// NextPage is a record pointing at a page to crawl next.
type NextPage string

func (m *Model) RecordKey() string        { return "model:" + m.ModelNumber }
func (p *Part) RecordKey() string         { return "part:" + p.PartNumber }
func (l ModelPartLink) RecordKey() string { return "link:" + l.ModelNumber + "|" + l.PartNumber }
func (n NextPage) RecordKey() string      { return "next:" + string(n) }

// Records flattens the extraction into a sequence in page order:
// models, parts, links, then the next page locator.
func (e *Extraction) Records() []Record {
	if e == nil {
		return nil
	}
	records := make([]Record, 0, len(e.Models)+len(e.Parts)+len(e.Links)+1)
	for _, m := range e.Models {
		records = append(records, m)
	}
	for _, p := range e.Parts {
		records = append(records, p)
	}
	for _, l := range e.Links {
		records = append(records, l)
	}
	if e.Next != "" {
		records = append(records, NextPage(e.Next))
	}
	return records
}

type pageKindKey struct{}

// WithPageKind annotates ctx with the kind of page being fetched.
// The hint is informational only and never changes fetch behavior.
func WithPageKind(ctx context.Context, kind PageKind) context.Context {
	return context.WithValue(ctx, pageKindKey{}, kind)
}

// PageKindFromContext returns the page kind hint stored in ctx.
func PageKindFromContext(ctx context.Context) PageKind {
	kind, _ := ctx.Value(pageKindKey{}).(PageKind)
	return kind
}
