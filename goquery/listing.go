package goquery

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/partcrawl"
)

var _ partcrawl.PageExtractor = (*ListingExtractor)(nil)

var modelPathRe = regexp.MustCompile(`^/Models/([A-Za-z0-9]+)/?$`)

// ListingExtractor extracts model summaries from an appliance root page or
// one of its paginated model listings.
type ListingExtractor struct {
	kind partcrawl.PageKind
}

// NewListingExtractor creates an extractor for ApplianceRoot or ModelListing.
func NewListingExtractor(kind partcrawl.PageKind) *ListingExtractor {
	return &ListingExtractor{kind: kind}
}

// Kind implements partcrawl.PageExtractor.
func (e *ListingExtractor) Kind() partcrawl.PageKind { return e.kind }

// Extract returns the models linked from the page in page order. The next
// page is set only when the page listed at least one model. A root page
// without model links means the layout changed and is an error; an empty
// continuation page is the end of pagination.
func (e *ListingExtractor) Extract(pageURL, html string) (*partcrawl.Extraction, error) {
	doc, base, err := parseDocument(e.kind, pageURL, html)
	if err != nil {
		return nil, err
	}
	if isNotFoundDocument(doc) {
		return &partcrawl.Extraction{}, nil
	}

	ext := &partcrawl.Extraction{}
	seen := make(map[string]bool)
	doc.Find(`a[href*="/Models/"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u := resolveURL(base, href)
		if u == nil {
			return
		}
		m := modelPathRe.FindStringSubmatch(u.Path)
		if m == nil {
			return
		}
		number := partcrawl.CanonicalModelNumber(m[1])
		if seen[number] {
			return
		}
		seen[number] = true
		name := cleanText(s.Text())
		ext.Models = append(ext.Models, &partcrawl.Model{
			ModelNumber: number,
			Name:        name,
			Brand:       ExtractBrand(name),
			SourceURL:   stripQuery(u),
		})
	})
	ext.Entries = len(ext.Models)

	if ext.Entries == 0 {
		if e.kind == partcrawl.ApplianceRoot {
			return nil, &partcrawl.ExtractionError{URL: pageURL, Kind: e.kind, Reason: "no model links found"}
		}
		return ext, nil
	}

	next, err := NextPageURL(pageURL)
	if err != nil {
		return nil, &partcrawl.ExtractionError{URL: pageURL, Kind: e.kind, Reason: err.Error()}
	}
	ext.Next = next
	return ext, nil
}
