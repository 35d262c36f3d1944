package goquery

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/partcrawl"
)

var _ partcrawl.PageExtractor = (*ModelExtractor)(nil)

var modelDetailPathRe = regexp.MustCompile(`^/Models/([^/]+)/?$`)

// ModelExtractor extracts a model's own page. Its main product is the
// locator of the model's first part listing page.
type ModelExtractor struct{}

// NewModelExtractor creates a new ModelExtractor.
func NewModelExtractor() *ModelExtractor {
	return &ModelExtractor{}
}

// Kind implements partcrawl.PageExtractor.
func (e *ModelExtractor) Kind() partcrawl.PageKind { return partcrawl.ModelDetail }

// Extract implements partcrawl.PageExtractor.
func (e *ModelExtractor) Extract(pageURL, html string) (*partcrawl.Extraction, error) {
	doc, base, err := parseDocument(partcrawl.ModelDetail, pageURL, html)
	if err != nil {
		return nil, err
	}
	if isNotFoundDocument(doc) {
		return &partcrawl.Extraction{}, nil
	}

	m := modelDetailPathRe.FindStringSubmatch(base.Path)
	if m == nil {
		return nil, &partcrawl.ExtractionError{URL: pageURL, Kind: partcrawl.ModelDetail, Reason: "URL is not a model page"}
	}
	number := partcrawl.CanonicalModelNumber(m[1])

	name := cleanText(doc.Find("h1").First().Text())
	if name == "" {
		return nil, &partcrawl.ExtractionError{URL: pageURL, Kind: partcrawl.ModelDetail, Reason: "missing model title"}
	}

	ext := &partcrawl.Extraction{
		Models: []*partcrawl.Model{{
			ModelNumber: number,
			Name:        name,
			Brand:       ExtractBrand(name),
			SourceURL:   stripQuery(base),
		}},
		Entries: 1,
	}

	// Prefer the page's own link to the parts tab; otherwise build it.
	doc.Find(`a[href*="/Parts"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		u := resolveURL(base, href)
		if u == nil || !strings.HasPrefix(strings.ToLower(u.Path), strings.ToLower("/Models/"+m[1]+"/Parts")) {
			return true
		}
		ext.Next = partListingURL(u)
		return false
	})
	if ext.Next == "" {
		u := *base
		u.Path = "/Models/" + m[1] + "/Parts/"
		ext.Next = partListingURL(&u)
	}
	return ext, nil
}

// partListingURL returns the first page of a part listing.
func partListingURL(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawQuery = "start=1"
	if !strings.HasSuffix(c.Path, "/") {
		c.Path += "/"
	}
	return c.String()
}
