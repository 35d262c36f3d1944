package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/partcrawl"
)

var _ partcrawl.PageExtractor = (*PartExtractor)(nil)

// PartExtractor extracts the full record from a part's detail page.
// Fields the page does not show are left empty for the caller to fill
// from the listing summary.
type PartExtractor struct{}

// NewPartExtractor creates a new PartExtractor.
func NewPartExtractor() *PartExtractor {
	return &PartExtractor{}
}

// Kind implements partcrawl.PageExtractor.
func (e *PartExtractor) Kind() partcrawl.PageKind { return partcrawl.PartDetail }

// Extract implements partcrawl.PageExtractor.
func (e *PartExtractor) Extract(pageURL, html string) (*partcrawl.Extraction, error) {
	doc, base, err := parseDocument(partcrawl.PartDetail, pageURL, html)
	if err != nil {
		return nil, err
	}
	if isNotFoundDocument(doc) {
		return &partcrawl.Extraction{}, nil
	}

	idEl := doc.Find(`span[itemprop="productID"]`).First()
	title := doc.Find(`h1[class*="title"]`).First()
	if title.Length() == 0 {
		title = doc.Find("h1").First()
	}
	if idEl.Length() == 0 && title.Length() == 0 {
		return nil, &partcrawl.ExtractionError{URL: pageURL, Kind: partcrawl.PartDetail, Reason: "missing product identifier and title"}
	}

	number := partcrawl.CanonicalPartNumber(cleanText(idEl.Text()))
	if number == "" {
		if m := partHrefNumRe.FindStringSubmatch(base.Path); m != nil {
			number = "PS" + m[1]
		}
	}
	if number == "" {
		return nil, &partcrawl.ExtractionError{URL: pageURL, Kind: partcrawl.PartDetail, Reason: "missing part number"}
	}

	name := cleanText(title.Text())
	if name == "" {
		name = titleName(doc)
	}

	part := &partcrawl.Part{
		PartNumber:             number,
		ManufacturerPartNumber: cleanText(doc.Find(`span[itemprop="mpn"]`).First().Text()),
		Name:                   name,
		Description:            detailDescription(doc),
		Price:                  detailPrice(doc),
		Manufacturer:           cleanText(doc.Find(`span[itemprop="brand"]`).First().Text()),
		SourceURL:              stripQuery(base),
	}
	if part.Manufacturer == "" {
		if m := urlBrandRe.FindStringSubmatch(base.Path); m != nil {
			part.Manufacturer = m[1]
		}
	}
	return &partcrawl.Extraction{Parts: []*partcrawl.Part{part}, Entries: 1}, nil
}

// titleName takes the product name from the document title, which reads
// "<name> – <site suffix>".
func titleName(doc *goquery.Document) string {
	t := doc.Find("title").First().Text()
	for _, sep := range []string{"–", " - ", "|"} {
		if i := strings.Index(t, sep); i >= 0 {
			t = t[:i]
			break
		}
	}
	return cleanText(t)
}

func detailDescription(doc *goquery.Document) string {
	if d := cleanText(doc.Find(`div[itemprop="description"]`).First().Text()); d != "" {
		return d
	}
	return cleanText(doc.Find("div.pd__description").First().Text())
}

func detailPrice(doc *goquery.Document) *float64 {
	el := doc.Find(`span[itemprop="price"]`).First()
	if el.Length() == 0 {
		return nil
	}
	if content, ok := el.Attr("content"); ok && strings.TrimSpace(content) != "" {
		if p := parsePrice(content); p != nil {
			return p
		}
	}
	return parsePrice(el.Text())
}
