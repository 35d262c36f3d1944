package goquery

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/partcrawl"
)

var _ partcrawl.PageExtractor = (*PartListingExtractor)(nil)

var (
	partListingPathRe = regexp.MustCompile(`^/Models/([^/]+)/Parts`)
	partSelectNumRe   = regexp.MustCompile(`PartSelect #:\s*PS(\d+)`)
	partHrefNumRe     = regexp.MustCompile(`/PS(\d+)`)
	mfrNumRe          = regexp.MustCompile(`Manufacturer #:\s*(\S+)`)
	urlBrandRe        = regexp.MustCompile(`/PS\d+-([A-Za-z]+)-`)
)

// descriptionMinLen separates a listing's short description from labels.
const descriptionMinLen = 50

// PartListingExtractor extracts part summaries and model-part links from
// one page of a model's compatible parts.
type PartListingExtractor struct{}

// NewPartListingExtractor creates a new PartListingExtractor.
func NewPartListingExtractor() *PartListingExtractor {
	return &PartListingExtractor{}
}

// Kind implements partcrawl.PageExtractor.
func (e *PartListingExtractor) Kind() partcrawl.PageKind { return partcrawl.PartListing }

// Extract implements partcrawl.PageExtractor.
func (e *PartListingExtractor) Extract(pageURL, html string) (*partcrawl.Extraction, error) {
	doc, base, err := parseDocument(partcrawl.PartListing, pageURL, html)
	if err != nil {
		return nil, err
	}
	if isNotFoundDocument(doc) {
		return &partcrawl.Extraction{}, nil
	}

	m := partListingPathRe.FindStringSubmatch(base.Path)
	if m == nil {
		return nil, &partcrawl.ExtractionError{URL: pageURL, Kind: partcrawl.PartListing, Reason: "URL is not a part listing"}
	}
	model := partcrawl.CanonicalModelNumber(m[1])

	containers := doc.Find("div.mega-m__part")
	ext := &partcrawl.Extraction{Entries: containers.Length()}
	if ext.Entries == 0 {
		return ext, nil
	}

	seen := make(map[string]bool)
	containers.Each(func(_ int, s *goquery.Selection) {
		part := parsePartContainer(base, s)
		if part == nil || seen[part.PartNumber] {
			return
		}
		seen[part.PartNumber] = true
		ext.Parts = append(ext.Parts, part)
		ext.Links = append(ext.Links, partcrawl.ModelPartLink{ModelNumber: model, PartNumber: part.PartNumber})
	})

	if len(ext.Parts) == 0 {
		return nil, &partcrawl.ExtractionError{URL: pageURL, Kind: partcrawl.PartListing, Reason: "no part could be parsed from listing entries"}
	}

	next, err := NextPageURL(pageURL)
	if err != nil {
		return nil, &partcrawl.ExtractionError{URL: pageURL, Kind: partcrawl.PartListing, Reason: err.Error()}
	}
	ext.Next = next
	return ext, nil
}

// parsePartContainer reads one listing entry. Returns nil when the entry
// has no name link or no part number.
func parsePartContainer(base *url.URL, s *goquery.Selection) *partcrawl.Part {
	link := s.Find("a.mega-m__part__name").First()
	if link.Length() == 0 {
		return nil
	}
	href, _ := link.Attr("href")
	text := cleanText(s.Text())

	var number string
	if m := partSelectNumRe.FindStringSubmatch(text); m != nil {
		number = "PS" + m[1]
	} else if m := partHrefNumRe.FindStringSubmatch(href); m != nil {
		number = "PS" + m[1]
	}
	number = partcrawl.CanonicalPartNumber(number)
	if number == "" {
		return nil
	}

	part := &partcrawl.Part{
		PartNumber: number,
		Name:       cleanText(link.Text()),
		Price:      parsePrice(s.Find("div.mega-m__part__price").First().Text()),
	}
	if m := mfrNumRe.FindStringSubmatch(text); m != nil {
		part.ManufacturerPartNumber = m[1]
	}
	if u := resolveURL(base, href); u != nil {
		part.SourceURL = stripQuery(u)
		if m := urlBrandRe.FindStringSubmatch(u.Path); m != nil {
			part.Manufacturer = m[1]
		}
	}
	part.Description = listingDescription(s)
	return part
}

// listingDescription returns the first long text line following the
// manufacturer number label, truncated to 200 characters.
func listingDescription(s *goquery.Selection) string {
	lines := textLines(s, nil)
	for i, line := range lines {
		if !strings.Contains(line, "Manufacturer #:") {
			continue
		}
		for j := i + 1; j < len(lines) && j < i+3; j++ {
			if len(lines[j]) > descriptionMinLen && !strings.HasPrefix(lines[j], "$") {
				return truncate(lines[j], 200)
			}
		}
		break
	}
	return ""
}

// textLines collects the non-empty text nodes under s in document order.
func textLines(s *goquery.Selection, lines []string) []string {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			if line := cleanText(c.Text()); line != "" {
				lines = append(lines, line)
			}
			return
		}
		lines = textLines(c, lines)
	})
	return lines
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
