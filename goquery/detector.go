package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Markers the catalog renders instead of content.
var (
	notFoundMarkers = []string{
		"Page Not Found",
		"We can't find the page you are looking for",
	}
	accessDeniedMarker = "Access Denied"
)

// IsNotFoundPage reports whether html is the catalog's "page not found"
// page. The catalog serves these with a 200 status at the end of pagination.
func IsNotFoundPage(html string) bool {
	for _, m := range notFoundMarkers {
		if strings.Contains(html, m) {
			return true
		}
	}
	return false
}

// IsAccessDenied reports whether html is a bot-protection block page.
func IsAccessDenied(html string) bool {
	return strings.Contains(html, accessDeniedMarker)
}

// isNotFoundDocument checks rendered headings and paragraphs rather than
// raw markup so markers inside scripts do not count.
func isNotFoundDocument(doc *goquery.Document) bool {
	found := false
	doc.Find("title, h1, h2, p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = IsNotFoundPage(s.Text())
		return !found
	})
	return found
}

// IsSoftNotFound reports whether html renders the "page not found" page.
// Unlike IsNotFoundPage it ignores markers outside visible headings and
// paragraphs.
func IsSoftNotFound(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return isNotFoundDocument(doc)
}
