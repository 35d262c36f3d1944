// Package goquery implements the page extractors for the parts catalog
// using CSS selectors.
package goquery

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/partcrawl"
)

// parseDocument parses html, wrapping failures as extraction errors.
func parseDocument(kind partcrawl.PageKind, pageURL, html string) (*goquery.Document, *url.URL, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, &partcrawl.ExtractionError{URL: pageURL, Kind: kind, Reason: "invalid page URL: " + err.Error()}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, &partcrawl.ExtractionError{URL: pageURL, Kind: kind, Reason: "failed to parse HTML: " + err.Error()}
	}
	return doc, base, nil
}

// resolveURL resolves a relative URL against a base URL.
// Returns nil if the href cannot be parsed, is not HTTP(S), or points at
// another host.
func resolveURL(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" || isNonHTTPLink(href) {
		return nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	if resolved.Host != base.Host {
		return nil
	}
	return resolved
}

// isNonHTTPLink checks if a href is a non-HTTP link that should be skipped.
func isNonHTTPLink(href string) bool {
	href = strings.ToLower(href)
	return strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:")
}

// stripQuery returns u without query string or fragment.
func stripQuery(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.Fragment = ""
	return c.String()
}

// NextPageURL returns pageURL with its 1-based "start" pagination parameter
// advanced by one. A page without the parameter is page 1.
func NextPageURL(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	start := 1
	if v := q.Get("start"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			start = n
		}
	}
	q.Set("start", strconv.Itoa(start+1))
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), nil
}

// cleanText collapses runs of whitespace into single spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var priceRe = regexp.MustCompile(`\$?\s*([\d,]+(?:\.\d+)?)`)

// parsePrice extracts a non-negative decimal price from text like "$1,234.56".
// Returns nil when no price is listed.
func parsePrice(s string) *float64 {
	m := priceRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}
