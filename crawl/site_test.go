package crawl_test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fwojciec/partcrawl"
)

const base = "https://www.partselect.com"

// fakeSite serves an in-memory catalog and records every fetch.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string]string
	errs    map[string]error
	fetches map[string]int
	// repeat serves the first page of a listing for any start past its end.
	repeat bool
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		pages:   make(map[string]string),
		errs:    make(map[string]error),
		fetches: make(map[string]int),
	}
}

func (s *fakeSite) Fetch(_ context.Context, url string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches[url]++
	if err, ok := s.errs[url]; ok {
		return "", err
	}
	if html, ok := s.pages[url]; ok {
		return html, nil
	}
	if prefix, _, ok := strings.Cut(url, "?start="); ok && s.repeat {
		for _, first := range []string{prefix, prefix + "?start=1"} {
			if html, ok := s.pages[first]; ok {
				return html, nil
			}
		}
	}
	return "", partcrawl.NotFoundError(url)
}

func (s *fakeSite) Close() error { return nil }

func (s *fakeSite) fetchCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[url]
}

func (s *fakeSite) totalFetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, c := range s.fetches {
		n += c
	}
	return n
}

// listing adds a model listing page. Page 1 is the appliance root.
func (s *fakeSite) listing(t partcrawl.ApplianceType, page int, models ...string) {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for _, m := range models {
		fmt.Fprintf(&b, `<li><a href="/Models/%s/">%s Whirlpool %s</a></li>`, m, m, t)
	}
	b.WriteString("</ul></body></html>")
	s.pages[listingURL(t, page)] = b.String()
}

// model adds a model page and its part listing pages, one page per slice.
func (s *fakeSite) model(number string, pages ...[]string) {
	s.pages[modelURL(number)] = fmt.Sprintf(`<html><body><h1>%s Whirlpool</h1><a href="/Models/%s/Parts/">Parts</a></body></html>`, number, number)
	for i, parts := range pages {
		var b strings.Builder
		b.WriteString("<html><body>")
		for _, p := range parts {
			fmt.Fprintf(&b, `<div class="mega-m__part">
<a class="mega-m__part__name" href="/%s-Whirlpool-W%s-Part.htm?SourceCode=3">Part %s</a>
<div>PartSelect #: %s</div><div>Manufacturer #: W%s</div>
<div class="mega-m__part__price">$10.00</div></div>`, p, p, p, p, p)
			if _, ok := s.pages[partURL(p)]; !ok {
				s.part(p)
			}
		}
		b.WriteString("</body></html>")
		s.pages[partListingURL(number, i+1)] = b.String()
	}
}

func (s *fakeSite) part(number string) {
	s.pages[partURL(number)] = fmt.Sprintf(`<html><body>
<h1 class="title-main">Part %s</h1>
<span itemprop="productID">%s</span><span itemprop="mpn">W%s</span>
<span itemprop="price" content="12.50">$12.50</span>
<div itemprop="description">Genuine part %s.</div></body></html>`, number, number, number, number)
}

func listingURL(t partcrawl.ApplianceType, page int) string {
	if page == 1 {
		return fmt.Sprintf("%s/%s-Models.htm", base, t)
	}
	return fmt.Sprintf("%s/%s-Models.htm?start=%d", base, t, page)
}

func modelURL(number string) string {
	return fmt.Sprintf("%s/Models/%s/", base, number)
}

func partListingURL(model string, page int) string {
	return fmt.Sprintf("%s/Models/%s/Parts/?start=%d", base, model, page)
}

func partURL(number string) string {
	return fmt.Sprintf("%s/%s-Whirlpool-W%s-Part.htm", base, number, number)
}

// memStore is an in-memory catalog with insert-or-ignore semantics.
type memStore struct {
	mu      sync.Mutex
	models  map[string]*partcrawl.Model
	parts   map[string]*partcrawl.Part
	links   map[partcrawl.ModelPartLink]bool
	batches int
	// orphans counts links written before their model or part.
	orphans int
}

func newMemStore() *memStore {
	return &memStore{
		models: make(map[string]*partcrawl.Model),
		parts:  make(map[string]*partcrawl.Part),
		links:  make(map[partcrawl.ModelPartLink]bool),
	}
}

func (s *memStore) WriteBatch(_ context.Context, b *partcrawl.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	for _, m := range b.Models {
		if _, ok := s.models[m.ModelNumber]; !ok {
			s.models[m.ModelNumber] = m
		}
	}
	for _, p := range b.Parts {
		if _, ok := s.parts[p.PartNumber]; !ok {
			s.parts[p.PartNumber] = p
		}
	}
	for _, l := range b.Links {
		if s.models[l.ModelNumber] == nil || s.parts[l.PartNumber] == nil {
			s.orphans++
			continue
		}
		s.links[l] = true
	}
	return nil
}

func (s *memStore) modelNumbers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for n := range s.models {
		out = append(out, n)
	}
	return out
}
