// Package fs provides file-based sinks for crawled catalog records.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/partcrawl"
)

// Ensure JSONSink implements partcrawl.BatchWriter at compile time.
var _ partcrawl.BatchWriter = (*JSONSink)(nil)

// Document is the JSON file written for one appliance type.
type Document struct {
	ApplianceType partcrawl.ApplianceType   `json:"appliance_type"`
	RunID         string                    `json:"run_id"`
	GeneratedAt   time.Time                 `json:"generated_at"`
	ContentHash   string                    `json:"content_hash"`
	Models        []*partcrawl.Model        `json:"models"`
	Parts         []*partcrawl.Part         `json:"parts"`
	Links         []partcrawl.ModelPartLink `json:"links"`
}

// JSONSink mirrors admitted records to one JSON document per appliance type.
// Records are held in memory until Commit, which writes each document to a
// temporary file and moves it into place, so a reader never sees a partial
// document.
type JSONSink struct {
	dir    string
	prefix string
	runID  string
	now    func() time.Time

	mu   sync.Mutex
	docs map[partcrawl.ApplianceType]*Document
}

// Option configures a JSONSink.
type Option func(*JSONSink)

// WithPrefix sets the file name prefix: "<prefix>_<type>.json".
func WithPrefix(prefix string) Option {
	return func(s *JSONSink) { s.prefix = prefix }
}

// WithClock sets the function used to timestamp documents.
func WithClock(now func() time.Time) Option {
	return func(s *JSONSink) { s.now = now }
}

// NewJSONSink creates a sink writing into dir. A document is produced for
// every listed type, even when no records arrive for it.
func NewJSONSink(dir, runID string, types []partcrawl.ApplianceType, opts ...Option) *JSONSink {
	s := &JSONSink{
		dir:   dir,
		runID: runID,
		now:   time.Now,
		docs:  make(map[partcrawl.ApplianceType]*Document),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, t := range types {
		s.docs[t] = s.newDocument(t)
	}
	return s
}

func (s *JSONSink) newDocument(t partcrawl.ApplianceType) *Document {
	return &Document{
		ApplianceType: t,
		RunID:         s.runID,
		Models:        []*partcrawl.Model{},
		Parts:         []*partcrawl.Part{},
		Links:         []partcrawl.ModelPartLink{},
	}
}

// Path returns the final file path for an appliance type.
func (s *JSONSink) Path(t partcrawl.ApplianceType) string {
	name := t.Slug() + ".json"
	if s.prefix != "" {
		name = s.prefix + "_" + name
	}
	return filepath.Join(s.dir, name)
}

func (s *JSONSink) tempPath(t partcrawl.ApplianceType) string {
	return s.Path(t) + ".tmp"
}

// WriteBatch appends b to its appliance type's document. A batch holding an
// invalid record is rejected whole.
func (s *JSONSink) WriteBatch(_ context.Context, b *partcrawl.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	if !b.ApplianceType.Valid() {
		return partcrawl.Errorf(partcrawl.EINVALID, "batch has no appliance type")
	}
	if err := validateBatch(b); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[b.ApplianceType]
	if !ok {
		doc = s.newDocument(b.ApplianceType)
		s.docs[b.ApplianceType] = doc
	}
	doc.Models = append(doc.Models, b.Models...)
	doc.Parts = append(doc.Parts, b.Parts...)
	doc.Links = append(doc.Links, b.Links...)
	return nil
}

func validateBatch(b *partcrawl.Batch) error {
	for _, m := range b.Models {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	for _, p := range b.Parts {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	for _, l := range b.Links {
		if err := l.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Commit writes every document and moves it into place. A document that
// cannot be written leaves its previous file untouched.
func (s *JSONSink) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for t, doc := range s.docs {
		tmp := s.tempPath(t)
		if err := s.writeLocked(tmp, doc); err != nil {
			return fmt.Errorf("commit %s: %w", t, err)
		}
		if err := os.Rename(tmp, s.Path(t)); err != nil {
			return fmt.Errorf("commit %s: %w", t, err)
		}
	}
	return nil
}

// Abort removes temporary files, leaving previously committed documents
// untouched.
func (s *JSONSink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for t := range s.docs {
		if err := os.Remove(s.tempPath(t)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (s *JSONSink) writeLocked(path string, doc *Document) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}

	records, err := json.Marshal(struct {
		Models []*partcrawl.Model        `json:"models"`
		Parts  []*partcrawl.Part         `json:"parts"`
		Links  []partcrawl.ModelPartLink `json:"links"`
	}{doc.Models, doc.Parts, doc.Links})
	if err != nil {
		return err
	}
	doc.ContentHash = strconv.FormatUint(xxhash.Sum64(records), 16)
	doc.GeneratedAt = s.now().UTC()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadDocument loads a committed document.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &doc, nil
}
