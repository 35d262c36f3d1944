package partcrawl

import (
	"context"
	"fmt"
)

// Batch is the set of admitted records produced by one completed unit.
// Batches are written as a single commit.
type Batch struct {
	ApplianceType ApplianceType
	Models        []*Model
	Parts         []*Part
	Links         []ModelPartLink
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Models) + len(b.Parts) + len(b.Links)
}

// BatchWriter persists admitted records.
type BatchWriter interface {
	// WriteBatch makes every record in b durable, or none of them.
	WriteBatch(ctx context.Context, b *Batch) error
}

// Counts holds catalog row counts.
type Counts struct {
	Models int `json:"models"`
	Parts  int `json:"parts"`
	Links  int `json:"links"`
}

// CatalogStore is the relational catalog. Writes are upserts keyed by each
// entity's natural key: inserting a row whose key already exists is a no-op.
type CatalogStore interface {
	BatchWriter

	// Counts returns the number of rows in each catalog table.
	Counts(ctx context.Context) (Counts, error)

	// Close releases the underlying connection.
	Close() error
}

// PersistenceError reports a batch that could not be committed.
type PersistenceError struct {
	Sink string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist to %s: %v", e.Sink, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrorCode returns EPERSIST.
func (e *PersistenceError) ErrorCode() string { return EPERSIST }
