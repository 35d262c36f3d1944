package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fwojciec/partcrawl"
)

// Compile-time interface verification.
var _ partcrawl.CatalogStore = (*CatalogStore)(nil)

// Upserts are insert-or-ignore on the natural key. A link is written only
// when both of its rows exist.
const (
	insertModel = `
		INSERT INTO models (model_number, name, brand, appliance_type, source_url)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (model_number) DO NOTHING`

	insertPart = `
		INSERT INTO parts (part_number, manufacturer_part_number, name, description, price, manufacturer, appliance_type, source_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (part_number) DO NOTHING`

	insertLink = `
		INSERT INTO model_parts (model_number, part_number)
		SELECT ?, ?
		WHERE EXISTS (SELECT 1 FROM models WHERE model_number = ?)
		  AND EXISTS (SELECT 1 FROM parts WHERE part_number = ?)
		ON CONFLICT (model_number, part_number) DO NOTHING`
)

// CatalogStore implements partcrawl.CatalogStore using SQLite.
type CatalogStore struct {
	db *DB
}

// NewCatalogStore creates a new CatalogStore.
func NewCatalogStore(db *DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// WriteBatch upserts every record of b in a single transaction. Models and
// parts are written before links.
func (s *CatalogStore) WriteBatch(ctx context.Context, b *partcrawl.Batch) error {
	if b.Len() == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, m := range b.Models {
		if _, err := tx.ExecContext(ctx, insertModel,
			m.ModelNumber, m.Name, nullString(m.Brand), string(m.ApplianceType), nullString(m.SourceURL),
		); err != nil {
			return fmt.Errorf("insert model %s: %w", m.ModelNumber, err)
		}
	}

	for _, p := range b.Parts {
		if _, err := tx.ExecContext(ctx, insertPart,
			p.PartNumber, nullString(p.ManufacturerPartNumber), p.Name, p.Description, nullFloat(p.Price),
			nullString(p.Manufacturer), string(p.ApplianceType), nullString(p.SourceURL),
		); err != nil {
			return fmt.Errorf("insert part %s: %w", p.PartNumber, err)
		}
	}

	for _, l := range b.Links {
		if _, err := tx.ExecContext(ctx, insertLink,
			l.ModelNumber, l.PartNumber, l.ModelNumber, l.PartNumber,
		); err != nil {
			return fmt.Errorf("insert link %s/%s: %w", l.ModelNumber, l.PartNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Counts returns the number of rows in each catalog table.
func (s *CatalogStore) Counts(ctx context.Context) (partcrawl.Counts, error) {
	var c partcrawl.Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM models),
			(SELECT COUNT(*) FROM parts),
			(SELECT COUNT(*) FROM model_parts)
	`).Scan(&c.Models, &c.Parts, &c.Links)
	if err != nil {
		return partcrawl.Counts{}, err
	}
	return c, nil
}

// Close closes the underlying database.
func (s *CatalogStore) Close() error {
	return s.db.Close()
}

// nullString maps "" to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullFloat maps a nil price to NULL.
func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
