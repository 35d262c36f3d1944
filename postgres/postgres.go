// Package postgres provides the PostgreSQL-backed parts catalog.
package postgres

import (
	"context"
	"fmt"

	"github.com/fwojciec/partcrawl"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time interface verification.
var _ partcrawl.CatalogStore = (*CatalogStore)(nil)

// pool is the subset of *pgxpool.Pool the store uses.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS models (
		model_number TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		brand TEXT,
		appliance_type TEXT NOT NULL,
		source_url TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS parts (
		part_number TEXT PRIMARY KEY,
		manufacturer_part_number TEXT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price NUMERIC(10, 2) CHECK (price IS NULL OR price >= 0),
		manufacturer TEXT,
		appliance_type TEXT NOT NULL,
		source_url TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS model_parts (
		model_number TEXT NOT NULL REFERENCES models(model_number) ON DELETE CASCADE,
		part_number TEXT NOT NULL REFERENCES parts(part_number) ON DELETE CASCADE,
		PRIMARY KEY (model_number, part_number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_models_appliance_type ON models(appliance_type)`,
	`CREATE INDEX IF NOT EXISTS idx_models_brand ON models(brand)`,
	`CREATE INDEX IF NOT EXISTS idx_models_name ON models(name)`,
	`CREATE INDEX IF NOT EXISTS idx_models_name_lower ON models(lower(name))`,
	`CREATE INDEX IF NOT EXISTS idx_parts_appliance_type ON parts(appliance_type)`,
	`CREATE INDEX IF NOT EXISTS idx_parts_manufacturer ON parts(manufacturer)`,
	`CREATE INDEX IF NOT EXISTS idx_parts_name ON parts(name)`,
	`CREATE INDEX IF NOT EXISTS idx_parts_name_lower ON parts(lower(name))`,
	`CREATE INDEX IF NOT EXISTS idx_model_parts_part_number ON model_parts(part_number)`,
}

const (
	insertModel = `
		INSERT INTO models (model_number, name, brand, appliance_type, source_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (model_number) DO NOTHING`

	insertPart = `
		INSERT INTO parts (part_number, manufacturer_part_number, name, description, price, manufacturer, appliance_type, source_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (part_number) DO NOTHING`

	insertLink = `
		INSERT INTO model_parts (model_number, part_number)
		SELECT $1, $2
		WHERE EXISTS (SELECT 1 FROM models WHERE model_number = $1)
		  AND EXISTS (SELECT 1 FROM parts WHERE part_number = $2)
		ON CONFLICT (model_number, part_number) DO NOTHING`

	countRows = `
		SELECT
			(SELECT COUNT(*) FROM models),
			(SELECT COUNT(*) FROM parts),
			(SELECT COUNT(*) FROM model_parts)`
)

// CatalogStore implements partcrawl.CatalogStore using PostgreSQL.
type CatalogStore struct {
	pool pool
}

// Open connects to the database at dsn and creates the schema if needed.
func Open(ctx context.Context, dsn string) (*CatalogStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s := NewCatalogStoreWithPool(p)
	if err := s.CreateSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewCatalogStoreWithPool wraps an existing pool.
func NewCatalogStoreWithPool(p pool) *CatalogStore {
	return &CatalogStore{pool: p}
}

// CreateSchema creates the catalog tables and indexes if they don't exist.
func (s *CatalogStore) CreateSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// WriteBatch upserts every record of b in a single transaction.
func (s *CatalogStore) WriteBatch(ctx context.Context, b *partcrawl.Batch) error {
	if b.Len() == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := writeBatch(ctx, tx, b); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func writeBatch(ctx context.Context, tx pgx.Tx, b *partcrawl.Batch) error {
	for _, m := range b.Models {
		if _, err := tx.Exec(ctx, insertModel,
			m.ModelNumber, m.Name, nullString(m.Brand), string(m.ApplianceType), nullString(m.SourceURL),
		); err != nil {
			return fmt.Errorf("insert model %s: %w", m.ModelNumber, err)
		}
	}
	for _, p := range b.Parts {
		if _, err := tx.Exec(ctx, insertPart,
			p.PartNumber, nullString(p.ManufacturerPartNumber), p.Name, p.Description, p.Price,
			nullString(p.Manufacturer), string(p.ApplianceType), nullString(p.SourceURL),
		); err != nil {
			return fmt.Errorf("insert part %s: %w", p.PartNumber, err)
		}
	}
	for _, l := range b.Links {
		if _, err := tx.Exec(ctx, insertLink, l.ModelNumber, l.PartNumber); err != nil {
			return fmt.Errorf("insert link %s/%s: %w", l.ModelNumber, l.PartNumber, err)
		}
	}
	return nil
}

// Counts returns the number of rows in each catalog table.
func (s *CatalogStore) Counts(ctx context.Context) (partcrawl.Counts, error) {
	var models, parts, links int64
	if err := s.pool.QueryRow(ctx, countRows).Scan(&models, &parts, &links); err != nil {
		return partcrawl.Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return partcrawl.Counts{Models: int(models), Parts: int(parts), Links: int(links)}, nil
}

// Close closes the connection pool.
func (s *CatalogStore) Close() error {
	s.pool.Close()
	return nil
}

// nullString maps "" to NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
