// Package sqlite provides the SQLite-backed parts catalog.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB represents a SQLite database connection.
type DB struct {
	db   *sql.DB
	path string
}

// NewDB creates a new DB instance with the given path.
// Use ":memory:" for an in-memory database.
func NewDB(path string) *DB {
	return &DB{path: path}
}

// Open opens the database connection and creates the schema if needed.
func (db *DB) Open() error {
	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit to one connection.
	conn.SetMaxOpenConns(1)

	// Verify connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set busy timeout to wait 5 seconds before failing on lock contention.
	// This prevents immediate "database is locked" errors.
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Enable WAL mode for file-based databases for better write performance.
	// WAL is ~7x faster for writes and allows concurrent reads during writes.
	// Trade-off: creates additional -wal and -shm files alongside the database.
	// Note: WAL mode is not supported for in-memory databases.
	if db.path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
			conn.Close()
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	// Enable foreign key constraints
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.db = conn

	// Create schema
	if err := db.createSchema(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// ExecContext executes a statement that doesn't return rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// BeginTx starts a transaction.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return db.db.BeginTx(ctx, opts)
}

// Stats returns database statistics.
func (db *DB) Stats() sql.DBStats {
	return db.db.Stats()
}

// createSchema creates the catalog tables if they don't exist.
func (db *DB) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS models (
			model_number TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			brand TEXT,
			appliance_type TEXT NOT NULL,
			source_url TEXT
		);

		CREATE TABLE IF NOT EXISTS parts (
			part_number TEXT PRIMARY KEY,
			manufacturer_part_number TEXT,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price REAL CHECK (price IS NULL OR price >= 0),
			manufacturer TEXT,
			appliance_type TEXT NOT NULL,
			source_url TEXT
		);

		CREATE TABLE IF NOT EXISTS model_parts (
			model_number TEXT NOT NULL REFERENCES models(model_number) ON DELETE CASCADE,
			part_number TEXT NOT NULL REFERENCES parts(part_number) ON DELETE CASCADE,
			PRIMARY KEY (model_number, part_number)
		);

		CREATE INDEX IF NOT EXISTS idx_models_appliance_type ON models(appliance_type);
		CREATE INDEX IF NOT EXISTS idx_models_brand ON models(brand);
		CREATE INDEX IF NOT EXISTS idx_models_name ON models(name);
		CREATE INDEX IF NOT EXISTS idx_models_name_lower ON models(lower(name));
		CREATE INDEX IF NOT EXISTS idx_parts_appliance_type ON parts(appliance_type);
		CREATE INDEX IF NOT EXISTS idx_parts_manufacturer ON parts(manufacturer);
		CREATE INDEX IF NOT EXISTS idx_parts_name ON parts(name);
		CREATE INDEX IF NOT EXISTS idx_parts_name_lower ON parts(lower(name));
		CREATE INDEX IF NOT EXISTS idx_model_parts_part_number ON model_parts(part_number);
	`

	_, err := db.db.Exec(schema)
	return err
}
