// Package store provides SQLite persistence for cubby's containers,
// their suffix rules, and public suffix list metadata.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrIncompatibleSchema is returned when the database was written by
// an incompatible cubby version.
var ErrIncompatibleSchema = errors.New("database schema is incompatible with this version of cubby")

// Store provides SQLite database operations for cubby.
type Store struct {
	db *sql.DB
}

// New creates a new Store with the specified database path.
// Use ":memory:" for in-memory databases (useful for testing).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// EnsureSchema creates all tables and indexes, stamps a fresh database
// with the current schema version, and rejects databases written by an
// incompatible cubby version.
func (s *Store) EnsureSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var stored string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.Exec(
			`INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, schemaVersion)
		if err != nil {
			return fmt.Errorf("failed to stamp schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	case stored != schemaVersion:
		return fmt.Errorf("%w: found version %s, want %s", ErrIncompatibleSchema, stored, schemaVersion)
	default:
		return nil
	}
}
