package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// History schema version tracking (cohort_schema.version):
// 0 - No history table
// 1 - cohort_runs with created_at index
const currentSchemaVersion = 1

// Store wraps a SQLite database holding the clinical tables.
type Store struct {
	db *sql.DB

	historyOnce sync.Once
	historyErr  error
}

// Open opens an existing or new SQLite database for reading and writing.
//
// Only connection-scoped pragmas are applied. Nothing is written to the file
// until a run is recorded, which creates the history tables.
func Open(path string) (*Store, error) {
	return open(path)
}

// OpenReadOnly opens an existing database that no statement may modify.
// Recording a run on it fails.
func OpenReadOnly(path string) (*Store, error) {
	return open("file:" + path + "?mode=ro&_query_only=true")
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Cursors and history writes share one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ExecScript runs statements that return no rows, such as fixture setup.
func (s *Store) ExecScript(ctx context.Context, stmts ...string) error {
	for i, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
	}
	return nil
}

// applyPragmas sets connection-scoped SQLite configuration. Pragmas that
// persist in the file (journal_mode, user_version) are never touched.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// ensureHistory creates the history tables and runs their migrations, once
// per Store.
func (s *Store) ensureHistory(ctx context.Context) error {
	s.historyOnce.Do(func() {
		s.historyErr = applySchema(ctx, s.db)
	})
	return s.historyErr
}

// hasHistory reports whether the database holds a history table.
func (s *Store) hasHistory(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'cohort_runs'").Scan(&n)
	if err != nil {
		return false, fmt.Errorf("look up history table: %w", err)
	}
	return n > 0, nil
}

// applySchema creates the history tables if they don't exist and runs
// migrations.
func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental history migrations based on
// cohort_schema.version.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var version int
	err := db.QueryRowContext(ctx, "SELECT version FROM cohort_schema WHERE id = 1").Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("get schema version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(ctx, db); err != nil {
			return err
		}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO cohort_schema (id, version) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version
	`, currentSchemaVersion)
	if err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}

	return nil
}

// migrateToV1 indexes run history by time for the history listing.
func migrateToV1(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_cohort_runs_created
		ON cohort_runs(created_at)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
