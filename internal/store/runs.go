package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// createdLayout keeps fractional seconds at fixed width so stored
// timestamps sort lexically.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one executed cohort statement.
type Run struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Context     string    `json:"context,omitempty"`
	Dialect     string    `json:"dialect"`
	SQL         string    `json:"sql"`
	RowCount    int64     `json:"row_count"`
	OutputPath  string    `json:"output_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordRun stores a run, creating the history tables on first use. Missing
// ID, dialect and timestamp are filled in; the stored run is returned.
func (s *Store) RecordRun(ctx context.Context, run Run) (Run, error) {
	if err := s.ensureHistory(ctx); err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Dialect == "" {
		run.Dialect = "sqlite"
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.CreatedAt = run.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cohort_runs (id, fingerprint, context, dialect, sql, row_count, output_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Fingerprint, run.Context, run.Dialect, run.SQL, run.RowCount, run.OutputPath,
		run.CreatedAt.Format(createdLayout))
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run. A database that never recorded a run has none; it is
// not modified.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	ok, err := s.hasHistory(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	query := `
		SELECT id, fingerprint, context, dialect, sql, row_count, output_path, created_at
		FROM cohort_runs
		ORDER BY created_at DESC, id ASC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var created string
		if err := rows.Scan(&r.ID, &r.Fingerprint, &r.Context, &r.Dialect, &r.SQL, &r.RowCount, &r.OutputPath, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CreatedAt, err = time.Parse(createdLayout, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at of run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
