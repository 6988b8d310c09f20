package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Cursor streams the rows of one statement.
type Cursor struct {
	rows    *sql.Rows
	columns []string
	done    bool
}

// Execute runs a compiled statement and returns a cursor over its rows.
// The caller must Close the cursor.
func (s *Store) Execute(ctx context.Context, query string, args ...any) (*Cursor, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("read columns: %w", err)
	}
	return &Cursor{rows: rows, columns: cols}, nil
}

// Columns returns the result column names.
func (c *Cursor) Columns() []string {
	return c.columns
}

// FetchChunk returns up to n rows. An empty slice means the cursor is
// exhausted.
func (c *Cursor) FetchChunk(n int) ([][]any, error) {
	if n <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", n)
	}
	if c.done {
		return [][]any{}, nil
	}

	chunk := make([][]any, 0, n)
	for len(chunk) < n {
		if !c.rows.Next() {
			c.done = true
			if err := c.rows.Err(); err != nil {
				return nil, fmt.Errorf("fetch: %w", err)
			}
			break
		}
		values := make([]any, len(c.columns))
		ptrs := make([]any, len(c.columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := c.rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		chunk = append(chunk, values)
	}
	return chunk, nil
}

// Close releases the cursor's connection.
func (c *Cursor) Close() error {
	return c.rows.Close()
}
