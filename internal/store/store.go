// Package store persists items and shopping lists in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// ErrNotFound is returned by updates and deletes of a missing record.
// Getters return a nil record instead.
var ErrNotFound = errors.New("not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// inClause returns "?, ?, ..." for n values and the values as arguments.
func inClause(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", "), args
}

// unique returns values without duplicates, preserving first occurrence.
func unique(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// optional dereferences p, mapping nil to SQL NULL.
func optional[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
