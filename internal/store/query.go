package store

import (
	"context"
	"fmt"
)

// ExecResult reports the outcome of a statement.
type ExecResult struct {
	RowsAffected int64 `json:"rows_affected"`
	LastInsertID int64 `json:"last_insert_id"`
}

// Execute runs a statement that returns no rows.
func (s *Store) Execute(ctx context.Context, query string, args ...any) (ExecResult, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return ExecResult{}, fmt.Errorf("execute: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return ExecResult{}, fmt.Errorf("execute: rows affected: %w", err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return ExecResult{}, fmt.Errorf("execute: last insert id: %w", err)
	}
	return ExecResult{RowsAffected: affected, LastInsertID: lastID}, nil
}

// Select runs a query and returns each row as a column-name keyed map.
// TEXT and BLOB columns are returned as strings.
//
// Returns an empty slice (not nil) when no rows match.
func (s *Store) Select(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("select: columns: %w", err)
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("select: scan: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select: iterate: %w", err)
	}
	return out, nil
}
