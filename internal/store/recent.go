package store

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"
)

// RecentDocument is one entry of the recent-documents list.
type RecentDocument struct {
	Path      string `json:"path"`
	OpenedAt  int64  `json:"opened_at"`
	OpenCount int64  `json:"open_count"`
}

// TouchRecent records that path was opened at the given time. Repeated
// touches bump the count and move the entry to the front.
func (s *Store) TouchRecent(ctx context.Context, path string, at time.Time) error {
	if path == "" {
		return fmt.Errorf("touch recent: empty path")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recent_documents (path, display_path, opened_at, open_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(path) DO UPDATE SET
			display_path = excluded.display_path,
			opened_at    = excluded.opened_at,
			open_count   = recent_documents.open_count + 1
	`, norm.NFC.String(path), path, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("touch recent: %w", err)
	}
	return nil
}

// ListRecent returns up to limit entries, most recently opened first.
// A limit <= 0 returns every entry.
//
// Returns an empty slice (not nil) if the list is empty.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]RecentDocument, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT display_path, opened_at, open_count
		FROM recent_documents
		ORDER BY opened_at DESC, path ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	defer rows.Close()

	docs := []RecentDocument{}
	for rows.Next() {
		var d RecentDocument
		if err := rows.Scan(&d.Path, &d.OpenedAt, &d.OpenCount); err != nil {
			return nil, fmt.Errorf("list recent: scan: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recent: iterate: %w", err)
	}
	return docs, nil
}

// ForgetRecent removes path from the list. Forgetting an unknown path is
// not an error.
func (s *Store) ForgetRecent(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recent_documents WHERE path = ?`, norm.NFC.String(path)); err != nil {
		return fmt.Errorf("forget recent: %w", err)
	}
	return nil
}
