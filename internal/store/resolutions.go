package store

import (
	"context"
	"fmt"
	"time"
)

// RecordResolution appends a (locator, revision) observation. Duplicate
// observations of the same pair are collapsed by the primary key.
func (s *Store) RecordResolution(ctx context.Context, locator, revision string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolutions (locator, revision, resolved_at)
		VALUES (?, ?, ?)
		ON CONFLICT(locator, revision) DO NOTHING
	`, locator, revision, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record resolution: %w", err)
	}
	return nil
}

// Revisions returns every revision ever observed for a locator, most
// recent first. Used by diagnostics to show when an upstream changed.
func (s *Store) Revisions(ctx context.Context, locator string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT revision FROM resolutions
		WHERE locator = ?
		ORDER BY resolved_at DESC
	`, locator)
	if err != nil {
		return nil, fmt.Errorf("query resolutions: %w", err)
	}
	defer rows.Close()

	var revisions []string
	for rows.Next() {
		var rev string
		if err := rows.Scan(&rev); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		revisions = append(revisions, rev)
	}
	return revisions, rows.Err()
}
