package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loomworks/loom/internal/platform"
)

// BuildRecord is one cached build result.
type BuildRecord struct {
	// BuildKey is the content hash of everything that determines the
	// build: source revision, input set, platform, recipe.
	BuildKey string

	// ID identifies the invocation that produced the record.
	ID string

	Platform   platform.Platform
	RootPath   string
	Executable string
	CreatedAt  time.Time
}

// RecordBuild inserts a build result. Idempotent on build_key: a
// concurrent invocation that built the same key first wins and the
// duplicate insert is silently ignored.
func (s *Store) RecordBuild(ctx context.Context, rec BuildRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO builds (build_key, id, platform, root_path, executable, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(build_key) DO NOTHING
	`,
		rec.BuildKey,
		rec.ID,
		string(rec.Platform),
		rec.RootPath,
		rec.Executable,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record build: %w", err)
	}
	return nil
}

// LookupBuild returns the cached record for buildKey, or (nil, nil) on a
// cache miss.
func (s *Store) LookupBuild(ctx context.Context, buildKey string) (*BuildRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT build_key, id, platform, root_path, executable, created_at
		FROM builds
		WHERE build_key = ?
	`, buildKey)

	var rec BuildRecord
	var plat, created string
	err := row.Scan(&rec.BuildKey, &rec.ID, &plat, &rec.RootPath, &rec.Executable, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup build: %w", err)
	}
	rec.Platform = platform.Platform(plat)
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}
