// Package storage provides persistence for per-type sync cursors.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/planhub/core/internal/models"
)

// Cursor returns the stored sync cursor for a resource type. A type that
// has never completed a pull yields an empty cursor.
func (s *Store) Cursor(ctx context.Context, rt models.ResourceType) (models.SyncCursor, error) {
	cursor := models.SyncCursor{ResourceType: rt}
	query := "SELECT last_synced_at FROM sync_cursors WHERE resource_type = ?"
	err := s.QueryRowContext(ctx, query, rt).Scan(&cursor.LastSyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cursor, nil
	}
	if err != nil {
		return cursor, fmt.Errorf("failed to load sync cursor: %w", err)
	}
	return cursor, nil
}

// PutCursor upserts the cursor for a resource type.
func (s *Store) PutCursor(ctx context.Context, cursor models.SyncCursor) error {
	query := `
	INSERT INTO sync_cursors (resource_type, last_synced_at)
	VALUES (?, ?)
	ON CONFLICT(resource_type) DO UPDATE SET last_synced_at = excluded.last_synced_at
	`
	_, err := s.ExecContext(ctx, query, cursor.ResourceType, cursor.LastSyncedAt)
	if err != nil {
		return fmt.Errorf("failed to save sync cursor: %w", err)
	}
	return nil
}
