// Package storage provides persistence for queued local changes.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/planhub/core/internal/models"
)

// AppendChange persists a queued change. Inserted rows receive a
// monotonically increasing sequence, so a later load replays changes in
// exactly the order they were enqueued.
func (s *Store) AppendChange(ctx context.Context, change *models.PendingChange) error {
	payload, err := json.Marshal(change.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode change payload: %w", err)
	}

	query := `
	INSERT INTO pending_changes (id, resource_type, op, payload, enqueued_at)
	VALUES (?, ?, ?, ?, ?)
	`
	_, err = s.ExecContext(ctx, query,
		change.ID, change.ResourceType, change.Op, string(payload), change.EnqueuedAt)
	if err != nil {
		return fmt.Errorf("failed to insert pending change: %w", err)
	}
	return nil
}

// LoadChanges returns every surviving change in enqueue order.
func (s *Store) LoadChanges(ctx context.Context) ([]models.PendingChange, error) {
	query := `
	SELECT id, resource_type, op, payload, enqueued_at
	FROM pending_changes
	ORDER BY seq
	`
	rows, err := s.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending changes: %w", err)
	}
	defer rows.Close()

	var changes []models.PendingChange
	for rows.Next() {
		var change models.PendingChange
		var payload string
		if err := rows.Scan(&change.ID, &change.ResourceType, &change.Op, &payload, &change.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending change: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &change.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode change payload %s: %w", change.ID, err)
		}
		changes = append(changes, change)
	}
	return changes, rows.Err()
}

// DeleteChange removes a single acknowledged change.
func (s *Store) DeleteChange(ctx context.Context, id models.UUID) error {
	_, err := s.ExecContext(ctx, "DELETE FROM pending_changes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete pending change: %w", err)
	}
	return nil
}

// ClearChanges removes all queued changes for one resource type.
func (s *Store) ClearChanges(ctx context.Context, rt models.ResourceType) error {
	_, err := s.ExecContext(ctx, "DELETE FROM pending_changes WHERE resource_type = ?", rt)
	if err != nil {
		return fmt.Errorf("failed to clear pending changes: %w", err)
	}
	return nil
}

// ClearAllChanges empties the queue for every resource type.
func (s *Store) ClearAllChanges(ctx context.Context) error {
	_, err := s.ExecContext(ctx, "DELETE FROM pending_changes")
	if err != nil {
		return fmt.Errorf("failed to clear pending changes: %w", err)
	}
	return nil
}
