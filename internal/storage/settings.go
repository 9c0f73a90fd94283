// Package storage provides persistence for user settings.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/planhub/core/internal/models"
)

// Settings loads the stored preferences, falling back to defaults when no
// row has been saved yet.
func (s *Store) Settings(ctx context.Context) (models.Settings, error) {
	settings := models.DefaultSettings()
	query := `
	SELECT auto_refresh, refresh_interval, notifications, theme
	FROM user_settings WHERE id = 1
	`
	err := s.QueryRowContext(ctx, query).Scan(
		&settings.AutoRefresh, &settings.RefreshInterval, &settings.Notifications, &settings.Theme)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return settings, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, nil
}

// SaveSettings upserts the single preferences row.
func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) error {
	query := `
	INSERT INTO user_settings (id, auto_refresh, refresh_interval, notifications, theme)
	VALUES (1, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		auto_refresh = excluded.auto_refresh,
		refresh_interval = excluded.refresh_interval,
		notifications = excluded.notifications,
		theme = excluded.theme
	`
	_, err := s.ExecContext(ctx, query,
		settings.AutoRefresh, settings.RefreshInterval, settings.Notifications, settings.Theme)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
