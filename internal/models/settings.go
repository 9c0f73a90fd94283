// Package models provides data model definitions for the Planhub client core.
package models

import "time"

// Settings holds the durable per-user preferences. A single row backs it.
type Settings struct {
	AutoRefresh     bool   `db:"auto_refresh" json:"auto_refresh"`
	RefreshInterval int    `db:"refresh_interval" json:"refresh_interval"`
	Notifications   bool   `db:"notifications" json:"notifications"`
	Theme           string `db:"theme" json:"theme"`
}

// TableName returns the table name for Settings.
func (Settings) TableName() string {
	return "user_settings"
}

// DefaultSettings returns the out-of-box preferences.
func DefaultSettings() Settings {
	return Settings{
		AutoRefresh:     true,
		RefreshInterval: 30,
		Notifications:   true,
		Theme:           "light",
	}
}

// Interval returns the refresh interval as a duration, falling back to
// the default when the stored value is not positive.
func (s *Settings) Interval() time.Duration {
	if s.RefreshInterval <= 0 {
		return time.Duration(DefaultSettings().RefreshInterval) * time.Second
	}
	return time.Duration(s.RefreshInterval) * time.Second
}
