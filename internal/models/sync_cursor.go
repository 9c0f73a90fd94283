// Package models provides data model definitions for the Planhub client core.
package models

import "time"

// SyncCursor records, per resource type, when the last successful pull
// completed. Its value is sent verbatim as the ?since= parameter on the
// next pull, so it is kept in wire form (RFC 3339).
type SyncCursor struct {
	ResourceType ResourceType `db:"resource_type" json:"resource_type"`
	LastSyncedAt string       `db:"last_synced_at" json:"last_synced_at"`
}

// TableName returns the table name for SyncCursor.
func (SyncCursor) TableName() string {
	return "sync_cursors"
}

// Time parses the cursor value. ok is false for an empty or malformed
// cursor, which callers treat as "never synced".
func (c *SyncCursor) Time() (time.Time, bool) {
	if c.LastSyncedAt == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, c.LastSyncedAt)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
