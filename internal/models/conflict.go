// Package models provides data model definitions for the Planhub client core.
package models

import "time"

// Conflict describes a concurrent edit detected during reconciliation:
// the local copy was modified after the incoming remote copy. Conflicts
// are transient values consumed by the resolver and never persisted.
type Conflict struct {
	ResourceType ResourceType `json:"resource_type"`
	Local        Entity       `json:"local"`
	Remote       Entity       `json:"remote"`
	Fields       []string     `json:"fields"`
	DetectedAt   time.Time    `json:"detected_at"`
}

// EntityID returns the identifier shared by both sides of the conflict.
func (c *Conflict) EntityID() string {
	if id := c.Remote.ID(); id != "" {
		return id
	}
	return c.Local.ID()
}
