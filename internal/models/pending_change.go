// Package models provides data model definitions for the Planhub client core.
package models

import "time"

// ChangeOp is the kind of local mutation awaiting push.
type ChangeOp string

const (
	OpCreate ChangeOp = "create"
	OpUpdate ChangeOp = "update"
)

// Valid reports whether op is a known change operation.
func (op ChangeOp) Valid() bool {
	return op == OpCreate || op == OpUpdate
}

// PendingChange is one durably queued local mutation. It survives process
// restarts and is removed only after the server acknowledges the push or
// the owner clears the queue explicitly.
type PendingChange struct {
	ID           UUID         `db:"id" json:"id"`
	ResourceType ResourceType `db:"resource_type" json:"resource_type"`
	Op           ChangeOp     `db:"op" json:"op"`
	Payload      Entity       `db:"payload" json:"payload"`
	EnqueuedAt   int64        `db:"enqueued_at" json:"enqueued_at"`
}

// TableName returns the table name for PendingChange.
func (PendingChange) TableName() string {
	return "pending_changes"
}

// EnqueuedAtTime returns the EnqueuedAt as time.Time.
func (c *PendingChange) EnqueuedAtTime() time.Time {
	return time.Unix(c.EnqueuedAt, 0)
}
