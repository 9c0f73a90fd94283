// Package models provides data model definitions for the Planhub client core.
package models

import "time"

// NotificationType classifies a user-facing notification.
type NotificationType string

const (
	NotifyInfo    NotificationType = "info"
	NotifySuccess NotificationType = "success"
	NotifyWarning NotificationType = "warning"
	NotifyError   NotificationType = "error"
)

// NotificationPriority orders notifications for display.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

// Notification is an ephemeral user-facing message. Notifications live in
// memory only and expire shortly after creation.
type Notification struct {
	ID        UUID                 `json:"id"`
	Type      NotificationType     `json:"type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Priority  NotificationPriority `json:"priority"`
	Timestamp time.Time            `json:"timestamp"`
}
