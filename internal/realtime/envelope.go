// Package realtime maintains the live server connections that push
// entity changes into the state store without waiting for a sync cycle.
package realtime

import (
	"encoding/json"
	"time"

	"github.com/planhub/core/internal/models"
)

// Event types in the server's push vocabulary.
const (
	TypeJoinRoom         = "join_room"
	TypePing             = "ping"
	TypePong             = "pong"
	TypeProjectCreated   = "project_created"
	TypeProjectUpdated   = "project_updated"
	TypeProjectDeleted   = "project_deleted"
	TypeTaskCreated      = "task_created"
	TypeTaskUpdated      = "task_updated"
	TypeRiskCreated      = "risk_created"
	TypeRiskUpdated      = "risk_updated"
	TypeResourceCreated  = "resource_created"
	TypeResourceUpdated  = "resource_updated"
	TypeDashboardRefresh = "dashboard_refresh"
	TypeBroadcastMessage = "broadcast_message"
)

// Envelope wraps every message crossing the websocket.
type Envelope struct {
	Type      string         `json:"type"`
	Room      string         `json:"room,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Entity returns the envelope payload as an entity.
func (e Envelope) Entity() models.Entity {
	if e.Data == nil {
		return nil
	}
	return models.Entity(e.Data)
}

// joinEnvelope builds the room subscription message sent on connect.
func joinEnvelope(room string, now time.Time) []byte {
	raw, _ := json.Marshal(Envelope{
		Type:      TypeJoinRoom,
		Room:      room,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	return raw
}
