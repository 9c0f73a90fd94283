// Package realtime provides the built-in envelope handlers. Each one
// lands the authoritative delta in the state store directly; the sync
// engine's pull path is not involved.
package realtime

import (
	"github.com/planhub/core/internal/models"
)

// registerBuiltins wires the server's push vocabulary to store updates.
func (r *Relay) registerBuiltins() {
	r.handlers[TypeProjectCreated] = r.upsertHandler(models.ResourceProjects)
	r.handlers[TypeProjectUpdated] = r.upsertHandler(models.ResourceProjects)
	r.handlers[TypeProjectDeleted] = r.deleteHandler(models.ResourceProjects)
	r.handlers[TypeTaskCreated] = r.upsertHandler(models.ResourceTasks)
	r.handlers[TypeTaskUpdated] = r.upsertHandler(models.ResourceTasks)
	r.handlers[TypeRiskCreated] = r.upsertHandler(models.ResourceRisks)
	r.handlers[TypeRiskUpdated] = r.upsertHandler(models.ResourceRisks)
	r.handlers[TypeResourceCreated] = r.upsertHandler(models.ResourceResources)
	r.handlers[TypeResourceUpdated] = r.upsertHandler(models.ResourceResources)
	r.handlers[TypeDashboardRefresh] = func(Envelope) {
		r.notifyRefresh()
	}
	r.handlers[TypeBroadcastMessage] = r.broadcastHandler
}

// upsertHandler stores the pushed entity and refreshes the view.
func (r *Relay) upsertHandler(rt models.ResourceType) Handler {
	return func(envelope Envelope) {
		entity := envelope.Entity()
		if entity.ID() == "" {
			r.log.Warn("entity event without id", map[string]interface{}{
				"type": envelope.Type,
			})
			return
		}
		r.store.Set(rt, entity)
		r.notifyRefresh()
	}
}

// deleteHandler removes the entity named by the payload id.
func (r *Relay) deleteHandler(rt models.ResourceType) Handler {
	return func(envelope Envelope) {
		id := envelope.Entity().ID()
		if id == "" {
			r.log.Warn("delete event without id", map[string]interface{}{
				"type": envelope.Type,
			})
			return
		}
		r.store.Delete(rt, id)
		r.notifyRefresh()
	}
}

// broadcastHandler turns a server broadcast into a notification.
func (r *Relay) broadcastHandler(envelope Envelope) {
	title, _ := envelope.Data["title"].(string)
	message, _ := envelope.Data["message"].(string)
	if title == "" && message == "" {
		return
	}
	if title == "" {
		title = "Announcement"
	}
	r.store.Notify(models.NotifyInfo, title, message, models.PriorityNormal)
}
