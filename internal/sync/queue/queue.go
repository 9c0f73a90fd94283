// Package queue provides the local persistent queue of unsynced
// mutations. Every enqueued change is durable before Enqueue returns and
// survives process restarts; changes leave the queue only through an
// explicit Remove after server acknowledgment or a Clear.
package queue

import (
	"context"
	gosync "sync"

	"github.com/planhub/core/internal/errors"
	"github.com/planhub/core/internal/logging"
	"github.com/planhub/core/internal/models"
	"github.com/planhub/core/internal/storage"
	"github.com/planhub/core/internal/sync/scheduler"
	"github.com/planhub/core/internal/uuid"
)

// EnqueueHook is called after a change has been durably enqueued. The
// sync engine registers one to attempt a best-effort immediate push.
type EnqueueHook func(models.PendingChange)

// Config holds queue construction parameters.
type Config struct {
	Storage *storage.Store
	Clock   scheduler.Clock
	Logger  *logging.Logger
}

// Queue is the ordered log of pending local changes, keyed by resource
// type. The in-memory order mirrors the durable rows; both are updated
// under one lock so Drain always reflects what survives a restart.
type Queue struct {
	storage *storage.Store
	clock   scheduler.Clock
	log     *logging.Logger

	mu      gosync.RWMutex
	changes map[models.ResourceType][]models.PendingChange
	hook    EnqueueHook
}

// Open loads the surviving pending changes from storage and returns the
// queue over them. Changes reload in their original enqueue order.
func Open(ctx context.Context, cfg Config) (*Queue, error) {
	if cfg.Clock == nil {
		cfg.Clock = scheduler.System()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Get()
	}

	q := &Queue{
		storage: cfg.Storage,
		clock:   cfg.Clock,
		log:     cfg.Logger.WithComponent("queue"),
		changes: make(map[models.ResourceType][]models.PendingChange),
	}

	loaded, err := cfg.Storage.LoadChanges(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "loading pending changes", err)
	}
	for _, change := range loaded {
		q.changes[change.ResourceType] = append(q.changes[change.ResourceType], change)
	}
	if len(loaded) > 0 {
		q.log.Info("restored pending changes", map[string]interface{}{
			"count": len(loaded),
		})
	}
	return q, nil
}

// OnEnqueue registers the hook run after each successful enqueue. The
// hook runs outside the queue lock; queue methods may be called from it.
func (q *Queue) OnEnqueue(hook EnqueueHook) {
	q.mu.Lock()
	q.hook = hook
	q.mu.Unlock()
}

// Enqueue appends a local mutation for rt. The change is persisted
// before Enqueue returns; a persistence failure means nothing was
// enqueued.
func (q *Queue) Enqueue(ctx context.Context, rt models.ResourceType, op models.ChangeOp, payload models.Entity) (models.PendingChange, error) {
	if !op.Valid() {
		return models.PendingChange{}, errors.New(errors.ErrInvalid, "unknown change operation "+string(op))
	}

	change := models.PendingChange{
		ID:           models.UUID(uuid.New()),
		ResourceType: rt,
		Op:           op,
		Payload:      payload.Clone(),
		EnqueuedAt:   q.clock.Now().Unix(),
	}

	if err := q.storage.AppendChange(ctx, &change); err != nil {
		return models.PendingChange{}, errors.Wrap(errors.ErrStorage, "persisting pending change", err)
	}

	q.mu.Lock()
	q.changes[rt] = append(q.changes[rt], change)
	hook := q.hook
	q.mu.Unlock()

	q.log.Debug("change enqueued", map[string]interface{}{
		"change_id":     change.ID.String(),
		"resource_type": string(rt),
		"op":            string(op),
		"entity_id":     payload.ID(),
	})

	if hook != nil {
		hook(change)
	}
	return change, nil
}

// Drain returns every pending change for rt in enqueue order. Draining
// does not remove anything; removal is explicit.
func (q *Queue) Drain(rt models.ResourceType) []models.PendingChange {
	q.mu.RLock()
	defer q.mu.RUnlock()

	pending := q.changes[rt]
	out := make([]models.PendingChange, len(pending))
	for i, change := range pending {
		out[i] = change
		out[i].Payload = change.Payload.Clone()
	}
	return out
}

// Pending returns the number of queued changes for rt.
func (q *Queue) Pending(rt models.ResourceType) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.changes[rt])
}

// PendingTotal returns the number of queued changes across all types.
func (q *Queue) PendingTotal() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	total := 0
	for _, pending := range q.changes {
		total += len(pending)
	}
	return total
}

// Has reports whether any queued change for rt targets the entity.
func (q *Queue) Has(rt models.ResourceType, entityID string) bool {
	if entityID == "" {
		return false
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, change := range q.changes[rt] {
		if change.Payload.ID() == entityID {
			return true
		}
	}
	return false
}

// Remove deletes one acknowledged change. Unknown ids are a no-op so
// acknowledgment after a concurrent Clear stays safe.
func (q *Queue) Remove(ctx context.Context, rt models.ResourceType, changeID models.UUID) error {
	if err := q.storage.DeleteChange(ctx, changeID); err != nil {
		return errors.Wrap(errors.ErrStorage, "removing pending change", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	pending := q.changes[rt]
	for i, change := range pending {
		if change.ID == changeID {
			q.changes[rt] = append(pending[:i], pending[i+1:]...)
			break
		}
	}
	return nil
}

// Clear drops every pending change for one resource type.
func (q *Queue) Clear(ctx context.Context, rt models.ResourceType) error {
	if err := q.storage.ClearChanges(ctx, rt); err != nil {
		return errors.Wrap(errors.ErrStorage, "clearing pending changes", err)
	}

	q.mu.Lock()
	delete(q.changes, rt)
	q.mu.Unlock()

	q.log.Info("queue cleared", map[string]interface{}{
		"resource_type": string(rt),
	})
	return nil
}

// ClearAll drops every pending change for every resource type.
func (q *Queue) ClearAll(ctx context.Context) error {
	if err := q.storage.ClearAllChanges(ctx); err != nil {
		return errors.Wrap(errors.ErrStorage, "clearing pending changes", err)
	}

	q.mu.Lock()
	q.changes = make(map[models.ResourceType][]models.PendingChange)
	q.mu.Unlock()

	q.log.Info("queue cleared for all resource types")
	return nil
}
