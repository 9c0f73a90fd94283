// Package store provides the in-memory state store shared by the sync
// engine, the realtime channel, and UI consumers. It caches entity
// collections per resource type and notifies subscribers synchronously on
// every mutation.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/planhub/core/internal/logging"
	"github.com/planhub/core/internal/models"
	"github.com/planhub/core/internal/sync/scheduler"
)

const defaultNotificationTTL = 5 * time.Second

// Change describes one mutation delivered to subscribers: the resource
// type plus full snapshots of the collection after and before.
type Change struct {
	ResourceType models.ResourceType
	Entities     []models.Entity
	Previous     []models.Entity
}

// Subscriber receives store changes. Subscribers run synchronously on the
// mutating goroutine, in subscription order. A panicking subscriber is
// recovered and logged; delivery to the remaining subscribers continues.
type Subscriber func(Change)

// Config holds store construction parameters. Zero values select the
// system clock, the global logger, and the default notification TTL.
type Config struct {
	Clock           scheduler.Clock
	Logger          *logging.Logger
	NotificationTTL time.Duration
}

// Store caches dashboard collections and the ephemeral notification list.
// All methods are safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	clock scheduler.Clock
	log   *logging.Logger
	ttl   time.Duration

	collections map[models.ResourceType]*collection
	subs        map[models.ResourceType][]*subscription
	nextSubID   int

	notifications []models.Notification
	notifSubs     []*notifSubscription
	nextNotifSub  int

	wg     sync.WaitGroup
	stopCh chan struct{}
	closed bool
}

// collection keeps entities indexed by id while preserving insertion order.
type collection struct {
	order []string
	items map[string]models.Entity
}

type subscription struct {
	id int
	fn Subscriber
}

// New creates an empty store.
func New(cfg Config) *Store {
	if cfg.Clock == nil {
		cfg.Clock = scheduler.System()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Get()
	}
	if cfg.NotificationTTL <= 0 {
		cfg.NotificationTTL = defaultNotificationTTL
	}
	return &Store{
		clock:       cfg.Clock,
		log:         cfg.Logger.WithComponent("store"),
		ttl:         cfg.NotificationTTL,
		collections: make(map[models.ResourceType]*collection),
		subs:        make(map[models.ResourceType][]*subscription),
		stopCh:      make(chan struct{}),
	}
}

// Close stops pending notification expiry timers and waits for them. The
// store stays readable and writable; only expiry scheduling ends.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

// Get returns a snapshot of the collection in insertion order. Returned
// entities are deep copies; callers may mutate them freely.
func (s *Store) Get(rt models.ResourceType) []models.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(rt)
}

// GetByID returns a copy of one entity.
func (s *Store) GetByID(rt models.ResourceType, id string) (models.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[rt]
	if !ok {
		return nil, false
	}
	entity, ok := col.items[id]
	if !ok {
		return nil, false
	}
	return entity.Clone(), true
}

// Len returns the number of entities held for a resource type.
func (s *Store) Len(rt models.ResourceType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[rt]
	if !ok {
		return 0
	}
	return len(col.items)
}

// Set upserts one entity by id, replacing any existing value wholesale,
// and notifies subscribers of the resource type. Entities without an id
// cannot be indexed and are dropped with a warning.
func (s *Store) Set(rt models.ResourceType, entity models.Entity) {
	id := entity.ID()
	if id == "" {
		s.log.Warn("dropping entity without id", map[string]interface{}{
			"resource_type": string(rt),
		})
		return
	}

	s.mu.Lock()
	col := s.collectionLocked(rt)
	prev := s.snapshotLocked(rt)
	if _, exists := col.items[id]; !exists {
		col.order = append(col.order, id)
	}
	col.items[id] = entity.Clone()
	next := s.snapshotLocked(rt)
	subs := s.subscribersLocked(rt)
	s.mu.Unlock()

	s.dispatch(subs, Change{ResourceType: rt, Entities: next, Previous: prev})
}

// Delete removes one entity and notifies subscribers. It reports whether
// the entity existed.
func (s *Store) Delete(rt models.ResourceType, id string) bool {
	s.mu.Lock()
	col, ok := s.collections[rt]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if _, exists := col.items[id]; !exists {
		s.mu.Unlock()
		return false
	}

	prev := s.snapshotLocked(rt)
	delete(col.items, id)
	for i, existing := range col.order {
		if existing == id {
			col.order = append(col.order[:i], col.order[i+1:]...)
			break
		}
	}
	next := s.snapshotLocked(rt)
	subs := s.subscribersLocked(rt)
	s.mu.Unlock()

	s.dispatch(subs, Change{ResourceType: rt, Entities: next, Previous: prev})
	return true
}

// Replace swaps the whole collection in one mutation, as after an initial
// pull. Subscribers receive a single change.
func (s *Store) Replace(rt models.ResourceType, entities []models.Entity) {
	col := &collection{items: make(map[string]models.Entity, len(entities))}
	for _, entity := range entities {
		id := entity.ID()
		if id == "" {
			s.log.Warn("dropping entity without id", map[string]interface{}{
				"resource_type": string(rt),
			})
			continue
		}
		if _, exists := col.items[id]; !exists {
			col.order = append(col.order, id)
		}
		col.items[id] = entity.Clone()
	}

	s.mu.Lock()
	prev := s.snapshotLocked(rt)
	s.collections[rt] = col
	next := s.snapshotLocked(rt)
	subs := s.subscribersLocked(rt)
	s.mu.Unlock()

	s.dispatch(subs, Change{ResourceType: rt, Entities: next, Previous: prev})
}

// Subscribe registers fn for changes to one resource type and returns its
// unsubscribe function. Unsubscribing is idempotent and safe to call from
// inside a running notification.
func (s *Store) Subscribe(rt models.ResourceType, fn Subscriber) func() {
	s.mu.Lock()
	s.nextSubID++
	sub := &subscription{id: s.nextSubID, fn: fn}
	s.subs[rt] = append(s.subscribersLocked(rt), sub)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		current := s.subs[rt]
		next := make([]*subscription, 0, len(current))
		for _, existing := range current {
			if existing.id != sub.id {
				next = append(next, existing)
			}
		}
		s.subs[rt] = next
	}
}

// collectionLocked returns the collection for rt, creating it on demand.
func (s *Store) collectionLocked(rt models.ResourceType) *collection {
	col, ok := s.collections[rt]
	if !ok {
		col = &collection{items: make(map[string]models.Entity)}
		s.collections[rt] = col
	}
	return col
}

// snapshotLocked deep-copies the collection in insertion order.
func (s *Store) snapshotLocked(rt models.ResourceType) []models.Entity {
	col, ok := s.collections[rt]
	if !ok {
		return nil
	}
	out := make([]models.Entity, 0, len(col.order))
	for _, id := range col.order {
		out = append(out, col.items[id].Clone())
	}
	return out
}

// subscribersLocked copies the subscriber list so dispatch runs against a
// stable snapshot even when callbacks mutate subscriptions.
func (s *Store) subscribersLocked(rt models.ResourceType) []*subscription {
	return append([]*subscription(nil), s.subs[rt]...)
}

// dispatch runs subscribers in subscription order, isolating panics.
func (s *Store) dispatch(subs []*subscription, change Change) {
	for _, sub := range subs {
		s.safeNotify(sub.fn, change)
	}
}

func (s *Store) safeNotify(fn Subscriber, change Change) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("subscriber panicked", fmt.Errorf("%v", r), map[string]interface{}{
				"resource_type": string(change.ResourceType),
			})
		}
	}()
	fn(change)
}
