// Package stub implements a development twin of the dashboard backend:
// the /api/v1 collection endpoints plus /ws room fanout, backed by an
// in-memory store. Tests point the sync engine and the realtime relay
// at it; it is not the product server.
package stub

import (
	"sync"
	"time"

	"github.com/planhub/core/internal/models"
)

// collection holds one resource type's entities in insertion order.
type collection struct {
	mu       sync.RWMutex
	order    []string
	entities map[string]models.Entity
}

func newCollection() *collection {
	return &collection{entities: make(map[string]models.Entity)}
}

// List returns clones of the entities changed strictly after since, in
// insertion order. A zero since returns everything.
func (c *collection) List(since time.Time) []models.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Entity, 0, len(c.order))
	for _, id := range c.order {
		entity := c.entities[id]
		if !since.IsZero() && !entity.Timestamp().After(since) {
			continue
		}
		out = append(out, entity.Clone())
	}
	return out
}

// Get returns a clone of one entity.
func (c *collection) Get(id string) (models.Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entity, ok := c.entities[id]
	if !ok {
		return nil, false
	}
	return entity.Clone(), true
}

// Put inserts or replaces an entity, keeping first-insertion order.
func (c *collection) Put(entity models.Entity) {
	id := entity.ID()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entities[id]; !exists {
		c.order = append(c.order, id)
	}
	c.entities[id] = entity.Clone()
}

// Delete removes an entity; it reports whether it existed.
func (c *collection) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entities[id]; !ok {
		return false
	}
	delete(c.entities, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// memoryState holds one collection per resource type.
type memoryState struct {
	collections map[models.ResourceType]*collection
}

func newMemoryState() *memoryState {
	state := &memoryState{
		collections: make(map[models.ResourceType]*collection),
	}
	for _, rt := range models.ResourceTypes() {
		state.collections[rt] = newCollection()
	}
	return state
}

func (s *memoryState) collection(rt models.ResourceType) (*collection, bool) {
	c, ok := s.collections[rt]
	return c, ok
}
