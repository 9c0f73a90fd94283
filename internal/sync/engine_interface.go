// Package sync provides synchronization interfaces and implementations.
package sync

import (
	"context"

	"github.com/planhub/core/internal/models"
)

// Backend is the REST surface a sync cycle pushes to and pulls from.
// *api.Client satisfies it; tests substitute fakes.
type Backend interface {
	// List fetches the server collection, filtered to entities changed
	// after since when non-empty.
	List(ctx context.Context, rt models.ResourceType, since string) ([]models.Entity, error)

	// Create inserts a new entity and returns the server representation.
	Create(ctx context.Context, rt models.ResourceType, entity models.Entity) (models.Entity, error)

	// Update replaces an entity wholesale and returns the server
	// representation.
	Update(ctx context.Context, rt models.ResourceType, id string, entity models.Entity) (models.Entity, error)
}

// Syncer is the engine surface consumed by the realtime relay and the
// CLI. It allows mocking in tests and alternative implementations.
type Syncer interface {
	// Sync runs one full cycle. It returns ErrSyncInProgress when a
	// cycle is already in flight.
	Sync(ctx context.Context) (*Result, error)

	// TrySync attempts a cycle and reports whether one started. A cycle
	// already in flight makes it a dropped no-op.
	TrySync(ctx context.Context) bool

	// Status returns the engine status.
	Status() Status
}
