// Package queue tests for the local persistent queue.
package queue

import (
	"context"
	"testing"
	"time"

	"github.com/planhub/core/internal/models"
	"github.com/planhub/core/internal/storage"
	"github.com/planhub/core/internal/sync/scheduler"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	q, err := Open(context.Background(), Config{
		Storage: store,
		Clock:   scheduler.NewManual(time.Unix(1700000000, 0)),
	})
	if err != nil {
		t.Fatalf("Open queue: %v", err)
	}
	return q
}

func TestEnqueueDrain_FIFOOrder(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	ids := []string{"p1", "p2", "p3", "p1"}
	for _, id := range ids {
		if _, err := q.Enqueue(ctx, models.ResourceProjects, models.OpUpdate, models.Entity{"id": id}); err != nil {
			t.Fatalf("Enqueue(%s): %v", id, err)
		}
	}

	drained := q.Drain(models.ResourceProjects)
	if len(drained) != len(ids) {
		t.Fatalf("Drain returned %d changes, want %d", len(drained), len(ids))
	}
	for i, change := range drained {
		if change.Payload.ID() != ids[i] {
			t.Errorf("drain[%d] targets %s, want %s", i, change.Payload.ID(), ids[i])
		}
	}

	// Drain does not remove.
	if got := q.Pending(models.ResourceProjects); got != len(ids) {
		t.Errorf("Pending after Drain = %d, want %d", got, len(ids))
	}
}

func TestEnqueue_InvalidOp(t *testing.T) {
	q := newTestQueue(t)
	if _, err := q.Enqueue(context.Background(), models.ResourceProjects, "delete", models.Entity{"id": "p1"}); err == nil {
		t.Fatal("Enqueue accepted unknown operation")
	}
}

func TestRemove_OnlyWayCountDecreases(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, models.ResourceRisks, models.OpCreate, models.Entity{"id": "r1"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, models.ResourceRisks, models.OpUpdate, models.Entity{"id": "r1"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	q.Drain(models.ResourceRisks)
	q.Drain(models.ResourceRisks)
	if got := q.Pending(models.ResourceRisks); got != 2 {
		t.Fatalf("Pending = %d after drains, want 2", got)
	}

	if err := q.Remove(ctx, models.ResourceRisks, first.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := q.Pending(models.ResourceRisks); got != 1 {
		t.Errorf("Pending after Remove = %d, want 1", got)
	}

	remaining := q.Drain(models.ResourceRisks)
	if len(remaining) != 1 || remaining[0].ID == first.ID {
		t.Errorf("Remove deleted the wrong change: %+v", remaining)
	}

	// Removing an unknown id is a no-op.
	if err := q.Remove(ctx, models.ResourceRisks, "no-such-change"); err != nil {
		t.Errorf("Remove of unknown id: %v", err)
	}
}

func TestQueue_SurvivesReopen(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()

	store, err := storage.Open(dataDir)
	if err != nil {
		t.Fatalf("Open storage: %v", err)
	}
	q, err := Open(ctx, Config{Storage: store})
	if err != nil {
		t.Fatalf("Open queue: %v", err)
	}
	if _, err := q.Enqueue(ctx, models.ResourceProjects, models.OpCreate, models.Entity{"id": "p1", "name": "Alpha"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, models.ResourceTasks, models.OpUpdate, models.Entity{"id": "t1"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close storage: %v", err)
	}

	reopened, err := storage.Open(dataDir)
	if err != nil {
		t.Fatalf("reopen storage: %v", err)
	}
	defer reopened.Close()

	restored, err := Open(ctx, Config{Storage: reopened})
	if err != nil {
		t.Fatalf("reopen queue: %v", err)
	}

	if got := restored.Pending(models.ResourceProjects); got != 1 {
		t.Errorf("projects pending after reopen = %d, want 1", got)
	}
	if got := restored.Pending(models.ResourceTasks); got != 1 {
		t.Errorf("tasks pending after reopen = %d, want 1", got)
	}
	drained := restored.Drain(models.ResourceProjects)
	if len(drained) != 1 || drained[0].Payload["name"] != "Alpha" {
		t.Errorf("restored payload lost data: %+v", drained)
	}
}

func TestHas_MatchesEntityID(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, models.ResourceProjects, models.OpUpdate, models.Entity{"id": "p1"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if !q.Has(models.ResourceProjects, "p1") {
		t.Error("Has(p1) = false, want true")
	}
	if q.Has(models.ResourceProjects, "p2") {
		t.Error("Has(p2) = true, want false")
	}
	if q.Has(models.ResourceRisks, "p1") {
		t.Error("Has on wrong resource type = true, want false")
	}
	if q.Has(models.ResourceProjects, "") {
		t.Error("Has with empty id = true, want false")
	}
}

func TestClear_ScopedToResourceType(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(ctx, models.ResourceProjects, models.OpUpdate, models.Entity{"id": "p1"}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if _, err := q.Enqueue(ctx, models.ResourceRisks, models.OpCreate, models.Entity{"id": "r1"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := q.Clear(ctx, models.ResourceProjects); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := q.Pending(models.ResourceProjects); got != 0 {
		t.Errorf("projects pending after Clear = %d, want 0", got)
	}
	if got := q.Pending(models.ResourceRisks); got != 1 {
		t.Errorf("risks pending after scoped Clear = %d, want 1", got)
	}

	if err := q.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if got := q.PendingTotal(); got != 0 {
		t.Errorf("PendingTotal after ClearAll = %d, want 0", got)
	}
}

func TestOnEnqueue_HookReceivesChange(t *testing.T) {
	q := newTestQueue(t)

	var seen []models.PendingChange
	q.OnEnqueue(func(change models.PendingChange) {
		seen = append(seen, change)
	})

	change, err := q.Enqueue(context.Background(), models.ResourceProjects, models.OpCreate, models.Entity{"id": "p9"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if len(seen) != 1 {
		t.Fatalf("hook fired %d times, want 1", len(seen))
	}
	if seen[0].ID != change.ID {
		t.Errorf("hook saw change %s, want %s", seen[0].ID, change.ID)
	}
}

func TestDrain_ReturnsPayloadCopies(t *testing.T) {
	q := newTestQueue(t)

	if _, err := q.Enqueue(context.Background(), models.ResourceProjects, models.OpCreate, models.Entity{"id": "p1", "name": "Alpha"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	first := q.Drain(models.ResourceProjects)
	first[0].Payload["name"] = "mutated"

	second := q.Drain(models.ResourceProjects)
	if second[0].Payload["name"] != "Alpha" {
		t.Errorf("mutating a drained payload changed the queue: %v", second[0].Payload["name"])
	}
}
