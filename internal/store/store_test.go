// Package store tests for the in-memory state store.
package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/planhub/core/internal/models"
	"github.com/planhub/core/internal/sync/scheduler"
)

func newTestStore(t *testing.T) (*Store, *scheduler.Manual) {
	t.Helper()
	clock := scheduler.NewManual(time.Unix(1700000000, 0))
	s := New(Config{Clock: clock})
	t.Cleanup(s.Close)
	return s, clock
}

// TestSetGet_deepCopy verifies snapshots share nothing with the store.
func TestSetGet_deepCopy(t *testing.T) {
	s, _ := newTestStore(t)

	entity := models.Entity{
		"id":   "p1",
		"name": "Apollo",
		"meta": map[string]any{"owner": "ana"},
	}
	s.Set(models.ResourceProjects, entity)

	// Mutating the caller's copy after Set does not affect the store.
	entity["name"] = "mutated"
	entity["meta"].(map[string]any)["owner"] = "mutated"

	got := s.Get(models.ResourceProjects)
	if len(got) != 1 {
		t.Fatalf("Get() returned %d entities, want 1", len(got))
	}
	if got[0]["name"] != "Apollo" {
		t.Errorf("store value changed through caller's reference: %v", got[0]["name"])
	}
	if got[0]["meta"].(map[string]any)["owner"] != "ana" {
		t.Errorf("nested store value changed through caller's reference")
	}

	// Mutating a returned snapshot does not affect the store either.
	got[0]["name"] = "also mutated"
	again := s.Get(models.ResourceProjects)
	if again[0]["name"] != "Apollo" {
		t.Errorf("store value changed through returned snapshot")
	}
}

// TestSet_insertionOrderAndUpsert verifies ordering and in-place update.
func TestSet_insertionOrderAndUpsert(t *testing.T) {
	s, _ := newTestStore(t)

	for _, id := range []string{"p1", "p2", "p3"} {
		s.Set(models.ResourceProjects, models.Entity{"id": id, "rev": 1.0})
	}
	s.Set(models.ResourceProjects, models.Entity{"id": "p2", "rev": 2.0})

	got := s.Get(models.ResourceProjects)
	if len(got) != 3 {
		t.Fatalf("got %d entities, want 3", len(got))
	}
	wantOrder := []string{"p1", "p2", "p3"}
	for i, entity := range got {
		if entity.ID() != wantOrder[i] {
			t.Errorf("order[%d] = %s, want %s", i, entity.ID(), wantOrder[i])
		}
	}
	if got[1]["rev"] != 2.0 {
		t.Errorf("upsert did not replace value: rev = %v", got[1]["rev"])
	}
}

// TestSet_withoutID verifies unindexable entities are dropped.
func TestSet_withoutID(t *testing.T) {
	s, _ := newTestStore(t)

	s.Set(models.ResourceProjects, models.Entity{"name": "no id"})

	if n := s.Len(models.ResourceProjects); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
}

// TestSubscribe_orderAndSnapshots verifies synchronous in-order delivery
// with before/after snapshots.
func TestSubscribe_orderAndSnapshots(t *testing.T) {
	s, _ := newTestStore(t)

	var order []string
	var lastChange Change
	s.Subscribe(models.ResourceProjects, func(c Change) {
		order = append(order, "first")
	})
	s.Subscribe(models.ResourceProjects, func(c Change) {
		order = append(order, "second")
		lastChange = c
	})

	s.Set(models.ResourceProjects, models.Entity{"id": "p1", "name": "Apollo"})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("delivery order = %v, want [first second]", order)
	}
	if len(lastChange.Entities) != 1 || lastChange.Entities[0].ID() != "p1" {
		t.Errorf("Change.Entities = %v", lastChange.Entities)
	}
	if len(lastChange.Previous) != 0 {
		t.Errorf("Change.Previous = %v, want empty", lastChange.Previous)
	}

	s.Set(models.ResourceProjects, models.Entity{"id": "p2"})
	if len(lastChange.Previous) != 1 || lastChange.Previous[0].ID() != "p1" {
		t.Errorf("second Change.Previous = %v, want the p1 snapshot", lastChange.Previous)
	}
}

// TestSubscriber_panicIsolated verifies one panicking subscriber does not
// break delivery to the others or crash the mutator.
func TestSubscriber_panicIsolated(t *testing.T) {
	s, _ := newTestStore(t)

	var survived bool
	s.Subscribe(models.ResourceProjects, func(Change) {
		panic("bad subscriber")
	})
	s.Subscribe(models.ResourceProjects, func(Change) {
		survived = true
	})

	s.Set(models.ResourceProjects, models.Entity{"id": "p1"})

	if !survived {
		t.Error("subscriber after the panicking one was not called")
	}
	if n := s.Len(models.ResourceProjects); n != 1 {
		t.Errorf("mutation lost after subscriber panic: Len() = %d", n)
	}
}

// TestUnsubscribe verifies removal and idempotency.
func TestUnsubscribe(t *testing.T) {
	s, _ := newTestStore(t)

	calls := 0
	unsubscribe := s.Subscribe(models.ResourceTasks, func(Change) { calls++ })

	s.Set(models.ResourceTasks, models.Entity{"id": "t1"})
	unsubscribe()
	unsubscribe() // idempotent
	s.Set(models.ResourceTasks, models.Entity{"id": "t2"})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

// TestUnsubscribe_duringNotification verifies self-removal inside a
// callback neither deadlocks nor affects the current delivery.
func TestUnsubscribe_duringNotification(t *testing.T) {
	s, _ := newTestStore(t)

	calls := 0
	var unsubscribe func()
	unsubscribe = s.Subscribe(models.ResourceTasks, func(Change) {
		calls++
		unsubscribe()
	})

	s.Set(models.ResourceTasks, models.Entity{"id": "t1"})
	s.Set(models.ResourceTasks, models.Entity{"id": "t2"})

	if calls != 1 {
		t.Errorf("calls = %d, want exactly 1", calls)
	}
}

// TestDelete verifies removal, notification, and the missing case.
func TestDelete(t *testing.T) {
	s, _ := newTestStore(t)

	s.Set(models.ResourceRisks, models.Entity{"id": "r1"})
	s.Set(models.ResourceRisks, models.Entity{"id": "r2"})

	notified := 0
	s.Subscribe(models.ResourceRisks, func(c Change) {
		notified++
		if len(c.Entities) != 1 {
			t.Errorf("snapshot after delete has %d entities, want 1", len(c.Entities))
		}
	})

	if !s.Delete(models.ResourceRisks, "r1") {
		t.Error("Delete(r1) = false, want true")
	}
	if s.Delete(models.ResourceRisks, "missing") {
		t.Error("Delete(missing) = true, want false")
	}
	if notified != 1 {
		t.Errorf("notified = %d, want 1 (no notification for missing id)", notified)
	}
	if _, ok := s.GetByID(models.ResourceRisks, "r1"); ok {
		t.Error("r1 still present after Delete")
	}
}

// TestReplace verifies wholesale swap with a single notification.
func TestReplace(t *testing.T) {
	s, _ := newTestStore(t)

	s.Set(models.ResourceFeatures, models.Entity{"id": "old"})

	notified := 0
	s.Subscribe(models.ResourceFeatures, func(c Change) { notified++ })

	s.Replace(models.ResourceFeatures, []models.Entity{
		{"id": "f1"},
		{"id": "f2"},
		{"name": "skipped, no id"},
	})

	if notified != 1 {
		t.Errorf("notified = %d, want 1", notified)
	}
	got := s.Get(models.ResourceFeatures)
	if len(got) != 2 || got[0].ID() != "f1" || got[1].ID() != "f2" {
		t.Errorf("Replace result = %v", got)
	}
	if _, ok := s.GetByID(models.ResourceFeatures, "old"); ok {
		t.Error("old entity survived Replace")
	}
}

// TestGetByID verifies lookup and the missing cases.
func TestGetByID(t *testing.T) {
	s, _ := newTestStore(t)

	s.Set(models.ResourceBacklog, models.Entity{"id": "b1", "name": "spike"})

	entity, ok := s.GetByID(models.ResourceBacklog, "b1")
	if !ok || entity["name"] != "spike" {
		t.Errorf("GetByID(b1) = %v, %v", entity, ok)
	}
	if _, ok := s.GetByID(models.ResourceBacklog, "b2"); ok {
		t.Error("GetByID(b2) = true, want false")
	}
	if _, ok := s.GetByID(models.ResourceTasks, "b1"); ok {
		t.Error("GetByID on empty type = true, want false")
	}
}

// TestConcurrentAccess exercises parallel reads and writes.
func TestConcurrentAccess(t *testing.T) {
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := fmt.Sprintf("p%d-%d", n, j)
				s.Set(models.ResourceProjects, models.Entity{"id": id})
				s.Get(models.ResourceProjects)
				s.GetByID(models.ResourceProjects, id)
			}
		}(i)
	}
	wg.Wait()

	if n := s.Len(models.ResourceProjects); n != 8*50 {
		t.Errorf("Len() = %d, want %d", n, 8*50)
	}
}
