// Integration tests for the offline-first loop: durable queue, sync
// engine, and realtime relay wired against the stub backend.
package integration

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/planhub/core/internal/api"
	"github.com/planhub/core/internal/models"
	"github.com/planhub/core/internal/realtime"
	"github.com/planhub/core/internal/storage"
	"github.com/planhub/core/internal/store"
	"github.com/planhub/core/internal/stub"
	syncengine "github.com/planhub/core/internal/sync"
	"github.com/planhub/core/internal/sync/queue"
	"github.com/planhub/core/internal/uuid"
)

type harness struct {
	backend *httptest.Server
	storage *storage.Store
	queue   *queue.Queue
	store   *store.Store
	engine  *syncengine.Engine
}

// newHarness wires the real component graph against a fresh stub
// backend. Only projects sync, to keep cycles small.
func newHarness(t *testing.T, dataDir string) *harness {
	t.Helper()

	stubServer := stub.New(stub.Config{})
	backend := httptest.NewServer(stubServer.Handler())
	t.Cleanup(func() {
		backend.Close()
		stubServer.Close()
	})
	return attach(t, dataDir, backend)
}

// attach wires client components onto an already running backend, so a
// restart can be simulated by attaching twice to the same state.
func attach(t *testing.T, dataDir string, backend *httptest.Server) *harness {
	t.Helper()

	db, err := storage.Open(dataDir)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	q, err := queue.Open(context.Background(), queue.Config{Storage: db})
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}

	st := store.New(store.Config{})
	t.Cleanup(st.Close)

	engine := syncengine.New(syncengine.Config{
		Store:         st,
		Queue:         q,
		Backend:       api.New(api.Config{BaseURL: backend.URL}),
		Storage:       db,
		ResourceTypes: []models.ResourceType{models.ResourceProjects},
	})

	return &harness{
		backend: backend,
		storage: db,
		queue:   q,
		store:   st,
		engine:  engine,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// Offline create lands in the durable queue and the optimistic cache;
// coming back online drains it to the server and settles the mirror on
// the server's representation.
func TestOfflineCreateSyncsWhenBackOnline(t *testing.T) {
	h := newHarness(t, t.TempDir())
	ctx := context.Background()

	h.engine.SetOnline(false)

	project := models.Entity{"id": uuid.New(), "name": "Port relaunch", "status": "active"}
	if _, err := h.queue.Enqueue(ctx, models.ResourceProjects, models.OpCreate, project); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	h.store.Set(models.ResourceProjects, project)

	if h.engine.TrySync(ctx) {
		t.Error("TrySync ran a cycle while offline")
	}
	if got := h.queue.Pending(models.ResourceProjects); got != 1 {
		t.Fatalf("pending = %d, want 1 while offline", got)
	}

	// The transition itself triggers the drain.
	h.engine.SetOnline(true)
	waitFor(t, "queue to drain", func() bool {
		return h.queue.PendingTotal() == 0
	})

	waitFor(t, "server representation in the store", func() bool {
		entity, ok := h.store.GetByID(models.ResourceProjects, project.ID())
		if !ok {
			return false
		}
		_, stamped := entity["updated_at"]
		return stamped
	})

	// The server now owns the entity.
	remote, err := api.New(api.Config{BaseURL: h.backend.URL}).List(ctx, models.ResourceProjects, "")
	if err != nil {
		t.Fatalf("list from stub: %v", err)
	}
	if len(remote) != 1 || remote[0].ID() != project.ID() {
		t.Fatalf("stub holds %v, want the synced project", remote)
	}

	cursor, err := h.storage.Cursor(ctx, models.ResourceProjects)
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cursor.LastSyncedAt == "" {
		t.Error("cursor did not advance after a successful cycle")
	}
}

// A queued change written before a crash is still there after restart
// and syncs on the next cycle.
func TestQueueSurvivesRestartThenSyncs(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()

	first := newHarness(t, dataDir)
	project := models.Entity{"id": uuid.New(), "name": "Night shift plan"}
	if _, err := first.queue.Enqueue(ctx, models.ResourceProjects, models.OpCreate, project); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	first.storage.Close()

	second := attach(t, dataDir, first.backend)
	if got := second.queue.Pending(models.ResourceProjects); got != 1 {
		t.Fatalf("pending after restart = %d, want 1", got)
	}

	result, err := second.engine.ForceSync(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Pushed != 1 {
		t.Errorf("pushed = %d, want 1", result.Pushed)
	}
	if got := second.queue.PendingTotal(); got != 0 {
		t.Errorf("pending after sync = %d, want 0", got)
	}
	if _, ok := second.store.GetByID(models.ResourceProjects, project.ID()); !ok {
		t.Error("synced project missing from the state store")
	}
}

// A REST mutation on the backend reaches the client store through the
// websocket room without any sync cycle.
func TestRealtimeEventReachesStore(t *testing.T) {
	h := newHarness(t, t.TempDir())
	ctx := context.Background()

	relay := realtime.NewRelay(realtime.RelayConfig{
		WSURL: "ws" + strings.TrimPrefix(h.backend.URL, "http"),
		Rooms: []string{"projects"},
		Store: h.store,
	})
	defer relay.Close()

	relay.Connect()
	waitFor(t, "room to connect", func() bool {
		return relay.Health()["projects"] == realtime.HealthConnected
	})

	created, err := api.New(api.Config{BaseURL: h.backend.URL}).
		Create(ctx, models.ResourceProjects, models.Entity{"name": "Broadcast check"})
	if err != nil {
		t.Fatalf("create on stub: %v", err)
	}

	waitFor(t, "event to land in the store", func() bool {
		entity, ok := h.store.GetByID(models.ResourceProjects, created.ID())
		return ok && entity["name"] == "Broadcast check"
	})
}
