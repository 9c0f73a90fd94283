package main

import (
	"context"

	"github.com/planhub/core/internal/api"
	"github.com/planhub/core/internal/config"
	"github.com/planhub/core/internal/logging"
	"github.com/planhub/core/internal/metrics"
	"github.com/planhub/core/internal/models"
	"github.com/planhub/core/internal/realtime"
	"github.com/planhub/core/internal/storage"
	"github.com/planhub/core/internal/store"
	"github.com/planhub/core/internal/sync"
	"github.com/planhub/core/internal/sync/queue"
	"github.com/planhub/core/internal/sync/scheduler"
)

// agent bundles the wired component graph behind the CLI commands.
type agent struct {
	storage *storage.Store
	queue   *queue.Queue
	store   *store.Store
	engine  *sync.Engine
	relay   *realtime.Relay
	metrics *metrics.InMemory
	sched   *scheduler.Scheduler
}

// buildAgent opens the local database and wires queue, state store,
// sync engine, and realtime relay around it.
func buildAgent(ctx context.Context, cfg config.Config, registry config.Registry) (*agent, error) {
	log := logging.Get()

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(nil, log)
	q, err := queue.Open(ctx, queue.Config{
		Storage: db,
		Clock:   sched.Clock(),
		Logger:  log,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	st := store.New(store.Config{Clock: sched.Clock(), Logger: log})
	client := api.New(api.Config{
		BaseURL: cfg.APIURL,
		Schemas: registry.Schemas(),
		Logger:  log,
	})
	collector := metrics.NewInMemory()

	conflictFields := make(map[models.ResourceType][]string)
	for _, rt := range models.ResourceTypes() {
		if fields := registry.ConflictFields(rt); len(fields) > 0 {
			conflictFields[rt] = fields
		}
	}

	// Saved preferences drive the periodic cadence; the env interval is
	// the fallback when auto refresh is off or unset.
	interval := cfg.SyncInterval
	if settings, err := db.Settings(ctx); err == nil && settings.AutoRefresh {
		interval = settings.Interval()
	}

	engine := sync.New(sync.Config{
		Store:          st,
		Queue:          q,
		Backend:        client,
		Storage:        db,
		Scheduler:      sched,
		Logger:         log,
		Metrics:        collector,
		ConflictFields: conflictFields,
		Interval:       interval,
		Backoff:        cfg.RetryBackoff,
	})

	// Join the configured rooms plus any the registry binds to a
	// resource type.
	rooms := cfg.Rooms
	seen := make(map[string]bool, len(rooms))
	for _, room := range rooms {
		seen[room] = true
	}
	for _, room := range registry.Rooms() {
		if !seen[room] {
			rooms = append(rooms, room)
			seen[room] = true
		}
	}

	relay := realtime.NewRelay(realtime.RelayConfig{
		WSURL:     cfg.WSURL,
		Rooms:     rooms,
		Store:     st,
		Syncer:    engine,
		Scheduler: sched,
		Logger:    log,
		Metrics:   collector,
	})

	return &agent{
		storage: db,
		queue:   q,
		store:   st,
		engine:  engine,
		relay:   relay,
		metrics: collector,
		sched:   sched,
	}, nil
}

// Close tears the graph down in reverse wiring order.
func (a *agent) Close() {
	a.relay.Close()
	a.engine.Stop()
	a.sched.Stop()
	a.store.Close()
	a.storage.Close()
}
