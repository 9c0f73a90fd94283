// Package sync provides the engine that reconciles local state with the
// server: it drains the persistent queue upstream, pulls incremental
// server changes, routes concurrent edits through the conflict resolver,
// and lands every outcome in the state store.
package sync

import (
	"context"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/planhub/core/internal/errors"
	"github.com/planhub/core/internal/logging"
	"github.com/planhub/core/internal/metrics"
	"github.com/planhub/core/internal/models"
	"github.com/planhub/core/internal/storage"
	"github.com/planhub/core/internal/store"
	"github.com/planhub/core/internal/sync/conflict"
	"github.com/planhub/core/internal/sync/queue"
	"github.com/planhub/core/internal/sync/scheduler"
)

// Status is the engine's settled state. A cycle moves the engine through
// idle → syncing → {connected | error}; the single-flight gate clears at
// cycle end, so connected and error are both ready-for-the-next-cycle
// states.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSyncing   Status = "syncing"
	StatusConnected Status = "connected"
	StatusError     Status = "error"
)

const (
	defaultInterval = 30 * time.Second
	defaultBackoff  = 5 * time.Second
)

// Result summarizes one sync cycle.
type Result struct {
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
	Pushed    int
	Pulled    int
	Conflicts int
	// Failed lists the resource types whose chain aborted this cycle.
	Failed []models.ResourceType
}

// Config holds engine construction parameters. Store, Queue, Backend,
// and Storage are required; the rest default sensibly.
type Config struct {
	Store    *store.Store
	Queue    *queue.Queue
	Backend  Backend
	Storage  *storage.Store
	Resolver *conflict.Resolver
	// Scheduler owns the periodic and retry timers. Nil means a new
	// scheduler on the system clock.
	Scheduler *scheduler.Scheduler
	Logger    *logging.Logger
	Metrics   metrics.Collector
	// ResourceTypes lists the types a cycle covers, in order. Nil means
	// every known type.
	ResourceTypes []models.ResourceType
	// ConflictFields overrides the conflict allow-list per type. Types
	// absent from the map use the resolver default.
	ConflictFields map[models.ResourceType][]string
	// Interval is the periodic sync period; zero means 30s.
	Interval time.Duration
	// Backoff is the delay before the single retry after a failed
	// cycle; zero means 5s.
	Backoff time.Duration
}

// Engine orchestrates sync cycles. At most one cycle is in flight at any
// time; triggers arriving mid-cycle are dropped, not queued.
type Engine struct {
	store    *store.Store
	queue    *queue.Queue
	backend  Backend
	storage  *storage.Store
	resolver *conflict.Resolver
	sched    *scheduler.Scheduler
	log      *logging.Logger
	metrics  metrics.Collector

	resourceTypes  []models.ResourceType
	conflictFields map[models.ResourceType][]string
	interval       time.Duration
	backoff        time.Duration

	syncing atomic.Bool

	mu       gosync.Mutex
	status   Status
	online   bool
	started  bool
	lastSync *time.Time
	lastErr  error
	periodic *scheduler.Handle
	retry    *scheduler.Handle
}

// New creates an Engine. It does not start timers; call Start.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.Get()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = scheduler.New(nil, cfg.Logger)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = conflict.New(conflict.Config{Clock: cfg.Scheduler.Clock(), Logger: cfg.Logger})
	}
	if len(cfg.ResourceTypes) == 0 {
		cfg.ResourceTypes = models.ResourceTypes()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}

	return &Engine{
		store:          cfg.Store,
		queue:          cfg.Queue,
		backend:        cfg.Backend,
		storage:        cfg.Storage,
		resolver:       cfg.Resolver,
		sched:          cfg.Scheduler,
		log:            cfg.Logger.WithComponent("sync"),
		metrics:        cfg.Metrics,
		resourceTypes:  cfg.ResourceTypes,
		conflictFields: cfg.ConflictFields,
		interval:       cfg.Interval,
		backoff:        cfg.Backoff,
		status:         StatusIdle,
		online:         true,
	}
}

// Start arms the periodic trigger and hooks queue enqueues for
// best-effort immediate pushes. Calling Start twice is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.periodic = e.sched.Every(e.interval, func() {
		e.TrySync(context.Background())
	})
	e.mu.Unlock()

	e.queue.OnEnqueue(func(models.PendingChange) {
		go e.TrySync(context.Background())
	})

	e.log.Info("sync engine started", map[string]interface{}{
		"interval": e.interval.String(),
	})
}

// Stop disarms the periodic and retry triggers. A cycle in flight
// completes; no new one starts from the engine's own timers.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.periodic != nil {
		e.periodic.Stop()
		e.periodic = nil
	}
	if e.retry != nil {
		e.retry.Stop()
		e.retry = nil
	}
	e.started = false
}

// Status returns the engine status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// LastSync returns when the last fully successful cycle ended, or nil.
func (e *Engine) LastSync() *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

// LastError returns the most recent cycle error, cleared by the next
// successful cycle.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Online reports the connectivity flag.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// SetOnline records a connectivity transition. Coming back online
// triggers an immediate best-effort sync.
func (e *Engine) SetOnline(online bool) {
	e.mu.Lock()
	wasOnline := e.online
	e.online = online
	e.mu.Unlock()

	if online && !wasOnline {
		e.log.Info("back online, triggering sync")
		go e.TrySync(context.Background())
	}
}

// TrySync attempts a cycle and reports whether one ran. Cycles are
// dropped while another is in flight or while offline.
func (e *Engine) TrySync(ctx context.Context) bool {
	e.mu.Lock()
	online := e.online
	e.mu.Unlock()
	if !online {
		return false
	}

	_, err := e.Sync(ctx)
	if errors.Is(err, errors.ErrSyncInProgress) {
		return false
	}
	return true
}

// ForceSync runs a cycle regardless of the connectivity flag. It still
// honors single-flight: a cycle in flight makes it an error, not a
// queued trigger.
func (e *Engine) ForceSync(ctx context.Context) (*Result, error) {
	return e.Sync(ctx)
}

// Sync runs one full cycle: per resource type, push queued changes then
// pull server changes since the type's cursor. Resource types proceed
// independently; one type's failure does not stop the others, but marks
// the cycle failed and schedules a single retry.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	if !e.syncing.CompareAndSwap(false, true) {
		e.metrics.Add(metrics.SyncSkippedTrigger, 1)
		return nil, errors.New(errors.ErrSyncInProgress, "sync cycle already in flight")
	}
	defer e.syncing.Store(false)

	clock := e.sched.Clock()
	result := &Result{StartedAt: clock.Now()}
	e.setStatus(StatusSyncing)
	e.metrics.Add(metrics.SyncCycles, 1)

	for _, rt := range e.resourceTypes {
		if err := e.syncResource(ctx, rt, result); err != nil {
			result.Failed = append(result.Failed, rt)
			e.log.Error("resource sync failed", err, map[string]interface{}{
				"resource_type": string(rt),
			})
		}
	}

	result.EndedAt = clock.Now()
	result.Duration = result.EndedAt.Sub(result.StartedAt)

	if len(result.Failed) > 0 {
		e.settleError()
		return result, errors.New(errors.ErrSyncFailed, "sync cycle completed with failures")
	}
	e.settleSuccess(result)
	return result, nil
}

// syncResource runs one type's chain: push before pull, always. Pushing
// first keeps a just-pushed local edit from being re-detected as a
// conflict against its own echo in the pull.
func (e *Engine) syncResource(ctx context.Context, rt models.ResourceType, result *Result) error {
	if err := e.push(ctx, rt, result); err != nil {
		return err
	}
	return e.pull(ctx, rt, result)
}

// push replays the queue for rt in enqueue order. A network failure
// aborts the chain so later changes for the same entity cannot overtake
// earlier ones; a validation rejection is advisory and skips only the
// offending change, which stays queued for explicit recovery.
func (e *Engine) push(ctx context.Context, rt models.ResourceType, result *Result) error {
	for _, change := range e.queue.Drain(rt) {
		returned, err := e.pushChange(ctx, rt, change)
		if err != nil {
			e.metrics.Add(metrics.SyncPushFailures, 1)
			if errors.Is(err, errors.ErrValidation) {
				e.log.Warn("push rejected by server validation", map[string]interface{}{
					"resource_type": string(rt),
					"change_id":     change.ID.String(),
					"entity_id":     change.Payload.ID(),
					"error":         err.Error(),
				})
				continue
			}
			return err
		}

		if err := e.queue.Remove(ctx, rt, change.ID); err != nil {
			return err
		}
		e.store.Set(rt, returned)
		result.Pushed++
		e.metrics.Add(metrics.SyncPushed, 1)
	}
	return nil
}

func (e *Engine) pushChange(ctx context.Context, rt models.ResourceType, change models.PendingChange) (models.Entity, error) {
	switch change.Op {
	case models.OpCreate:
		return e.backend.Create(ctx, rt, change.Payload)
	case models.OpUpdate:
		return e.backend.Update(ctx, rt, change.Payload.ID(), change.Payload)
	}
	return nil, errors.New(errors.ErrInvalid, "unknown change operation "+string(change.Op))
}

// pull fetches server changes since the cursor and reconciles each one
// against local state. The cursor advances only after the pull
// succeeded, to the instant the pull began.
func (e *Engine) pull(ctx context.Context, rt models.ResourceType, result *Result) error {
	cursor, err := e.storage.Cursor(ctx, rt)
	if err != nil {
		return err
	}

	pullStarted := e.sched.Clock().Now()
	entities, err := e.backend.List(ctx, rt, cursor.LastSyncedAt)
	if err != nil {
		return err
	}

	for _, remote := range entities {
		e.reconcile(rt, remote, result)
	}

	return e.storage.PutCursor(ctx, models.SyncCursor{
		ResourceType: rt,
		LastSyncedAt: pullStarted.UTC().Format(time.RFC3339Nano),
	})
}

// reconcile applies one pulled entity. A conflict exists only when an
// unpushed local edit is strictly newer than the incoming copy; a stale
// echo of something already pushed is simply skipped.
func (e *Engine) reconcile(rt models.ResourceType, remote models.Entity, result *Result) {
	id := remote.ID()
	if id == "" {
		e.log.Warn("pulled entity without id", map[string]interface{}{
			"resource_type": string(rt),
		})
		return
	}
	result.Pulled++
	e.metrics.Add(metrics.SyncPulled, 1)

	local, exists := e.store.GetByID(rt, id)
	if !exists {
		e.store.Set(rt, remote)
		return
	}

	if e.queue.Has(rt, id) {
		if detected, ok := e.resolver.Detect(rt, local, remote, e.conflictFields[rt]); ok {
			resolved := e.resolver.Resolve(detected)
			e.store.Set(rt, resolved)
			result.Conflicts++
			e.metrics.Add(metrics.SyncConflicts, 1)
			return
		}
		e.store.Set(rt, remote)
		return
	}

	// Nothing pending locally: a strictly newer store value means this
	// is a stale echo of an entity pushed earlier in the same cycle.
	if local.NewerThan(remote) {
		return
	}
	e.store.Set(rt, remote)
}

func (e *Engine) setStatus(status Status) {
	e.mu.Lock()
	e.status = status
	e.mu.Unlock()
}

func (e *Engine) settleSuccess(result *Result) {
	e.mu.Lock()
	e.status = StatusConnected
	e.lastErr = nil
	ended := result.EndedAt
	e.lastSync = &ended
	e.mu.Unlock()

	e.log.Info("sync cycle completed", map[string]interface{}{
		"pushed":    result.Pushed,
		"pulled":    result.Pulled,
		"conflicts": result.Conflicts,
		"duration":  result.Duration.String(),
	})

	if result.Conflicts > 0 {
		e.store.Notify(models.NotifyWarning, "Conflicts resolved",
			"Concurrent edits were reconciled automatically", models.PriorityNormal)
		e.metrics.Add(metrics.Notifications, 1)
	}
}

// settleError records the failure, surfaces a recoverable notification,
// and arms a single retry. The queue is untouched and no cursor moved
// for the failed chains.
func (e *Engine) settleError() {
	err := errors.New(errors.ErrSyncFailed, "sync cycle completed with failures")

	e.mu.Lock()
	e.status = StatusError
	e.lastErr = err
	armRetry := e.retry == nil && e.started
	e.mu.Unlock()

	e.metrics.Add(metrics.SyncCycleErrors, 1)
	e.store.Notify(models.NotifyError, "Sync failed",
		"Changes are kept locally and will retry shortly", models.PriorityHigh)
	e.metrics.Add(metrics.Notifications, 1)

	if armRetry {
		handle := e.sched.After(e.backoff, func() {
			e.mu.Lock()
			e.retry = nil
			e.mu.Unlock()
			e.TrySync(context.Background())
		})
		e.mu.Lock()
		e.retry = handle
		e.mu.Unlock()
	}
}
