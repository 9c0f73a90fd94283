// Package realtime provides the relay owning all room channels.
package realtime

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/planhub/core/internal/logging"
	"github.com/planhub/core/internal/metrics"
	"github.com/planhub/core/internal/store"
	"github.com/planhub/core/internal/sync/scheduler"
)

// Handler consumes one decoded envelope.
type Handler func(Envelope)

// ForceSyncer is the sliver of the sync engine the relay needs: a
// best-effort sync trigger fired when the page becomes visible again.
type ForceSyncer interface {
	TrySync(ctx context.Context) bool
}

// RelayConfig holds relay construction parameters.
type RelayConfig struct {
	// WSURL is the websocket root, e.g. ws://host; rooms attach under
	// /ws/{room}.
	WSURL string
	// Rooms lists the rooms to keep connected.
	Rooms []string
	// Store receives entity events and broadcast notifications.
	Store *store.Store
	// Syncer, when set, gets a forced sync on Resume.
	Syncer    ForceSyncer
	Dialer    *websocket.Dialer
	Scheduler *scheduler.Scheduler
	Logger    *logging.Logger
	Metrics   metrics.Collector
	// BaseDelay and MaxAttempts configure every channel's reconnect
	// schedule.
	BaseDelay   time.Duration
	MaxAttempts int
}

// Relay owns one channel per room and the shared handler registry.
// Inbound dispatch is a pure lookup by envelope type; unknown types are
// logged and ignored so new server events never break old clients.
type Relay struct {
	store   *store.Store
	syncer  ForceSyncer
	log     *logging.Logger
	metrics metrics.Collector

	channels map[string]*Channel

	mu       gosync.RWMutex
	handlers map[string]Handler
	refresh  func()
}

// NewRelay creates the relay and its channels with the built-in entity
// handlers registered. Nothing connects until Connect.
func NewRelay(cfg RelayConfig) *Relay {
	if cfg.Logger == nil {
		cfg.Logger = logging.Get()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = scheduler.New(nil, cfg.Logger)
	}

	r := &Relay{
		store:    cfg.Store,
		syncer:   cfg.Syncer,
		log:      cfg.Logger.WithComponent("realtime"),
		metrics:  cfg.Metrics,
		channels: make(map[string]*Channel, len(cfg.Rooms)),
		handlers: make(map[string]Handler),
	}
	r.registerBuiltins()

	base := strings.TrimRight(cfg.WSURL, "/")
	for _, room := range cfg.Rooms {
		r.channels[room] = NewChannel(ChannelConfig{
			URL:         fmt.Sprintf("%s/ws/%s", base, room),
			Room:        room,
			Dispatch:    r.Dispatch,
			Dialer:      cfg.Dialer,
			Scheduler:   cfg.Scheduler,
			Logger:      cfg.Logger,
			Metrics:     cfg.Metrics,
			BaseDelay:   cfg.BaseDelay,
			MaxAttempts: cfg.MaxAttempts,
		})
	}
	return r
}

// Handle registers or replaces the handler for one envelope type.
func (r *Relay) Handle(envelopeType string, handler Handler) {
	r.mu.Lock()
	r.handlers[envelopeType] = handler
	r.mu.Unlock()
}

// SetRefresh registers the idempotent view refresh callback invoked
// after entity events and dashboard_refresh. Passing nil unregisters.
func (r *Relay) SetRefresh(fn func()) {
	r.mu.Lock()
	r.refresh = fn
	r.mu.Unlock()
}

// Dispatch routes one envelope to its handler. Unknown types are
// counted and dropped without touching the store.
func (r *Relay) Dispatch(envelope Envelope) {
	r.mu.RLock()
	handler, known := r.handlers[envelope.Type]
	r.mu.RUnlock()

	if !known {
		r.metrics.Add(metrics.RealtimeUnknown, 1)
		r.log.Debug("ignoring unknown envelope type", map[string]interface{}{
			"type": envelope.Type,
		})
		return
	}
	handler(envelope)
}

// Connect dials every room.
func (r *Relay) Connect() {
	for _, channel := range r.channels {
		channel.Connect()
	}
}

// Pause suspends every channel, as when the page becomes hidden.
func (r *Relay) Pause() {
	for _, channel := range r.channels {
		channel.Pause()
	}
}

// Resume re-enters every channel and forces one sync so state hidden
// during the pause catches up immediately.
func (r *Relay) Resume() {
	for _, channel := range r.channels {
		channel.Resume()
	}
	if r.syncer != nil {
		go r.syncer.TrySync(context.Background())
	}
}

// Close shuts every channel down permanently.
func (r *Relay) Close() {
	for _, channel := range r.channels {
		channel.Close()
	}
}

// Channel returns the channel for one room, or nil.
func (r *Relay) Channel(room string) *Channel {
	return r.channels[room]
}

// Health returns the per-room connection health.
func (r *Relay) Health() map[string]Health {
	out := make(map[string]Health, len(r.channels))
	for room, channel := range r.channels {
		out[room] = channel.Status()
	}
	return out
}

// notifyRefresh invokes the registered view refresh callback, if any.
func (r *Relay) notifyRefresh() {
	r.mu.RLock()
	refresh := r.refresh
	r.mu.RUnlock()
	if refresh != nil {
		refresh()
	}
}
