// Package metrics provides in-process counters for sync and realtime
// activity. Nothing leaves the process: collectors exist so the CLI and
// tests can observe what the engine and channels did.
package metrics

import "sync"

// Counter names recorded by the client core.
const (
	SyncCycles         = "sync.cycles"
	SyncCycleErrors    = "sync.cycle_errors"
	SyncPushed         = "sync.pushed"
	SyncPushFailures   = "sync.push_failures"
	SyncPulled         = "sync.pulled"
	SyncConflicts      = "sync.conflicts"
	SyncSkippedTrigger = "sync.skipped_triggers"
	RealtimeMessages   = "realtime.messages"
	RealtimeUnknown    = "realtime.unknown_types"
	RealtimeReconnects = "realtime.reconnects"
	Notifications      = "notifications.emitted"
)

// Collector receives counter increments. Implementations must be safe
// for concurrent use.
type Collector interface {
	// Add increments a named counter by delta.
	Add(name string, delta int64)
}

// Nop returns a collector that discards everything.
func Nop() Collector {
	return nopCollector{}
}

type nopCollector struct{}

func (nopCollector) Add(string, int64) {}

// InMemory accumulates counters in process memory.
type InMemory struct {
	mu       sync.RWMutex
	counters map[string]int64
}

// NewInMemory creates an empty in-memory collector.
func NewInMemory() *InMemory {
	return &InMemory{counters: make(map[string]int64)}
}

// Add increments a named counter by delta.
func (m *InMemory) Add(name string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += delta
}

// Get returns the current value of one counter.
func (m *InMemory) Get(name string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[name]
}

// Snapshot returns a copy of every non-zero counter.
func (m *InMemory) Snapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64, len(m.counters))
	for name, value := range m.counters {
		out[name] = value
	}
	return out
}

// Reset zeroes every counter.
func (m *InMemory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = make(map[string]int64)
}
