// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime counters for the event loop, router, and broadcaster.
// Values live in a mutex-guarded map; readers take a copy.

package control

import (
	"sync"
	"time"
)

// Counter names recorded by the server.
const (
	ConnectionsAccepted = "connections.accepted"
	ConnectionsRejected = "connections.rejected"
	ConnectionsDropped  = "connections.dropped"
	ConnectionsOpen     = "connections.open"
	FramesReceived      = "frames.received"
	MessagesInvalid     = "messages.invalid"
	BroadcastTicks      = "broadcast.ticks"
	BroadcastSkipped    = "broadcast.skipped"
	BroadcastWrites     = "broadcast.writes"
	BroadcastFailures   = "broadcast.failures"
)

// MetricsRegistry holds named integer metrics.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]int64
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]int64),
	}
}

// Add increments key by delta. A nil registry ignores the call.
func (mr *MetricsRegistry) Add(key string, delta int64) {
	if mr == nil {
		return
	}
	mr.mu.Lock()
	mr.metrics[key] += delta
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Inc increments key by one.
func (mr *MetricsRegistry) Inc(key string) { mr.Add(key, 1) }

// Set stores a gauge value.
func (mr *MetricsRegistry) Set(key string, value int64) {
	if mr == nil {
		return
	}
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Get returns the current value of key (0 if never recorded).
func (mr *MetricsRegistry) Get(key string) int64 {
	if mr == nil {
		return 0
	}
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.metrics[key]
}

// Updated returns the time of the last write.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}

// GetSnapshot returns a copy of all metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]int64, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}
