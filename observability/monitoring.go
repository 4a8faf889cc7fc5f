// Package observability aggregates runtime telemetry for the health endpoint.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats is the latest telemetry snapshot served by /healthz.
type Stats struct {
	CPUPercent  float64   `json:"cpu_percent"`
	RSSBytes    uint64    `json:"rss_bytes"`
	Goroutines  int       `json:"goroutines"`
	OpenRooms   int       `json:"open_rooms"`
	Delivered   uint64    `json:"delivered_events"`
	Dropped     uint64    `json:"dropped_events"`
	CollectedAt time.Time `json:"collected_at"`
}

// Monitor keeps atomic delivery counters fed by the channel fan-out and the
// latest sampled snapshot fed by the health worker.
type Monitor struct {
	mu     sync.RWMutex
	latest Stats

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) IncrDelivered() {
	if m != nil {
		m.delivered.Add(1)
	}
}

func (m *Monitor) IncrDropped() {
	if m != nil {
		m.dropped.Add(1)
	}
}

// SetLatest stores a fresh sample, stamping it with the current counters.
func (m *Monitor) SetLatest(stats Stats) {
	stats.Delivered = m.delivered.Load()
	stats.Dropped = m.dropped.Load()
	stats.CollectedAt = time.Now().UTC()

	m.mu.Lock()
	m.latest = stats
	m.mu.Unlock()
}

func (m *Monitor) Latest() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}
