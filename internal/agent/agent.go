package agent

import (
	"sync/atomic"
	"time"
)

// Metrics holds per-agent counters shared by every in-flight request. All
// updates are atomic per counter; readers get a point-in-time snapshot.
type Metrics struct {
	name string

	requests     atomic.Int64
	failures     atomic.Int64
	latencyMicro atomic.Int64
	lastActivity atomic.Int64
}

func NewMetrics(name string) *Metrics {
	m := &Metrics{name: name}
	m.lastActivity.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) Name() string { return m.name }

// Record tallies one processed request. Failed requests count toward the
// request total but not toward the latency average.
func (m *Metrics) Record(d time.Duration, success bool) {
	m.requests.Add(1)
	if success {
		m.latencyMicro.Add(d.Microseconds())
	} else {
		m.failures.Add(1)
	}
	m.lastActivity.Store(time.Now().UnixNano())
}

// Status is a read-only snapshot of one agent's counters.
type Status struct {
	Name         string    `json:"name"`
	Requests     int64     `json:"requests_processed"`
	Failures     int64     `json:"error_count"`
	AvgLatencyMs float64   `json:"average_response_time_ms"`
	LastActivity time.Time `json:"last_activity"`
}

func (m *Metrics) Snapshot() Status {
	requests := m.requests.Load()
	failures := m.failures.Load()
	var avg float64
	if ok := requests - failures; ok > 0 {
		avg = float64(m.latencyMicro.Load()) / float64(ok) / 1000.0
	}
	return Status{
		Name:         m.name,
		Requests:     requests,
		Failures:     failures,
		AvgLatencyMs: avg,
		LastActivity: time.Unix(0, m.lastActivity.Load()),
	}
}
