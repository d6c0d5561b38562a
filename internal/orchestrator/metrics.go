package orchestrator

import (
	"sync/atomic"
	"time"
)

// SystemMetrics aggregates process-wide request counters. Explicitly owned
// and injectable so tests get a fresh instance; every update is atomic per
// counter.
type SystemMetrics struct {
	total        atomic.Int64
	successful   atomic.Int64
	failed       atomic.Int64
	latencyMicro atomic.Int64
}

func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{}
}

func (m *SystemMetrics) recordSuccess(d time.Duration) {
	m.total.Add(1)
	m.successful.Add(1)
	m.latencyMicro.Add(d.Microseconds())
}

func (m *SystemMetrics) recordFailure(d time.Duration) {
	m.total.Add(1)
	m.failed.Add(1)
	m.latencyMicro.Add(d.Microseconds())
}

// SystemSnapshot is a point-in-time view of the aggregate counters.
type SystemSnapshot struct {
	TotalRequests         int64   `json:"total_requests"`
	SuccessfulRequests    int64   `json:"successful_requests"`
	FailedRequests        int64   `json:"failed_requests"`
	AverageResponseTimeMs float64 `json:"average_response_time_ms"`
	ActiveSessions        int     `json:"active_sessions"`
}

func (m *SystemMetrics) Snapshot(activeSessions int) SystemSnapshot {
	total := m.total.Load()
	var avg float64
	if total > 0 {
		avg = float64(m.latencyMicro.Load()) / float64(total) / 1000.0
	}
	return SystemSnapshot{
		TotalRequests:         total,
		SuccessfulRequests:    m.successful.Load(),
		FailedRequests:        m.failed.Load(),
		AverageResponseTimeMs: avg,
		ActiveSessions:        activeSessions,
	}
}
