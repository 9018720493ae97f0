package server

import (
	"sync"
	"time"

	"github.com/zephyrtronium/derivcalc"
)

// Metrics counts evaluations served.
type Metrics struct {
	mu          sync.Mutex
	evaluations int64
	successes   int64
	steps       int64
	failures    map[string]int64
	startedAt   time.Time
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Evaluations int64            `json:"evaluations"`
	Successes   int64            `json:"successes"`
	Steps       int64            `json:"steps"`
	Failures    map[string]int64 `json:"failures"`
	Uptime      string           `json:"uptime"`
}

// NewMetrics creates a zeroed Metrics starting now.
func NewMetrics() *Metrics {
	return &Metrics{
		failures:  make(map[string]int64),
		startedAt: time.Now(),
	}
}

// Record counts one evaluation.
func (m *Metrics) Record(res derivcalc.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations++
	m.steps += int64(len(res.Steps))
	if res.Success {
		m.successes++
		return
	}
	m.failures[errorKind(res.Err)]++
}

// Snapshot copies the current counts.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := make(map[string]int64, len(m.failures))
	for k, v := range m.failures {
		f[k] = v
	}
	return MetricsSnapshot{
		Evaluations: m.evaluations,
		Successes:   m.successes,
		Steps:       m.steps,
		Failures:    f,
		Uptime:      time.Since(m.startedAt).Round(time.Second).String(),
	}
}
