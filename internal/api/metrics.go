package api

import (
	"sync/atomic"
	"time"
)

// Metrics collects in-memory server counters.
type Metrics struct {
	startTime       time.Time
	requests        atomic.Int64
	serverErrors    atomic.Int64
	clientErrors    atomic.Int64
	injectedErrors  atomic.Int64
	accepted        atomic.Int64
	rejected        atomic.Int64
	published       atomic.Int64
	publishFailures atomic.Int64
}

// MetricsSnapshot is a point-in-time view of Metrics.
type MetricsSnapshot struct {
	UptimeSeconds   float64 `json:"uptime_seconds"`
	Requests        int64   `json:"requests"`
	ServerErrors    int64   `json:"server_errors"`
	ClientErrors    int64   `json:"client_errors"`
	InjectedErrors  int64   `json:"injected_errors"`
	WritesAccepted  int64   `json:"writes_accepted"`
	WritesRejected  int64   `json:"writes_rejected"`
	EchoesPublished int64   `json:"echoes_published"`
	PublishFailures int64   `json:"publish_failures"`
}

// NewMetrics starts the uptime clock.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) RecordRequest()     { m.requests.Add(1) }
func (m *Metrics) RecordError()       { m.serverErrors.Add(1) }
func (m *Metrics) RecordClientError() { m.clientErrors.Add(1) }
func (m *Metrics) RecordInjected()    { m.injectedErrors.Add(1) }

// RecordRuling counts an accepted or rejected feature write.
func (m *Metrics) RecordRuling(accepted bool) {
	if accepted {
		m.accepted.Add(1)
	} else {
		m.rejected.Add(1)
	}
}

// RecordPublish counts an echo publish attempt.
func (m *Metrics) RecordPublish(err error) {
	if err != nil {
		m.publishFailures.Add(1)
		return
	}
	m.published.Add(1)
}

// Snapshot returns a copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		UptimeSeconds:   time.Since(m.startTime).Seconds(),
		Requests:        m.requests.Load(),
		ServerErrors:    m.serverErrors.Load(),
		ClientErrors:    m.clientErrors.Load(),
		InjectedErrors:  m.injectedErrors.Load(),
		WritesAccepted:  m.accepted.Load(),
		WritesRejected:  m.rejected.Load(),
		EchoesPublished: m.published.Load(),
		PublishFailures: m.publishFailures.Load(),
	}
}
