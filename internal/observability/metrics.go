package observability

import (
	"sync/atomic"
	"time"
)

// Metrics collects routing metrics. All methods are fire-and-forget and
// must never block the caller.
type Metrics interface {
	RecordRequest(instanceID string)
	RecordLatency(instanceID string, latency time.Duration)
	RecordError(instanceID string)
	RecordCircuitOpen(instanceID string)
	SetActiveInstances(count int)
}

// NoopMetrics discards all measurements
type NoopMetrics struct{}

func (NoopMetrics) RecordRequest(string)                 {}
func (NoopMetrics) RecordLatency(string, time.Duration)  {}
func (NoopMetrics) RecordError(string)                   {}
func (NoopMetrics) RecordCircuitOpen(string)             {}
func (NoopMetrics) SetActiveInstances(int)               {}

// InMemoryMetrics is an atomic counter sink, safe for concurrent use.
// Per-instance breakdowns are intentionally not kept here; callers that
// need them read the performance tracker instead.
type InMemoryMetrics struct {
	requests        atomic.Int64
	errors          atomic.Int64
	circuitOpens    atomic.Int64
	totalLatencyNs  atomic.Int64
	latencySamples  atomic.Int64
	activeInstances atomic.Int64
}

// NewInMemoryMetrics creates an empty in-memory sink
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{}
}

func (m *InMemoryMetrics) RecordRequest(string) {
	m.requests.Add(1)
}

func (m *InMemoryMetrics) RecordLatency(_ string, latency time.Duration) {
	m.totalLatencyNs.Add(int64(latency))
	m.latencySamples.Add(1)
}

func (m *InMemoryMetrics) RecordError(string) {
	m.errors.Add(1)
}

func (m *InMemoryMetrics) RecordCircuitOpen(string) {
	m.circuitOpens.Add(1)
}

func (m *InMemoryMetrics) SetActiveInstances(count int) {
	m.activeInstances.Store(int64(count))
}

// Requests returns the total request count
func (m *InMemoryMetrics) Requests() int64 { return m.requests.Load() }

// Errors returns the total error count
func (m *InMemoryMetrics) Errors() int64 { return m.errors.Load() }

// CircuitOpens returns the number of recorded breaker-open events
func (m *InMemoryMetrics) CircuitOpens() int64 { return m.circuitOpens.Load() }

// ActiveInstances returns the last reported active instance count
func (m *InMemoryMetrics) ActiveInstances() int64 { return m.activeInstances.Load() }

// AvgLatency returns the mean of all recorded latencies
func (m *InMemoryMetrics) AvgLatency() time.Duration {
	samples := m.latencySamples.Load()
	if samples == 0 {
		return 0
	}
	return time.Duration(m.totalLatencyNs.Load() / samples)
}
