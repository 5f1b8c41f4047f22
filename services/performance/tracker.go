// Package performance tracks rolling per-instance request statistics used
// by the registry and the load balancing strategies.
package performance

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Arashek/ADE-stable-1.0-sub004/models"
)

const (
	// healthScoreAlpha is the EMA smoothing factor for the health score
	healthScoreAlpha = 0.1

	// DefaultMaxConsecutiveFailures is the availability gate: an instance
	// with this many failures in a row is treated as unavailable
	DefaultMaxConsecutiveFailures = 3
)

// Tracker records request outcomes per instance. All methods are safe for
// concurrent use; recording never returns an error.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*models.PerformanceRecord
	window  int
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures a Tracker
type Option func(*Tracker)

// WithWindow overrides the latency ring buffer capacity
func WithWindow(window int) Option {
	return func(t *Tracker) {
		if window > 0 {
			t.window = window
		}
	}
}

// WithClock overrides the time source, for deterministic tests
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker with the default latency window
func NewTracker(logger *zap.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		records: make(map[string]*models.PerformanceRecord),
		window:  models.DefaultLatencyWindow,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordSuccess records a successful request with its latency and
// optional token/cost usage
func (t *Tracker) RecordSuccess(instanceID string, latency time.Duration, tokens int64, cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.record(instanceID)
	rec.SuccessCount++
	rec.TotalRequests++
	rec.ConsecutiveFailures = 0
	rec.TotalLatency += latency
	rec.TotalTokens += tokens
	rec.TotalCost += cost
	rec.LastSuccessAt = t.now()
	rec.HealthScore = (1-healthScoreAlpha)*rec.HealthScore + healthScoreAlpha
	rec.PushLatency(latency)
}

// RecordFailure records a failed request. Latency may be zero when the
// request never produced a response.
func (t *Tracker) RecordFailure(instanceID string, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.record(instanceID)
	rec.FailureCount++
	rec.TotalRequests++
	rec.ConsecutiveFailures++
	rec.LastFailureAt = t.now()
	rec.HealthScore = (1 - healthScoreAlpha) * rec.HealthScore
	if latency > 0 {
		rec.TotalLatency += latency
		rec.PushLatency(latency)
	}

	if rec.ConsecutiveFailures == DefaultMaxConsecutiveFailures {
		t.logger.Warn("instance reached consecutive failure gate",
			zap.String("instance_id", instanceID),
			zap.Int("consecutive_failures", rec.ConsecutiveFailures))
	}
}

// Stats returns a copy of the record for an instance. The copy includes a
// snapshot of the latency window, so callers can read it without holding
// the tracker lock.
func (t *Tracker) Stats(instanceID string) *models.PerformanceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[instanceID]
	if !ok {
		return models.NewPerformanceRecord(t.window)
	}
	return snapshot(rec)
}

// IsAvailable reports whether an instance is below the consecutive
// failure gate
func (t *Tracker) IsAvailable(instanceID string, maxConsecutiveFailures int) bool {
	if maxConsecutiveFailures <= 0 {
		maxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[instanceID]
	if !ok {
		return true
	}
	return rec.ConsecutiveFailures < maxConsecutiveFailures
}

// Attach binds an instance's performance record to the tracker so that
// strategies reading the instance see live statistics
func (t *Tracker) Attach(instance *models.Instance) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if instance.Performance == nil {
		instance.Performance = models.NewPerformanceRecord(t.window)
	}
	t.records[instance.ID] = instance.Performance
}

// Forget discards all statistics for an instance
func (t *Tracker) Forget(instanceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.records, instanceID)
}

// record returns the live record for an instance, creating it on first use.
// Caller must hold the write lock.
func (t *Tracker) record(instanceID string) *models.PerformanceRecord {
	rec, ok := t.records[instanceID]
	if !ok {
		rec = models.NewPerformanceRecord(t.window)
		t.records[instanceID] = rec
	}
	return rec
}

// snapshot copies a record including its latency window
func snapshot(rec *models.PerformanceRecord) *models.PerformanceRecord {
	out := models.NewPerformanceRecord(rec.WindowSize())
	out.SuccessCount = rec.SuccessCount
	out.FailureCount = rec.FailureCount
	out.ConsecutiveFailures = rec.ConsecutiveFailures
	out.TotalLatency = rec.TotalLatency
	out.TotalCost = rec.TotalCost
	out.TotalTokens = rec.TotalTokens
	out.TotalRequests = rec.TotalRequests
	out.HealthScore = rec.HealthScore
	out.LastSuccessAt = rec.LastSuccessAt
	out.LastFailureAt = rec.LastFailureAt
	out.ResponseTimes = append(out.ResponseTimes, rec.ResponseTimes...)
	return out
}
