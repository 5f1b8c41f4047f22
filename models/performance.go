package models

import (
	"time"
)

// DefaultLatencyWindow is the default capacity of the latency ring buffer
const DefaultLatencyWindow = 100

// PerformanceRecord holds rolling statistics for a single instance.
// It is a plain data holder; synchronization is owned by the
// performance tracker that mutates it.
type PerformanceRecord struct {
	// SuccessCount is the total number of successful requests
	SuccessCount int64 `json:"success_count"`

	// FailureCount is the total number of failed requests
	FailureCount int64 `json:"failure_count"`

	// ConsecutiveFailures counts failures since the last success
	ConsecutiveFailures int `json:"consecutive_failures"`

	// TotalLatency is the sum of observed request latencies
	TotalLatency time.Duration `json:"total_latency"`

	// TotalCost is the accumulated cost across requests
	TotalCost float64 `json:"total_cost"`

	// TotalTokens is the accumulated token usage across requests
	TotalTokens int64 `json:"total_tokens"`

	// TotalRequests is the total number of recorded requests
	TotalRequests int64 `json:"total_requests"`

	// HealthScore is an exponential moving average (alpha=0.1) of
	// request outcomes, 1.0 = all recent requests succeeded
	HealthScore float64 `json:"health_score"`

	// LastSuccessAt is the time of the last successful request
	LastSuccessAt time.Time `json:"last_success_at"`

	// LastFailureAt is the time of the last failed request
	LastFailureAt time.Time `json:"last_failure_at"`

	// ResponseTimes is a bounded FIFO window of recent request latencies
	ResponseTimes []time.Duration `json:"response_times"`

	// windowSize is the ring buffer capacity; oldest entries are evicted
	windowSize int
}

// NewPerformanceRecord creates an empty record with the given latency
// window capacity. A non-positive window falls back to the default.
func NewPerformanceRecord(window int) *PerformanceRecord {
	if window <= 0 {
		window = DefaultLatencyWindow
	}
	return &PerformanceRecord{
		HealthScore:   1.0,
		ResponseTimes: make([]time.Duration, 0, window),
		windowSize:    window,
	}
}

// PushLatency appends a latency sample, evicting the oldest sample when
// the window is full
func (r *PerformanceRecord) PushLatency(latency time.Duration) {
	if len(r.ResponseTimes) >= r.windowSize {
		r.ResponseTimes = r.ResponseTimes[1:]
	}
	r.ResponseTimes = append(r.ResponseTimes, latency)
}

// SuccessRate returns successes / (successes + failures), or 1.0 when no
// requests have been recorded
func (r *PerformanceRecord) SuccessRate() float64 {
	total := r.SuccessCount + r.FailureCount
	if total == 0 {
		return 1.0
	}
	return float64(r.SuccessCount) / float64(total)
}

// ErrorRate returns failures / (successes + failures), or 0 when no
// requests have been recorded
func (r *PerformanceRecord) ErrorRate() float64 {
	total := r.SuccessCount + r.FailureCount
	if total == 0 {
		return 0
	}
	return float64(r.FailureCount) / float64(total)
}

// AvgLatency returns the mean of the latency window, or 0 without samples
func (r *PerformanceRecord) AvgLatency() time.Duration {
	if len(r.ResponseTimes) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range r.ResponseTimes {
		sum += d
	}
	return sum / time.Duration(len(r.ResponseTimes))
}

// AvgCost returns the mean cost per request, or 0 without requests
func (r *PerformanceRecord) AvgCost() float64 {
	if r.TotalRequests == 0 {
		return 0
	}
	return r.TotalCost / float64(r.TotalRequests)
}

// WindowSize returns the configured latency window capacity
func (r *PerformanceRecord) WindowSize() int {
	return r.windowSize
}
