// Package breaker implements the per-instance failure isolation state
// machine used by the registry.
//
// The breaker has two states: Closed and Open. It opens after a
// configurable number of consecutive failures and closes again lazily the
// first time CanExecute is called after the reset timeout has elapsed.
// There is no trial-limited half-open state; one elapsed timeout fully
// closes the breaker.
package breaker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultFailureThreshold opens the breaker after this many failures
	DefaultFailureThreshold = 5

	// DefaultResetTimeout is the cool-down before the breaker closes again
	DefaultResetTimeout = 60 * time.Second
)

// CircuitBreaker guards a single instance
type CircuitBreaker struct {
	mu               sync.Mutex
	failureThreshold int
	resetTimeout     time.Duration
	failureCount     int
	lastFailureAt    time.Time
	open             bool
	now              func() time.Time
	onOpen           func()
}

// New creates a closed breaker with the given thresholds. Non-positive
// values fall back to the defaults.
func New(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if resetTimeout <= 0 {
		resetTimeout = DefaultResetTimeout
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
}

// CanExecute reports whether a request may be routed to the instance.
// When the breaker is open and the reset timeout has elapsed, the breaker
// closes and the failure count resets; the call is side-effecting.
func (b *CircuitBreaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.now().Sub(b.lastFailureAt) >= b.resetTimeout {
		b.open = false
		b.failureCount = 0
		return true
	}
	return false
}

// RecordFailure counts a failure, opening the breaker once the threshold
// is reached
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	b.failureCount++
	b.lastFailureAt = b.now()
	opened := false
	if b.failureCount >= b.failureThreshold && !b.open {
		b.open = true
		opened = true
	}
	onOpen := b.onOpen
	b.mu.Unlock()

	if opened && onOpen != nil {
		onOpen()
	}
}

// RecordSuccess fully closes the breaker and resets the failure count
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	b.open = false
}

// IsOpen reports the current state without side effects
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// FailureCount returns the current failure count
func (b *CircuitBreaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

// Manager holds one breaker per instance
type Manager struct {
	mu               sync.RWMutex
	breakers         map[string]*CircuitBreaker
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time
	logger           *zap.Logger
	onOpen           func(instanceID string)
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithClock overrides the time source for all breakers, for tests
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithOnOpen registers a hook invoked when a breaker transitions to open.
// The hook must not block.
func WithOnOpen(fn func(instanceID string)) ManagerOption {
	return func(m *Manager) { m.onOpen = fn }
}

// NewManager creates a breaker manager with shared thresholds
func NewManager(failureThreshold int, resetTimeout time.Duration, logger *zap.Logger, opts ...ManagerOption) *Manager {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if resetTimeout <= 0 {
		resetTimeout = DefaultResetTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		breakers:         make(map[string]*CircuitBreaker),
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
		logger:           logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Breaker returns the breaker for an instance, creating it on first use
func (m *Manager) Breaker(instanceID string) *CircuitBreaker {
	m.mu.RLock()
	b, ok := m.breakers[instanceID]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[instanceID]; ok {
		return b
	}
	b = New(m.failureThreshold, m.resetTimeout)
	b.now = m.now
	id := instanceID
	b.onOpen = func() {
		m.logger.Warn("circuit breaker opened", zap.String("instance_id", id))
		if m.onOpen != nil {
			m.onOpen(id)
		}
	}
	m.breakers[instanceID] = b
	return b
}

// CanExecute reports whether routing to the instance is allowed
func (m *Manager) CanExecute(instanceID string) bool {
	return m.Breaker(instanceID).CanExecute()
}

// RecordFailure records a failure against an instance's breaker
func (m *Manager) RecordFailure(instanceID string) {
	m.Breaker(instanceID).RecordFailure()
}

// RecordSuccess closes an instance's breaker
func (m *Manager) RecordSuccess(instanceID string) {
	m.Breaker(instanceID).RecordSuccess()
}

// Remove discards the breaker for an instance
func (m *Manager) Remove(instanceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakers, instanceID)
}
