package breaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// fakeClock is a controllable time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	b := New(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.CanExecute())
	assert.False(t, b.IsOpen())

	b.RecordFailure()
	assert.False(t, b.CanExecute())
	assert.True(t, b.IsOpen())
}

func TestCircuitBreaker_LazyResetAfterTimeout(t *testing.T) {
	clock := newFakeClock()
	b := New(2, time.Minute)
	b.now = clock.Now

	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.CanExecute())

	clock.Advance(59 * time.Second)
	assert.False(t, b.CanExecute())

	clock.Advance(time.Second)
	assert.True(t, b.CanExecute())
	assert.Equal(t, 0, b.FailureCount())
	assert.False(t, b.IsOpen())
}

func TestCircuitBreaker_SuccessFullyCloses(t *testing.T) {
	b := New(2, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.RecordSuccess()
	assert.False(t, b.IsOpen())
	assert.Equal(t, 0, b.FailureCount())
	assert.True(t, b.CanExecute())
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	b := New(0, 0)

	for i := 0; i < DefaultFailureThreshold-1; i++ {
		b.RecordFailure()
	}
	assert.True(t, b.CanExecute())
	b.RecordFailure()
	assert.False(t, b.CanExecute())
}

func TestManager_PerInstanceIsolation(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	m := NewManager(2, time.Minute, logger)

	m.RecordFailure("a")
	m.RecordFailure("a")

	assert.False(t, m.CanExecute("a"))
	assert.True(t, m.CanExecute("b"))
}

func TestManager_OnOpenHook(t *testing.T) {
	var mu sync.Mutex
	var opened []string

	m := NewManager(1, time.Minute, zap.NewNop(), WithOnOpen(func(id string) {
		mu.Lock()
		opened = append(opened, id)
		mu.Unlock()
	}))

	m.RecordFailure("a")
	m.RecordFailure("a") // already open, hook fires once

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a"}, opened)
}

func TestManager_Remove(t *testing.T) {
	m := NewManager(1, time.Minute, zap.NewNop())

	m.RecordFailure("a")
	assert.False(t, m.CanExecute("a"))

	m.Remove("a")
	assert.True(t, m.CanExecute("a"))
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager(1000, time.Minute, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordFailure("a")
			m.CanExecute("a")
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, m.Breaker("a").FailureCount())
}
