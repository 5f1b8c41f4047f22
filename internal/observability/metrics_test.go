package observability

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryMetrics_Counters(t *testing.T) {
	m := NewInMemoryMetrics()

	m.RecordRequest("i-1")
	m.RecordRequest("i-2")
	m.RecordError("i-1")
	m.RecordCircuitOpen("i-1")
	m.SetActiveInstances(2)

	assert.Equal(t, int64(2), m.Requests())
	assert.Equal(t, int64(1), m.Errors())
	assert.Equal(t, int64(1), m.CircuitOpens())
	assert.Equal(t, int64(2), m.ActiveInstances())
}

func TestInMemoryMetrics_AvgLatency(t *testing.T) {
	m := NewInMemoryMetrics()

	assert.Equal(t, time.Duration(0), m.AvgLatency())

	m.RecordLatency("i-1", 100*time.Millisecond)
	m.RecordLatency("i-1", 300*time.Millisecond)

	assert.Equal(t, 200*time.Millisecond, m.AvgLatency())
}

func TestInMemoryMetrics_ConcurrentUse(t *testing.T) {
	m := NewInMemoryMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordRequest("i-1")
			m.RecordLatency("i-1", time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), m.Requests())
	assert.Equal(t, time.Millisecond, m.AvgLatency())
}
