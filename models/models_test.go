package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewInstance_ClampsCapabilityScores(t *testing.T) {
	inst := NewInstance("i-1", "openai", "https://api.example.com", map[string]float64{
		"code_generation": 1.4,
		"chat":            -0.2,
		"summarization":   0.7,
	})

	assert.Equal(t, 1.0, inst.Capabilities["code_generation"])
	assert.Equal(t, 0.0, inst.Capabilities["chat"])
	assert.Equal(t, 0.7, inst.Capabilities["summarization"])
	assert.Equal(t, StatusStarting, inst.Status)
	assert.Equal(t, 1.0, inst.Weight)
}

func TestInstance_HasCapability(t *testing.T) {
	inst := NewInstance("i-1", "local", "localhost:9000", map[string]float64{"chat": 0.9})

	assert.True(t, inst.HasCapability("chat"))
	assert.False(t, inst.HasCapability("vision"))
	assert.Equal(t, 0.9, inst.CapabilityScore("chat"))
	assert.Equal(t, 0.0, inst.CapabilityScore("vision"))
}

func TestPerformanceRecord_PushLatency_EvictsOldest(t *testing.T) {
	rec := NewPerformanceRecord(3)

	rec.PushLatency(10 * time.Millisecond)
	rec.PushLatency(20 * time.Millisecond)
	rec.PushLatency(30 * time.Millisecond)
	rec.PushLatency(40 * time.Millisecond)

	assert.Len(t, rec.ResponseTimes, 3)
	assert.Equal(t, 20*time.Millisecond, rec.ResponseTimes[0])
	assert.Equal(t, 40*time.Millisecond, rec.ResponseTimes[2])
}

func TestPerformanceRecord_Rates(t *testing.T) {
	rec := NewPerformanceRecord(0)

	t.Run("no requests", func(t *testing.T) {
		assert.Equal(t, 1.0, rec.SuccessRate())
		assert.Equal(t, 0.0, rec.ErrorRate())
		assert.Equal(t, time.Duration(0), rec.AvgLatency())
	})

	t.Run("mixed outcomes", func(t *testing.T) {
		rec.SuccessCount = 8
		rec.FailureCount = 2
		assert.Equal(t, 0.8, rec.SuccessRate())
		assert.Equal(t, 0.2, rec.ErrorRate())
	})
}

func TestPerformanceRecord_AvgLatency(t *testing.T) {
	rec := NewPerformanceRecord(10)
	rec.PushLatency(100 * time.Millisecond)
	rec.PushLatency(300 * time.Millisecond)

	assert.Equal(t, 200*time.Millisecond, rec.AvgLatency())
}

func TestNewServiceRegistration_Defaults(t *testing.T) {
	reg := NewServiceRegistration("inference", "1.2.0")

	assert.Equal(t, DefaultHealthCheckPath, reg.HealthCheckPath)
	assert.Equal(t, DefaultHealthCheckInterval, reg.HealthCheckInterval)
	assert.Equal(t, DefaultHealthCheckTimeout, reg.HealthCheckTimeout)
	assert.Empty(t, reg.Instances)
}
