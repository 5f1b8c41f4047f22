package models

import (
	"time"
)

// InstanceStatus represents the lifecycle state of a provider instance
type InstanceStatus string

const (
	// StatusStarting is the initial state after registration, before the
	// first successful health probe
	StatusStarting InstanceStatus = "starting"

	// StatusHealthy means the instance responded to its last health probe
	StatusHealthy InstanceStatus = "healthy"

	// StatusUnhealthy means the last health probe failed or timed out
	StatusUnhealthy InstanceStatus = "unhealthy"

	// StatusStopping means the instance is draining active connections
	// before removal
	StatusStopping InstanceStatus = "stopping"

	// StatusCircuitOpen means the circuit breaker has isolated the instance
	StatusCircuitOpen InstanceStatus = "circuit_open"
)

// Instance represents a single routable provider/backend instance
type Instance struct {
	// ID uniquely identifies the instance within a registry
	ID string `json:"id"`

	// Type is the provider type (e.g., "openai", "local")
	Type string `json:"type"`

	// Capabilities maps capability names to confidence scores in [0,1]
	Capabilities map[string]float64 `json:"capabilities"`

	// Endpoint is the instance address (host:port or base URL)
	Endpoint string `json:"endpoint"`

	// Status is the current lifecycle state
	Status InstanceStatus `json:"status"`

	// Weight is the relative selection weight (>= 0, default 1.0)
	Weight float64 `json:"weight"`

	// ActiveConnections counts in-flight requests routed to this instance
	ActiveConnections int64 `json:"active_connections"`

	// Performance holds rolling success/failure/latency/cost statistics
	Performance *PerformanceRecord `json:"performance"`

	// LastHeartbeat is the time of the last successful health probe
	LastHeartbeat time.Time `json:"last_heartbeat"`

	// LastUsed is the time this instance was last selected for a request
	LastUsed time.Time `json:"last_used"`

	// Metadata holds arbitrary registration metadata
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewInstance creates an instance in the Starting state with default weight
func NewInstance(id, instanceType, endpoint string, capabilities map[string]float64) *Instance {
	caps := make(map[string]float64, len(capabilities))
	for name, score := range capabilities {
		caps[name] = clampScore(score)
	}
	return &Instance{
		ID:           id,
		Type:         instanceType,
		Capabilities: caps,
		Endpoint:     endpoint,
		Status:       StatusStarting,
		Weight:       1.0,
		Performance:  NewPerformanceRecord(DefaultLatencyWindow),
	}
}

// HasCapability reports whether the instance declares the given capability
func (i *Instance) HasCapability(name string) bool {
	_, ok := i.Capabilities[name]
	return ok
}

// CapabilityScore returns the declared confidence score for a capability,
// or 0 when the capability is not declared
func (i *Instance) CapabilityScore(name string) float64 {
	return i.Capabilities[name]
}

// IsRoutable reports whether the instance status allows new traffic.
// Circuit breaker state is checked separately by the registry.
func (i *Instance) IsRoutable() bool {
	return i.Status == StatusHealthy
}

// clampScore bounds a capability score to [0,1]
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
