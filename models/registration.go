package models

import (
	"time"
)

const (
	// DefaultHealthCheckInterval is how often instances are probed
	DefaultHealthCheckInterval = 30 * time.Second

	// DefaultHealthCheckTimeout bounds a single health probe
	DefaultHealthCheckTimeout = 5 * time.Second

	// DefaultHealthCheckPath is the probe endpoint path
	DefaultHealthCheckPath = "/health"
)

// ServiceRegistration groups the instances of one logical service together
// with its health check configuration
type ServiceRegistration struct {
	// Name is the logical service name
	Name string `json:"name"`

	// Version is the service version string
	Version string `json:"version"`

	// Instances maps instance id to instance
	Instances map[string]*Instance `json:"instances"`

	// HealthCheckPath is the probe endpoint path
	HealthCheckPath string `json:"health_check_path"`

	// HealthCheckInterval is the delay between probe rounds
	HealthCheckInterval time.Duration `json:"health_check_interval"`

	// HealthCheckTimeout bounds a single probe request
	HealthCheckTimeout time.Duration `json:"health_check_timeout"`

	// RetryCount is the number of probe retries before marking unhealthy
	RetryCount int `json:"retry_count"`
}

// NewServiceRegistration creates a registration with default health
// check settings
func NewServiceRegistration(name, version string) *ServiceRegistration {
	return &ServiceRegistration{
		Name:                name,
		Version:             version,
		Instances:           make(map[string]*Instance),
		HealthCheckPath:     DefaultHealthCheckPath,
		HealthCheckInterval: DefaultHealthCheckInterval,
		HealthCheckTimeout:  DefaultHealthCheckTimeout,
	}
}
