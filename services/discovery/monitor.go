// Package discovery maintains instance liveness via periodic health
// probes and manages safe instance removal through connection draining.
package discovery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Arashek/ADE-stable-1.0-sub004/models"
	"github.com/Arashek/ADE-stable-1.0-sub004/repositories"
	"github.com/Arashek/ADE-stable-1.0-sub004/services"
)

// DefaultDrainPollInterval is how often the drain loop re-checks the
// active connection count of a stopping instance
const DefaultDrainPollInterval = 100 * time.Millisecond

// Monitor tracks service registrations, probes their instances on a
// fixed interval, and drains instances on deregistration. All background
// loops stop together when the context passed to Start is cancelled.
type Monitor struct {
	mu        sync.RWMutex
	services  map[string]*models.ServiceRegistration
	instances map[string]*instanceRef

	prober            Prober
	store             repositories.ProviderStore
	statusHook        func(instanceID string, status models.InstanceStatus)
	logger            *zap.Logger
	now               func() time.Time
	drainPollInterval time.Duration
	interval          time.Duration
	timeout           time.Duration
	path              string
	retries           int

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// instanceRef ties an instance back to its owning service registration.
// Observed refs track instances whose lifecycle belongs to another
// component; they are probed but never drained or persisted.
type instanceRef struct {
	instance *models.Instance
	service  *models.ServiceRegistration
	recordID uuid.UUID
	observed bool
}

// MonitorOption configures a Monitor
type MonitorOption func(*Monitor)

// WithProber overrides the health probe transport
func WithProber(p Prober) MonitorOption {
	return func(m *Monitor) { m.prober = p }
}

// WithStore enables best-effort persistence of registrations. Store
// failures are logged; the in-memory state stays authoritative.
func WithStore(store repositories.ProviderStore) MonitorOption {
	return func(m *Monitor) { m.store = store }
}

// WithStatusHook registers a callback invoked with the outcome of every
// probe. Hooks must not block; they run on the probe goroutine.
func WithStatusHook(hook func(instanceID string, status models.InstanceStatus)) MonitorOption {
	return func(m *Monitor) { m.statusHook = hook }
}

// WithClock overrides the time source, for deterministic tests
func WithClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

// WithInterval overrides the probe loop interval
func WithInterval(interval time.Duration) MonitorOption {
	return func(m *Monitor) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithTimeout overrides the per-probe timeout
func WithTimeout(timeout time.Duration) MonitorOption {
	return func(m *Monitor) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithCheckPath overrides the probe endpoint path for new registrations
func WithCheckPath(path string) MonitorOption {
	return func(m *Monitor) {
		if path != "" {
			m.path = path
		}
	}
}

// WithProbeRetries sets how many times a failed probe is retried within a
// round before the instance is marked unhealthy
func WithProbeRetries(retries int) MonitorOption {
	return func(m *Monitor) {
		if retries > 0 {
			m.retries = retries
		}
	}
}

// WithDrainPollInterval overrides the drain loop poll interval
func WithDrainPollInterval(interval time.Duration) MonitorOption {
	return func(m *Monitor) {
		if interval > 0 {
			m.drainPollInterval = interval
		}
	}
}

// NewMonitor creates a monitor with default probe settings
func NewMonitor(logger *zap.Logger, opts ...MonitorOption) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{
		services:          make(map[string]*models.ServiceRegistration),
		instances:         make(map[string]*instanceRef),
		prober:            NewHTTPProber(nil),
		logger:            logger,
		now:               time.Now,
		drainPollInterval: DefaultDrainPollInterval,
		interval:          models.DefaultHealthCheckInterval,
		timeout:           models.DefaultHealthCheckTimeout,
		path:              models.DefaultHealthCheckPath,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds an instance under a service registration and returns it.
// The id is derived from the service name, address, and registration time
// so repeated registrations of the same address get distinct ids.
func (m *Monitor) Register(name, version, host string, port int, metadata map[string]string) *models.Instance {
	endpoint := fmt.Sprintf("%s:%d", host, port)
	id := instanceID(name, endpoint, m.now())

	inst := models.NewInstance(id, name, endpoint, nil)
	inst.Metadata = metadata
	recordID := uuid.New()

	m.mu.Lock()
	svc := m.service(name, version)
	svc.Instances[id] = inst
	m.instances[id] = &instanceRef{instance: inst, service: svc, recordID: recordID}
	m.mu.Unlock()

	m.logger.Info("instance registered",
		zap.String("service", name),
		zap.String("instance_id", id),
		zap.String("endpoint", endpoint))

	m.persistAsync(recordID, id, name)
	return inst
}

// service returns the registration for a name, creating it with the
// monitor's probe settings on first use. Caller must hold the write lock.
func (m *Monitor) service(name, version string) *models.ServiceRegistration {
	svc, ok := m.services[name]
	if !ok {
		svc = models.NewServiceRegistration(name, version)
		svc.HealthCheckInterval = m.interval
		svc.HealthCheckTimeout = m.timeout
		svc.HealthCheckPath = m.path
		svc.RetryCount = m.retries
		m.services[name] = svc
	}
	return svc
}

// Observe adds an externally managed instance to the probe set. The
// monitor probes it like a registered instance and reports outcomes
// through the status hook, but does not own its lifecycle: Forget removes
// it without draining and nothing is persisted for it.
func (m *Monitor) Observe(instanceID, serviceName, endpoint string) {
	inst := models.NewInstance(instanceID, serviceName, endpoint, nil)

	m.mu.Lock()
	svc := m.service(serviceName, "")
	svc.Instances[instanceID] = inst
	m.instances[instanceID] = &instanceRef{instance: inst, service: svc, observed: true}
	m.mu.Unlock()

	m.logger.Info("instance observed",
		zap.String("service", serviceName),
		zap.String("instance_id", instanceID),
		zap.String("endpoint", endpoint))
}

// Forget drops an instance from the probe set without draining it
func (m *Monitor) Forget(instanceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.instances[instanceID]
	if !ok {
		return
	}
	delete(ref.service.Instances, instanceID)
	delete(m.instances, instanceID)
}

// persistAsync writes the registration record in the background
func (m *Monitor) persistAsync(recordID uuid.UUID, instanceID, serviceName string) {
	if m.store == nil {
		return
	}
	go func() {
		now := m.now()
		record := &models.ProviderRecord{
			ID:         recordID,
			InstanceID: instanceID,
			Type:       serviceName,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.store.Create(ctx, record); err != nil {
			m.logger.Error("persisting registration failed",
				zap.String("instance_id", instanceID),
				zap.Error(services.WrapPersistence("creating registration record", err)))
		}
	}()
}

// Start launches the background probe loop. It returns immediately; the
// loop stops when ctx is cancelled. Calling Start twice restarts the loop.
func (m *Monitor) Start(ctx context.Context) {
	m.Stop()

	m.mu.Lock()
	m.runCtx, m.runCancel = context.WithCancel(ctx)
	runCtx := m.runCtx
	m.mu.Unlock()

	m.wg.Add(1)
	go m.probeLoop(runCtx)
}

// Stop cancels the probe loop and any in-flight drain waits started from
// it, then waits for them to exit
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.runCancel
	m.runCancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// probeLoop runs probe rounds on the configured interval. Each round is
// error-isolated; a failing probe never terminates the loop.
func (m *Monitor) probeLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow probes every instance of every registered service once.
// Exported so callers and tests can force a probe round.
func (m *Monitor) CheckNow(ctx context.Context) {
	m.mu.RLock()
	refs := make([]*instanceRef, 0, len(m.instances))
	for _, ref := range m.instances {
		refs = append(refs, ref)
	}
	m.mu.RUnlock()

	for _, ref := range refs {
		m.probeInstance(ctx, ref)
	}
}

// probeInstance checks one instance and updates its status. Stopping
// instances are skipped; they are on their way out. A failed probe is
// retried up to the service's retry count before the instance is marked
// unhealthy.
func (m *Monitor) probeInstance(ctx context.Context, ref *instanceRef) {
	m.mu.RLock()
	status := ref.instance.Status
	endpoint := ref.instance.Endpoint
	path := ref.service.HealthCheckPath
	timeout := ref.service.HealthCheckTimeout
	retries := ref.service.RetryCount
	m.mu.RUnlock()

	if status == models.StatusStopping {
		return
	}

	url := probeURL(endpoint, path)
	result := m.prober.Probe(ctx, url, timeout)
	for attempt := 0; !result.OK && attempt < retries && ctx.Err() == nil; attempt++ {
		result = m.prober.Probe(ctx, url, timeout)
	}

	m.mu.Lock()
	if ref.instance.Status == models.StatusStopping {
		m.mu.Unlock()
		return
	}
	var next models.InstanceStatus
	if result.OK {
		next = models.StatusHealthy
		ref.instance.LastHeartbeat = m.now()
	} else {
		next = models.StatusUnhealthy
	}
	ref.instance.Status = next
	m.mu.Unlock()

	if !result.OK {
		err := services.NewDomainError(services.ErrorTypeHealthProbe, "health probe failed", result.Err).
			WithDetail("status_code", result.StatusCode)
		m.logger.Warn("marking instance unhealthy",
			zap.String("instance_id", ref.instance.ID),
			zap.Int("status_code", result.StatusCode),
			zap.Error(err))
	}
	if m.statusHook != nil {
		m.statusHook(ref.instance.ID, next)
	}
}

// Deregister marks an instance as stopping, waits for its active
// connections to drain, then removes it. The wait is bounded by ctx;
// on cancellation the instance stays in Stopping state and is removed
// without waiting further.
func (m *Monitor) Deregister(ctx context.Context, instanceID string) error {
	m.mu.Lock()
	ref, ok := m.instances[instanceID]
	if !ok {
		m.mu.Unlock()
		return services.ErrInstanceNotFound
	}
	ref.instance.Status = models.StatusStopping
	m.mu.Unlock()

	m.logger.Info("draining instance", zap.String("instance_id", instanceID))

	ticker := time.NewTicker(m.drainPollInterval)
	defer ticker.Stop()

	for {
		m.mu.RLock()
		remaining := ref.instance.ActiveConnections
		m.mu.RUnlock()
		if remaining == 0 {
			break
		}

		select {
		case <-ctx.Done():
			m.logger.Warn("drain wait cancelled, removing instance with active connections",
				zap.String("instance_id", instanceID),
				zap.Int64("active_connections", remaining))
			m.remove(ref)
			return ctx.Err()
		case <-ticker.C:
		}
	}

	m.remove(ref)
	m.logger.Info("instance deregistered", zap.String("instance_id", instanceID))
	return nil
}

// remove deletes the instance from the monitor's indexes and, best
// effort, from the store
func (m *Monitor) remove(ref *instanceRef) {
	m.mu.Lock()
	delete(ref.service.Instances, ref.instance.ID)
	delete(m.instances, ref.instance.ID)
	m.mu.Unlock()

	if m.store == nil || ref.observed {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.store.Delete(ctx, ref.recordID); err != nil {
			m.logger.Error("deleting registration record failed",
				zap.String("instance_id", ref.instance.ID),
				zap.Error(services.WrapPersistence("deleting registration record", err)))
		}
	}()
}

// RecordConnection increments the active connection count for an instance
func (m *Monitor) RecordConnection(instanceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ref, ok := m.instances[instanceID]; ok {
		ref.instance.ActiveConnections++
	}
}

// RemoveConnection decrements the active connection count, never below zero
func (m *Monitor) RemoveConnection(instanceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ref, ok := m.instances[instanceID]; ok && ref.instance.ActiveConnections > 0 {
		ref.instance.ActiveConnections--
	}
}

// Instance returns the instance with the given id, or nil
func (m *Monitor) Instance(instanceID string) *models.Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ref, ok := m.instances[instanceID]; ok {
		return ref.instance
	}
	return nil
}

// InstancesForService returns a snapshot of a service's instances
func (m *Monitor) InstancesForService(name string) []*models.Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.services[name]
	if !ok {
		return nil
	}
	out := make([]*models.Instance, 0, len(svc.Instances))
	for _, inst := range svc.Instances {
		out = append(out, inst)
	}
	return out
}

// instanceID derives a unique id from the service name, endpoint, and
// registration timestamp
func instanceID(name, endpoint string, at time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", name, endpoint, at.UnixNano())))
	return hex.EncodeToString(sum[:])[:16]
}
