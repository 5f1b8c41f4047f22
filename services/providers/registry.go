package providers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Arashek/ADE-stable-1.0-sub004/internal/cipher"
	"github.com/Arashek/ADE-stable-1.0-sub004/internal/observability"
	"github.com/Arashek/ADE-stable-1.0-sub004/models"
	"github.com/Arashek/ADE-stable-1.0-sub004/repositories"
	"github.com/Arashek/ADE-stable-1.0-sub004/services"
	"github.com/Arashek/ADE-stable-1.0-sub004/services/balancer"
	"github.com/Arashek/ADE-stable-1.0-sub004/services/breaker"
	"github.com/Arashek/ADE-stable-1.0-sub004/services/performance"
)

// RegisterOptions is the validated input to RegisterProvider
type RegisterOptions struct {
	// Type selects the provider builder
	Type string `validate:"required"`

	// Credential authenticates against the provider; never persisted or
	// logged in plaintext
	Credential string `validate:"required"`

	// Endpoint overrides the provider base URL
	Endpoint string

	// ModelMap maps logical model names to provider model ids
	ModelMap map[string]string

	// DefaultParameters holds provider default request parameters
	DefaultParameters map[string]interface{}

	// CapabilityScores maps capability names to confidence in [0,1]
	CapabilityScores map[string]float64 `validate:"required,dive,gte=0,lte=1"`

	// Weight is the relative selection weight; zero means default (1.0)
	Weight float64 `validate:"gte=0"`
}

// SelectOptions tunes a single selection call
type SelectOptions struct {
	// Strategy forces a specific load balancing strategy. Empty falls back
	// to the registry's default strategy, and composite scoring with the
	// Preset weights when no default is configured either.
	Strategy balancer.Strategy

	// Preset picks the composite scoring weights: "balanced" (default),
	// "performance", or "cost"
	Preset string

	// RequestKey is the affinity key for consistent hashing
	RequestKey string

	// Budget caps the estimated request cost in USD; zero means no cap
	Budget float64

	// Exclude removes one instance id from consideration
	Exclude string
}

// Selection is a routed choice: the instance plus the provider to call
type Selection struct {
	Instance *models.Instance
	Provider Provider
}

// entry pairs a provider with its routing instance and persisted record id
type entry struct {
	instance *models.Instance
	provider Provider
	recordID uuid.UUID
}

// Registry manages provider instances: registration, capability-scored
// selection, outcome bookkeeping, and fallback chains. All dependencies
// are injected; there is no package-level registry.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	order     []string // insertion order, for deterministic tie-breaks
	builders  map[string]Builder
	fallbacks map[string][]string

	tracker  *performance.Tracker
	breakers *breaker.Manager
	balancer *balancer.Balancer
	store    repositories.ProviderStore
	cipher   cipher.Cipher
	metrics  observability.Metrics
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time

	onRegister   func(*models.Instance)
	onUnregister func(instanceID string)

	defaultStrategy        balancer.Strategy
	maxConsecutiveFailures int
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithStore enables best-effort persistence of registrations. A cipher is
// required so credentials are encrypted at rest.
func WithStore(store repositories.ProviderStore, c cipher.Cipher) RegistryOption {
	return func(r *Registry) {
		r.store = store
		r.cipher = c
	}
}

// WithMetrics attaches an observability sink
func WithMetrics(m observability.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// WithClock overrides the time source, for deterministic tests
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithDefaultStrategy sets the strategy used when a selection call does
// not force one. Empty keeps composite scoring as the default.
func WithDefaultStrategy(s balancer.Strategy) RegistryOption {
	return func(r *Registry) { r.defaultStrategy = s }
}

// WithLifecycleHooks registers callbacks invoked after a provider is
// registered and after one is removed. The composition root uses them to
// enroll provider endpoints with the health monitor.
func WithLifecycleHooks(onRegister func(*models.Instance), onUnregister func(instanceID string)) RegistryOption {
	return func(r *Registry) {
		r.onRegister = onRegister
		r.onUnregister = onUnregister
	}
}

// WithMaxConsecutiveFailures overrides the availability gate
func WithMaxConsecutiveFailures(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxConsecutiveFailures = n
		}
	}
}

// NewRegistry creates a registry composing the tracker, breaker manager,
// and balancer. Nil components are replaced with defaults.
func NewRegistry(tracker *performance.Tracker, breakers *breaker.Manager, bal *balancer.Balancer, logger *zap.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracker == nil {
		tracker = performance.NewTracker(logger)
	}
	if breakers == nil {
		breakers = breaker.NewManager(0, 0, logger)
	}
	if bal == nil {
		bal = balancer.New()
	}
	r := &Registry{
		entries:                make(map[string]*entry),
		builders:               make(map[string]Builder),
		fallbacks:              make(map[string][]string),
		tracker:                tracker,
		breakers:               breakers,
		balancer:               bal,
		metrics:                observability.NoopMetrics{},
		logger:                 logger,
		validate:               validator.New(),
		now:                    time.Now,
		maxConsecutiveFailures: performance.DefaultMaxConsecutiveFailures,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterBuilder registers the constructor for a provider type
func (r *Registry) RegisterBuilder(providerType string, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[providerType] = builder
}

// RegisterProvider validates the options, builds and initializes the
// provider, and stores it for selection. The registration is persisted
// asynchronously with the credential encrypted; persistence failures are
// logged and never abort the registration.
func (r *Registry) RegisterProvider(ctx context.Context, opts RegisterOptions) (*models.Instance, error) {
	if err := r.validate.Struct(opts); err != nil {
		if strings.TrimSpace(opts.Credential) == "" {
			return nil, services.ErrMissingCredential
		}
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid registration options", err)
	}

	r.mu.RLock()
	builder, ok := r.builders[opts.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "no builder for provider type", nil).
			WithDetail("type", opts.Type)
	}

	id := opts.Type + "-" + uuid.NewString()[:8]
	provider, err := builder(id, Config{
		Credential:        opts.Credential,
		BaseURL:           opts.Endpoint,
		ModelMap:          opts.ModelMap,
		DefaultParameters: opts.DefaultParameters,
		Capabilities:      capabilityNames(opts.CapabilityScores),
	})
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeInitialization, "building provider failed", err)
	}

	if err := provider.Initialize(ctx); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeInitialization, "provider initialization failed", err).
			WithDetail("type", opts.Type)
	}

	inst := models.NewInstance(id, opts.Type, opts.Endpoint, opts.CapabilityScores)
	// a successful Initialize is the first health signal
	inst.Status = models.StatusHealthy
	inst.LastHeartbeat = r.now()
	if opts.Weight > 0 {
		inst.Weight = opts.Weight
	}
	recordID := uuid.New()

	r.mu.Lock()
	r.entries[id] = &entry{instance: inst, provider: provider, recordID: recordID}
	r.order = append(r.order, id)
	active := len(r.entries)
	r.mu.Unlock()

	r.tracker.Attach(inst)
	r.balancer.Invalidate()
	r.metrics.SetActiveInstances(active)

	r.logger.Info("provider registered",
		zap.String("instance_id", id),
		zap.String("type", opts.Type))

	r.persistAsync(recordID, id, opts)
	if r.onRegister != nil {
		r.onRegister(inst)
	}
	return inst, nil
}

// persistAsync writes the registration record in the background. The
// in-memory registry stays authoritative; store errors are only logged.
func (r *Registry) persistAsync(recordID uuid.UUID, instanceID string, opts RegisterOptions) {
	if r.store == nil {
		return
	}

	go func() {
		encrypted := ""
		if r.cipher != nil {
			var err error
			encrypted, err = r.cipher.Encrypt(opts.Credential)
			if err != nil {
				r.logger.Error("encrypting credential failed, skipping persist",
					zap.String("instance_id", instanceID), zap.Error(err))
				return
			}
		} else {
			r.logger.Warn("no cipher configured, skipping credential persist",
				zap.String("instance_id", instanceID))
			return
		}

		now := r.now()
		record := &models.ProviderRecord{
			ID:                  recordID,
			InstanceID:          instanceID,
			Type:                opts.Type,
			EncryptedCredential: encrypted,
			ModelMap:            opts.ModelMap,
			DefaultParameters:   opts.DefaultParameters,
			CapabilityScores:    opts.CapabilityScores,
			CreatedAt:           now,
			UpdatedAt:           now,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.store.Create(ctx, record); err != nil {
			r.logger.Error("persisting provider record failed",
				zap.String("instance_id", instanceID),
				zap.Error(services.WrapPersistence("creating provider record", err)))
		}
	}()
}

// UnregisterProvider removes a provider from memory and, best-effort,
// from the persistent store. Returns false when the id is unknown.
func (r *Registry) UnregisterProvider(ctx context.Context, instanceID string) bool {
	r.mu.Lock()
	e, ok := r.entries[instanceID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, instanceID)
	for i, id := range r.order {
		if id == instanceID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	delete(r.fallbacks, instanceID)
	active := len(r.entries)
	r.mu.Unlock()

	r.tracker.Forget(instanceID)
	r.breakers.Remove(instanceID)
	r.balancer.Invalidate()
	r.metrics.SetActiveInstances(active)

	if r.store != nil {
		if err := r.store.Delete(ctx, e.recordID); err != nil {
			r.logger.Error("deleting provider record failed",
				zap.String("instance_id", instanceID),
				zap.Error(services.WrapPersistence("deleting provider record", err)))
		}
	}

	if r.onUnregister != nil {
		r.onUnregister(instanceID)
	}

	r.logger.Info("provider unregistered", zap.String("instance_id", instanceID))
	return true
}

// InstanceForCapability selects a provider instance for a capability. The
// candidate set is filtered to instances that declare the capability, are
// Healthy, pass the circuit breaker, sit below the consecutive failure
// gate, and fit the budget. Selection uses the forced strategy when one
// is set, composite scoring otherwise. On success the instance's rotation
// timestamp and connection count are updated.
func (r *Registry) InstanceForCapability(capability string, opts SelectOptions) (*Selection, error) {
	candidates := r.eligible(capability, opts)
	if len(candidates) == 0 {
		return nil, services.NewDomainError(services.ErrorTypeNoHealthyInstance,
			"no healthy instance for capability", nil).WithDetail("capability", capability)
	}

	strategy := opts.Strategy
	if strategy == "" {
		strategy = r.defaultStrategy
	}

	var picked *entry
	if strategy != "" {
		inst, err := r.balancer.Pick(strategy, r.strategySnapshot(candidates), opts.RequestKey)
		if err != nil {
			return nil, services.NewDomainError(services.ErrorTypeValidation, "unknown strategy", err)
		}
		if inst == nil {
			return nil, services.NewDomainError(services.ErrorTypeNoHealthyInstance,
				"no healthy instance for capability", nil).WithDetail("capability", capability)
		}
		for _, c := range candidates {
			if c.instance.ID == inst.ID {
				picked = c
				break
			}
		}
	} else {
		picked = r.pickComposite(capability, candidates, opts.Preset)
	}

	r.mu.Lock()
	picked.instance.LastUsed = r.now()
	picked.instance.ActiveConnections++
	r.mu.Unlock()

	r.metrics.RecordRequest(picked.instance.ID)
	return &Selection{Instance: picked.instance, Provider: picked.provider}, nil
}

// strategySnapshot builds detached copies of the candidate instances for
// the strategies to read. Rotation and connection fields are copied under
// the registry lock and latency statistics come from tracker snapshots,
// so strategies never observe fields that a concurrent selection or
// outcome recording is writing.
func (r *Registry) strategySnapshot(candidates []*entry) []*models.Instance {
	out := make([]*models.Instance, len(candidates))
	r.mu.RLock()
	for i, e := range candidates {
		inst := *e.instance
		inst.Performance = nil
		out[i] = &inst
	}
	r.mu.RUnlock()
	for i, e := range candidates {
		out[i].Performance = r.tracker.Stats(e.instance.ID)
	}
	return out
}

// eligible snapshots the candidate entries for a capability in insertion
// order. The copy keeps scoring free of the registry lock.
func (r *Registry) eligible(capability string, opts SelectOptions) []*entry {
	r.mu.RLock()
	ordered := make([]*entry, 0, len(r.order))
	for _, id := range r.order {
		if e, ok := r.entries[id]; ok {
			ordered = append(ordered, e)
		}
	}
	r.mu.RUnlock()

	candidates := make([]*entry, 0, len(ordered))
	for _, e := range ordered {
		inst := e.instance
		if inst.ID == opts.Exclude {
			continue
		}
		if !inst.HasCapability(capability) {
			continue
		}
		if !r.routable(inst) {
			continue
		}
		if !r.tracker.IsAvailable(inst.ID, r.maxConsecutiveFailures) {
			continue
		}
		if opts.Budget > 0 && r.estimatedCost(e) > opts.Budget {
			continue
		}
		candidates = append(candidates, e)
	}
	return candidates
}

// routable combines the instance status with the breaker gate. A breaker
// that has cooled down closes lazily here, restoring a CircuitOpen
// instance to Healthy.
func (r *Registry) routable(inst *models.Instance) bool {
	r.mu.RLock()
	status := inst.Status
	r.mu.RUnlock()

	switch status {
	case models.StatusHealthy:
		return r.breakers.CanExecute(inst.ID)
	case models.StatusCircuitOpen:
		if r.breakers.CanExecute(inst.ID) {
			r.mu.Lock()
			inst.Status = models.StatusHealthy
			r.mu.Unlock()
			return true
		}
		return false
	default:
		return false
	}
}

// estimatedCost prefers observed average cost and falls back to the
// provider's own estimate before any traffic has been recorded
func (r *Registry) estimatedCost(e *entry) float64 {
	stats := r.tracker.Stats(e.instance.ID)
	if stats.TotalRequests > 0 {
		return stats.AvgCost()
	}
	return e.provider.EstimateCost(nil)
}

// RecordSuccess reports a successful call for an instance. It feeds the
// performance tracker, closes the breaker, and emits metrics.
func (r *Registry) RecordSuccess(instanceID string, latency time.Duration, tokens int64, cost float64) {
	r.tracker.RecordSuccess(instanceID, latency, tokens, cost)
	r.breakers.RecordSuccess(instanceID)
	r.metrics.RecordLatency(instanceID, latency)

	r.mu.Lock()
	if e, ok := r.entries[instanceID]; ok && e.instance.Status == models.StatusCircuitOpen {
		e.instance.Status = models.StatusHealthy
	}
	r.mu.Unlock()
}

// RecordFailure reports a failed call for an instance. It feeds the
// performance tracker and the breaker; when the breaker opens, the
// instance status flips to CircuitOpen.
func (r *Registry) RecordFailure(instanceID string, latency time.Duration) {
	r.tracker.RecordFailure(instanceID, latency)
	r.breakers.RecordFailure(instanceID)
	r.metrics.RecordError(instanceID)

	if !r.breakers.Breaker(instanceID).IsOpen() {
		return
	}
	r.mu.Lock()
	if e, ok := r.entries[instanceID]; ok && e.instance.Status == models.StatusHealthy {
		e.instance.Status = models.StatusCircuitOpen
	}
	r.mu.Unlock()
	r.metrics.RecordCircuitOpen(instanceID)
}

// ReleaseConnection decrements an instance's active connection count
func (r *Registry) ReleaseConnection(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[instanceID]; ok && e.instance.ActiveConnections > 0 {
		e.instance.ActiveConnections--
	}
}

// SetStatus updates an instance's health status; used by the health
// monitor wiring
func (r *Registry) SetStatus(instanceID string, status models.InstanceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[instanceID]
	if !ok {
		return services.ErrProviderNotFound
	}
	e.instance.Status = status
	if status == models.StatusHealthy {
		e.instance.LastHeartbeat = r.now()
	}
	return nil
}

// Provider returns the provider for an instance id
func (r *Registry) Provider(instanceID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[instanceID]
	if !ok {
		return nil, services.ErrProviderNotFound
	}
	return e.provider, nil
}

// Instance returns the routing instance for an id
func (r *Registry) Instance(instanceID string) (*models.Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[instanceID]
	if !ok {
		return nil, services.ErrProviderNotFound
	}
	return e.instance, nil
}

// ListInstances returns all registered instances in insertion order
func (r *Registry) ListInstances() []*models.Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Instance, 0, len(r.order))
	for _, id := range r.order {
		if e, ok := r.entries[id]; ok {
			out = append(out, e.instance)
		}
	}
	return out
}

// Len returns the number of registered providers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func capabilityNames(scores map[string]float64) []string {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	return names
}
