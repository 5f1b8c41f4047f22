package providers

import (
	"go.uber.org/zap"

	"github.com/Arashek/ADE-stable-1.0-sub004/services"
)

// SetFallbackChain declares the ordered alternate instances to try when
// the given instance fails. The chain replaces any previous chain for
// that instance.
func (r *Registry) SetFallbackChain(instanceID string, chain []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks[instanceID] = append([]string(nil), chain...)
}

// FallbackChain returns a copy of the configured chain for an instance
func (r *Registry) FallbackChain(instanceID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.fallbacks[instanceID]...)
}

// FallbackForCapability resolves an alternate after a call to failedID
// failed. It returns the first chain entry that still serves the
// capability and is eligible, and otherwise falls back to a regular
// selection for the capability excluding the failed instance. When both
// paths come up empty it returns a selection-exhausted error.
func (r *Registry) FallbackForCapability(capability, failedID string, opts SelectOptions) (*Selection, error) {
	r.mu.RLock()
	chain := append([]string(nil), r.fallbacks[failedID]...)
	r.mu.RUnlock()

	for _, id := range chain {
		if id == failedID {
			continue
		}
		e := r.eligibleByID(id, capability, opts)
		if e == nil {
			continue
		}

		r.mu.Lock()
		e.instance.LastUsed = r.now()
		e.instance.ActiveConnections++
		r.mu.Unlock()
		r.metrics.RecordRequest(e.instance.ID)

		r.logger.Info("fallback chain entry selected",
			zap.String("failed_instance_id", failedID),
			zap.String("instance_id", e.instance.ID),
			zap.String("capability", capability))
		return &Selection{Instance: e.instance, Provider: e.provider}, nil
	}

	opts.Exclude = failedID
	sel, err := r.InstanceForCapability(capability, opts)
	if err == nil {
		r.logger.Info("fallback via general selection",
			zap.String("failed_instance_id", failedID),
			zap.String("instance_id", sel.Instance.ID))
		return sel, nil
	}
	if !services.IsSelectionError(err) {
		return nil, err
	}

	return nil, services.NewDomainError(services.ErrorTypeSelectionExhausted,
		"fallback chain exhausted", nil).
		WithDetail("capability", capability).
		WithDetail("failed_instance_id", failedID)
}

// eligibleByID checks a single chain entry against the same filters the
// selection path applies
func (r *Registry) eligibleByID(id, capability string, opts SelectOptions) *entry {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	if !e.instance.HasCapability(capability) {
		return nil
	}
	if !r.routable(e.instance) {
		return nil
	}
	if !r.tracker.IsAvailable(id, r.maxConsecutiveFailures) {
		return nil
	}
	if opts.Budget > 0 && r.estimatedCost(e) > opts.Budget {
		return nil
	}
	return e
}
