package providers

import (
	"time"

	"go.uber.org/zap"
)

// Scoring presets. A preset reweights the six scoring dimensions; unknown
// preset names fall back to balanced.
const (
	PresetBalanced    = "balanced"
	PresetPerformance = "performance"
	PresetCost        = "cost"
)

// scoreWeights holds one weight per scoring dimension. Weights within a
// preset sum to 1 so composite scores stay comparable across presets.
type scoreWeights struct {
	capability   float64
	success      float64
	latency      float64
	cost         float64
	availability float64
	rotation     float64
}

var presetWeights = map[string]scoreWeights{
	PresetBalanced: {
		capability:   0.30,
		success:      0.20,
		latency:      0.20,
		cost:         0.15,
		availability: 0.10,
		rotation:     0.05,
	},
	PresetPerformance: {
		capability:   0.25,
		success:      0.30,
		latency:      0.30,
		cost:         0.05,
		availability: 0.05,
		rotation:     0.05,
	},
	PresetCost: {
		capability:   0.25,
		success:      0.15,
		latency:      0.10,
		cost:         0.40,
		availability: 0.05,
		rotation:     0.05,
	},
}

// rotationHorizon is the idle time after which the rotation bonus saturates
const rotationHorizon = time.Hour

// pickComposite scores every candidate and returns the best one. Ties keep
// the earlier candidate, which preserves registration order determinism.
func (r *Registry) pickComposite(capability string, candidates []*entry, preset string) *entry {
	weights, ok := presetWeights[preset]
	if !ok {
		weights = presetWeights[PresetBalanced]
	}

	best := candidates[0]
	bestScore := r.compositeScore(capability, best, weights)
	for _, c := range candidates[1:] {
		if score := r.compositeScore(capability, c, weights); score > bestScore {
			best = c
			bestScore = score
		}
	}

	r.logger.Debug("composite selection",
		zap.String("capability", capability),
		zap.String("instance_id", best.instance.ID),
		zap.Float64("score", bestScore))
	return best
}

// compositeScore combines the six dimensions, each normalized to [0,1]:
//
//	capability:   1 when the capability is declared, 0 otherwise
//	success:      rolling success rate (optimistic 1.0 before traffic)
//	latency:      1/(1+avg latency in seconds)
//	cost:         1/(1+avg cost in USD), provider estimate before traffic
//	availability: 1 while below the consecutive failure gate, 0 at it
//	rotation:     idle time since last use, saturating at one hour
//
// The candidate filter already guarantees capability and availability,
// so those terms only matter when scoring an unfiltered set.
func (r *Registry) compositeScore(capability string, e *entry, w scoreWeights) float64 {
	stats := r.tracker.Stats(e.instance.ID)

	latencyScore := 1.0
	if avg := stats.AvgLatency(); avg > 0 {
		latencyScore = 1.0 / (1.0 + avg.Seconds())
	}

	avgCost := e.provider.EstimateCost(nil)
	if stats.TotalRequests > 0 {
		avgCost = stats.AvgCost()
	}
	costScore := 1.0 / (1.0 + avgCost)

	capabilityMatch := 0.0
	if e.instance.HasCapability(capability) {
		capabilityMatch = 1.0
	}

	availability := 0.0
	if stats.ConsecutiveFailures < r.maxConsecutiveFailures {
		availability = 1.0
	}

	r.mu.RLock()
	lastUsed := e.instance.LastUsed
	r.mu.RUnlock()

	rotation := 1.0
	if !lastUsed.IsZero() {
		idle := r.now().Sub(lastUsed)
		if idle < rotationHorizon {
			rotation = idle.Seconds() / rotationHorizon.Seconds()
		}
	}

	return w.capability*capabilityMatch +
		w.success*stats.SuccessRate() +
		w.latency*latencyScore +
		w.cost*costScore +
		w.availability*availability +
		w.rotation*rotation
}
