// Package balancer implements the load balancing strategies used to pick
// one provider instance from a filtered candidate set.
//
// Seven strategies are implemented:
//   - RoundRobin:        least-recently-used rotation over the candidates
//   - LeastConnections:  fewest in-flight requests
//   - Random:            uniform pick
//   - Weighted:          cumulative-weight random draw
//   - ConsistentHash:    request-key affinity via a virtual node ring
//   - LeastResponseTime: lowest mean latency over the sample window
//   - LeastErrorRate:    lowest failure ratio
//
// Candidates are expected to be a snapshot already filtered by capability,
// health, and circuit breaker state; strategies never mutate them.
package balancer

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/Arashek/ADE-stable-1.0-sub004/models"
)

// Strategy identifies a selection algorithm
type Strategy string

const (
	// StrategyRoundRobin returns the least-recently-used candidate. This
	// is rotation by last-used timestamp, not a cyclic index: repeated
	// selection without interleaved use keeps returning the instance that
	// has gone longest without traffic, with ties broken by instance id.
	StrategyRoundRobin Strategy = "round_robin"

	// StrategyLeastConnections returns the candidate with the fewest
	// active connections
	StrategyLeastConnections Strategy = "least_connections"

	// StrategyRandom returns a uniformly random candidate
	StrategyRandom Strategy = "random"

	// StrategyWeighted draws a candidate proportionally to its weight
	StrategyWeighted Strategy = "weighted"

	// StrategyConsistentHash maps the request key onto a virtual node
	// ring so identical keys keep hitting the same instance
	StrategyConsistentHash Strategy = "consistent_hash"

	// StrategyLeastResponseTime returns the candidate with the lowest
	// mean latency, falling back to random when no samples exist
	StrategyLeastResponseTime Strategy = "least_response_time"

	// StrategyLeastErrorRate returns the candidate with the lowest
	// failure ratio, falling back to random when no requests exist
	StrategyLeastErrorRate Strategy = "least_error_rate"
)

// ErrUnknownStrategy is returned for an unrecognized strategy name
var ErrUnknownStrategy = errors.New("unknown load balancing strategy")

// DefaultVirtualNodes is the number of ring positions per instance
const DefaultVirtualNodes = 100

// Balancer dispatches selection to the configured strategies. Safe for
// concurrent use.
type Balancer struct {
	mu       sync.Mutex
	rng      *rand.Rand
	replicas int
	ring     *hashRing
}

// Option configures a Balancer
type Option func(*Balancer)

// WithRand overrides the random source, for deterministic tests
func WithRand(rng *rand.Rand) Option {
	return func(b *Balancer) { b.rng = rng }
}

// WithVirtualNodes overrides the virtual node count per instance
func WithVirtualNodes(replicas int) Option {
	return func(b *Balancer) {
		if replicas > 0 {
			b.replicas = replicas
		}
	}
}

// New creates a balancer with the default virtual node count
func New(opts ...Option) *Balancer {
	b := &Balancer{
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		replicas: DefaultVirtualNodes,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Pick selects one instance from the candidates using the given strategy.
// It returns nil when the candidate list is empty. The key is only used
// by the consistent hash strategy.
func (b *Balancer) Pick(strategy Strategy, candidates []*models.Instance, key string) (*models.Instance, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	switch strategy {
	case StrategyRoundRobin:
		return pickRoundRobin(candidates), nil
	case StrategyLeastConnections:
		return pickLeastConnections(candidates), nil
	case StrategyRandom:
		return b.pickRandom(candidates), nil
	case StrategyWeighted:
		return b.pickWeighted(candidates), nil
	case StrategyConsistentHash:
		return b.pickConsistentHash(candidates, key), nil
	case StrategyLeastResponseTime:
		return b.pickLeastResponseTime(candidates), nil
	case StrategyLeastErrorRate:
		return b.pickLeastErrorRate(candidates), nil
	default:
		return nil, ErrUnknownStrategy
	}
}

// Invalidate drops the cached consistent hash ring. The registry calls
// this on every topology change (register/deregister).
func (b *Balancer) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ring = nil
}

// pickRoundRobin returns the candidate with the earliest last-used
// timestamp; never-used instances (zero time) sort first. Ties resolve to
// the lexicographically smallest id.
func pickRoundRobin(candidates []*models.Instance) *models.Instance {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.LastUsed.Before(best.LastUsed) ||
			(c.LastUsed.Equal(best.LastUsed) && c.ID < best.ID) {
			best = c
		}
	}
	return best
}

// pickLeastConnections returns the candidate with the fewest active
// connections, ties broken by id
func pickLeastConnections(candidates []*models.Instance) *models.Instance {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.ActiveConnections < best.ActiveConnections ||
			(c.ActiveConnections == best.ActiveConnections && c.ID < best.ID) {
			best = c
		}
	}
	return best
}

func (b *Balancer) pickRandom(candidates []*models.Instance) *models.Instance {
	b.mu.Lock()
	defer b.mu.Unlock()
	return candidates[b.rng.Intn(len(candidates))]
}

// pickWeighted draws r in [0, sum of weights) and walks the candidates
// accumulating weight, returning the first whose cumulative weight
// reaches r. Zero total weight degrades to a uniform pick.
func (b *Balancer) pickWeighted(candidates []*models.Instance) *models.Instance {
	var total float64
	for _, c := range candidates {
		if c.Weight > 0 {
			total += c.Weight
		}
	}
	if total <= 0 {
		return b.pickRandom(candidates)
	}

	b.mu.Lock()
	r := b.rng.Float64() * total
	b.mu.Unlock()

	var cumulative float64
	for _, c := range candidates {
		if c.Weight > 0 {
			cumulative += c.Weight
		}
		if cumulative >= r {
			return c
		}
	}
	return candidates[len(candidates)-1]
}

// pickConsistentHash looks the key up on the virtual node ring. The ring
// is cached and only rebuilt when the candidate topology changes.
func (b *Balancer) pickConsistentHash(candidates []*models.Instance, key string) *models.Instance {
	sig := ringSignature(candidates)

	b.mu.Lock()
	if b.ring == nil || b.ring.signature != sig {
		b.ring = buildRing(candidates, b.replicas)
	}
	ring := b.ring
	b.mu.Unlock()

	return ring.lookup(key)
}

// pickLeastResponseTime returns the candidate with the lowest mean
// latency. Candidates without samples are skipped; when none have
// samples, the pick degrades to random.
func (b *Balancer) pickLeastResponseTime(candidates []*models.Instance) *models.Instance {
	var best *models.Instance
	var bestLatency time.Duration
	for _, c := range candidates {
		if c.Performance == nil || len(c.Performance.ResponseTimes) == 0 {
			continue
		}
		avg := c.Performance.AvgLatency()
		if best == nil || avg < bestLatency {
			best = c
			bestLatency = avg
		}
	}
	if best == nil {
		return b.pickRandom(candidates)
	}
	return best
}

// pickLeastErrorRate returns the candidate with the lowest failure ratio.
// Candidates without any recorded requests are skipped; when none have
// requests, the pick degrades to random.
func (b *Balancer) pickLeastErrorRate(candidates []*models.Instance) *models.Instance {
	var best *models.Instance
	var bestRate float64
	for _, c := range candidates {
		if c.Performance == nil || c.Performance.SuccessCount+c.Performance.FailureCount == 0 {
			continue
		}
		rate := c.Performance.ErrorRate()
		if best == nil || rate < bestRate {
			best = c
			bestRate = rate
		}
	}
	if best == nil {
		return b.pickRandom(candidates)
	}
	return best
}
