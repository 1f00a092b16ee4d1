package fanout

import (
	"sync"
	"time"

	"github.com/kailas-cloud/memfed/internal/metrics"
)

// CircuitState represents the state of one store's circuit.
type CircuitState int

const (
	// CircuitClosed allows all traffic.
	CircuitClosed CircuitState = iota
	// CircuitHalfOpen allows a single probe after the cooldown.
	CircuitHalfOpen
	// CircuitOpen blocks all traffic.
	CircuitOpen
)

// Breaker defaults.
const (
	DefaultErrorRateThreshold = 0.5
	DefaultMinSamples         = 5
)

// BreakerConfig configures the per-store circuit breaker.
// Cooldown 0 means an open circuit never probes half-open, which matches
// the observed production behavior; set it to enable recovery probes.
type BreakerConfig struct {
	ErrorRateThreshold float64
	MinSamples         int
	Cooldown           time.Duration
}

// DefaultBreakerConfig returns the standard thresholds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ErrorRateThreshold: DefaultErrorRateThreshold,
		MinSamples:         DefaultMinSamples,
	}
}

type circuit struct {
	state    CircuitState
	openedAt time.Time
	probing  bool
}

// Breaker tracks a circuit per store, fed by the shared statistics registry.
type Breaker struct {
	cfg   BreakerConfig
	stats *StatRegistry

	mu       sync.Mutex
	circuits map[string]*circuit
}

// NewBreaker creates a breaker over the given statistics registry.
func NewBreaker(cfg BreakerConfig, stats *StatRegistry) *Breaker {
	if cfg.ErrorRateThreshold <= 0 {
		cfg.ErrorRateThreshold = DefaultErrorRateThreshold
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultMinSamples
	}
	return &Breaker{cfg: cfg, stats: stats, circuits: make(map[string]*circuit)}
}

func (b *Breaker) get(store string) *circuit {
	c, ok := b.circuits[store]
	if !ok {
		c = &circuit{state: CircuitClosed}
		b.circuits[store] = c
	}
	return c
}

// Allow reports whether the store may be queried at the given time.
// An open circuit transitions to half-open after the cooldown (when
// configured) and then admits exactly one probe.
func (b *Breaker) Allow(store string, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(store)
	switch c.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if b.cfg.Cooldown > 0 && now.Sub(c.openedAt) >= b.cfg.Cooldown {
			b.transition(store, c, CircuitHalfOpen)
			c.probing = true
			return true
		}
		return false
	case CircuitHalfOpen:
		if c.probing {
			return false
		}
		c.probing = true
		return true
	}
	return false
}

// RecordResult feeds one task outcome into the circuit.
func (b *Breaker) RecordResult(store string, success bool, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(store)
	switch c.state {
	case CircuitHalfOpen:
		c.probing = false
		if success {
			b.transition(store, c, CircuitClosed)
		} else {
			c.openedAt = now
			b.transition(store, c, CircuitOpen)
		}
	case CircuitClosed:
		stats := b.stats.Snapshot(store)
		if stats.TotalQueries > int64(b.cfg.MinSamples) && stats.ErrorRate() > b.cfg.ErrorRateThreshold {
			c.openedAt = now
			b.transition(store, c, CircuitOpen)
		}
	case CircuitOpen:
		// Late results for an already-open circuit change nothing.
	}
}

// State returns the current circuit state for a store.
func (b *Breaker) State(store string) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.get(store).state
}

func (b *Breaker) transition(store string, c *circuit, state CircuitState) {
	if c.state == state {
		return
	}
	c.state = state
	metrics.CircuitState.WithLabelValues(store).Set(float64(state))
}
