// Package plan models the query plan derived from an intent and budget:
// which stores to query, with what priority, budget slice, and native query
// shape, plus the fusion strategy to apply afterwards.
package plan

import (
	"time"

	"github.com/kailas-cloud/memfed/internal/domain/store"
)

// Strategy selects how fused results are ranked.
type Strategy string

const (
	// StrategyDiversified ranks via maximal marginal relevance.
	StrategyDiversified Strategy = "diversified"
	// StrategyTemporal blends relevance with recency decay.
	StrategyTemporal Strategy = "temporal_weighted"
	// StrategyEntity boosts overlap with the intent's target entities.
	StrategyEntity Strategy = "entity_focused"
	// StrategyRelevance ranks by relevance only.
	StrategyRelevance Strategy = "relevance"
)

// StorePlan is one store's slice of the fan-out.
type StorePlan struct {
	Store       string
	Kind        store.Kind
	Query       store.QueryKind
	Weight      float64
	AllocatedMS int64
}

// Plan is created once per request and read-only afterwards.
type Plan struct {
	Query    string
	Entities []string
	From     time.Time
	To       time.Time
	Stores   []StorePlan
	Strategy Strategy
}

// StoreNames returns the planned store names in priority order.
func (p *Plan) StoreNames() []string {
	names := make([]string, len(p.Stores))
	for i, sp := range p.Stores {
		names[i] = sp.Store
	}
	return names
}
