// Package planner turns a validated intent and a performance budget into a
// query plan: which stores to hit, with what priority, time slice, and
// native query kind, plus the fusion strategy to apply afterwards.
package planner

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memfed/internal/domain"
	"github.com/kailas-cloud/memfed/internal/domain/budget"
	"github.com/kailas-cloud/memfed/internal/domain/intent"
	"github.com/kailas-cloud/memfed/internal/domain/plan"
	"github.com/kailas-cloud/memfed/internal/domain/store"
)

// Priority adjustments applied on top of the static per-kind table.
const (
	temporalEpisodicBoost = 0.5
	entityGraphBoost      = 0.4
	keywordFulltextBoost  = 0.2
)

// DefaultPriorities is the static per-store-kind priority table.
var DefaultPriorities = map[store.Kind]float64{
	store.KindVector:   1.0,
	store.KindFulltext: 0.8,
	store.KindGraph:    0.7,
	store.KindEpisodic: 0.6,
}

// Gate reports whether a store may be queried right now. The fan-out circuit
// breaker implements it; a nil gate admits everything.
type Gate interface {
	Allow(store string, now time.Time) bool
}

// Config bounds plan construction.
type Config struct {
	// MaxStores caps the fan-out width in addition to the request budget.
	// Zero means no service-level cap.
	MaxStores int
	// Priorities overrides DefaultPriorities per kind when non-nil.
	Priorities map[store.Kind]float64
}

// Service builds query plans over a fixed set of registered stores.
type Service struct {
	cfg    Config
	stores []store.Adapter
	gate   Gate
	logger *zap.Logger
}

// NewService creates a planner over the registered store adapters.
func NewService(cfg Config, stores []store.Adapter, gate Gate, logger *zap.Logger) *Service {
	if cfg.Priorities == nil {
		cfg.Priorities = DefaultPriorities
	}
	return &Service{cfg: cfg, stores: stores, gate: gate, logger: logger}
}

type rankedStore struct {
	adapter store.Adapter
	weight  float64
}

// Build derives a query plan from the intent and budget. Stores with an open
// circuit are skipped; the result is capped at the smaller of the budget's
// and the service's max store count. Returns ErrNoStoresAvailable when every
// store is skipped or unregistered.
func (s *Service) Build(in *intent.Intent, b budget.Budget) (*plan.Plan, error) {
	feats := ExtractFeatures(in)
	now := time.Now()

	var ranked []rankedStore
	for _, a := range s.stores {
		if s.gate != nil && !s.gate.Allow(a.Name(), now) {
			s.logger.Debug("skipping store with open circuit", zap.String("store", a.Name()))
			continue
		}
		ranked = append(ranked, rankedStore{adapter: a, weight: s.weight(a.Kind(), in, feats)})
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("plan for query type %q: %w", in.Type(), domain.ErrNoStoresAvailable)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].adapter.Name() < ranked[j].adapter.Name()
	})

	limit := b.MaxStores()
	if s.cfg.MaxStores > 0 && s.cfg.MaxStores < limit {
		limit = s.cfg.MaxStores
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	allocMS := b.MaxLatencyMS() / int64(len(ranked))
	stores := make([]plan.StorePlan, len(ranked))
	for i, r := range ranked {
		stores[i] = plan.StorePlan{
			Store:       r.adapter.Name(),
			Kind:        r.adapter.Kind(),
			Query:       queryKindFor(r.adapter.Kind()),
			Weight:      r.weight,
			AllocatedMS: allocMS,
		}
	}

	return &plan.Plan{
		Query:    in.Query(),
		Entities: feats.Entities,
		From:     feats.From,
		To:       feats.To,
		Stores:   stores,
		Strategy: strategyFor(in, feats),
	}, nil
}

// weight combines the static table with query-derived adjustments.
func (s *Service) weight(kind store.Kind, in *intent.Intent, feats QueryFeatures) float64 {
	w := s.cfg.Priorities[kind]
	if in.Type() == intent.TemporalSequence && kind == store.KindEpisodic {
		w += temporalEpisodicBoost
	}
	if feats.HasEntities && kind == store.KindGraph {
		w += entityGraphBoost
	}
	if feats.IsKeyword && kind == store.KindFulltext {
		w += keywordFulltextBoost
	}
	return w
}

func queryKindFor(kind store.Kind) store.QueryKind {
	switch kind {
	case store.KindGraph:
		return store.QueryTraversal
	case store.KindFulltext:
		return store.QueryFulltext
	case store.KindEpisodic:
		return store.QueryTemporal
	default:
		return store.QuerySimilarity
	}
}

func strategyFor(in *intent.Intent, feats QueryFeatures) plan.Strategy {
	switch {
	case in.Type() == intent.TemporalSequence:
		return plan.StrategyTemporal
	case in.Type() == intent.EntityLookup || feats.HasEntities:
		return plan.StrategyEntity
	default:
		return plan.StrategyDiversified
	}
}
