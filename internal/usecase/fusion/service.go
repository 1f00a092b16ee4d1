// Package fusion turns heterogeneous per-store results into one coherent
// ranked list: normalize, deduplicate, apply the planned strategy, boost,
// and filter.
package fusion

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memfed/internal/domain/feature"
	"github.com/kailas-cloud/memfed/internal/domain/intent"
	"github.com/kailas-cloud/memfed/internal/domain/plan"
	"github.com/kailas-cloud/memfed/internal/domain/result"
	"github.com/kailas-cloud/memfed/internal/metrics"
	"github.com/kailas-cloud/memfed/internal/provenance"
	"github.com/kailas-cloud/memfed/internal/usecase/mmr"
)

// Boost and filter defaults.
const (
	DefaultConfidenceFloor = 0.1
	// recencyBoostMax bounds the recency-bias boost.
	recencyBoostMax = 0.1
	// relatedBoost is added to metadata-flagged related items.
	relatedBoost = 0.05
	// neutralDiversity is reported when diversification fell back to
	// naive truncation.
	neutralDiversity = 0.5
)

// relatedMetaKey flags an item as related context rather than a direct hit.
const relatedMetaKey = "related"

// Config tunes the fusion pipeline.
type Config struct {
	DedupThreshold     float64
	ConfidenceFloor    float64
	Weights            feature.Weights
	TemporalDecayHours float64
	EntityBoostMax     float64
}

// DefaultConfig returns the standard fusion settings.
func DefaultConfig() Config {
	return Config{
		DedupThreshold:     DefaultDedupThreshold,
		ConfidenceFloor:    DefaultConfidenceFloor,
		Weights:            feature.DefaultWeights(),
		TemporalDecayHours: DefaultTemporalDecayHours,
		EntityBoostMax:     DefaultEntityBoostMax,
	}
}

// Output is one fusion run's outcome plus the metadata the bundle reports.
type Output struct {
	Items          []result.Normalized
	InputCount     int
	DedupRemoved   int
	Diversified    bool
	DiversityScore float64
	AvgRelevance   float64
}

// Service is the fusion engine. Stateless across requests.
type Service struct {
	cfg    Config
	norm   *normalizer
	dedup  *deduper
	engine *mmr.Engine
	prov   provenance.Sink
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a fusion engine, filling zero config values with
// defaults.
func NewService(
	cfg Config, extractor feature.Extractor, engine *mmr.Engine,
	prov provenance.Sink, logger *zap.Logger,
) *Service {
	if cfg.DedupThreshold == 0 {
		cfg.DedupThreshold = DefaultDedupThreshold
	}
	if cfg.ConfidenceFloor == 0 {
		cfg.ConfidenceFloor = DefaultConfidenceFloor
	}
	if cfg.Weights == (feature.Weights{}) {
		cfg.Weights = feature.DefaultWeights()
	}
	if cfg.TemporalDecayHours == 0 {
		cfg.TemporalDecayHours = DefaultTemporalDecayHours
	}
	if cfg.EntityBoostMax == 0 {
		cfg.EntityBoostMax = DefaultEntityBoostMax
	}
	return &Service{
		cfg:    cfg,
		norm:   newNormalizer(extractor, logger),
		dedup:  &deduper{threshold: cfg.DedupThreshold, weights: cfg.Weights},
		engine: engine,
		prov:   prov,
		logger: logger,
		now:    time.Now,
	}
}

// Fuse runs the full pipeline over the fan-out results: normalize the usable
// stores' items, deduplicate across stores, apply the planned strategy,
// add contextual boosts, and drop items below the confidence floor.
func (s *Service) Fuse(
	ctx context.Context, requestID string,
	results map[string]result.StoreResult, strategy plan.Strategy, in *intent.Intent,
) Output {
	items := s.norm.normalize(ctx, results)
	out := Output{InputCount: len(items)}

	items, removed := s.dedup.dedupe(items)
	out.DedupRemoved = removed

	target := in.Preferences().MaxResults
	preBoost := relevanceByID(items)

	switch strategy {
	case plan.StrategyTemporal:
		applyTemporal(items, s.now(), s.cfg.TemporalDecayHours)
		items = truncate(items, target)
	case plan.StrategyEntity:
		applyEntity(items, targetEntities(in), s.cfg.EntityBoostMax)
		items = truncate(items, target)
	case plan.StrategyDiversified:
		items = s.diversify(items, target, in, &out)
	default:
		sortByRelevance(items)
		items = truncate(items, target)
	}

	s.boost(items, in)

	kept := items[:0]
	for _, it := range items {
		if it.Confidence >= s.cfg.ConfidenceFloor {
			kept = append(kept, it)
		}
	}
	items = kept
	sortByRelevance(items)

	out.Items = items
	if !out.Diversified {
		out.AvgRelevance = meanRelevance(items)
	}

	metrics.FusionDedupRemoved.Add(float64(removed))
	metrics.FusionResultsTotal.WithLabelValues(string(strategy)).Add(float64(len(items)))
	s.prov.FusionApplied(provenance.FusionEvent{
		RequestID:    requestID,
		Strategy:     string(strategy),
		InputCount:   out.InputCount,
		OutputCount:  len(items),
		DedupRemoved: removed,
		Deltas:       confidenceDeltas(items, preBoost),
	})
	return out
}

// diversify delegates to the MMR engine, falling back to naive truncation
// with a neutral diversity score when the engine fails.
func (s *Service) diversify(
	items []result.Normalized, target int, in *intent.Intent, out *Output,
) []result.Normalized {
	lambda := s.engine.Lambda()
	if s.engine.Mode() == mmr.ModeEnhanced {
		lambda = mmr.LambdaFor(lambda, wordCount(in.Query()), in.Hints())
	}

	res, err := s.engine.Diversify(items, relevanceByID(items), target, lambda)
	if err != nil {
		s.logger.Warn("diversification failed, truncating", zap.Error(err))
		out.DiversityScore = neutralDiversity
		return truncate(items, target)
	}
	out.Diversified = true
	out.DiversityScore = res.DiversityScore
	out.AvgRelevance = res.AvgRelevance
	return res.Selected
}

// boost applies the small additive contextual boosts: recency bias and
// metadata-flagged related items. No boost can push a score above 1.0.
func (s *Service) boost(items []result.Normalized, in *intent.Intent) {
	prefs := in.Preferences()
	now := s.now()
	for i := range items {
		if prefs.RecencyBias > 0 && !items[i].Timestamp.IsZero() {
			deltaHours := math.Abs(now.Sub(items[i].Timestamp).Hours())
			decay := math.Exp(-deltaHours / s.cfg.TemporalDecayHours)
			items[i].Relevance = result.Clamp01(items[i].Relevance + recencyBoostMax*prefs.RecencyBias*decay)
		}
		if prefs.IncludeRelated && items[i].Meta[relatedMetaKey] == "true" {
			items[i].Relevance = result.Clamp01(items[i].Relevance + relatedBoost)
		}
	}
}

func relevanceByID(items []result.Normalized) map[string]float64 {
	m := make(map[string]float64, len(items))
	for _, it := range items {
		m[it.ID] = it.Relevance
	}
	return m
}

func meanRelevance(items []result.Normalized) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range items {
		sum += it.Relevance
	}
	return sum / float64(len(items))
}

func confidenceDeltas(items []result.Normalized, pre map[string]float64) []provenance.ConfidenceDelta {
	deltas := make([]provenance.ConfidenceDelta, 0, len(items))
	for _, it := range items {
		deltas = append(deltas, provenance.ConfidenceDelta{ID: it.ID, Delta: it.Relevance - pre[it.ID]})
	}
	return deltas
}

func targetEntities(in *intent.Intent) []string {
	return in.Hints().Entities
}

func wordCount(query string) int {
	return len(strings.Fields(query))
}
