// Package recall is the orchestrator: it plans the fan-out, executes it,
// fuses the partial results, and assembles the final explainable bundle.
package recall

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memfed/internal/domain"
	"github.com/kailas-cloud/memfed/internal/domain/budget"
	"github.com/kailas-cloud/memfed/internal/domain/bundle"
	"github.com/kailas-cloud/memfed/internal/domain/intent"
	"github.com/kailas-cloud/memfed/internal/domain/plan"
	"github.com/kailas-cloud/memfed/internal/domain/result"
	"github.com/kailas-cloud/memfed/internal/metrics"
	"github.com/kailas-cloud/memfed/internal/usecase/fusion"
	"github.com/kailas-cloud/memfed/internal/usecase/mmr"
)

// Second-pass diversification acceptance thresholds and the blend of the
// bundle diversity score.
const (
	secondPassMinDiversity = 0.4
	secondPassMinRelevance = 0.6

	sourceVarietyWeight  = 0.6
	lengthVarianceWeight = 0.4
)

// PlanBuilder derives a query plan from an intent and budget.
type PlanBuilder interface {
	Build(in *intent.Intent, b budget.Budget) (*plan.Plan, error)
}

// Executor runs the fan-out and always returns a complete per-store map.
type Executor interface {
	Execute(ctx context.Context, requestID string, p *plan.Plan, b budget.Budget) map[string]result.StoreResult
}

// Fuser merges per-store results into one ranked list.
type Fuser interface {
	Fuse(ctx context.Context, requestID string, results map[string]result.StoreResult,
		strategy plan.Strategy, in *intent.Intent) fusion.Output
}

// Diversifier reranks a candidate list for diversity.
type Diversifier interface {
	Diversify(items []result.Normalized, relevance map[string]float64, target int, lambda float64) (mmr.Result, error)
}

// Service assembles context bundles. Stateless per request.
type Service struct {
	planner  PlanBuilder
	executor Executor
	fuser    Fuser
	diver    Diversifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the orchestrator.
func NewService(planner PlanBuilder, executor Executor, fuser Fuser, diver Diversifier, logger *zap.Logger) *Service {
	return &Service{
		planner:  planner,
		executor: executor,
		fuser:    fuser,
		diver:    diver,
		logger:   logger,
		now:      time.Now,
	}
}

// AssembleBundle runs the full recall pipeline for one request. The caller
// receives either a complete bundle with accurate coverage metadata or an
// AssemblyError; partial results are never passed off as complete.
func (s *Service) AssembleBundle(
	ctx context.Context, requestID string, in *intent.Intent, b budget.Budget,
) (bnd *bundle.Bundle, err error) {
	start := s.now()
	if requestID == "" {
		requestID = uuid.NewString()
	}
	bundleID := uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("bundle assembly panicked",
				zap.String("request_id", requestID), zap.Any("panic", r))
			bnd = nil
			err = domain.NewAssemblyError(bundleID, requestID, fmt.Errorf("assembly panic: %v", r))
		}
	}()

	p, planErr := s.planner.Build(in, b)
	if planErr != nil {
		return nil, domain.NewAssemblyError(bundleID, requestID, planErr)
	}

	results := s.executor.Execute(ctx, requestID, p, b)
	out := s.fuser.Fuse(ctx, requestID, results, p.Strategy, in)

	items := out.Items
	diversified := out.Diversified

	target := in.Preferences().MaxResults
	if b.MaxTotal() < target {
		target = b.MaxTotal()
	}
	if !diversified && len(items) > target {
		items, diversified = s.secondPass(items, target)
	}
	if len(items) > b.MaxTotal() {
		items = items[:b.MaxTotal()]
	}

	coverage := buildCoverage(results)
	confidence := bundleConfidence(items, p, results)
	metrics.BundleConfidence.Observe(confidence)

	processing := s.now().Sub(start).Milliseconds()
	s.logger.Info("bundle assembled",
		zap.String("request_id", requestID),
		zap.String("bundle_id", bundleID),
		zap.Int("results", len(items)),
		zap.Int64("processing_ms", processing),
		zap.Float64("confidence", confidence),
	)

	return &bundle.Bundle{
		ID:           bundleID,
		RequestID:    requestID,
		Query:        in.Query(),
		Results:      items,
		TotalCount:   len(items),
		ProcessingMS: processing,
		Confidence:   confidence,
		Diversity:    bundleDiversity(items),
		Coverage:     coverage,
		Fusion: bundle.FusionInfo{
			Strategy:     p.Strategy,
			InputCount:   out.InputCount,
			OutputCount:  len(items),
			DedupRemoved: out.DedupRemoved,
			Diversified:  diversified,
		},
		ProvenanceRef: requestID,
	}, nil
}

// secondPass reranks the fusion output for diversity when fusion did not
// already diversify. The reranked set is kept only when it is both diverse
// and relevant enough; otherwise the fusion order is simply truncated.
func (s *Service) secondPass(items []result.Normalized, target int) ([]result.Normalized, bool) {
	relevance := make(map[string]float64, len(items))
	for _, it := range items {
		relevance[it.ID] = it.Relevance
	}

	res, err := s.diver.Diversify(items, relevance, target, 0)
	if err != nil {
		s.logger.Warn("second-pass diversification failed, truncating", zap.Error(err))
		return items[:target], false
	}
	if res.DiversityScore > secondPassMinDiversity && res.AvgRelevance > secondPassMinRelevance {
		return res.Selected, true
	}
	return items[:target], false
}

func buildCoverage(results map[string]result.StoreResult) map[string]bundle.StoreCoverage {
	coverage := make(map[string]bundle.StoreCoverage, len(results))
	for name, sr := range results {
		coverage[name] = bundle.StoreCoverage{
			Status:     sr.Status,
			Results:    len(sr.Items),
			LatencyMS:  sr.LatencyMS,
			Candidates: sr.Candidates,
		}
	}
	return coverage
}

// bundleConfidence is the mean per-result confidence scaled by the fraction
// of planned stores that responded (success or empty).
func bundleConfidence(items []result.Normalized, p *plan.Plan, results map[string]result.StoreResult) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range items {
		sum += it.Confidence
	}
	mean := sum / float64(len(items))

	responded := 0
	for _, sp := range p.Stores {
		switch results[sp.Store].Status {
		case result.StatusSuccess, result.StatusEmpty:
			responded++
		}
	}
	fraction := float64(responded) / float64(len(p.Stores))
	return result.Clamp01(mean * (0.7 + 0.3*fraction))
}

// bundleDiversity blends source-store variety with content-length variance,
// defined as 1.0 when fewer than two results remain.
func bundleDiversity(items []result.Normalized) float64 {
	if len(items) < 2 {
		return 1.0
	}
	sources := make(map[string]bool, len(items))
	var lengths []float64
	for _, it := range items {
		sources[it.Source] = true
		lengths = append(lengths, float64(len(it.Content)))
	}
	variety := float64(len(sources)) / float64(len(items))

	blend := sourceVarietyWeight*variety + lengthVarianceWeight*lengthSpread(lengths)
	return result.Clamp01(blend)
}

// lengthSpread is the coefficient of variation of content lengths, clamped
// to [0,1].
func lengthSpread(lengths []float64) float64 {
	var mean float64
	for _, l := range lengths {
		mean += l
	}
	mean /= float64(len(lengths))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, l := range lengths {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(lengths))
	return result.Clamp01(math.Sqrt(variance) / mean)
}
