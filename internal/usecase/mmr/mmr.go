// Package mmr implements maximal-marginal-relevance diversification: greedy
// selection trading an item's relevance against its similarity to items
// already chosen. It is the single diversification engine; fusion and the
// orchestrator both delegate here.
package mmr

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memfed/internal/domain"
	"github.com/kailas-cloud/memfed/internal/domain/feature"
	"github.com/kailas-cloud/memfed/internal/domain/result"
	"github.com/kailas-cloud/memfed/internal/metrics"
)

// Mode selects how λ and the similarity penalty behave.
type Mode string

const (
	// ModeClassic uses a fixed λ.
	ModeClassic Mode = "classic"
	// ModeEnhanced derives λ from query characteristics (see LambdaFor).
	ModeEnhanced Mode = "enhanced"
	// ModeAdaptive tightens the similarity penalty as selection progresses.
	ModeAdaptive Mode = "adaptive"
)

// Defaults.
const (
	DefaultLambda              = 0.6
	DefaultSimilarityThreshold = 0.85
	DefaultQualityFloor        = -0.5

	// MinLambda and MaxLambda bound the relevance/diversity balance.
	MinLambda = 0.1
	MaxLambda = 0.9

	// adaptiveDecay shrinks the penalty threshold per iteration past the
	// halfway mark of the target count.
	adaptiveDecay = 0.95
)

// Config tunes the engine.
type Config struct {
	Lambda              float64
	Mode                Mode
	Weights             feature.Weights
	SimilarityThreshold float64
	QualityFloor        float64
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		Lambda:              DefaultLambda,
		Mode:                ModeClassic,
		Weights:             feature.DefaultWeights(),
		SimilarityThreshold: DefaultSimilarityThreshold,
		QualityFloor:        DefaultQualityFloor,
	}
}

// Result is one diversification run's outcome.
type Result struct {
	Selected       []result.Normalized
	DiversityScore float64
	AvgRelevance   float64
	Algorithm      string
	Iterations     int
	Rejected       int
}

// Engine runs MMR selection. Stateless across requests.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine creates a diversification engine, filling zero config values
// with defaults.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if cfg.Lambda == 0 {
		cfg.Lambda = DefaultLambda
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeClassic
	}
	if cfg.Weights == (feature.Weights{}) {
		cfg.Weights = feature.DefaultWeights()
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.QualityFloor == 0 {
		cfg.QualityFloor = DefaultQualityFloor
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Mode returns the configured selection mode.
func (e *Engine) Mode() Mode { return e.cfg.Mode }

// Lambda returns the configured base λ.
func (e *Engine) Lambda() float64 { return e.cfg.Lambda }

// Diversify selects at most target items maximizing
// λ·relevance − (1−λ)·maxSimilarity against the already-selected set.
// Ties keep the earliest candidate. Selection stops early, without error,
// once no candidate scores above the quality floor. A lambda of 0 takes the
// engine default; out-of-range values are clamped.
func (e *Engine) Diversify(
	items []result.Normalized, relevance map[string]float64, target int, lambda float64,
) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", domain.ErrDiversification, r)
		}
	}()

	if lambda == 0 {
		lambda = e.cfg.Lambda
	}
	lambda = ClampLambda(lambda)

	res.Algorithm = "mmr_" + string(e.cfg.Mode)
	if target <= 0 || len(items) == 0 {
		res.DiversityScore = 1.0
		res.Rejected = len(items)
		return res, nil
	}
	if target > len(items) {
		target = len(items)
	}

	remaining := make([]result.Normalized, len(items))
	copy(remaining, items)
	selected := make([]result.Normalized, 0, target)
	threshold := e.cfg.SimilarityThreshold

	for len(selected) < target && len(remaining) > 0 {
		res.Iterations++
		if e.cfg.Mode == ModeAdaptive && len(selected)*2 > target {
			threshold *= adaptiveDecay
		}

		bestIdx := -1
		bestScore := 0.0
		for i, cand := range remaining {
			maxSim := e.maxSimilarity(cand, selected)
			score := lambda*relevance[cand.ID] - (1-lambda)*maxSim
			if e.cfg.Mode == ModeAdaptive && len(selected) >= 2 && maxSim > threshold {
				score /= 2
			}
			if bestIdx < 0 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}
		if bestIdx < 0 || bestScore < e.cfg.QualityFloor {
			break
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	res.Selected = selected
	res.Rejected = len(items) - len(selected)
	res.DiversityScore = e.diversityScore(selected)
	res.AvgRelevance = avgRelevance(selected, relevance)
	metrics.DiversifyIterations.Observe(float64(res.Iterations))
	return res, nil
}

func (e *Engine) maxSimilarity(cand result.Normalized, selected []result.Normalized) float64 {
	maxSim := 0.0
	for _, s := range selected {
		if sim := feature.Similarity(cand.Features, s.Features, e.cfg.Weights); sim > maxSim {
			maxSim = sim
		}
	}
	return maxSim
}

// diversityScore is one minus the average pairwise similarity across the
// selected set, defined as 1.0 when fewer than two items are selected.
func (e *Engine) diversityScore(selected []result.Normalized) float64 {
	if len(selected) < 2 {
		return 1.0
	}
	var sum float64
	pairs := 0
	for i := 0; i < len(selected); i++ {
		for j := i + 1; j < len(selected); j++ {
			sum += feature.Similarity(selected[i].Features, selected[j].Features, e.cfg.Weights)
			pairs++
		}
	}
	return result.Clamp01(1 - sum/float64(pairs))
}

func avgRelevance(selected []result.Normalized, relevance map[string]float64) float64 {
	if len(selected) == 0 {
		return 0
	}
	var sum float64
	for _, s := range selected {
		sum += relevance[s.ID]
	}
	return sum / float64(len(selected))
}
