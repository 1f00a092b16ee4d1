package mmr

import "github.com/kailas-cloud/memfed/internal/domain/intent"

// Intent category hints recognized by the enhanced λ derivation.
const (
	CategoryHighPrecision = "high_precision"
	CategoryExploration   = "exploration"
)

// λ adjustments for the enhanced mode.
const (
	longQueryWords  = 10
	shortQueryWords = 3

	longQueryBoost  = 0.1
	shortQueryDrop  = 0.1
	precisionBoost  = 0.15
	explorationDrop = 0.15
)

// LambdaFor derives an effective λ from query characteristics: long queries
// bias toward relevance, short ones toward diversity, and explicit category
// hints shift the balance further. The result is clamped to [0.1, 0.9].
func LambdaFor(base float64, wordCount int, hints intent.Hints) float64 {
	l := base
	if wordCount > longQueryWords {
		l += longQueryBoost
	}
	if wordCount > 0 && wordCount < shortQueryWords {
		l -= shortQueryDrop
	}
	if hints.HasCategory(CategoryHighPrecision) {
		l += precisionBoost
	}
	if hints.HasCategory(CategoryExploration) {
		l -= explorationDrop
	}
	return ClampLambda(l)
}

// ClampLambda bounds λ to the valid [0.1, 0.9] range.
func ClampLambda(l float64) float64 {
	if l < MinLambda {
		return MinLambda
	}
	if l > MaxLambda {
		return MaxLambda
	}
	return l
}
