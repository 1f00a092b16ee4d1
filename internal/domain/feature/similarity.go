package feature

import (
	"fmt"
	"math"
	"time"
)

// Default similarity weights per dimension. May sum to at most 1.
const (
	DefaultSemanticWeight   = 0.4
	DefaultTemporalWeight   = 0.2
	DefaultContextualWeight = 0.2
	DefaultStructuralWeight = 0.2

	// temporalDecayHours controls how fast temporal proximity decays.
	temporalDecayHours = 24.0
	// neutralTemporal is used when either side has no usable timestamp.
	neutralTemporal = 0.5
)

// Weights holds the per-dimension similarity weights.
type Weights struct {
	Semantic   float64
	Temporal   float64
	Contextual float64
	Structural float64
}

// DefaultWeights returns the standard weight split.
func DefaultWeights() Weights {
	return Weights{
		Semantic:   DefaultSemanticWeight,
		Temporal:   DefaultTemporalWeight,
		Contextual: DefaultContextualWeight,
		Structural: DefaultStructuralWeight,
	}
}

// Validate checks that weights are non-negative and sum to at most 1.
func (w Weights) Validate() error {
	named := []struct {
		name string
		v    float64
	}{
		{"semantic", w.Semantic},
		{"temporal", w.Temporal},
		{"contextual", w.Contextual},
		{"structural", w.Structural},
	}
	for _, nw := range named {
		if nw.v < 0 {
			return fmt.Errorf("similarity weight %s must be non-negative, got %f", nw.name, nw.v)
		}
	}
	if sum := w.Semantic + w.Temporal + w.Contextual + w.Structural; sum > 1+1e-9 {
		return fmt.Errorf("similarity weights must sum to at most 1, got %f", sum)
	}
	return nil
}

// Similarity computes the weighted content similarity between two vectors,
// in [0,1]. Dimensions with missing data degrade to neutral values rather
// than failing.
func Similarity(a, b Vector, w Weights) float64 {
	sim := w.Semantic*semanticSim(a, b) +
		w.Temporal*temporalSim(a.Timestamp, b.Timestamp) +
		w.Contextual*contextualSim(a, b) +
		w.Structural*structuralSim(a, b)
	return clamp01(sim / weightSum(w))
}

func weightSum(w Weights) float64 {
	sum := w.Semantic + w.Temporal + w.Contextual + w.Structural
	if sum <= 0 {
		return 1
	}
	return sum
}

func semanticSim(a, b Vector) float64 {
	j := jaccard(union(a.Keywords, a.Concepts), union(b.Keywords, b.Concepts))
	if len(a.Embedding) == 0 || len(b.Embedding) == 0 {
		return j
	}
	return 0.5*j + 0.5*clamp01(cosine(a.Embedding, b.Embedding))
}

func temporalSim(a, b time.Time) float64 {
	if a.IsZero() || b.IsZero() {
		return neutralTemporal
	}
	deltaHours := math.Abs(a.Sub(b).Hours())
	return math.Exp(-deltaHours / temporalDecayHours)
}

func contextualSim(a, b Vector) float64 {
	return jaccard(union(a.Tags, a.Entities), union(b.Tags, b.Entities))
}

func structuralSim(a, b Vector) float64 {
	typeSim := 0.0
	if a.ContentType != "" && a.ContentType == b.ContentType {
		typeSim = 1.0
	}
	lenSim := 0.0
	if a.ContentLen > 0 && b.ContentLen > 0 {
		shorter, longer := float64(a.ContentLen), float64(b.ContentLen)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		lenSim = shorter / longer
	}
	return 0.5*typeSim + 0.5*lenSim
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func union(a, b map[string]bool) map[string]bool {
	if len(b) == 0 {
		return a
	}
	if len(a) == 0 {
		return b
	}
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
