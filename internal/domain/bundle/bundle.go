// Package bundle models the final recall output: the ranked result set plus
// the coverage and fusion metadata that make it explainable.
package bundle

import (
	"github.com/kailas-cloud/memfed/internal/domain/plan"
	"github.com/kailas-cloud/memfed/internal/domain/result"
)

// StoreCoverage records whether and how one planned store responded.
type StoreCoverage struct {
	Status     result.Status
	Results    int
	LatencyMS  int64
	Candidates int
}

// FusionInfo records what fusion did to the candidate set.
type FusionInfo struct {
	Strategy     plan.Strategy
	InputCount   int
	OutputCount  int
	DedupRemoved int
	Diversified  bool
}

// Bundle is the finished answer set. Constructed exactly once per request;
// immutable once returned.
type Bundle struct {
	ID            string
	RequestID     string
	Query         string
	Results       []result.Normalized
	TotalCount    int
	ProcessingMS  int64
	Confidence    float64
	Diversity     float64
	Coverage      map[string]StoreCoverage
	Fusion        FusionInfo
	ProvenanceRef string
}
