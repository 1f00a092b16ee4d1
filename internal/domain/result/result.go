// Package result holds the per-store query outcomes and the canonical
// normalized result shape that fusion produces.
package result

import (
	"time"

	"github.com/kailas-cloud/memfed/internal/domain/feature"
	"github.com/kailas-cloud/memfed/internal/domain/store"
)

// Status classifies one store's outcome.
type Status string

const (
	// StatusSuccess means the store returned items.
	StatusSuccess Status = "success"
	// StatusTimeout means the store missed its deadline.
	StatusTimeout Status = "timeout"
	// StatusError means the adapter failed.
	StatusError Status = "error"
	// StatusEmpty means the store responded with zero items.
	StatusEmpty Status = "empty"
)

// StoreResult is one store's outcome. Produced by the fan-out executor and
// never mutated afterwards.
type StoreResult struct {
	Store      string
	Status     Status
	Items      []store.RawItem
	LatencyMS  int64
	Candidates int
	ErrDetail  string
}

// Usable reports whether the store result contributes items to fusion.
func (r *StoreResult) Usable() bool { return r.Status == StatusSuccess }

// Normalized is the canonical result shape after fusion normalization.
// Relevance and Confidence are always within [0,1].
type Normalized struct {
	ID         string
	Content    string
	Relevance  float64
	Confidence float64
	Source     string
	Timestamp  time.Time
	Entities   []string
	Features   feature.Vector
	Meta       map[string]string
	MergedFrom []string
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
