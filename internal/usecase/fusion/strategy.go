package fusion

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kailas-cloud/memfed/internal/domain/result"
)

// Strategy tuning defaults.
const (
	// DefaultTemporalDecayHours is one week: the half-life scale of the
	// recency decay used by the temporal-weighted strategy.
	DefaultTemporalDecayHours = 168.0
	// temporalBlend is the share of the temporal score in the blend.
	temporalBlend = 0.3
	// neutralDecay is used when an item has no parseable timestamp.
	neutralDecay = 0.5
	// DefaultEntityBoostMax bounds the entity-overlap boost.
	DefaultEntityBoostMax = 0.2
)

// applyTemporal blends relevance with an exponential recency decay and
// writes the blended score back into Relevance. Items without a timestamp
// degrade to a neutral decay instead of aborting the batch.
func applyTemporal(items []result.Normalized, now time.Time, decayHours float64) {
	if decayHours <= 0 {
		decayHours = DefaultTemporalDecayHours
	}
	for i := range items {
		decay := neutralDecay
		if !items[i].Timestamp.IsZero() {
			deltaHours := math.Abs(now.Sub(items[i].Timestamp).Hours())
			decay = math.Exp(-deltaHours / decayHours)
		}
		items[i].Relevance = result.Clamp01((1-temporalBlend)*items[i].Relevance + temporalBlend*decay)
	}
	sortByRelevance(items)
}

// applyEntity adds a bounded boost proportional to the overlap between each
// item's entities and the intent's target entity set.
func applyEntity(items []result.Normalized, targets []string, boostMax float64) {
	if boostMax <= 0 {
		boostMax = DefaultEntityBoostMax
	}
	if len(targets) == 0 {
		sortByRelevance(items)
		return
	}
	wanted := make(map[string]bool, len(targets))
	for _, e := range targets {
		wanted[strings.ToLower(e)] = true
	}
	for i := range items {
		hits := 0
		for _, e := range items[i].Entities {
			if wanted[strings.ToLower(e)] {
				hits++
			}
		}
		boost := boostMax * float64(hits) / float64(len(targets))
		items[i].Relevance = result.Clamp01(items[i].Relevance + boost)
	}
	sortByRelevance(items)
}

func sortByRelevance(items []result.Normalized) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Relevance > items[j].Relevance
	})
}

func truncate(items []result.Normalized, max int) []result.Normalized {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}
