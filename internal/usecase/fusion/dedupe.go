package fusion

import (
	"strings"

	"github.com/kailas-cloud/memfed/internal/domain/feature"
	"github.com/kailas-cloud/memfed/internal/domain/result"
)

// DefaultDedupThreshold is the similarity at which two results merge.
const DefaultDedupThreshold = 0.85

// deduper merges near-identical results across stores using transitive
// clustering over pairwise similarity.
type deduper struct {
	threshold float64
	weights   feature.Weights
}

// dedupe groups items whose pairwise similarity reaches the threshold,
// keeping the highest-relevance item of each group as representative. The
// representative absorbs the group's entity union, the averaged confidence,
// and the merged-away ids. Returns the survivors in input order and the
// number of items removed.
func (d *deduper) dedupe(items []result.Normalized) ([]result.Normalized, int) {
	n := len(items)
	if n < 2 {
		return items, 0
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[rj] = ri
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if feature.Similarity(items[i].Features, items[j].Features, d.weights) >= d.threshold {
				union(i, j)
			}
		}
	}

	clusters := make(map[int][]int, n)
	for i := 0; i < n; i++ {
		root := find(i)
		clusters[root] = append(clusters[root], i)
	}

	out := make([]result.Normalized, 0, len(clusters))
	for i := 0; i < n; i++ {
		members, ok := clusters[find(i)]
		if !ok || members[0] != i {
			continue
		}
		out = append(out, d.merge(items, members))
	}
	return out, n - len(out)
}

// merge collapses one cluster into its representative.
func (d *deduper) merge(items []result.Normalized, members []int) result.Normalized {
	best := members[0]
	for _, m := range members[1:] {
		if items[m].Relevance > items[best].Relevance {
			best = m
		}
	}

	rep := items[best]
	if len(members) == 1 {
		return rep
	}

	var confSum float64
	entities := make([]string, 0, len(rep.Entities))
	seen := make(map[string]bool)
	merged := make([]string, 0, len(members)-1)
	for _, m := range members {
		confSum += items[m].Confidence
		for _, e := range items[m].Entities {
			key := strings.ToLower(e)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			entities = append(entities, e)
		}
		if m != best {
			merged = append(merged, items[m].ID)
			merged = append(merged, items[m].MergedFrom...)
		}
	}

	rep.Confidence = result.Clamp01(confSum / float64(len(members)))
	rep.Entities = entities
	rep.MergedFrom = append(append([]string{}, rep.MergedFrom...), merged...)
	return rep
}
