package fusion

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memfed/internal/domain/feature"
	"github.com/kailas-cloud/memfed/internal/domain/result"
	"github.com/kailas-cloud/memfed/internal/domain/store"
)

// scoreFieldPriority maps the stores' heterogeneous score field names onto
// one relevance field, checked in order.
var scoreFieldPriority = []string{"similarity", "relevance", "text_score", "temporal_score", "score"}

// confidenceField is an optional explicit confidence carried by a store.
const confidenceField = "confidence"

// normalizer flattens per-store raw items into the canonical result shape.
type normalizer struct {
	extractor feature.Extractor
	fallback  *feature.HashExtractor
	logger    *zap.Logger
}

func newNormalizer(extractor feature.Extractor, logger *zap.Logger) *normalizer {
	return &normalizer{
		extractor: extractor,
		fallback:  feature.NewHashExtractor(),
		logger:    logger,
	}
}

// normalize flattens every usable store's items into one list. Stores are
// visited in name order so the output is deterministic regardless of
// completion order. Feature extraction failures degrade to the hash
// extractor instead of dropping the item.
func (n *normalizer) normalize(ctx context.Context, results map[string]result.StoreResult) []result.Normalized {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []result.Normalized
	for _, name := range names {
		sr := results[name]
		if !sr.Usable() {
			continue
		}
		for _, item := range sr.Items {
			out = append(out, n.normalizeItem(ctx, name, item))
		}
	}
	return out
}

func (n *normalizer) normalizeItem(ctx context.Context, storeName string, item store.RawItem) result.Normalized {
	rel := result.Clamp01(pickScore(item.Scores))
	conf := rel
	if c, ok := item.Scores[confidenceField]; ok {
		conf = result.Clamp01(c)
	}

	vec, err := n.extractor.Extract(ctx, feature.Item{
		ID:        item.ID,
		Content:   item.Content,
		Entities:  item.Entities,
		Timestamp: item.Timestamp,
	})
	if err != nil {
		n.logger.Warn("feature extraction failed, using hash fallback",
			zap.String("store", storeName), zap.String("id", item.ID), zap.Error(err))
		vec, _ = n.fallback.Extract(ctx, feature.Item{
			ID:        item.ID,
			Content:   item.Content,
			Entities:  item.Entities,
			Timestamp: item.Timestamp,
		})
	}

	return result.Normalized{
		ID:         item.ID,
		Content:    item.Content,
		Relevance:  rel,
		Confidence: conf,
		Source:     storeName,
		Timestamp:  item.Timestamp,
		Entities:   item.Entities,
		Features:   vec,
		Meta:       item.Meta,
	}
}

func pickScore(scores map[string]float64) float64 {
	for _, field := range scoreFieldPriority {
		if v, ok := scores[field]; ok {
			return v
		}
	}
	return 0
}
