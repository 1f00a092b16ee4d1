// Package featcache caches computed feature vectors by content id. It is
// the only state shared across requests besides the per-store statistics.
package featcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memfed/internal/db"
	"github.com/kailas-cloud/memfed/internal/domain/feature"
)

const cacheKeyPrefix = "memfed:feat_cache:"

// store is the consumer interface for the feature cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// CachedExtractor caches feature vectors in a key-value store.
type CachedExtractor struct {
	inner      feature.Extractor
	store      store
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner feature.Extractor,
	s store,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedExtractor {
	return &CachedExtractor{
		inner:      inner,
		store:      s,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Extract returns a cached feature vector or calls the inner extractor.
// Cache failures degrade to a miss, never to an error.
func (c *CachedExtractor) Extract(ctx context.Context, item feature.Item) (feature.Vector, error) {
	key := c.cacheKey(item.ID)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return vec, nil
	}

	c.incCache("miss")

	vec, err := c.inner.Extract(ctx, item)
	if err != nil {
		return feature.Vector{}, fmt.Errorf("extract features: %w", err)
	}

	c.putToCache(ctx, key, vec)
	return vec, nil
}

func (c *CachedExtractor) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedExtractor) cacheKey(contentID string) string {
	h := sha256.Sum256([]byte(contentID))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedExtractor) getFromCache(ctx context.Context, key string) (feature.Vector, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached features", zap.String("key", key), zap.Error(err))
		}
		return feature.Vector{}, false
	}
	if len(data) == 0 {
		return feature.Vector{}, false
	}

	var vec feature.Vector
	if err := json.Unmarshal(data, &vec); err != nil {
		c.logger.Warn("Failed to parse cached features", zap.String("key", key), zap.Error(err))
		return feature.Vector{}, false
	}
	return vec, true
}

func (c *CachedExtractor) putToCache(ctx context.Context, key string, vec feature.Vector) {
	data, err := json.Marshal(vec)
	if err != nil {
		c.logger.Warn("Failed to encode features", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, key, data); err != nil {
		c.logger.Warn("Failed to cache features", zap.String("key", key), zap.Error(err))
	}
}
