package featcache

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memfed/internal/domain/feature"
)

// countingExtractor tracks how many times the inner extractor runs.
type countingExtractor struct {
	inner feature.Extractor
	calls int
}

func (c *countingExtractor) Extract(ctx context.Context, item feature.Item) (feature.Vector, error) {
	c.calls++
	return c.inner.Extract(ctx, item)
}

func TestCachedExtractor_HitSkipsInner(t *testing.T) {
	inner := &countingExtractor{inner: feature.NewHashExtractor()}
	cache := New(inner, NewMemoryStore(16), nil, zap.NewNop())

	item := feature.Item{ID: "doc-1", Content: "weekend plans in Porto"}
	ctx := context.Background()

	first, err := cache.Extract(ctx, item)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	second, err := cache.Extract(ctx, item)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1 (second call cached)", inner.calls)
	}
	if first.ContentLen != second.ContentLen || len(first.Keywords) != len(second.Keywords) {
		t.Error("cached vector differs from computed vector")
	}
}

func TestCachedExtractor_CorruptEntryDegradesToMiss(t *testing.T) {
	inner := &countingExtractor{inner: feature.NewHashExtractor()}
	store := NewMemoryStore(16)
	cache := New(inner, store, nil, zap.NewNop())

	item := feature.Item{ID: "doc-2", Content: "notes"}
	// Poison the cache entry.
	if err := store.Set(context.Background(), cache.cacheKey(item.ID), []byte("{not json")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, err := cache.Extract(context.Background(), item); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1 (corrupt entry recomputed)", inner.calls)
	}
}

func TestMemoryStore_EvictsOldest(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		if err := store.Set(ctx, k, []byte(k)); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	if _, err := store.Get(ctx, "a"); err == nil {
		t.Error("oldest key should be evicted")
	}
	if _, err := store.Get(ctx, "c"); err != nil {
		t.Errorf("newest key missing: %v", err)
	}
}
