// Package store defines the uniform contract the fan-out executor consumes:
// every backing store, whatever its native shape, sits behind Adapter.
package store

import (
	"context"
	"time"
)

// Kind identifies the class of a backing store.
type Kind string

const (
	// KindVector is an embedding similarity index.
	KindVector Kind = "vector"
	// KindGraph is an entity graph store.
	KindGraph Kind = "graph"
	// KindFulltext is a full-text index.
	KindFulltext Kind = "fulltext"
	// KindEpisodic is a time-ordered episode store.
	KindEpisodic Kind = "episodic"
)

// QueryKind selects the native query shape a store task runs.
type QueryKind string

const (
	// QuerySimilarity is an embedding similarity query.
	QuerySimilarity QueryKind = "similarity"
	// QueryTraversal is a graph traversal from extracted entities.
	QueryTraversal QueryKind = "traversal"
	// QueryFulltext is a full-text query with field boosts.
	QueryFulltext QueryKind = "fulltext"
	// QueryTemporal is a temporal-windowed sequence query.
	QueryTemporal QueryKind = "temporal"
)

// NativeQuery is the generic query adapted to one store's native shape.
type NativeQuery struct {
	Text     string
	Kind     QueryKind
	Entities []string
	From     time.Time
	To       time.Time
	Boosts   map[string]float64
}

// RawItem is one result as a store returns it: a content identifier, text,
// store-specific score fields, and opaque metadata.
type RawItem struct {
	ID        string
	Content   string
	Scores    map[string]float64
	Timestamp time.Time
	Entities  []string
	Meta      map[string]string
}

// Batch is the adapter response: returned items plus the total candidate
// count before truncation.
type Batch struct {
	Items []RawItem
	Total int
}

// Adapter is a backing store behind the uniform query interface.
// The adapter should honor the context deadline itself where possible;
// the executor additionally enforces an outer deadline.
type Adapter interface {
	Name() string
	Kind() Kind
	Query(ctx context.Context, q NativeQuery, maxResults int) (Batch, error)
}
