// Package redistext adapts a Redis full-text index (FT.SEARCH BM25) to the
// uniform store interface.
package redistext

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/memfed/internal/db"
	"github.com/kailas-cloud/memfed/internal/domain/store"
)

// Document field names expected in the index schema.
const (
	fieldContent   = "content"
	fieldTimestamp = "timestamp"
	fieldEntities  = "entities"
)

// bm25Ceiling normalizes raw BM25 scores into [0,1].
const bm25Ceiling = 10.0

// Store adapts a Redis full-text index to store.Adapter.
type Store struct {
	name     string
	index    string
	prefix   string
	searcher db.TextSearcher
}

// New creates a Redis full-text adapter over the given index.
// prefix is stripped from document keys to recover content ids.
func New(name, index, prefix string, searcher db.TextSearcher) *Store {
	return &Store{name: name, index: index, prefix: prefix, searcher: searcher}
}

// Name implements store.Adapter.
func (s *Store) Name() string { return s.name }

// Kind implements store.Adapter.
func (s *Store) Kind() store.Kind { return store.KindFulltext }

// Query implements store.Adapter.
func (s *Store) Query(ctx context.Context, q store.NativeQuery, maxResults int) (store.Batch, error) {
	res, err := s.searcher.SearchText(ctx, db.TextQuery{
		IndexName:    s.index,
		Query:        q.Text,
		TopK:         maxResults,
		ReturnFields: []string{fieldContent, fieldTimestamp, fieldEntities},
	})
	if err != nil {
		return store.Batch{}, fmt.Errorf("fulltext search: %w", err)
	}

	items := make([]store.RawItem, 0, len(res.Entries))
	for _, entry := range res.Entries {
		items = append(items, s.toRawItem(entry))
	}
	return store.Batch{Items: items, Total: res.Total}, nil
}

func (s *Store) toRawItem(entry db.SearchEntry) store.RawItem {
	item := store.RawItem{
		ID:      strings.TrimPrefix(entry.Key, s.prefix),
		Content: entry.Fields[fieldContent],
		Scores:  map[string]float64{"text_score": normalizeBM25(entry.Score)},
		Meta:    map[string]string{},
	}

	// Malformed fields degrade to absent, never fail the batch.
	if raw := entry.Fields[fieldTimestamp]; raw != "" {
		if ts, err := parseTimestamp(raw); err == nil {
			item.Timestamp = ts
		}
	}
	if raw := entry.Fields[fieldEntities]; raw != "" {
		for _, e := range strings.Split(raw, ",") {
			if e = strings.TrimSpace(e); e != "" {
				item.Entities = append(item.Entities, e)
			}
		}
	}
	for k, v := range entry.Fields {
		if k != fieldContent && k != fieldTimestamp && k != fieldEntities {
			item.Meta[k] = v
		}
	}
	return item
}

func normalizeBM25(score float64) float64 {
	if score <= 0 {
		return 0
	}
	if score >= bm25Ceiling {
		return 1
	}
	return score / bm25Ceiling
}

func parseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", raw)
}
