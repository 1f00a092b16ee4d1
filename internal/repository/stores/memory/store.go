// Package memory is an in-process store adapter: a scored keyword matcher
// over seeded records. It backs local development and tests, and doubles as
// a configurable fake for exercising fan-out failure modes.
package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kailas-cloud/memfed/internal/domain/feature"
	"github.com/kailas-cloud/memfed/internal/domain/store"
)

// Record is one seeded memory item.
type Record struct {
	ID        string
	Content   string
	Timestamp time.Time
	Entities  []string
	Meta      map[string]string
}

// Store is an in-memory store adapter. Records are fixed after construction.
type Store struct {
	name    string
	kind    store.Kind
	records []Record

	// Test/latency knobs.
	delay time.Duration
	err   error
}

// Option configures a Store.
type Option func(*Store)

// WithDelay makes every query take at least d before responding.
func WithDelay(d time.Duration) Option {
	return func(s *Store) { s.delay = d }
}

// WithError makes every query fail with err.
func WithError(err error) Option {
	return func(s *Store) { s.err = err }
}

// New creates an in-memory adapter.
func New(name string, kind store.Kind, records []Record, opts ...Option) *Store {
	s := &Store{name: name, kind: kind, records: records}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements store.Adapter.
func (s *Store) Name() string { return s.name }

// Kind implements store.Adapter.
func (s *Store) Kind() store.Kind { return s.kind }

// Query implements store.Adapter.
func (s *Store) Query(ctx context.Context, q store.NativeQuery, maxResults int) (store.Batch, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return store.Batch{}, ctx.Err()
		}
	}
	if s.err != nil {
		return store.Batch{}, s.err
	}
	if err := ctx.Err(); err != nil {
		return store.Batch{}, err
	}

	type scored struct {
		rec   Record
		score float64
	}
	var matches []scored
	queryTokens := feature.Tokenize(q.Text)

	for _, rec := range s.records {
		if q.Kind == store.QueryTemporal && !inWindow(rec.Timestamp, q.From, q.To) {
			continue
		}
		score := overlapScore(queryTokens, rec.Content)
		if q.Kind == store.QueryTraversal {
			score = 0.5*score + 0.5*entityOverlap(q.Entities, rec.Entities)
		}
		if score <= 0 {
			continue
		}
		matches = append(matches, scored{rec: rec, score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	total := len(matches)
	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}

	items := make([]store.RawItem, len(matches))
	for i, m := range matches {
		items[i] = store.RawItem{
			ID:        m.rec.ID,
			Content:   m.rec.Content,
			Scores:    map[string]float64{s.scoreField(): m.score},
			Timestamp: m.rec.Timestamp,
			Entities:  m.rec.Entities,
			Meta:      m.rec.Meta,
		}
	}
	return store.Batch{Items: items, Total: total}, nil
}

// scoreField mirrors the heterogeneous score field names real stores use.
func (s *Store) scoreField() string {
	switch s.kind {
	case store.KindVector:
		return "similarity"
	case store.KindFulltext:
		return "text_score"
	case store.KindEpisodic:
		return "temporal_score"
	default:
		return "relevance"
	}
}

func overlapScore(queryTokens []string, content string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	lc := strings.ToLower(content)
	hits := 0
	for _, tok := range queryTokens {
		if strings.Contains(lc, tok) {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}

func entityOverlap(wanted, have []string) float64 {
	if len(wanted) == 0 || len(have) == 0 {
		return 0
	}
	haveSet := make(map[string]bool, len(have))
	for _, e := range have {
		haveSet[strings.ToLower(e)] = true
	}
	hits := 0
	for _, e := range wanted {
		if haveSet[strings.ToLower(e)] {
			hits++
		}
	}
	return float64(hits) / float64(len(wanted))
}

func inWindow(ts, from, to time.Time) bool {
	if ts.IsZero() {
		return false
	}
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && ts.After(to) {
		return false
	}
	return true
}
