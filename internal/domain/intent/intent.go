// Package intent models the recall request: what to search for and how the
// caller wants the bundle shaped. An Intent is immutable once constructed.
package intent

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/memfed/internal/domain"
)

// QueryType selects the retrieval posture for a recall request.
type QueryType string

const (
	// SemanticSearch retrieves by meaning.
	SemanticSearch QueryType = "semantic_search"
	// TemporalSequence retrieves by time ordering.
	TemporalSequence QueryType = "temporal_sequence"
	// EntityLookup retrieves by entity reference.
	EntityLookup QueryType = "entity_lookup"
)

// IsValid reports whether t is a recognized query type.
func (t QueryType) IsValid() bool {
	switch t {
	case SemanticSearch, TemporalSequence, EntityLookup:
		return true
	}
	return false
}

// Request parameter limits.
const (
	MaxQueryLength    = 4096
	DefaultMaxResults = 10
	MaxMaxResults     = 100
)

// Hints carries free-form context accompanying a query. Extra is a
// pass-through bag for forward-compatible, non-critical hints only.
type Hints struct {
	TemporalFrom time.Time
	TemporalTo   time.Time
	Entities     []string
	Categories   []string
	Extra        map[string]string
}

// HasCategory reports whether the given intent category hint is present.
func (h Hints) HasCategory(name string) bool {
	for _, c := range h.Categories {
		if c == name {
			return true
		}
	}
	return false
}

// Preferences shapes the returned bundle.
type Preferences struct {
	MaxResults     int
	RecencyBias    float64
	IncludeRelated bool
}

// Intent is a validated recall request.
type Intent struct {
	query     string
	queryType QueryType
	hints     Hints
	prefs     Preferences
	space     string
	actor     string
}

// New validates and normalizes a recall request.
// Defaults: type=semantic_search, max results=10 (clamped to 100),
// recency bias clamped to [0,1].
func New(query string, qt QueryType, hints Hints, prefs Preferences, space, actor string) (Intent, error) {
	if query == "" {
		return Intent{}, fmt.Errorf("%w: query is required", domain.ErrInvalidIntent)
	}
	if len(query) > MaxQueryLength {
		return Intent{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidIntent, MaxQueryLength)
	}
	if qt == "" {
		qt = SemanticSearch
	}
	if !qt.IsValid() {
		return Intent{}, fmt.Errorf("%w: unknown query type %q", domain.ErrInvalidIntent, qt)
	}
	if prefs.MaxResults <= 0 {
		prefs.MaxResults = DefaultMaxResults
	}
	if prefs.MaxResults > MaxMaxResults {
		prefs.MaxResults = MaxMaxResults
	}
	if prefs.RecencyBias < 0 {
		prefs.RecencyBias = 0
	}
	if prefs.RecencyBias > 1 {
		prefs.RecencyBias = 1
	}

	return Intent{
		query:     query,
		queryType: qt,
		hints:     hints,
		prefs:     prefs,
		space:     space,
		actor:     actor,
	}, nil
}

// Query returns the query text.
func (i *Intent) Query() string { return i.query }

// Type returns the query type.
func (i *Intent) Type() QueryType { return i.queryType }

// Hints returns the context hints.
func (i *Intent) Hints() Hints { return i.hints }

// Preferences returns the bundle preferences.
func (i *Intent) Preferences() Preferences { return i.prefs }

// Space returns the space identifier the query targets.
func (i *Intent) Space() string { return i.space }

// Actor returns the requesting actor.
func (i *Intent) Actor() string { return i.actor }
