package intent

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/memfed/internal/domain"
)

func TestNew_Defaults(t *testing.T) {
	in, err := New("family trip to Lisbon", "", Hints{}, Preferences{}, "personal", "user-1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if in.Type() != SemanticSearch {
		t.Errorf("type = %q, want semantic_search default", in.Type())
	}
	if in.Preferences().MaxResults != DefaultMaxResults {
		t.Errorf("max results = %d, want %d", in.Preferences().MaxResults, DefaultMaxResults)
	}
	if in.Space() != "personal" || in.Actor() != "user-1" {
		t.Errorf("space/actor = %q/%q", in.Space(), in.Actor())
	}
}

func TestNew_EmptyQuery(t *testing.T) {
	_, err := New("", SemanticSearch, Hints{}, Preferences{}, "", "")
	if !errors.Is(err, domain.ErrInvalidIntent) {
		t.Errorf("err = %v, want ErrInvalidIntent", err)
	}
}

func TestNew_QueryTooLong(t *testing.T) {
	_, err := New(strings.Repeat("x", MaxQueryLength+1), SemanticSearch, Hints{}, Preferences{}, "", "")
	if !errors.Is(err, domain.ErrInvalidIntent) {
		t.Errorf("err = %v, want ErrInvalidIntent", err)
	}
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New("q", "fuzzy_lookup", Hints{}, Preferences{}, "", "")
	if !errors.Is(err, domain.ErrInvalidIntent) {
		t.Errorf("err = %v, want ErrInvalidIntent", err)
	}
}

func TestNew_Clamps(t *testing.T) {
	in, err := New("q", SemanticSearch, Hints{}, Preferences{MaxResults: 500, RecencyBias: 3.0}, "", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if in.Preferences().MaxResults != MaxMaxResults {
		t.Errorf("max results = %d, want clamped to %d", in.Preferences().MaxResults, MaxMaxResults)
	}
	if in.Preferences().RecencyBias != 1 {
		t.Errorf("recency bias = %f, want clamped to 1", in.Preferences().RecencyBias)
	}
}

func TestHints_HasCategory(t *testing.T) {
	h := Hints{Categories: []string{"high_precision"}}
	if !h.HasCategory("high_precision") {
		t.Error("expected category present")
	}
	if h.HasCategory("exploration") {
		t.Error("unexpected category")
	}
}
