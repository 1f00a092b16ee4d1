// Package feature turns result items into comparable feature vectors and
// computes weighted cross-dimension similarity between them.
package feature

import (
	"context"
	"strings"
	"time"
)

// Item is the extractor input: the minimum fields a raw result carries.
type Item struct {
	ID          string
	Content     string
	Entities    []string
	Tags        []string
	Timestamp   time.Time
	ContentType string
}

// Vector is the comparable feature set derived from one result item.
type Vector struct {
	Embedding   []float32       `json:"embedding,omitempty"`
	Keywords    map[string]bool `json:"keywords,omitempty"`
	Entities    map[string]bool `json:"entities,omitempty"`
	Concepts    map[string]bool `json:"concepts,omitempty"`
	Tags        map[string]bool `json:"tags,omitempty"`
	Timestamp   time.Time       `json:"timestamp,omitempty"`
	ContentLen  int             `json:"content_len"`
	ContentType string          `json:"content_type,omitempty"`
}

// Extractor derives a feature vector from a result item.
// Implementations may perform I/O (e.g. a real embedding model); the
// default hash extractor is a pure function.
type Extractor interface {
	Extract(ctx context.Context, item Item) (Vector, error)
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "this": true, "that": true,
	"it": true, "as": true, "my": true, "our": true, "their": true,
}

// Tokenize splits content into lowercased keyword tokens, dropping
// stopwords and tokens shorter than three characters.
func Tokenize(content string) []string {
	fields := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = true
		}
	}
	return set
}
