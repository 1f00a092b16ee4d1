package feature

import (
	"context"
	"hash/fnv"
	"math"
)

// EmbeddingDim is the dimensionality of the hash pseudo-embedding.
const EmbeddingDim = 64

// HashExtractor derives features deterministically from content, using a
// token-hash pseudo-embedding in place of a semantic model. Pure function,
// no I/O; safe for concurrent use.
type HashExtractor struct{}

// NewHashExtractor creates the deterministic extractor.
func NewHashExtractor() *HashExtractor { return &HashExtractor{} }

// Extract implements Extractor.
func (e *HashExtractor) Extract(_ context.Context, item Item) (Vector, error) {
	tokens := Tokenize(item.Content)

	keywords := make(map[string]bool, len(tokens))
	var concepts map[string]bool
	for _, tok := range tokens {
		keywords[tok] = true
		// Longer tokens stand in for concepts until a real model is wired.
		if len(tok) > 6 {
			if concepts == nil {
				concepts = make(map[string]bool)
			}
			concepts[tok] = true
		}
	}

	contentType := item.ContentType
	if contentType == "" {
		contentType = "text"
	}

	return Vector{
		Embedding:   pseudoEmbedding(tokens),
		Keywords:    keywords,
		Entities:    toSet(item.Entities),
		Concepts:    concepts,
		Tags:        toSet(item.Tags),
		Timestamp:   item.Timestamp,
		ContentLen:  len(item.Content),
		ContentType: contentType,
	}, nil
}

// pseudoEmbedding buckets token hashes into a fixed-size L2-normalized vector.
func pseudoEmbedding(tokens []string) []float32 {
	if len(tokens) == 0 {
		return nil
	}
	vec := make([]float32, EmbeddingDim)
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % EmbeddingDim)
		// Sign from the next hash bit spreads tokens over both directions.
		if (sum>>8)&1 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
