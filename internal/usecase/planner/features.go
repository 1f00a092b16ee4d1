package planner

import (
	"strings"
	"time"
	"unicode"

	"github.com/kailas-cloud/memfed/internal/domain/intent"
)

// QueryFeatures summarizes the retrieval-relevant characteristics of a query
// before any store is consulted.
type QueryFeatures struct {
	WordCount   int
	IsQuestion  bool
	IsKeyword   bool
	HasTemporal bool
	HasEntities bool
	Entities    []string
	From        time.Time
	To          time.Time
}

// questionWords open interrogative queries that lack a trailing "?".
var questionWords = map[string]bool{
	"what": true, "when": true, "where": true, "who": true, "whom": true,
	"why": true, "how": true, "which": true, "did": true, "does": true,
	"do": true, "is": true, "are": true, "was": true, "were": true,
	"can": true, "could": true, "should": true, "would": true,
}

// temporalMarkers signal a time-oriented query.
var temporalMarkers = map[string]bool{
	"yesterday": true, "today": true, "tomorrow": true, "tonight": true,
	"recent": true, "recently": true, "latest": true, "ago": true,
	"last": true, "next": true, "before": true, "after": true,
	"during": true, "since": true, "until": true,
	"morning": true, "afternoon": true, "evening": true, "night": true,
	"week": true, "month": true, "year": true, "weekend": true,
}

// ExtractFeatures derives query characteristics from the intent: temporal
// markers, entity-reference markers, keyword-style short queries, and
// question form. Explicit hints always win over textual detection.
func ExtractFeatures(in *intent.Intent) QueryFeatures {
	words := strings.Fields(in.Query())
	f := QueryFeatures{
		WordCount: len(words),
		From:      in.Hints().TemporalFrom,
		To:        in.Hints().TemporalTo,
	}

	f.IsQuestion = strings.HasSuffix(strings.TrimSpace(in.Query()), "?")
	if !f.IsQuestion && len(words) > 0 {
		f.IsQuestion = questionWords[strings.ToLower(words[0])]
	}
	f.IsKeyword = f.WordCount > 0 && f.WordCount < 4 && !f.IsQuestion

	f.HasTemporal = !f.From.IsZero() || !f.To.IsZero() || in.Type() == intent.TemporalSequence
	if !f.HasTemporal {
		for _, w := range words {
			if temporalMarkers[strings.ToLower(strings.Trim(w, ".,!?"))] {
				f.HasTemporal = true
				break
			}
		}
	}

	f.Entities = mergeEntities(in.Hints().Entities, capitalizedTokens(words))
	f.HasEntities = len(f.Entities) > 0 || in.Type() == intent.EntityLookup

	return f
}

// capitalizedTokens collects mid-sentence capitalized words as entity
// candidates. The first word is skipped since sentence case says nothing.
func capitalizedTokens(words []string) []string {
	var out []string
	for i, w := range words {
		if i == 0 {
			continue
		}
		w = strings.Trim(w, ".,!?\"'")
		if len(w) < 2 {
			continue
		}
		runes := []rune(w)
		if unicode.IsUpper(runes[0]) && !allUpper(runes) {
			out = append(out, w)
		}
	}
	return out
}

// allUpper filters acronyms like "USA" out of entity candidates.
func allUpper(runes []rune) bool {
	for _, r := range runes {
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

func mergeEntities(hinted, detected []string) []string {
	seen := make(map[string]bool, len(hinted)+len(detected))
	var out []string
	for _, e := range append(append([]string{}, hinted...), detected...) {
		key := strings.ToLower(e)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
