package fusion

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memfed/internal/domain/feature"
	"github.com/kailas-cloud/memfed/internal/domain/intent"
	"github.com/kailas-cloud/memfed/internal/domain/plan"
	"github.com/kailas-cloud/memfed/internal/domain/result"
	"github.com/kailas-cloud/memfed/internal/domain/store"
	"github.com/kailas-cloud/memfed/internal/provenance"
	"github.com/kailas-cloud/memfed/internal/usecase/mmr"
)

func testService(t *testing.T, prov provenance.Sink) *Service {
	t.Helper()
	if prov == nil {
		prov = provenance.Noop{}
	}
	engine := mmr.NewEngine(mmr.DefaultConfig(), zap.NewNop())
	return NewService(DefaultConfig(), feature.NewHashExtractor(), engine, prov, zap.NewNop())
}

func testIntent(t *testing.T, query string, qt intent.QueryType, hints intent.Hints, prefs intent.Preferences) *intent.Intent {
	t.Helper()
	in, err := intent.New(query, qt, hints, prefs, "personal", "tester")
	if err != nil {
		t.Fatalf("intent.New: %v", err)
	}
	return &in
}

func storeResult(name string, status result.Status, items ...store.RawItem) result.StoreResult {
	return result.StoreResult{Store: name, Status: status, Items: items, Candidates: len(items)}
}

func rawItem(id, content, field string, score float64) store.RawItem {
	return store.RawItem{ID: id, Content: content, Scores: map[string]float64{field: score}}
}

func TestFuseNormalizesScoreFields(t *testing.T) {
	s := testService(t, nil)
	results := map[string]result.StoreResult{
		"vector_store":   storeResult("vector_store", result.StatusSuccess, rawItem("v1", "sailing club membership renewal", "similarity", 0.9)),
		"fulltext_store": storeResult("fulltext_store", result.StatusSuccess, rawItem("f1", "compost delivery scheduled for tuesday", "text_score", 1.4)),
		"episodic":       storeResult("episodic", result.StatusSuccess, rawItem("e1", "picked up the race bib downtown", "temporal_score", 0.55)),
	}
	in := testIntent(t, "weekend errands", intent.SemanticSearch, intent.Hints{}, intent.Preferences{})

	out := s.Fuse(context.Background(), "req-1", results, plan.StrategyRelevance, in)

	if out.InputCount != 3 {
		t.Fatalf("InputCount = %d, want 3", out.InputCount)
	}
	byID := make(map[string]result.Normalized)
	for _, it := range out.Items {
		byID[it.ID] = it
	}
	if got := byID["f1"].Relevance; got != 1.0 {
		t.Errorf("f1 relevance = %v, want clamped 1.0", got)
	}
	if got := byID["v1"].Relevance; got != 0.9 {
		t.Errorf("v1 relevance = %v, want 0.9", got)
	}
	if got := byID["v1"].Confidence; got != 0.9 {
		t.Errorf("v1 confidence = %v, want relevance fallback 0.9", got)
	}
	if byID["v1"].Source != "vector_store" {
		t.Errorf("v1 source = %q", byID["v1"].Source)
	}
}

func TestFuseSkipsFailedStores(t *testing.T) {
	s := testService(t, nil)
	results := map[string]result.StoreResult{
		"vector_store": storeResult("vector_store", result.StatusSuccess, rawItem("v1", "sailing club membership renewal", "similarity", 0.9)),
		"graph_store":  {Store: "graph_store", Status: result.StatusError, ErrDetail: "down", Items: []store.RawItem{rawItem("g1", "should never appear", "relevance", 0.9)}},
		"episodic":     {Store: "episodic", Status: result.StatusTimeout},
	}
	in := testIntent(t, "sailing", intent.SemanticSearch, intent.Hints{}, intent.Preferences{})

	out := s.Fuse(context.Background(), "req-2", results, plan.StrategyRelevance, in)

	if out.InputCount != 1 {
		t.Fatalf("InputCount = %d, want only the successful store's item", out.InputCount)
	}
	for _, it := range out.Items {
		if it.ID == "g1" {
			t.Fatal("item from an errored store leaked into fusion")
		}
	}
}

func TestFuseTemporalStrategy(t *testing.T) {
	s := testService(t, nil)
	now := time.Now()
	fresh := rawItem("fresh", "note written this morning about the launch", "relevance", 0.6)
	fresh.Timestamp = now.Add(-2 * time.Hour)
	stale := rawItem("stale", "note written last winter about the launch basics", "relevance", 0.7)
	stale.Timestamp = now.Add(-24 * 90 * time.Hour)

	results := map[string]result.StoreResult{
		"episodic": storeResult("episodic", result.StatusSuccess, fresh, stale),
	}
	in := testIntent(t, "launch notes", intent.TemporalSequence, intent.Hints{}, intent.Preferences{})

	out := s.Fuse(context.Background(), "req-3", results, plan.StrategyTemporal, in)

	if len(out.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(out.Items))
	}
	if out.Items[0].ID != "fresh" {
		t.Errorf("top item = %s, want the recent one despite lower base relevance", out.Items[0].ID)
	}
}

func TestFuseEntityStrategy(t *testing.T) {
	s := testService(t, nil)
	hit := rawItem("hit", "coffee with maria about the proposal", "relevance", 0.6)
	hit.Entities = []string{"Maria"}
	miss := rawItem("miss", "solo review of the proposal draft edits", "relevance", 0.7)

	results := map[string]result.StoreResult{
		"graph_store": storeResult("graph_store", result.StatusSuccess, hit, miss),
	}
	in := testIntent(t, "proposal meetings", intent.EntityLookup,
		intent.Hints{Entities: []string{"Maria"}}, intent.Preferences{})

	out := s.Fuse(context.Background(), "req-4", results, plan.StrategyEntity, in)

	if out.Items[0].ID != "hit" {
		t.Errorf("top item = %s, want the entity match boosted past 0.7", out.Items[0].ID)
	}
	if got := out.Items[0].Relevance; got < 0.79 || got > 0.81 {
		t.Errorf("boosted relevance = %v, want 0.8", got)
	}
}

func TestFuseDiversifiedStrategy(t *testing.T) {
	s := testService(t, nil)
	items := []store.RawItem{
		rawItem("r1", "planning the lisbon trip flights hotels itinerary museums", "similarity", 0.9),
		rawItem("r2", "planning the lisbon trip flights hotels itinerary museums", "similarity", 0.88),
		rawItem("d1", "repotting tomato seedlings compost watering greenhouse", "similarity", 0.5),
	}
	results := map[string]result.StoreResult{
		"vector_store": storeResult("vector_store", result.StatusSuccess, items...),
	}
	in := testIntent(t, "trip memories", intent.SemanticSearch, intent.Hints{}, intent.Preferences{MaxResults: 2})

	out := s.Fuse(context.Background(), "req-5", results, plan.StrategyDiversified, in)

	if !out.Diversified {
		t.Fatal("Diversified = false")
	}
	if len(out.Items) > 2 {
		t.Fatalf("got %d items, want at most the 2 requested", len(out.Items))
	}
	if out.DiversityScore <= 0 || out.DiversityScore > 1 {
		t.Errorf("DiversityScore = %v out of range", out.DiversityScore)
	}
}

func TestFuseConfidenceFloor(t *testing.T) {
	s := testService(t, nil)
	low := rawItem("low", "barely relevant scribble", "relevance", 0.5)
	low.Scores["confidence"] = 0.05
	ok := rawItem("ok", "a solid matching note", "relevance", 0.5)

	results := map[string]result.StoreResult{
		"vector_store": storeResult("vector_store", result.StatusSuccess, low, ok),
	}
	in := testIntent(t, "notes", intent.SemanticSearch, intent.Hints{}, intent.Preferences{})

	out := s.Fuse(context.Background(), "req-6", results, plan.StrategyRelevance, in)

	if len(out.Items) != 1 || out.Items[0].ID != "ok" {
		t.Fatalf("items = %v, want the low-confidence item dropped", ids(out.Items))
	}
}

func TestFuseRecencyAndRelatedBoosts(t *testing.T) {
	s := testService(t, nil)
	now := time.Now()
	recent := rawItem("recent", "fresh note about weekend sailing plans", "relevance", 0.5)
	recent.Timestamp = now.Add(-1 * time.Hour)
	related := rawItem("related", "adjacent context on harbor logistics today", "relevance", 0.5)
	related.Meta = map[string]string{"related": "true"}

	results := map[string]result.StoreResult{
		"vector_store": storeResult("vector_store", result.StatusSuccess, recent, related),
	}
	in := testIntent(t, "sailing", intent.SemanticSearch, intent.Hints{},
		intent.Preferences{RecencyBias: 1.0, IncludeRelated: true})

	out := s.Fuse(context.Background(), "req-7", results, plan.StrategyRelevance, in)

	byID := make(map[string]result.Normalized)
	for _, it := range out.Items {
		byID[it.ID] = it
	}
	if got := byID["recent"].Relevance; got <= 0.5 {
		t.Errorf("recent relevance = %v, want recency boost applied", got)
	}
	if got := byID["related"].Relevance; got < 0.549 || got > 0.551 {
		t.Errorf("related relevance = %v, want 0.55", got)
	}
}

func TestFuseTruncatesToMaxResults(t *testing.T) {
	s := testService(t, nil)
	var items []store.RawItem
	contents := []string{
		"morning run along the river path",
		"grocery list for the birthday dinner",
		"insurance renewal deadline next month",
		"piano lesson rescheduled to thursday",
		"roof gutter repair quote received",
	}
	for i, c := range contents {
		items = append(items, rawItem(string(rune('a'+i)), c, "relevance", 0.9-float64(i)*0.1))
	}
	results := map[string]result.StoreResult{
		"vector_store": storeResult("vector_store", result.StatusSuccess, items...),
	}
	in := testIntent(t, "this week", intent.SemanticSearch, intent.Hints{}, intent.Preferences{MaxResults: 3})

	out := s.Fuse(context.Background(), "req-8", results, plan.StrategyRelevance, in)

	if len(out.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(out.Items))
	}
	if out.Items[0].Relevance < out.Items[1].Relevance || out.Items[1].Relevance < out.Items[2].Relevance {
		t.Error("items not sorted by descending relevance")
	}
}

func TestFuseEmitsProvenance(t *testing.T) {
	ring := provenance.NewRing(8)
	s := testService(t, ring)
	results := map[string]result.StoreResult{
		"vector_store": storeResult("vector_store", result.StatusSuccess,
			rawItem("v1", "sailing club membership renewal", "similarity", 0.9)),
	}
	in := testIntent(t, "sailing", intent.SemanticSearch, intent.Hints{}, intent.Preferences{})

	s.Fuse(context.Background(), "req-9", results, plan.StrategyRelevance, in)

	entries := ring.Recent()
	if len(entries) != 1 || entries[0].Kind != provenance.EntryFusion {
		t.Fatalf("entries = %+v, want one fusion event", entries)
	}
	ev := entries[0].Fusion
	if ev.RequestID != "req-9" || ev.InputCount != 1 || ev.OutputCount != 1 {
		t.Errorf("fusion event = %+v", ev)
	}
	if len(ev.Deltas) != 1 {
		t.Errorf("Deltas = %v, want one per output item", ev.Deltas)
	}
}

func TestFuseEmptyResults(t *testing.T) {
	s := testService(t, nil)
	results := map[string]result.StoreResult{
		"vector_store": {Store: "vector_store", Status: result.StatusEmpty},
	}
	in := testIntent(t, "nothing here", intent.SemanticSearch, intent.Hints{}, intent.Preferences{})

	out := s.Fuse(context.Background(), "req-10", results, plan.StrategyDiversified, in)

	if len(out.Items) != 0 || out.InputCount != 0 {
		t.Fatalf("out = %+v, want an empty fusion output", out)
	}
}

func ids(items []result.Normalized) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
