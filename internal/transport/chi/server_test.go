package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memfed/internal/domain"
	"github.com/kailas-cloud/memfed/internal/domain/budget"
	"github.com/kailas-cloud/memfed/internal/domain/bundle"
	"github.com/kailas-cloud/memfed/internal/domain/intent"
	"github.com/kailas-cloud/memfed/internal/domain/plan"
	"github.com/kailas-cloud/memfed/internal/domain/result"
	"github.com/kailas-cloud/memfed/internal/provenance"
	healthuc "github.com/kailas-cloud/memfed/internal/usecase/health"
)

type fakeAssembler struct {
	bnd *bundle.Bundle
	err error

	gotRequestID string
	gotIntent    *intent.Intent
	gotBudget    budget.Budget
}

func (f *fakeAssembler) AssembleBundle(
	_ context.Context, requestID string, in *intent.Intent, b budget.Budget,
) (*bundle.Bundle, error) {
	f.gotRequestID = requestID
	f.gotIntent = in
	f.gotBudget = b
	return f.bnd, f.err
}

func testBundle() *bundle.Bundle {
	return &bundle.Bundle{
		ID:         "b-1",
		RequestID:  "req-1",
		Query:      "harbor sailing",
		Results:    []result.Normalized{{ID: "m1", Content: "sailing club", Relevance: 0.9, Confidence: 0.9, Source: "vector_store"}},
		TotalCount: 1,
		Confidence: 0.8,
		Diversity:  1.0,
		Coverage: map[string]bundle.StoreCoverage{
			"vector_store": {Status: result.StatusSuccess, Results: 1, LatencyMS: 12, Candidates: 4},
		},
		Fusion:        bundle.FusionInfo{Strategy: plan.StrategyDiversified, InputCount: 4, OutputCount: 1, Diversified: true},
		ProvenanceRef: "req-1",
	}
}

func newTestRouter(assembler Assembler, ring *provenance.Ring) http.Handler {
	r := chirouter.NewRouter()
	srv := NewServer(assembler, healthuc.New(nil), ring, zap.NewNop())
	srv.Register(r)
	return r
}

func TestHandleRecall(t *testing.T) {
	fake := &fakeAssembler{bnd: testBundle()}
	router := newTestRouter(fake, nil)

	body := `{
		"query": "harbor sailing",
		"request_id": "req-1",
		"preferences": {"max_results": 5},
		"budget": {"max_latency_ms": 300, "max_stores": 2}
	}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/recall", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if fake.gotRequestID != "req-1" {
		t.Errorf("request id = %q", fake.gotRequestID)
	}
	if fake.gotIntent.Query() != "harbor sailing" {
		t.Errorf("intent query = %q", fake.gotIntent.Query())
	}
	if fake.gotIntent.Preferences().MaxResults != 5 {
		t.Errorf("max results = %d", fake.gotIntent.Preferences().MaxResults)
	}
	if fake.gotBudget.MaxLatencyMS() != 300 || fake.gotBudget.MaxStores() != 2 {
		t.Errorf("budget = %d ms / %d stores", fake.gotBudget.MaxLatencyMS(), fake.gotBudget.MaxStores())
	}

	var resp bundleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "b-1" || resp.TotalCount != 1 {
		t.Errorf("response = %+v", resp)
	}
	if resp.Coverage["vector_store"].Status != "success" {
		t.Errorf("coverage = %+v", resp.Coverage)
	}
	if !resp.Fusion.Diversified {
		t.Error("fusion metadata lost in mapping")
	}
}

func TestHandleRecallDefaultsBudget(t *testing.T) {
	fake := &fakeAssembler{bnd: testBundle()}
	router := newTestRouter(fake, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/recall",
		strings.NewReader(`{"query": "anything"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if fake.gotBudget.MaxLatencyMS() != budget.DefaultMaxLatencyMS {
		t.Errorf("budget not defaulted: %d", fake.gotBudget.MaxLatencyMS())
	}
}

func TestHandleRecallValidation(t *testing.T) {
	router := newTestRouter(&fakeAssembler{}, nil)

	cases := []struct {
		name string
		body string
		code string
	}{
		{"empty query", `{"query": ""}`, "invalid_intent"},
		{"bad type", `{"query": "x", "type": "mind_reading"}`, "invalid_intent"},
		{"negative budget", `{"query": "x", "budget": {"max_latency_ms": -1}}`, "invalid_budget"},
		{"malformed json", `{`, "bad_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/recall", strings.NewReader(tc.body)))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var er errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if er.Code != tc.code {
				t.Errorf("code = %q, want %q", er.Code, tc.code)
			}
		})
	}
}

func TestHandleRecallErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"no stores", domain.NewAssemblyError("b", "r", domain.ErrNoStoresAvailable), http.StatusServiceUnavailable},
		{"assembly failure", domain.NewAssemblyError("b", "r", context.DeadlineExceeded), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&fakeAssembler{err: tc.err}, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/recall",
				strings.NewReader(`{"query": "x"}`)))

			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
}

func TestHandleProvenance(t *testing.T) {
	ring := provenance.NewRing(8)
	ring.StoreQueried(provenance.StoreEvent{RequestID: "req-1", Store: "vector_store", Success: true})
	router := newTestRouter(&fakeAssembler{}, ring)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/provenance/recent", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Count   int               `json:"count"`
		Entries []json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || len(resp.Entries) != 1 {
		t.Errorf("resp = %+v, want one entry", resp)
	}
}

func TestProbeEndpoints(t *testing.T) {
	router := newTestRouter(&fakeAssembler{}, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
