// Package chi is the HTTP surface of the recall service: one recall
// endpoint plus probes, metrics, and a recent-provenance debugging view.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memfed/internal/domain"
	"github.com/kailas-cloud/memfed/internal/domain/budget"
	"github.com/kailas-cloud/memfed/internal/domain/bundle"
	"github.com/kailas-cloud/memfed/internal/domain/intent"
	"github.com/kailas-cloud/memfed/internal/provenance"
	healthuc "github.com/kailas-cloud/memfed/internal/usecase/health"
)

// Assembler runs the recall pipeline for one request.
type Assembler interface {
	AssembleBundle(ctx context.Context, requestID string, in *intent.Intent, b budget.Budget) (*bundle.Bundle, error)
}

// Server handles the HTTP API.
type Server struct {
	recall        Assembler
	health        *healthuc.Service
	ring          *provenance.Ring
	logger        *zap.Logger
	defaultBudget budget.Budget
}

// NewServer creates an HTTP API server. ring may be nil when the in-memory
// provenance buffer is disabled.
func NewServer(recall Assembler, health *healthuc.Service, ring *provenance.Ring, logger *zap.Logger) *Server {
	return &Server{
		recall:        recall,
		health:        health,
		ring:          ring,
		logger:        logger,
		defaultBudget: budget.Default(),
	}
}

// WithDefaultBudget overrides the budget applied to requests that omit one.
func (s *Server) WithDefaultBudget(b budget.Budget) *Server {
	s.defaultBudget = b
	return s
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/v1/recall", s.handleRecall)
	r.Get("/v1/provenance/recent", s.handleProvenance)
	r.Get("/healthz", s.handleLiveness)
	r.Get("/readyz", s.handleReadiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

type recallRequest struct {
	Query       string             `json:"query"`
	Type        string             `json:"type,omitempty"`
	RequestID   string             `json:"request_id,omitempty"`
	Space       string             `json:"space,omitempty"`
	Actor       string             `json:"actor,omitempty"`
	Hints       recallHints        `json:"hints"`
	Preferences recallPreferences  `json:"preferences"`
	Budget      *performanceBudget `json:"budget,omitempty"`
}

type recallHints struct {
	TemporalFrom *time.Time        `json:"temporal_from,omitempty"`
	TemporalTo   *time.Time        `json:"temporal_to,omitempty"`
	Entities     []string          `json:"entities,omitempty"`
	Categories   []string          `json:"categories,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

type recallPreferences struct {
	MaxResults     int     `json:"max_results,omitempty"`
	RecencyBias    float64 `json:"recency_bias,omitempty"`
	IncludeRelated bool    `json:"include_related,omitempty"`
}

type performanceBudget struct {
	MaxLatencyMS    int64 `json:"max_latency_ms,omitempty"`
	MaxStores       int   `json:"max_stores,omitempty"`
	MaxPerStore     int   `json:"max_per_store,omitempty"`
	MaxTotal        int   `json:"max_total,omitempty"`
	TimeoutBufferMS int64 `json:"timeout_buffer_ms,omitempty"`
}

type bundleResponse struct {
	ID            string                   `json:"id"`
	RequestID     string                   `json:"request_id"`
	Query         string                   `json:"query"`
	Results       []resultResponse         `json:"results"`
	TotalCount    int                      `json:"total_count"`
	ProcessingMS  int64                    `json:"processing_ms"`
	Confidence    float64                  `json:"confidence"`
	Diversity     float64                  `json:"diversity"`
	Coverage      map[string]coverageEntry `json:"store_coverage"`
	Fusion        fusionInfo               `json:"fusion"`
	ProvenanceRef string                   `json:"provenance_ref"`
}

type resultResponse struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Relevance  float64           `json:"relevance"`
	Confidence float64           `json:"confidence"`
	Source     string            `json:"source"`
	Timestamp  *time.Time        `json:"timestamp,omitempty"`
	Entities   []string          `json:"entities,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
	MergedFrom []string          `json:"merged_from,omitempty"`
}

type coverageEntry struct {
	Status     string `json:"status"`
	Results    int    `json:"results"`
	LatencyMS  int64  `json:"latency_ms"`
	Candidates int    `json:"candidates"`
}

type fusionInfo struct {
	Strategy     string `json:"strategy"`
	InputCount   int    `json:"input_count"`
	OutputCount  int    `json:"output_count"`
	DedupRemoved int    `json:"dedup_removed"`
	Diversified  bool   `json:"diversified"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleRecall handles POST /v1/recall.
func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	var req recallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	hints := intent.Hints{
		Entities:   req.Hints.Entities,
		Categories: req.Hints.Categories,
		Extra:      req.Hints.Extra,
	}
	if req.Hints.TemporalFrom != nil {
		hints.TemporalFrom = *req.Hints.TemporalFrom
	}
	if req.Hints.TemporalTo != nil {
		hints.TemporalTo = *req.Hints.TemporalTo
	}

	in, err := intent.New(req.Query, intent.QueryType(req.Type), hints, intent.Preferences{
		MaxResults:     req.Preferences.MaxResults,
		RecencyBias:    req.Preferences.RecencyBias,
		IncludeRelated: req.Preferences.IncludeRelated,
	}, req.Space, req.Actor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_intent", err.Error())
		return
	}

	b := s.defaultBudget
	if req.Budget != nil {
		b, err = budget.New(
			req.Budget.MaxLatencyMS, req.Budget.MaxStores,
			req.Budget.MaxPerStore, req.Budget.MaxTotal, req.Budget.TimeoutBufferMS,
		)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_budget", err.Error())
			return
		}
	}

	bnd, err := s.recall.AssembleBundle(r.Context(), req.RequestID, &in, b)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bundleToResponse(bnd))
}

// handleProvenance handles GET /v1/provenance/recent.
func (s *Server) handleProvenance(w http.ResponseWriter, _ *http.Request) {
	entries := []provenance.Entry{}
	if s.ring != nil {
		entries = s.ring.Recent()
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// handleLiveness handles GET /healthz.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadiness handles GET /readyz.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	rep := s.health.Check(r.Context())
	status := http.StatusOK
	if rep.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidIntent):
		writeError(w, http.StatusBadRequest, "invalid_intent", err.Error())
	case errors.Is(err, domain.ErrInvalidBudget):
		writeError(w, http.StatusBadRequest, "invalid_budget", err.Error())
	case errors.Is(err, domain.ErrNoStoresAvailable):
		writeError(w, http.StatusServiceUnavailable, "no_stores_available", err.Error())
	default:
		s.logger.Error("recall request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "assembly_failed", "bundle assembly failed")
	}
}

func bundleToResponse(b *bundle.Bundle) bundleResponse {
	results := make([]resultResponse, len(b.Results))
	for i, res := range b.Results {
		rr := resultResponse{
			ID:         res.ID,
			Content:    res.Content,
			Relevance:  res.Relevance,
			Confidence: res.Confidence,
			Source:     res.Source,
			Entities:   res.Entities,
			Meta:       res.Meta,
			MergedFrom: res.MergedFrom,
		}
		if !res.Timestamp.IsZero() {
			ts := res.Timestamp
			rr.Timestamp = &ts
		}
		results[i] = rr
	}

	coverage := make(map[string]coverageEntry, len(b.Coverage))
	for name, c := range b.Coverage {
		coverage[name] = coverageEntry{
			Status:     string(c.Status),
			Results:    c.Results,
			LatencyMS:  c.LatencyMS,
			Candidates: c.Candidates,
		}
	}

	return bundleResponse{
		ID:            b.ID,
		RequestID:     b.RequestID,
		Query:         b.Query,
		Results:       results,
		TotalCount:    b.TotalCount,
		ProcessingMS:  b.ProcessingMS,
		Confidence:    b.Confidence,
		Diversity:     b.Diversity,
		Coverage:      coverage,
		Fusion: fusionInfo{
			Strategy:     string(b.Fusion.Strategy),
			InputCount:   b.Fusion.InputCount,
			OutputCount:  b.Fusion.OutputCount,
			DedupRemoved: b.Fusion.DedupRemoved,
			Diversified:  b.Fusion.Diversified,
		},
		ProvenanceRef: b.ProvenanceRef,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
