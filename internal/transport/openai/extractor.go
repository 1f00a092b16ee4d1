// Package openai implements the feature extractor against an
// OpenAI-compatible embeddings API, replacing the hash pseudo-embedding
// with a real semantic model.
package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memfed/internal/domain"
	"github.com/kailas-cloud/memfed/internal/domain/feature"
	"github.com/kailas-cloud/memfed/internal/metrics"
)

// Extractor derives feature vectors using a remote embedding model for the
// semantic dimension; the set-based dimensions stay local.
type Extractor struct {
	client   *openai.Client
	model    openai.EmbeddingModel
	dims     int
	provider string
	local    *feature.HashExtractor
	logger   *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Provider   string
	Logger     *zap.Logger
}

// NewExtractor creates an OpenAI-compatible feature extractor.
func NewExtractor(cfg *Config) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Extractor{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    openai.EmbeddingModel(cfg.Model),
		dims:     cfg.Dimensions,
		provider: cfg.Provider,
		local:    feature.NewHashExtractor(),
		logger:   cfg.Logger,
	}
}

// Extract implements feature.Extractor.
func (e *Extractor) Extract(ctx context.Context, item feature.Item) (feature.Vector, error) {
	vec, err := e.local.Extract(ctx, item)
	if err != nil {
		return feature.Vector{}, err
	}
	if item.Content == "" {
		return vec, nil
	}

	req := openai.EmbeddingRequest{
		Input:          []string{item.Content},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dims > 0 {
		req.Dimensions = e.dims
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.FeatureExtractTotal.WithLabelValues(e.provider, "error").Inc()
		return feature.Vector{}, fmt.Errorf("%w: %v", domain.ErrFeatureExtraction, err)
	}
	if len(resp.Data) == 0 {
		metrics.FeatureExtractTotal.WithLabelValues(e.provider, "error").Inc()
		return feature.Vector{}, fmt.Errorf("%w: empty embedding response", domain.ErrFeatureExtraction)
	}

	metrics.FeatureExtractTotal.WithLabelValues(e.provider, "success").Inc()
	e.logger.Debug("embedded content",
		zap.String("provider", e.provider),
		zap.String("content_id", item.ID),
		zap.Duration("duration", duration),
	)

	vec.Embedding = resp.Data[0].Embedding
	return vec, nil
}
