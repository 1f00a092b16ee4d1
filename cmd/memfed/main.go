// Command memfed serves the memory recall API: it plans federated queries
// over the configured stores, fans out within the request budget, fuses the
// results and returns explainable context bundles over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memfed/internal/config"
	"github.com/kailas-cloud/memfed/internal/db"
	dbRedis "github.com/kailas-cloud/memfed/internal/db/redis"
	"github.com/kailas-cloud/memfed/internal/domain/budget"
	"github.com/kailas-cloud/memfed/internal/domain/feature"
	"github.com/kailas-cloud/memfed/internal/domain/store"
	logpkg "github.com/kailas-cloud/memfed/internal/logger"
	"github.com/kailas-cloud/memfed/internal/metrics"
	"github.com/kailas-cloud/memfed/internal/provenance"
	"github.com/kailas-cloud/memfed/internal/repository/featcache"
	memstore "github.com/kailas-cloud/memfed/internal/repository/stores/memory"
	"github.com/kailas-cloud/memfed/internal/repository/stores/redistext"
	chiTransport "github.com/kailas-cloud/memfed/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/memfed/internal/transport/openai"
	"github.com/kailas-cloud/memfed/internal/usecase/fanout"
	"github.com/kailas-cloud/memfed/internal/usecase/fusion"
	healthuc "github.com/kailas-cloud/memfed/internal/usecase/health"
	"github.com/kailas-cloud/memfed/internal/usecase/mmr"
	"github.com/kailas-cloud/memfed/internal/usecase/planner"
	"github.com/kailas-cloud/memfed/internal/usecase/recall"
	"github.com/kailas-cloud/memfed/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting memfed API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Int("stores", len(cfg.Stores)),
	)

	// Create database store based on driver. Driver "none" keeps everything
	// in-process; only memory-backed stores and the local feature cache work.
	var dbStore db.Store
	switch cfg.Database.Driver {
	case "redis":
		dbStore, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
	case "none":
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}

	ctx := context.Background()
	if dbStore != nil {
		defer dbStore.Close()
		if err := dbStore.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database")
	}

	// Register recall metrics explicitly (no init())
	metrics.RegisterRecallMetrics()

	// Provenance sinks — composition root
	ring := provenance.NewRing(cfg.Provenance.RingSize)
	sinks := provenance.Multi{ring, provenance.NewZapSink(logger)}
	if cfg.Provenance.OTelEnabled {
		shutdownTracing, err := provenance.InitTracing("memfed")
		if err != nil {
			logger.Fatal("Failed to init tracing", zap.Error(err))
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("Error shutting down tracing", zap.Error(err))
			}
		}()
		sinks = append(sinks, provenance.NewOTelSink())
	}

	// Build feature extractor chain
	var extractor feature.Extractor
	switch cfg.Features.Provider {
	case "openai":
		extractor = openaiTransport.NewExtractor(&openaiTransport.Config{
			APIKey:     cfg.Features.APIKey,
			BaseURL:    cfg.Features.BaseURL,
			Model:      cfg.Features.Model,
			Dimensions: cfg.Features.Dimensions,
			Provider:   cfg.Features.Provider,
			Logger:     logger,
		})
	default:
		extractor = feature.NewHashExtractor()
	}
	if dbStore != nil {
		extractor = featcache.New(extractor, dbStore, metrics.FeatureCacheTotal, logger)
	} else {
		extractor = featcache.New(
			extractor, featcache.NewMemoryStore(cfg.Features.CacheSize),
			metrics.FeatureCacheTotal, logger,
		)
	}
	logger.Info("Feature extractor created", zap.String("provider", cfg.Features.Provider))

	// Register store adapters from config
	adapters := make([]store.Adapter, 0, len(cfg.Stores))
	for _, sc := range cfg.Stores {
		switch sc.Driver {
		case "redistext":
			adapters = append(adapters, redistext.New(sc.Name, sc.Index, sc.Prefix, dbStore))
		default:
			adapters = append(adapters, memstore.New(sc.Name, store.Kind(sc.Kind), nil))
		}
		logger.Info("Registered store",
			zap.String("name", sc.Name),
			zap.String("kind", sc.Kind),
			zap.String("driver", sc.Driver),
		)
	}

	// Create use case services
	stats := fanout.NewStatRegistry()
	breaker := fanout.NewBreaker(fanout.BreakerConfig{
		ErrorRateThreshold: cfg.Recall.BreakerErrorRate,
		MinSamples:         cfg.Recall.BreakerMinSamples,
		Cooldown:           time.Duration(cfg.Recall.BreakerCooldownSec) * time.Second,
	}, stats)
	executor := fanout.NewExecutor(adapters, stats, breaker, sinks, logger)

	plannerSvc := planner.NewService(planner.Config{MaxStores: cfg.Recall.MaxStores}, adapters, breaker, logger)

	weights := feature.DefaultWeights()
	if w := cfg.Recall.Weights; w != (config.WeightsConfig{}) {
		weights = feature.Weights{
			Semantic:   w.Semantic,
			Temporal:   w.Temporal,
			Contextual: w.Contextual,
			Structural: w.Structural,
		}
	}

	mode := mmr.ModeClassic
	if cfg.Recall.AdaptiveMMR {
		mode = mmr.ModeEnhanced
	}
	engine := mmr.NewEngine(mmr.Config{
		Lambda:              cfg.Recall.Lambda,
		Mode:                mode,
		Weights:             weights,
		SimilarityThreshold: cfg.Recall.SimilarityThreshold,
	}, logger)

	fusionSvc := fusion.NewService(fusion.Config{
		DedupThreshold:     cfg.Recall.DedupThreshold,
		ConfidenceFloor:    cfg.Recall.ConfidenceFloor,
		Weights:            weights,
		TemporalDecayHours: cfg.Recall.TemporalDecayHours,
		EntityBoostMax:     cfg.Recall.EntityBoostMax,
	}, extractor, engine, sinks, logger)

	recallSvc := recall.NewService(plannerSvc, executor, fusionSvc, engine, logger)
	healthSvc := healthuc.New(dbStore)

	defaultBudget, err := budget.New(
		int64(cfg.Recall.MaxLatencyMS), cfg.Recall.MaxStores,
		cfg.Recall.MaxResultsPerStore, cfg.Recall.MaxTotalResults,
		int64(cfg.Recall.TimeoutBufferMS),
	)
	if err != nil {
		logger.Fatal("Invalid recall budget config", zap.Error(err))
	}

	// Create chi server
	server := chiTransport.NewServer(recallSvc, healthSvc, ring, logger).
		WithDefaultBudget(defaultBudget)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
