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

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/toolsync/internal/config"
	"github.com/kailas-cloud/toolsync/internal/content"
	"github.com/kailas-cloud/toolsync/internal/db"
	dbRedis "github.com/kailas-cloud/toolsync/internal/db/redis"
	"github.com/kailas-cloud/toolsync/internal/domain"
	"github.com/kailas-cloud/toolsync/internal/domain/collection"
	logpkg "github.com/kailas-cloud/toolsync/internal/logger"
	"github.com/kailas-cloud/toolsync/internal/metrics"
	"github.com/kailas-cloud/toolsync/internal/repository/embcache"
	toolrepo "github.com/kailas-cloud/toolsync/internal/repository/tool"
	vectorrepo "github.com/kailas-cloud/toolsync/internal/repository/vector"
	chiTransport "github.com/kailas-cloud/toolsync/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/toolsync/internal/transport/openai"
	cataloguc "github.com/kailas-cloud/toolsync/internal/usecase/catalog"
	embeddinguc "github.com/kailas-cloud/toolsync/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/toolsync/internal/usecase/health"
	searchuc "github.com/kailas-cloud/toolsync/internal/usecase/search"
	syncuc "github.com/kailas-cloud/toolsync/internal/usecase/sync"
	"github.com/kailas-cloud/toolsync/internal/version"
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

	logger.Info("Starting toolsync API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSyncMetrics()

	// Build per-profile embedder chains — composition root.
	// Each profile gets two chains: one with the document instruction (used
	// by the sync pipeline) and one with the query instruction (used by
	// search). The instruction sits outermost so the cache key includes it.
	docByProfile := make(map[collection.Profile]domain.Embedder, len(cfg.Embedding.Vectorizers))
	queryByProfile := make(map[collection.Profile]domain.Embedder, len(cfg.Embedding.Vectorizers))
	var healthEmbedder healthuc.EmbeddingChecker
	for name, vecCfg := range cfg.Embedding.Vectorizers {
		provCfg := cfg.Embedding.Providers[vecCfg.Provider]

		base := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     provCfg.APIKey,
			BaseURL:    provCfg.BaseURL,
			Model:      vecCfg.Model,
			Dimensions: vecCfg.Dimensions,
			Provider:   vecCfg.Provider,
			Logger:     logger,
		})
		if healthEmbedder == nil {
			healthEmbedder = base
		}

		profile := collection.Profile(name)
		docByProfile[profile] = buildChain(base, store, vecCfg, vecCfg.DocumentInstruction, logger)
		queryByProfile[profile] = buildChain(base, store, vecCfg, vecCfg.QueryInstruction, logger)

		logger.Info("Embedder created",
			zap.String("profile", name),
			zap.String("provider", vecCfg.Provider),
			zap.String("model", vecCfg.Model),
			zap.Int("dimensions", vecCfg.Dimensions),
		)
	}

	docMux, err := embeddinguc.NewMux(docByProfile)
	if err != nil {
		logger.Fatal("Failed to build document embedder mux", zap.Error(err))
	}
	queryMux, err := embeddinguc.NewMux(queryByProfile)
	if err != nil {
		logger.Fatal("Failed to build query embedder mux", zap.Error(err))
	}

	// Repositories
	toolRepo := toolrepo.New(store)
	if err := toolRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure tool index", zap.Error(err))
	}
	vectorRepo, err := vectorrepo.New(store, vectorrepo.Config{
		Dim:         cfg.VectorDimensions(),
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})
	if err != nil {
		logger.Fatal("Failed to create vector repository", zap.Error(err))
	}
	if err := vectorRepo.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to ensure vector indexes", zap.Error(err))
	}

	// Sync engine
	orch := syncuc.NewOrchestrator(toolRepo, content.NewGenerator(), docMux, vectorRepo, logger)
	worker := syncuc.NewWorker(orch, toolRepo, syncuc.WorkerConfig{
		SweepInterval: time.Duration(cfg.Sync.SweepIntervalSec) * time.Second,
		BatchSize:     cfg.Sync.BatchSize,
		MaxRetries:    cfg.Sync.MaxRetries,
		BaseBackoff:   time.Duration(cfg.Sync.BaseBackoffSec) * time.Second,
		MaxBackoff:    time.Duration(cfg.Sync.MaxBackoffSec) * time.Second,
		Enabled:       !cfg.Sync.Disabled,
	}, logger)
	worker.Start()
	defer worker.Stop()

	// Use case services
	catalogSvc := cataloguc.NewService(toolRepo, orch, logger)
	searchSvc := searchuc.NewService(vectorRepo, queryMux, logger)

	var workerInspector healthuc.WorkerInspector
	if !cfg.Sync.Disabled {
		workerInspector = worker
	}
	healthSvc := healthuc.New(store, healthEmbedder, workerInspector)

	server := chiTransport.NewServer(catalogSvc, searchSvc, worker, healthSvc, cfg.Auth.APIKeys, logger)

	var handler http.Handler = server.Router()
	handler = wideEventMiddleware(logger)(handler)
	handler = chiMiddleware.RequestID(handler)
	handler = jsonRecoverer(logger)(handler)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
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

// buildChain assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildChain(
	base domain.Embedder,
	store db.Store,
	vecCfg config.VectorizerConfig,
	instruction string,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if store != nil {
		embedder = embcache.New(embedder, store, vecCfg.Model, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, vecCfg.Provider, vecCfg.Model, logger)

	// Instruction prefix sits outermost so the cache key includes it.
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder
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
						"code":    "INTERNAL_ERROR",
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
