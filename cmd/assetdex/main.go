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

	"github.com/kailas-cloud/assetdex/internal/config"
	logpkg "github.com/kailas-cloud/assetdex/internal/logger"
	"github.com/kailas-cloud/assetdex/internal/metrics"
	"github.com/kailas-cloud/assetdex/internal/storage"
	"github.com/kailas-cloud/assetdex/internal/storage/postgres"
	"github.com/kailas-cloud/assetdex/internal/storage/sqlite"
	"github.com/kailas-cloud/assetdex/internal/telemetry"
	chiTransport "github.com/kailas-cloud/assetdex/internal/transport/chi"
	"github.com/kailas-cloud/assetdex/internal/transport/openai"
	assetsuc "github.com/kailas-cloud/assetdex/internal/usecase/assets"
	audituc "github.com/kailas-cloud/assetdex/internal/usecase/audit"
	classifyuc "github.com/kailas-cloud/assetdex/internal/usecase/classify"
	healthuc "github.com/kailas-cloud/assetdex/internal/usecase/health"
	permissionsuc "github.com/kailas-cloud/assetdex/internal/usecase/permissions"
	searchuc "github.com/kailas-cloud/assetdex/internal/usecase/search"
	suggestuc "github.com/kailas-cloud/assetdex/internal/usecase/suggest"
	"github.com/kailas-cloud/assetdex/internal/version"
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

	logger.Info("Starting assetdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	ctx := context.Background()

	// Create storage backend based on driver
	var store storage.Store
	switch cfg.Database.Driver {
	case "postgres":
		store, err = postgres.NewStore(ctx, postgres.Config{
			DSN:      cfg.Database.DSN,
			MaxConns: cfg.Database.MaxConns,
		}, logger)
	case "sqlite":
		store, err = sqlite.NewStore(sqlite.Config{
			Path: cfg.Database.Path,
		}, logger)
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create storage backend", zap.Error(err))
	}
	defer store.Close()

	// Wait for the database to be ready
	readyCtx, cancelReady := context.WithTimeout(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second)
	defer cancelReady()
	if err := store.Ping(readyCtx); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register search metrics explicitly (no init())
	metrics.RegisterSearchMetrics()

	// Inference clients share one provider config
	inferenceCfg := &openai.Config{
		APIKey:          cfg.Inference.APIKey,
		BaseURL:         cfg.Inference.BaseURL,
		ClassifierModel: cfg.Inference.ClassifierModel,
		RankerModel:     cfg.Inference.RankerModel,
		ImageBaseURL:    cfg.Inference.ImageBaseURL,
		Logger:          logger,
	}
	classifier := openai.NewClassifier(inferenceCfg)
	ranker := openai.NewRanker(inferenceCfg)
	logger.Info("Inference clients created",
		zap.String("classifier_model", cfg.Inference.ClassifierModel),
		zap.String("ranker_model", cfg.Inference.RankerModel),
	)

	// Search telemetry drains into the audit log off the request path
	queue := telemetry.NewQueue(store.Audit(), cfg.Telemetry.BufferSize, logger)

	// Create use case services
	permsSvc := permissionsuc.New(store.Users(), store.Sites(), store.Grants(), permissionsuc.Config{
		CacheSize: cfg.Permissions.CacheSize,
		CacheTTL:  time.Duration(cfg.Permissions.CacheTTLSec) * time.Second,
	}, logger)

	searchSvc := searchuc.New(store.Assets(), permsSvc, ranker, queue, searchuc.Config{
		FulltextThreshold: cfg.Search.FulltextThreshold,
		SemanticThreshold: cfg.Search.SemanticThreshold,
		CandidateCap:      cfg.Search.CandidateCap,
		MinScore:          cfg.Search.MinScore,
		InferenceTimeout:  time.Duration(cfg.Inference.TimeoutSec) * time.Second,
		DefaultPageSize:   cfg.Search.DefaultPageSize,
		MaxPageSize:       cfg.Search.MaxPageSize,
	}, logger)

	suggestSvc := suggestuc.New(store.Suggestions(), permsSvc, suggestuc.Config{
		MaxSuggestions: cfg.Search.SuggestionLimit,
	})

	classifySvc, err := classifyuc.New(store.Assets(), classifier, classifyuc.Config{
		Workers: cfg.Classify.Workers,
		Timeout: time.Duration(cfg.Classify.TimeoutSec) * time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create classification pipeline", zap.Error(err))
	}

	assetsSvc := assetsuc.New(store.Assets(), permsSvc, classifySvc, logger)
	auditSvc := audituc.New(store.Audit())
	healthSvc := healthuc.New(store, classifier)

	// Create chi server
	server := chiTransport.NewServer(
		searchSvc, suggestSvc, assetsSvc, classifySvc, auditSvc, healthSvc, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

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

	// Drain in-flight classification jobs, then flush telemetry.
	classifySvc.Close()
	queue.Close()

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

			// Canonical log line, one line per request
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
