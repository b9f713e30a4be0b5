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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fetchr/internal/backoff"
	"github.com/kailas-cloud/fetchr/internal/config"
	"github.com/kailas-cloud/fetchr/internal/db"
	dbRedis "github.com/kailas-cloud/fetchr/internal/db/redis"
	logpkg "github.com/kailas-cloud/fetchr/internal/logger"
	"github.com/kailas-cloud/fetchr/internal/metrics"
	decisionrepo "github.com/kailas-cloud/fetchr/internal/repository/decision"
	"github.com/kailas-cloud/fetchr/internal/repository/expcache"
	feedbackrepo "github.com/kailas-cloud/fetchr/internal/repository/feedback"
	usagerepo "github.com/kailas-cloud/fetchr/internal/repository/usage"
	chiTransport "github.com/kailas-cloud/fetchr/internal/transport/chi"
	openaiExp "github.com/kailas-cloud/fetchr/internal/transport/openai"
	"github.com/kailas-cloud/fetchr/internal/transport/probe"
	"github.com/kailas-cloud/fetchr/internal/transport/serper"
	"github.com/kailas-cloud/fetchr/internal/usecase/budget"
	healthuc "github.com/kailas-cloud/fetchr/internal/usecase/health"
	"github.com/kailas-cloud/fetchr/internal/usecase/retry"
	"github.com/kailas-cloud/fetchr/internal/usecase/session"
	"github.com/kailas-cloud/fetchr/internal/version"
)

func main() {
	// Credentials may come from a local .env; a missing file is fine.
	_ = godotenv.Load()

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
	logger = logpkg.Tee(logger, logpkg.FileConfig{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting fetchr API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("expansion_provider", cfg.Expansion.Provider),
		zap.Bool("storage", cfg.Database.Enabled()),
		zap.Int64("daily_token_limit", cfg.Expansion.DailyTokenLimit),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterRetrievalMetrics()
	metrics.RegisterHTTPMetrics()

	ctx := context.Background()

	// Persistence is optional: without it sessions still run, but decisions,
	// feedback and usage are not kept.
	var store db.Store
	if cfg.Database.Enabled() {
		redisStore, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			DB:       cfg.Database.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer redisStore.Close()

		if err := redisStore.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		store = redisStore
		logger.Info("Connected to database", zap.Strings("db_addrs", cfg.Database.Addrs))
	}

	// Shared by every provider; the executor keeps no per-call state.
	bo := backoff.New(backoff.Config{
		MaxRetries:   cfg.Backoff.MaxRetries,
		InitialDelay: cfg.Backoff.InitialDelay(),
		Multiplier:   cfg.Backoff.Multiplier,
		Logger:       logger,
	})

	expander := openaiExp.NewExpander(&openaiExp.Config{
		APIKey:      cfg.Expansion.APIKey,
		BaseURL:     cfg.Expansion.BaseURL,
		Model:       cfg.Expansion.Model,
		Provider:    cfg.Expansion.Provider,
		Temperature: cfg.Expansion.Temperature,
		Backoff:     bo,
		Logger:      logger,
	})
	searcher := serper.New(serper.Config{
		APIKey:   cfg.Search.APIKey,
		Endpoint: cfg.Search.Endpoint,
		Client:   &http.Client{Timeout: time.Duration(cfg.Search.TimeoutSec) * time.Second},
		Backoff:  bo,
		Logger:   logger,
	})
	prober := probe.New(
		&http.Client{Timeout: time.Duration(cfg.Probe.TimeoutSec) * time.Second},
		bo,
		logger,
	)

	var usage *usagerepo.Store
	if store != nil {
		usage = usagerepo.New(store, time.Duration(cfg.Storage.UsageTTLHours)*time.Hour)
	}

	action, err := budget.ParseAction(cfg.Expansion.BudgetAction)
	if err != nil {
		logger.Fatal("Invalid budget action", zap.Error(err))
	}
	tracker := budget.NewTracker(cfg.Expansion.DailyTokenLimit, action, logger)
	if usage != nil {
		tracker.Seed(ctx, usage)
	}
	metrics.ExpansionBudgetRemaining.Set(float64(tracker.RemainingDaily()))

	// Cache hits spend no tokens, so the cache sits outside the budget.
	var finderExpander retry.Expander = budget.NewGuardedExpander(expander, tracker, logger)
	if store != nil && cfg.Expansion.CacheTTLSec > 0 {
		finderExpander = expcache.New(finderExpander, store,
			time.Duration(cfg.Expansion.CacheTTLSec)*time.Second, metrics.ExpansionCacheTotal, logger)
	}

	finder := retry.New(finderExpander, searcher, prober, logger).
		WithLimit(cfg.Retry.CandidateLimit).
		WithMinDimension(cfg.Retry.MinDimension)
	sessions := session.New(finder, logger).
		WithConcurrency(cfg.Session.Concurrency).
		WithMaxQueries(cfg.Session.MaxQueries)

	// Pass nil interface (not typed nil pointer!) when storage is disabled.
	// Go gotcha: (*redis.Store)(nil) wrapped in DBPinger != nil.
	var dbPinger healthuc.DBPinger
	if store != nil {
		dbPinger = store
	}
	healthSvc := healthuc.New(dbPinger, expander)

	server := chiTransport.NewServer(sessions, healthSvc, logger).
		WithMaxRetries(cfg.Retry.MaxRetries).
		WithBudget(tracker)

	if store != nil {
		feedback := feedbackrepo.New(store, logger).
			WithWindow(cfg.Storage.FeedbackWindow).
			WithExamples(cfg.Storage.FeedbackExamples)
		decisions := decisionrepo.New(store, time.Duration(cfg.Storage.DecisionTTLHours)*time.Hour, logger)

		finder.WithLearningContext(feedback)
		sessions.WithSinks(decisions.Sink)
		server.WithDecisions(decisions).WithFeedback(feedback).WithUsage(usage)
	}

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "bad_request", "method not allowed")
	})
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

	logger.Info("Server stopped gracefully")
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
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
					writeJSONError(w, http.StatusInternalServerError, "internal_error", "internal error")
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
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
				zap.String("expansion_tokens", ww.Header().Get("X-Expansion-Tokens")),
			)
		})
	}
}
