// Command server starts the resume/job matching HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/resume-job-matcher/internal/adapter/ai/llmscore"
	"github.com/fairyhunter13/resume-job-matcher/internal/adapter/ai/openai"
	rediscache "github.com/fairyhunter13/resume-job-matcher/internal/adapter/cache/redis"
	httpserver "github.com/fairyhunter13/resume-job-matcher/internal/adapter/httpserver"
	"github.com/fairyhunter13/resume-job-matcher/internal/adapter/observability"
	"github.com/fairyhunter13/resume-job-matcher/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/resume-job-matcher/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/resume-job-matcher/internal/adapter/textextractor/local"
	"github.com/fairyhunter13/resume-job-matcher/internal/app"
	"github.com/fairyhunter13/resume-job-matcher/internal/config"
	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
	"github.com/fairyhunter13/resume-job-matcher/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		slog.Error("schema setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	resumeRepo := postgres.NewResumeRepo(pool)
	jobRepo := postgres.NewJobRepo(pool)
	scoreRepo := postgres.NewScoreRepo(pool)

	cache, err := rediscache.NewFromURL(cfg.RedisURL)
	if err != nil {
		slog.Error("redis connect failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Queue producer only when deferred scoring is enabled; the sync path
	// needs no broker.
	var queue domain.Queue
	var brokerCheck func(context.Context) error
	if cfg.ScoreAsync {
		producer, err := redpanda.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			slog.Error("redpanda producer connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = producer.Close() }()
		queue = producer
		brokerCheck = producer.Ping
	}

	aiClient := openai.New(cfg)
	similarity := usecase.NewSimilarity(aiClient, cache, cfg.EmbedCacheTTL)
	scorer := llmscore.New(aiClient, cfg)
	extractor := local.New(cfg.ExtractStrictDOCX)

	matcher := usecase.NewMatcher(cfg, resumeRepo, jobRepo, scoreRepo, queue, extractor, similarity, scorer)

	dbCheck := func(ctx context.Context) error { return pool.Ping(ctx) }
	redisCheck := func(ctx context.Context) error { return cache.Ping(ctx) }
	srv := httpserver.NewServer(cfg, matcher, dbCheck, redisCheck, brokerCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
