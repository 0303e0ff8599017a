// Command worker consumes deferred scoring passes from Redpanda and applies
// them to the match matrix.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/resume-job-matcher/internal/adapter/ai/llmscore"
	"github.com/fairyhunter13/resume-job-matcher/internal/adapter/ai/openai"
	rediscache "github.com/fairyhunter13/resume-job-matcher/internal/adapter/cache/redis"
	"github.com/fairyhunter13/resume-job-matcher/internal/adapter/observability"
	"github.com/fairyhunter13/resume-job-matcher/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/resume-job-matcher/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/resume-job-matcher/internal/adapter/textextractor/local"
	"github.com/fairyhunter13/resume-job-matcher/internal/config"
	"github.com/fairyhunter13/resume-job-matcher/internal/usecase"
)

const consumerGroup = "matcher-workers"

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	cache, err := rediscache.NewFromURL(cfg.RedisURL)
	if err != nil {
		slog.Error("redis connect failed", slog.Any("error", err))
		os.Exit(1)
	}

	resumeRepo := postgres.NewResumeRepo(pool)
	jobRepo := postgres.NewJobRepo(pool)
	scoreRepo := postgres.NewScoreRepo(pool)

	aiClient := openai.New(cfg)
	similarity := usecase.NewSimilarity(aiClient, cache, cfg.EmbedCacheTTL)
	scorer := llmscore.New(aiClient, cfg)
	extractor := local.New(cfg.ExtractStrictDOCX)

	// The worker never enqueues; a pass that arrives here runs inline.
	matcher := usecase.NewMatcher(cfg, resumeRepo, jobRepo, scoreRepo, nil, extractor, similarity, scorer)

	consumer, err := redpanda.NewConsumer(cfg.KafkaBrokers, consumerGroup, matcher)
	if err != nil {
		slog.Error("redpanda consumer connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = consumer.Close() }()

	// Metrics and liveness for the worker process.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("worker metrics server starting", slog.Int("port", cfg.Port))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", slog.Any("error", err))
		}
	}()

	slog.Info("worker starting", slog.String("group", consumerGroup))
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("consumer stopped", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
