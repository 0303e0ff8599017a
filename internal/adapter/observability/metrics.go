// Package observability provides logging, metrics, and tracing for the
// matching pipeline.
package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI backend requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI backend request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "operation"},
	)

	EmbedCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embed_cache_lookups_total",
			Help: "Embedding cache lookups by outcome (hit or miss)",
		},
		[]string{"outcome"},
	)

	ScorePassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_passes_total",
			Help: "Fan-out scoring passes by trigger kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	ScorePairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_pairs_total",
			Help: "Individual resume/job pair scorings by outcome",
		},
		[]string{"outcome"},
	)
	ScorePassesEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_passes_enqueued_total",
			Help: "Deferred scoring passes handed to the queue",
		},
		[]string{"kind"},
	)

	// HybridScoreHistogram tracks the distribution of fused match scores.
	HybridScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_hybrid_score",
			Help:    "Distribution of hybrid match scores ([0,1])",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)
)

// InitMetrics registers all collectors with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(EmbedCacheLookupsTotal)
	prometheus.MustRegister(ScorePassesTotal)
	prometheus.MustRegister(ScorePairsTotal)
	prometheus.MustRegister(ScorePassesEnqueuedTotal)
	prometheus.MustRegister(HybridScoreHistogram)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// CacheHit records an embedding cache hit.
func CacheHit() { EmbedCacheLookupsTotal.WithLabelValues("hit").Inc() }

// CacheMiss records an embedding cache miss.
func CacheMiss() { EmbedCacheLookupsTotal.WithLabelValues("miss").Inc() }

// PairScored records a successfully scored resume/job pair.
func PairScored() { ScorePairsTotal.WithLabelValues("scored").Inc() }

// PairFailed records a pair skipped due to a scoring failure.
func PairFailed() { ScorePairsTotal.WithLabelValues("failed").Inc() }

// PassCompleted records a finished fan-out pass with its outcome
// ("ok", "degraded" or "failed").
func PassCompleted(kind, outcome string) {
	ScorePassesTotal.WithLabelValues(kind, outcome).Inc()
}

// PassEnqueued records a deferred fan-out pass handed to the queue.
func PassEnqueued(kind string) {
	ScorePassesEnqueuedTotal.WithLabelValues(kind).Inc()
}

// ObserveHybridScore records a fused score in its distribution histogram.
func ObserveHybridScore(score float64) {
	if score >= 0 && score <= 1 {
		HybridScoreHistogram.Observe(score)
	}
}
