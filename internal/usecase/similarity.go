// Package usecase contains the application core: embedding-based similarity,
// score fusion, and the match-matrix orchestration around them.
package usecase

import (
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
	"github.com/fairyhunter13/resume-job-matcher/internal/observability"
	"github.com/fairyhunter13/resume-job-matcher/pkg/textx"
)

// Analysis carries the observability payload alongside a similarity score:
// input sizes, the raw (unclamped) cosine, and how many embeddings came
// from cache.
type Analysis struct {
	WordsA    int     `json:"words_a"`
	WordsB    int     `json:"words_b"`
	RawCosine float64 `json:"raw_cosine"`
	CacheHits int     `json:"cache_hits"`
}

// Similarity computes embedding cosine similarity between two texts, caching
// vectors by the content hash of the normalized text.
type Similarity struct {
	embedder domain.EmbeddingClient
	cache    domain.EmbeddingCache
	ttl      time.Duration
}

// NewSimilarity wires the embedding backend with its cache. cache may be nil
// in which case every call recomputes.
func NewSimilarity(embedder domain.EmbeddingClient, cache domain.EmbeddingCache, ttl time.Duration) *Similarity {
	return &Similarity{embedder: embedder, cache: cache, ttl: ttl}
}

// EmbedCached returns the embedding vector for text, consulting the cache
// first. The cache key is the content hash of the normalized text, so
// incidental whitespace or casing differences still hit.
func (s *Similarity) EmbedCached(ctx domain.Context, text string) ([]float32, bool, error) {
	norm := textx.Normalize(text)
	if norm == "" {
		return nil, false, fmt.Errorf("op=similarity.EmbedCached: %w: empty text", domain.ErrInvalidArgument)
	}
	key := textx.ContentHash(norm)
	if s.cache != nil {
		if vec, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			return vec, true, nil
		}
		// Cache errors degrade to a recompute; the embedding backend is
		// authoritative.
	}
	vecs, err := s.embedder.Embed(ctx, []string{norm})
	if err != nil {
		return nil, false, fmt.Errorf("op=similarity.EmbedCached: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, false, fmt.Errorf("op=similarity.EmbedCached: %w: empty vector", domain.ErrScoring)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, vecs[0], s.ttl); err != nil {
			observability.LoggerFromContext(ctx).Warn("embedding cache write failed", "error", err)
		}
	}
	return vecs[0], false, nil
}

// CosineSimilarity embeds both texts and returns their cosine similarity
// clamped into [0,1] and rounded to 4 decimals. Empty inputs are invalid:
// the caller distinguishes "could not score" from "scored zero".
func (s *Similarity) CosineSimilarity(ctx domain.Context, a, b string) (float64, Analysis, error) {
	ctx, span := otel.Tracer("usecase.similarity").Start(ctx, "CosineSimilarity")
	defer span.End()

	normA, normB := textx.Normalize(a), textx.Normalize(b)
	if normA == "" || normB == "" {
		return 0, Analysis{}, fmt.Errorf("op=similarity.CosineSimilarity: %w: empty text", domain.ErrInvalidArgument)
	}
	an := Analysis{WordsA: textx.WordCount(normA), WordsB: textx.WordCount(normB)}

	vecA, hitA, err := s.EmbedCached(ctx, normA)
	if err != nil {
		return 0, an, err
	}
	vecB, hitB, err := s.EmbedCached(ctx, normB)
	if err != nil {
		return 0, an, err
	}
	if hitA {
		an.CacheHits++
	}
	if hitB {
		an.CacheHits++
	}

	raw, err := cosine(vecA, vecB)
	if err != nil {
		return 0, an, fmt.Errorf("op=similarity.CosineSimilarity: %w: %v", domain.ErrScoring, err)
	}
	an.RawCosine = raw
	return round(clamp01(raw), 4), an, nil
}

// cosine computes the cosine of the angle between two vectors. Dimension
// mismatch and zero-magnitude vectors are errors rather than silent zeros.
func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, fmt.Errorf("zero-magnitude vector")
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// round rounds v to n decimal digits.
func round(v float64, n int) float64 {
	p := math.Pow10(n)
	return math.Round(v*p) / p
}
