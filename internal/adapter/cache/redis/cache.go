// Package redis implements the embedding cache on Redis. Entries are keyed
// by the content hash of normalized text and expire after a fixed TTL, so a
// lost entry costs one recompute and nothing else.
package redis

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/resume-job-matcher/internal/adapter/observability"
	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
)

// keyPrefix versions the cache layout; bump it when the stored shape changes.
const keyPrefix = "emb:v1:"

// Cache implements domain.EmbeddingCache over a Redis client.
type Cache struct {
	rdb *goredis.Client
}

// New wraps an existing Redis client.
func New(rdb *goredis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// NewFromURL connects using a redis:// URL.
func NewFromURL(url string) (*Cache, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("op=rediscache.NewFromURL: %w", err)
	}
	return New(goredis.NewClient(opts)), nil
}

// Get returns the cached vector for the content hash, reporting whether it
// was present. A missing key is not an error.
func (c *Cache) Get(ctx domain.Context, key string) ([]float32, bool, error) {
	raw, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		observability.CacheMiss()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("op=rediscache.Get: %w", err)
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		// A corrupt entry behaves like a miss; it will be overwritten.
		observability.CacheMiss()
		return nil, false, nil
	}
	observability.CacheHit()
	return vec, true, nil
}

// Set stores the vector under the content hash with the given TTL.
func (c *Cache) Set(ctx domain.Context, key string, vec []float32, ttl time.Duration) error {
	raw, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("op=rediscache.Set: %w", err)
	}
	if err := c.rdb.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("op=rediscache.Set: %w", err)
	}
	return nil
}

// Ping verifies connectivity for readiness checks.
func (c *Cache) Ping(ctx domain.Context) error {
	return c.rdb.Ping(ctx).Err()
}
