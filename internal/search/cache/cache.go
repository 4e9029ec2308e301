// Package cache stores search results in Redis keyed by the normalized query
// request. Results whose query reports itself non-cacheable (LTR queries
// bound to request parameters) are computed but never stored.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/redis"
)

const keyPrefix = "search:"

// Store is the subset of the Redis client used by the cache.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
	bypass atomic.Int64
}

func New(store Store, ttl time.Duration) *QueryCache {
	return &QueryCache{
		store:  store,
		ttl:    ttl,
		logger: slog.Default().With("component", "query-cache"),
	}
}

// Stats are cumulative cache counters.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Bypass int64 `json:"bypass"`
}

func (c *QueryCache) Get(ctx context.Context, request json.RawMessage, limit int) (*search.TopDocs, bool) {
	key, err := buildKey(request, limit)
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var result search.TopDocs
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	result.Cacheable = true
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

// Set stores result unless it is marked non-cacheable. It reports whether
// the result was stored.
func (c *QueryCache) Set(ctx context.Context, request json.RawMessage, limit int, result *search.TopDocs) bool {
	if !result.Cacheable {
		c.bypass.Add(1)
		return false
	}
	key, err := buildKey(request, limit)
	if err != nil {
		c.logger.Error("cache key failed", "error", err)
		return false
	}
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return false
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
		return false
	}
	return true
}

// GetOrCompute returns the cached result for request or computes it,
// collapsing concurrent computations of the same request. The boolean
// reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	request json.RawMessage,
	limit int,
	computeFn func() (*search.TopDocs, error),
) (*search.TopDocs, bool, error) {
	if result, ok := c.Get(ctx, request, limit); ok {
		return result, true, nil
	}
	key, err := buildKey(request, limit)
	if err != nil {
		result, err := computeFn()
		return result, false, err
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, request, limit, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*search.TopDocs), false, nil
}

func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Bypass: c.bypass.Load()}
}

// buildKey hashes the request after re-encoding it, which sorts object keys
// and drops insignificant whitespace.
func buildKey(request json.RawMessage, limit int) (string, error) {
	var v any
	if err := json.Unmarshal(request, &v); err != nil {
		return "", fmt.Errorf("normalizing request: %w", err)
	}
	normalized, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("normalizing request: %w", err)
	}
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:limit=%d", normalized, limit)))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16]), nil
}
