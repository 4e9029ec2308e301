package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/feature"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/metrics"
)

type cacheKey struct {
	typ  ElementType
	name string
}

type cacheEntry struct {
	value   any
	expires time.Time
}

// Cached keeps compiled elements of a Store for ttl. Concurrent loads of the
// same element share one call to the wrapped store. Failed loads are not
// cached.
type Cached struct {
	inner   Store
	ttl     time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
	group   singleflight.Group
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
}

// NewCached wraps inner. A ttl of 0 keeps elements until they are evicted.
// m may be nil.
func NewCached(inner Store, ttl time.Duration, m *metrics.Metrics) *Cached {
	return &Cached{
		inner:   inner,
		ttl:     ttl,
		metrics: m,
		now:     time.Now,
		logger:  slog.Default().With("component", "feature-store-cache", "store", inner.Name()),
		entries: make(map[cacheKey]cacheEntry),
	}
}

func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) LoadFeature(ctx context.Context, name string) (feature.Feature, error) {
	v, err := c.load(ctx, TypeFeature, name, func() (any, error) {
		return c.inner.LoadFeature(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return v.(feature.Feature), nil
}

func (c *Cached) LoadFeatureSet(ctx context.Context, name string) (*feature.Set, error) {
	v, err := c.load(ctx, TypeFeatureSet, name, func() (any, error) {
		return c.inner.LoadFeatureSet(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*feature.Set), nil
}

func (c *Cached) LoadModel(ctx context.Context, name string) (*feature.Model, error) {
	v, err := c.load(ctx, TypeModel, name, func() (any, error) {
		return c.inner.LoadModel(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*feature.Model), nil
}

func (c *Cached) load(ctx context.Context, typ ElementType, name string, fn func() (any, error)) (any, error) {
	key := cacheKey{typ: typ, name: name}
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && (c.ttl == 0 || c.now().Before(e.expires)) {
		c.record(typ, true)
		return e.value, nil
	}
	c.record(typ, false)

	v, err, _ := c.group.Do(string(typ)+"/"+name, func() (any, error) {
		v, err := fn()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = cacheEntry{value: v, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		c.logger.Debug("element loaded", "type", typ, "name", name)
		return v, nil
	})
	return v, err
}

func (c *Cached) record(typ ElementType, hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.StoreCacheHits.WithLabelValues(string(typ)).Inc()
	} else {
		c.metrics.StoreCacheMisses.WithLabelValues(string(typ)).Inc()
	}
}

// Evict drops one element.
func (c *Cached) Evict(typ ElementType, name string) {
	c.mu.Lock()
	delete(c.entries, cacheKey{typ: typ, name: name})
	c.mu.Unlock()
}

// Clear drops every cached element.
func (c *Cached) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[cacheKey]cacheEntry)
	c.mu.Unlock()
	c.logger.Info("cache cleared", "entries", n)
}

// Len reports the number of cached elements, expired ones included.
func (c *Cached) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
