package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStore() *memStore { return &memStore{data: make(map[string]string)} }

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func TestGetOrCompute(t *testing.T) {
	c := New(newMemStore(), time.Minute)
	ctx := context.Background()
	calls := 0
	compute := func() (*search.TopDocs, error) {
		calls++
		return &search.TopDocs{TotalHits: 1, Hits: []search.ScoreDoc{{ID: "doc-2", Score: 1.5}}, Cacheable: true}, nil
	}

	if _, hit, err := c.GetOrCompute(ctx, json.RawMessage(`{"match": {"text": "cow"}}`), 10, compute); err != nil || hit {
		t.Fatalf("first call hit=%v err=%v, want miss", hit, err)
	}
	// Same request with different key order and whitespace.
	got, hit, err := c.GetOrCompute(ctx, json.RawMessage(`{ "match":{"text":"cow"} }`), 10, compute)
	if err != nil || !hit {
		t.Fatalf("second call hit=%v err=%v, want hit", hit, err)
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
	if got.Hits[0].ID != "doc-2" || got.Hits[0].Score != 1.5 {
		t.Errorf("cached hits = %+v", got.Hits)
	}
	if _, hit, _ := c.GetOrCompute(ctx, json.RawMessage(`{"match": {"text": "cow"}}`), 20, compute); hit {
		t.Error("different limit should miss")
	}
}

func TestNonCacheableBypass(t *testing.T) {
	c := New(newMemStore(), time.Minute)
	ctx := context.Background()
	calls := 0
	compute := func() (*search.TopDocs, error) {
		calls++
		return &search.TopDocs{TotalHits: 1, Cacheable: false}, nil
	}
	req := json.RawMessage(`{"sltr": {"model": "m", "params": {}}}`)
	for i := 0; i < 3; i++ {
		if _, hit, err := c.GetOrCompute(ctx, req, 10, compute); err != nil || hit {
			t.Fatalf("call %d hit=%v err=%v", i, hit, err)
		}
	}
	if calls != 3 {
		t.Errorf("compute called %d times, want 3", calls)
	}
	if s := c.Stats(); s.Bypass != 3 || s.Hits != 0 {
		t.Errorf("Stats() = %+v, want 3 bypass and no hits", s)
	}
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute)
	ctx := context.Background()
	req := json.RawMessage(`{"match_all": {}}`)
	c.Set(ctx, req, 10, &search.TopDocs{Cacheable: true})
	if err := c.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, req, 10); ok {
		t.Error("expected miss after invalidate")
	}
}
