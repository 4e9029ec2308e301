package store

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/feature"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/redis"
)

const seedYAML = `
features:
  - name: title_query
    params: [keywords]
    template:
      match:
        text: "{{keywords}}"
  - name: title_boost
    params: [keywords]
    template:
      constant_score:
        filter:
          match:
            text: "{{keywords}}"
        boost: 2
  - name: popularity
    template_language: derived_expression
    template: "1.5"
featuresets:
  - name: basic
    features:
      - name: all
        template:
          match_all: {}
      - name: query
        params: [keywords]
        template:
          match:
            text: "{{keywords}}"
models:
  - name: basic_linear
    feature_set:
      name: basic
      features:
        - name: all
          template:
            match_all: {}
        - name: query
          params: [keywords]
          template:
            match:
              text: "{{keywords}}"
    model:
      type: model/linear
      definition:
        all: 0.5
        query: 2.0
      feature_normalizers:
        query:
          min_max:
            minimum: 0
            maximum: 10
`

func seededStore(t *testing.T) *DefinitionStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New("test", NewMemoryBackend(), nil)
	if err := s.LoadFile(context.Background(), path); err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	return s
}

func TestLoadSeed(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	f, err := s.LoadFeature(ctx, "title_query")
	if err != nil {
		t.Fatal(err)
	}
	if f.Name() != "title_query" || feature.Optimize(f).Kind() != feature.KindTemplate {
		t.Errorf("feature %s of kind %s", f.Name(), feature.Optimize(f).Kind())
	}
	set, err := s.LoadFeatureSet(ctx, "basic")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(set.Names(), ","); got != "all,query" {
		t.Errorf("set names = %s", got)
	}
	m, err := s.LoadModel(ctx, "basic_linear")
	if err != nil {
		t.Fatal(err)
	}
	if m.Set().Size() != 2 {
		t.Errorf("model set size = %d, want 2", m.Set().Size())
	}
}

func TestShippedSeedFile(t *testing.T) {
	s := New("default", NewMemoryBackend(), nil)
	ctx := context.Background()
	if err := s.LoadFile(ctx, "../../../configs/ltr-seed.yaml"); err != nil {
		t.Fatal(err)
	}
	m, err := s.LoadModel(ctx, "text_linear")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(m.Set().Names(), ","); got != "title_match,text_match,title_and_text" {
		t.Errorf("model features = %s", got)
	}
	f, err := s.LoadFeature(ctx, "text_tfidf")
	if err != nil {
		t.Fatal(err)
	}
	if f.Kind() != feature.KindScript {
		t.Errorf("text_tfidf kind = %s", f.Kind())
	}
}

func TestNotFound(t *testing.T) {
	s := New("test", NewMemoryBackend(), nil)
	ctx := context.Background()
	tests := []struct {
		load func() error
		want string
	}{
		{func() error { _, err := s.LoadFeature(ctx, "x"); return err }, "Unknown feature [x]"},
		{func() error { _, err := s.LoadFeatureSet(ctx, "x"); return err }, "Unknown featureset [x]"},
		{func() error { _, err := s.LoadModel(ctx, "x"); return err }, "Unknown model [x]"},
		{func() error { return s.Delete(ctx, TypeModel, "x") }, "Unknown model [x]"},
	}
	for _, tt := range tests {
		err := tt.load()
		if !errors.Is(err, apperrors.ErrNotFound) || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("error = %v, want %q", err, tt.want)
		}
		if apperrors.HTTPStatusCode(err) != http.StatusNotFound {
			t.Errorf("status = %d, want 404", apperrors.HTTPStatusCode(err))
		}
	}
}

func TestPutRejectsInvalid(t *testing.T) {
	s := New("test", NewMemoryBackend(), nil)
	err := s.PutFeature(context.Background(), feature.StoredFeature{Name: "broken"})
	if !errors.Is(err, apperrors.ErrInvalidDefinition) {
		t.Errorf("PutFeature() error = %v, want ErrInvalidDefinition", err)
	}
	if _, err := s.Backend().Get(context.Background(), TypeFeature, "broken"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Error("an invalid feature should not be stored")
	}
}

func TestAddFeaturesToSet(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	set, err := s.AddFeaturesToSet(ctx, "titles", "title_*", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Features) != 2 || set.Features[0].Name != "title_boost" || set.Features[1].Name != "title_query" {
		t.Errorf("features = %+v", set.Features)
	}
	set, err = s.AddFeaturesToSet(ctx, "titles", "popularity", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Features) != 3 {
		t.Errorf("len(features) = %d, want 3", len(set.Features))
	}
	if _, err := s.LoadFeatureSet(ctx, "titles"); err != nil {
		t.Errorf("LoadFeatureSet(titles) error: %v", err)
	}

	_, err = s.AddFeaturesToSet(ctx, "titles", "body_*", false)
	if !errors.Is(err, apperrors.ErrNoFeaturesFound) ||
		!strings.Contains(err.Error(), "The feature query [body_*] returned no features") {
		t.Errorf("no match error = %v", err)
	}
	_, err = s.AddFeaturesToSet(ctx, "titles", "title_query", false)
	if !errors.Is(err, apperrors.ErrInvalidDefinition) {
		t.Errorf("duplicate feature error = %v, want ErrInvalidDefinition", err)
	}
}

func TestAddFeaturesToSetMerge(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	if _, err := s.AddFeaturesToSet(ctx, "titles", "title_*", false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddFeaturesToSet(ctx, "titles", "popularity", false); err != nil {
		t.Fatal(err)
	}
	updated := feature.StoredFeature{Name: "title_query", Params: []string{"keywords"},
		Template: `{"match":{"text":"{{keywords}} title"}}`}
	if err := s.PutFeature(ctx, updated); err != nil {
		t.Fatal(err)
	}
	if err := s.PutFeature(ctx, feature.StoredFeature{Name: "title_exact", Params: []string{"keywords"},
		Template: `{"match":{"text":"{{keywords}}"}}`}); err != nil {
		t.Fatal(err)
	}

	set, err := s.AddFeaturesToSet(ctx, "titles", "title_*", true)
	if err != nil {
		t.Fatalf("merge error: %v", err)
	}
	var names []string
	for _, f := range set.Features {
		names = append(names, f.Name)
	}
	if got := strings.Join(names, ","); got != "title_boost,title_query,popularity,title_exact" {
		t.Errorf("merged names = %s", got)
	}
	if set.Features[1].Template != updated.Template {
		t.Errorf("title_query template = %s, want the updated definition", set.Features[1].Template)
	}
	stored, err := s.LoadFeatureSet(ctx, "titles")
	if err != nil {
		t.Fatal(err)
	}
	if ord, ok := stored.FeatureOrdinal("popularity"); !ok || ord != 2 {
		t.Errorf("popularity ordinal = %d, want 2", ord)
	}

	_, err = s.AddFeaturesToSet(ctx, "titles", "title_query", false)
	if !errors.Is(err, apperrors.ErrInvalidDefinition) {
		t.Errorf("duplicate without merge error = %v, want ErrInvalidDefinition", err)
	}
}

func TestCreateModelFromSet(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	def := feature.ModelDefinition{Type: "model/linear", Definition: []byte(`{"query": 1.0}`)}

	if _, err := s.CreateModelFromSet(ctx, "basic", "basic_v2", def); err != nil {
		t.Fatal(err)
	}
	m, err := s.LoadModel(ctx, "basic_v2")
	if err != nil {
		t.Fatal(err)
	}
	if m.Set().Name() != "basic" {
		t.Errorf("model set = %s, want basic", m.Set().Name())
	}

	_, err = s.CreateModelFromSet(ctx, "basic", "basic_v2", def)
	if apperrors.HTTPStatusCode(err) != http.StatusConflict {
		t.Errorf("duplicate model error = %v", err)
	}
	_, err = s.CreateModelFromSet(ctx, "missing", "m", def)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("missing set error = %v", err)
	}
}

type countingStore struct {
	Store
	loads atomic.Int32
	delay time.Duration
}

func (c *countingStore) LoadModel(ctx context.Context, name string) (*feature.Model, error) {
	c.loads.Add(1)
	time.Sleep(c.delay)
	return c.Store.LoadModel(ctx, name)
}

func TestCached(t *testing.T) {
	inner := &countingStore{Store: seededStore(t)}
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	c := NewCached(inner, time.Minute, m)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := c.LoadModel(ctx, "basic_linear")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.LoadModel(ctx, "basic_linear")
	if err != nil {
		t.Fatal(err)
	}
	if first != second || inner.loads.Load() != 1 {
		t.Errorf("expected one load and a shared model, got %d loads", inner.loads.Load())
	}
	if hits := testutil.ToFloat64(m.StoreCacheHits.WithLabelValues("model")); hits != 1 {
		t.Errorf("hits = %v, want 1", hits)
	}

	now = now.Add(2 * time.Minute)
	if _, err := c.LoadModel(ctx, "basic_linear"); err != nil {
		t.Fatal(err)
	}
	if inner.loads.Load() != 2 {
		t.Errorf("expired entry should reload, loads = %d", inner.loads.Load())
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
	if _, err := c.LoadModel(ctx, "nope"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("missing model error = %v", err)
	}
	if c.Len() != 0 {
		t.Error("failed loads should not be cached")
	}
	if misses := testutil.ToFloat64(m.StoreCacheMisses.WithLabelValues("model")); misses != 3 {
		t.Errorf("misses = %v, want 3", misses)
	}
}

func TestCachedConcurrentLoads(t *testing.T) {
	inner := &countingStore{Store: seededStore(t), delay: 20 * time.Millisecond}
	c := NewCached(inner, 0, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.LoadModel(context.Background(), "basic_linear"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if n := inner.loads.Load(); n != 1 {
		t.Errorf("loads = %d, want 1", n)
	}
}

func TestEvict(t *testing.T) {
	inner := &countingStore{Store: seededStore(t)}
	c := NewCached(inner, 0, nil)
	ctx := context.Background()
	if _, err := c.LoadModel(ctx, "basic_linear"); err != nil {
		t.Fatal(err)
	}
	c.Evict(TypeModel, "basic_linear")
	if _, err := c.LoadModel(ctx, "basic_linear"); err != nil {
		t.Fatal(err)
	}
	if inner.loads.Load() != 2 {
		t.Errorf("loads = %d, want 2", inner.loads.Load())
	}
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern, name string
		want          bool
	}{
		{"title", "title", true},
		{"title", "titles", false},
		{"title_*", "title_query", true},
		{"title_*", "body_query", false},
		{"*_query", "title_query", true},
		{"*", "anything", true},
		{"t*_*y", "title_query", true},
		{"t*_*y", "title_boost", false},
		{"a*a", "a", false},
	}
	for _, tt := range tests {
		if got := matchGlob(tt.pattern, tt.name); got != tt.want {
			t.Errorf("matchGlob(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}

func TestPatternTranslation(t *testing.T) {
	if got := likePattern(`title_*%`); got != `title\_%\%` {
		t.Errorf("likePattern() = %q", got)
	}
	if got := escapeRedisGlob(`a?[b]*`); got != `a\?\[b\]*` {
		t.Errorf("escapeRedisGlob() = %q", got)
	}
}

// memKV is an in-process stand-in for the Redis client.
type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
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

func (m *memKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memKV) ScanKeys(_ context.Context, pattern string, _ int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if matchGlob(pattern, k) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()
	s := New("test", b, nil)
	if err := s.Apply(ctx, Seed{Features: []feature.StoredFeature{
		{Name: "title_query", Params: []string{"q"}, Template: `{"match": {"text": "{{q}}"}}`},
		{Name: "title_boost", Template: `{"match_all": {"boost": 2}}`},
		{Name: "body_query", Params: []string{"q"}, Template: `{"match": {"body": "{{q}}"}}`},
	}}); err != nil {
		t.Fatal(err)
	}
	names, err := s.SearchFeatures(ctx, "title_*")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(names, ",") != "title_boost,title_query" {
		t.Errorf("SearchFeatures() = %v", names)
	}
	def, err := s.FeatureDefinition(ctx, "title_query")
	if err != nil {
		t.Fatal(err)
	}
	if def.Params[0] != "q" || !strings.Contains(def.Template, "{{q}}") {
		t.Errorf("definition = %+v", def)
	}
	if err := s.Delete(ctx, TypeFeature, "body_query"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadFeature(ctx, "body_query"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("deleted feature error = %v", err)
	}
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}

func TestRedisBackend(t *testing.T) {
	kv := &memKV{data: map[string]string{}}
	exerciseBackend(t, NewRedisBackend(kv, "test"))
	if _, ok := kv.data["ltr:test:feature:title_query"]; !ok {
		t.Errorf("keys = %v", kv.data)
	}
}

func TestRedisBackendLive(t *testing.T) {
	addr := os.Getenv("SP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SP_TEST_REDIS_ADDR not set")
	}
	client, err := pkgredis.NewClient(config.RedisConfig{Addr: addr, PoolSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	store := "test-" + strings.ReplaceAll(t.Name(), "/", "-")
	defer client.FlushByPattern(context.Background(), "ltr:"+store+":*")
	exerciseBackend(t, NewRedisBackend(client, store))
}
