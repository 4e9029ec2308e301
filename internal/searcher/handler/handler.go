package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/indexer/validator"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/featurelog"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/query"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/settings"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/store"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search/cache"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search/dsl"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/middleware"
)

const maxBodyBytes = 1 << 20

// Index is the subset of the indexer engine the handlers use.
type Index interface {
	Reader() *index.Reader
	IndexDocument(doc index.Document) error
	Flush() error
}

type Handler struct {
	index        Index
	parser       *dsl.Parser
	searchOpts   []search.Option
	cache        *cache.QueryCache
	publisher    *featurelog.Publisher
	settings     *settings.Settings
	stores       []*store.Cached
	metrics      *metrics.Metrics
	defaultField string
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

type Option func(*Handler)

// WithCache enables the result cache.
func WithCache(c *cache.QueryCache) Option {
	return func(h *Handler) { h.cache = c }
}

// WithPublisher ships logged feature vectors to Kafka.
func WithPublisher(p *featurelog.Publisher) Option {
	return func(h *Handler) { h.publisher = p }
}

func WithSettings(s *settings.Settings) Option {
	return func(h *Handler) { h.settings = s }
}

// WithStoreCaches registers compiled-element caches cleared by
// ClearStoreCache.
func WithStoreCaches(c ...*store.Cached) Option {
	return func(h *Handler) { h.stores = append(h.stores, c...) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithSearchOptions configures the per-request searcher.
func WithSearchOptions(opts ...search.Option) Option {
	return func(h *Handler) { h.searchOpts = append(h.searchOpts, opts...) }
}

func WithDefaultField(field string) Option {
	return func(h *Handler) { h.defaultField = field }
}

func New(idx Index, parser *dsl.Parser, defaultLimit, maxResults int, opts ...Option) *Handler {
	h := &Handler{
		index:        idx,
		parser:       parser,
		defaultField: "text",
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query       json.RawMessage `json:"query"`
	Size        int             `json:"size,omitempty"`
	Rescore     *RescoreRequest `json:"rescore,omitempty"`
	Explain     bool            `json:"explain,omitempty"`
	LogFeatures bool            `json:"log_features,omitempty"`
}

// RescoreRequest re-scores the top WindowSize hits with Query. Weights
// default to 1.
type RescoreRequest struct {
	WindowSize    int             `json:"window_size"`
	Query         json.RawMessage `json:"rescore_query"`
	QueryWeight   *float32        `json:"query_weight,omitempty"`
	RescoreWeight *float32        `json:"rescore_query_weight,omitempty"`
}

type Hit struct {
	ID          string              `json:"id"`
	Score       float32             `json:"score"`
	Explanation *search.Explanation `json:"explanation,omitempty"`
	Rescore     *search.Explanation `json:"rescore_explanation,omitempty"`
	FeatureLog  []featurelog.Entry  `json:"feature_log,omitempty"`
}

type SearchResponse struct {
	TotalHits int   `json:"total_hits"`
	Hits      []Hit `json:"hits"`
	CacheHit  bool  `json:"cache_hit"`
	TookMs    int64 `json:"took_ms"`
}

// Search handles POST /api/v1/search with a JSON query DSL body.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	var req SearchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Query) == 0 {
		h.writeError(w, http.StatusBadRequest, "field [query] is required")
		return
	}
	h.execute(w, r, &req, body)
}

// SearchQueryString handles GET /api/v1/search?q=... by wrapping q in a
// query_string query against the default field.
func (h *Handler) SearchQueryString(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	field := r.URL.Query().Get("field")
	if field == "" {
		field = h.defaultField
	}
	raw, err := json.Marshal(map[string]any{
		"query_string": map[string]string{"query": q, "default_field": field},
	})
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "encoding query")
		return
	}
	req := SearchRequest{Query: raw}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		req.Size = parsed
	}
	key, err := json.Marshal(req)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "encoding query")
		return
	}
	h.execute(w, r, &req, key)
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request, req *SearchRequest, cacheKey []byte) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	limit := h.defaultLimit
	if req.Size < 0 {
		h.writeError(w, http.StatusBadRequest, "size must not be negative")
		return
	}
	if req.Size > 0 {
		limit = min(req.Size, h.maxResults)
	}

	var rec *featurelog.Recorder
	if req.LogFeatures {
		ctx, rec = query.Recording(ctx)
		rec.Only()
	}
	q, err := h.parser.Parse(ctx, req.Query)
	if err != nil {
		h.fail(w, log, "query", err)
		return
	}
	var rescoreQuery search.Query
	if req.Rescore != nil {
		if rescoreQuery, err = h.parser.Parse(ctx, req.Rescore.Query); err != nil {
			h.fail(w, log, "rescore query", err)
			return
		}
	}

	searcher := search.NewSearcher(h.index.Reader(), h.searchOpts...)
	compute := func() (*search.TopDocs, error) {
		top, err := searcher.Search(ctx, q, limit)
		if err != nil || rescoreQuery == nil {
			return top, err
		}
		return searcher.Rescore(ctx, top, rescoreQuery, rescoreOptions(req.Rescore))
	}

	var (
		top      *search.TopDocs
		cacheHit bool
	)
	if h.cache != nil && !req.Explain && !req.LogFeatures {
		top, cacheHit, err = h.cache.GetOrCompute(ctx, cacheKey, limit, compute)
	} else {
		top, err = compute()
	}
	if err != nil {
		h.observe("error", "", start)
		h.fail(w, log, "search", err)
		return
	}

	if rec != nil {
		if err := logHits(ctx, searcher, rec, top.Hits, q, rescoreQuery, req.Rescore); err != nil {
			h.observe("error", "", start)
			h.fail(w, log, "feature logging", err)
			return
		}
	}

	resp := SearchResponse{TotalHits: top.TotalHits, Hits: make([]Hit, 0, len(top.Hits)), CacheHit: cacheHit}
	for rank, sd := range top.Hits {
		hit := Hit{ID: sd.ID, Score: sd.Score}
		if req.Explain {
			if hit.Explanation, err = searcher.Explain(q, sd.Doc); err != nil {
				h.fail(w, log, "explain", err)
				return
			}
			if rescoreQuery != nil {
				if hit.Rescore, err = searcher.Explain(rescoreQuery, sd.Doc); err != nil {
					h.fail(w, log, "explain", err)
					return
				}
			}
		}
		if rec != nil {
			hit.FeatureLog = rec.Lookup(sd.ID)
			h.publish(ctx, req, rank, hit)
		}
		resp.Hits = append(resp.Hits, hit)
	}

	cacheStatus := "bypass"
	switch {
	case cacheHit:
		cacheStatus = "hit"
	case h.cache != nil && top.Cacheable:
		cacheStatus = "miss"
	}
	resultType := cacheStatus
	if top.TotalHits == 0 {
		resultType = "zero_result"
	}
	h.observe(resultType, cacheStatus, start)

	resp.TookMs = time.Since(start).Milliseconds()
	log.Info("search completed",
		"total_hits", resp.TotalHits,
		"returned", len(resp.Hits),
		"cache", cacheStatus,
		"rescored", rescoreQuery != nil,
		"latency_ms", resp.TookMs,
	)
	h.writeJSON(w, http.StatusOK, resp)
}

// logHits records the feature vectors of the returned hits only. The
// recorder ignores every document during the search itself; the hits are
// scored again once they are known.
func logHits(ctx context.Context, s *search.Searcher, rec *featurelog.Recorder, hits []search.ScoreDoc, q, rescoreQuery search.Query, rescore *RescoreRequest) error {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	rec.Only(ids...)
	if _, _, err := s.ScoreHits(ctx, q, hits); err != nil {
		return err
	}
	if rescoreQuery == nil {
		return nil
	}
	window := min(rescoreOptions(rescore).Window, len(hits))
	_, _, err := s.ScoreHits(ctx, rescoreQuery, hits[:window])
	return err
}

func rescoreOptions(r *RescoreRequest) search.RescoreOptions {
	opts := search.RescoreOptions{Window: r.WindowSize, QueryWeight: 1, RescoreWeight: 1}
	if opts.Window <= 0 {
		opts.Window = 10
	}
	if r.QueryWeight != nil {
		opts.QueryWeight = *r.QueryWeight
	}
	if r.RescoreWeight != nil {
		opts.RescoreWeight = *r.RescoreWeight
	}
	return opts
}

func (h *Handler) publish(ctx context.Context, req *SearchRequest, rank int, hit Hit) {
	if h.publisher == nil {
		return
	}
	for _, entry := range hit.FeatureLog {
		h.publisher.Publish(featurelog.Event{
			RequestID: middleware.GetRequestID(ctx),
			Query:     string(req.Query),
			Rank:      rank,
			Score:     hit.Score,
			Entry:     entry,
			Timestamp: time.Now().UTC(),
		})
	}
}

func (h *Handler) observe(resultType, cacheStatus string, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	switch cacheStatus {
	case "":
		return
	case "hit":
		h.metrics.CacheHitsTotal.Inc()
	case "miss":
		h.metrics.CacheMissesTotal.Inc()
	case "bypass":
		h.metrics.CacheBypassTotal.Inc()
	}
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
}

// fail maps err to a status code. Client errors are logged at debug level.
func (h *Handler) fail(w http.ResponseWriter, log *slog.Logger, stage string, err error) {
	status := apperrors.HTTPStatusCode(err)
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	if status >= http.StatusInternalServerError {
		log.Error("search failed", "stage", stage, "error", err)
	} else {
		log.Debug("search rejected", "stage", stage, "error", err)
	}
	h.writeError(w, status, err.Error())
}

// IndexDocuments handles POST /api/v1/documents. The body is one document or
// an array of documents; they become searchable after the next refresh.
func (h *Handler) IndexDocuments(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	var docs []index.Document
	if err := json.Unmarshal(body, &docs); err != nil {
		var doc index.Document
		if err := json.Unmarshal(body, &doc); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid document body: "+err.Error())
			return
		}
		docs = []index.Document{doc}
	}
	for i := range docs {
		if err := validator.ValidateDocument(&docs[i]); err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("document %d: %v", i, err))
			return
		}
	}
	for _, doc := range docs {
		if err := h.index.IndexDocument(doc); err != nil {
			logger.FromContext(r.Context()).Error("indexing failed", "doc_id", doc.ID, "error", err)
			h.writeError(w, http.StatusInternalServerError, "indexing failed")
			return
		}
	}
	h.writeJSON(w, http.StatusAccepted, map[string]int{"indexed": len(docs)})
}

// Refresh flushes buffered documents and drops cached results.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.index.Flush(); err != nil {
		h.logger.Error("refresh failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context()); err != nil {
			h.logger.Warn("cache invalidation after refresh failed", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "refreshed",
		"max_docs": h.index.Reader().MaxDoc(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	stats := h.cache.Stats()
	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"bypass":   stats.Bypass,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

type settingsBody struct {
	Enabled *bool `json:"enabled"`
}

// Settings handles GET and PUT /api/v1/ltr/settings.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		h.writeError(w, http.StatusServiceUnavailable, "ltr is not configured")
		return
	}
	if r.Method == http.MethodPut {
		var body settingsBody
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil || body.Enabled == nil {
			h.writeError(w, http.StatusBadRequest, "body must be {\"enabled\": true|false}")
			return
		}
		h.settings.SetEnabled(*body.Enabled)
		logger.FromContext(r.Context()).Info("ltr settings updated", "enabled", *body.Enabled)
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"enabled": h.settings.Enabled()})
}

// Stats handles GET /api/v1/ltr/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stores := make(map[string]int, len(h.stores))
	for _, s := range h.stores {
		stores[s.Name()] = s.Len()
	}
	resp := map[string]any{
		"enabled": h.settings != nil && h.settings.Enabled(),
		"stores":  stores,
	}
	if h.publisher != nil {
		resp["feature_log_pending"] = h.publisher.Pending()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ClearStoreCache handles POST /api/v1/ltr/cache/clear.
func (h *Handler) ClearStoreCache(w http.ResponseWriter, r *http.Request) {
	cleared := 0
	for _, s := range h.stores {
		cleared += s.Len()
		s.Clear()
	}
	logger.FromContext(r.Context()).Info("ltr store caches cleared", "entries", cleared)
	h.writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
