package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/metrics"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/feature"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/featurelog"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/ranker"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/settings"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/store"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/termstat"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search/dsl"
)

// Query type names.
const (
	TypeStored   = "sltr"
	TypeInline   = "ltr"
	TypeTermStat = "term_stat"
)

// Builder registers the LTR query types on a dsl.Parser and holds what they
// need to build queries.
type Builder struct {
	Stores       map[string]store.Store
	DefaultStore string
	Analyzers    *analysis.Registry
	Schema       index.Schema
	Settings     *settings.Settings
	StatsMode    termstat.Mode
	Rankers      *ranker.Parsers
	// Metrics may be nil.
	Metrics *metrics.Metrics
	logger  *slog.Logger
}

// Register adds sltr, ltr and term_stat to p.
func (b *Builder) Register(p *dsl.Parser) {
	if b.Rankers == nil {
		b.Rankers = ranker.NewParsers()
	}
	if b.logger == nil {
		b.logger = slog.Default().With("component", "ltr-query-builder")
	}
	p.Register(TypeStored, b.instrument(TypeStored, b.parseStored))
	p.Register(TypeInline, b.instrument(TypeInline, b.parseInline))
	p.Register(TypeTermStat, b.instrument(TypeTermStat, b.parseTermStat))
}

func (b *Builder) queryContext(p *dsl.Parser) *feature.QueryContext {
	return &feature.QueryContext{
		Analyzers: b.Analyzers,
		Schema:    b.Schema,
		Parser:    p,
		Settings:  b.Settings,
		StatsMode: b.StatsMode,
	}
}

// instrument counts builds and failed builds of one query type.
func (b *Builder) instrument(name string, fn dsl.ParseFunc) dsl.ParseFunc {
	return func(ctx context.Context, p *dsl.Parser, body json.RawMessage) (search.Query, error) {
		if b.Metrics != nil {
			b.Metrics.LTRRequestsTotal.WithLabelValues(name).Inc()
		}
		q, err := fn(ctx, p, body)
		if err != nil {
			if b.Metrics != nil {
				b.Metrics.LTRErrorsTotal.WithLabelValues(name, errorKind(err)).Inc()
			}
			b.logger.Debug("ltr query build failed", "query", name, "error", err)
		}
		return q, err
	}
}

// errorKind labels err for the error counter.
func errorKind(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrMissingParameter):
		return "missing_parameter"
	case errors.Is(err, apperrors.ErrUnknownFeature):
		return "unknown_feature"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrFeatureDisabled):
		return "disabled"
	case errors.Is(err, apperrors.ErrAnalyzerNotFound):
		return "analyzer"
	case errors.Is(err, apperrors.ErrInvalidDefinition), errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid"
	default:
		return "internal"
	}
}

func (b *Builder) store(name string) (store.Store, error) {
	if name == "" {
		name = b.DefaultStore
	}
	s, ok := b.Stores[name]
	if !ok {
		return nil, apperrors.NotFound("store", name)
	}
	return s, nil
}

type storedBody struct {
	Model          string          `json:"model"`
	FeatureSet     string          `json:"featureset"`
	Store          string          `json:"store"`
	Params         json.RawMessage `json:"params"`
	ActiveFeatures []string        `json:"active_features"`
	// Cache is accepted and ignored.
	Cache bool `json:"cache"`
}

func (b *Builder) parseStored(ctx context.Context, p *dsl.Parser, raw json.RawMessage) (search.Query, error) {
	var body storedBody
	if err := dsl.Decode(raw, &body); err != nil {
		return nil, err
	}
	if body.Model == "" && body.FeatureSet == "" {
		return nil, apperrors.InvalidDefinition("Either [model] or [featureset] must be set.")
	}
	if len(body.Params) == 0 || bytes.Equal(bytes.TrimSpace(body.Params), []byte("null")) {
		return nil, apperrors.InvalidDefinition("Field [params] is mandatory.")
	}
	var params feature.Params
	if err := json.Unmarshal(body.Params, &params); err != nil {
		return nil, apperrors.InvalidDefinition("params: %v", err)
	}

	st, err := b.store(body.Store)
	if err != nil {
		return nil, err
	}
	var model *feature.Model
	if body.Model != "" {
		model, err = st.LoadModel(ctx, body.Model)
	} else {
		var set *feature.Set
		if set, err = st.LoadFeatureSet(ctx, body.FeatureSet); err == nil {
			model, err = feature.NewUnitModel(set)
		}
	}
	if err != nil {
		return nil, err
	}
	return Build(ctx, b.queryContext(p), model, params, body.ActiveFeatures)
}

type inlineBody struct {
	Features []json.RawMessage        `json:"features"`
	Model    *feature.ModelDefinition `json:"model"`
}

func (b *Builder) parseInline(ctx context.Context, p *dsl.Parser, raw json.RawMessage) (search.Query, error) {
	var body inlineBody
	if err := dsl.Decode(raw, &body); err != nil {
		return nil, err
	}
	if body.Model == nil {
		return nil, apperrors.InvalidDefinition("[ltr] query requires a model, none specified")
	}
	if len(body.Features) == 0 {
		return &search.MatchAllQuery{Boost: 1}, nil
	}
	features := make([]*feature.PrebuiltFeature, len(body.Features))
	for i, item := range body.Features {
		name, q, err := parseInlineFeature(ctx, p, item)
		if err != nil {
			return nil, err
		}
		features[i] = feature.NewPrebuilt(name, q)
	}
	def := body.Model
	model, err := feature.NewInlineModel(def.Type, features, func(set *feature.Set) (ranker.Ranker, error) {
		return b.Rankers.Parse(def.Type, set, def.Body())
	})
	if err != nil {
		return nil, err
	}
	return Build(ctx, b.queryContext(p), model, nil, nil)
}

// parseInlineFeature accepts {"name": ..., "query": {...}} or a bare query.
func parseInlineFeature(ctx context.Context, p *dsl.Parser, raw json.RawMessage) (string, search.Query, error) {
	var named struct {
		Name  string          `json:"name"`
		Query json.RawMessage `json:"query"`
	}
	if err := json.Unmarshal(raw, &named); err == nil && len(named.Query) > 0 {
		if err := dsl.Decode(raw, &named); err != nil {
			return "", nil, err
		}
		q, err := p.Parse(ctx, named.Query)
		return named.Name, q, err
	}
	q, err := p.Parse(ctx, raw)
	return "", q, err
}

type termStatBody struct {
	Expr    string `json:"expr"`
	Aggr    string `json:"aggr"`
	PosAggr string `json:"pos_aggr"`
	Mode    string `json:"mode"`
	Terms   []struct {
		Field string `json:"field"`
		Term  string `json:"term"`
	} `json:"terms"`
	Query    string   `json:"query"`
	Fields   []string `json:"fields"`
	Analyzer string   `json:"analyzer"`
}

func (b *Builder) parseTermStat(_ context.Context, _ *dsl.Parser, raw json.RawMessage) (search.Query, error) {
	var body termStatBody
	if err := dsl.Decode(raw, &body); err != nil {
		return nil, err
	}
	if body.Expr == "" {
		return nil, apperrors.InvalidDefinition("Field [expr] is mandatory.")
	}
	aggr, err := termstat.ParseAggr(body.Aggr)
	if err != nil {
		return nil, err
	}
	posAggr, err := termstat.ParseAggr(body.PosAggr)
	if err != nil {
		return nil, err
	}
	mode := b.StatsMode
	if body.Mode != "" {
		if mode, err = termstat.ParseMode(body.Mode); err != nil {
			return nil, err
		}
	}

	var terms []index.Term
	for _, t := range body.Terms {
		if t.Field == "" || t.Term == "" {
			return nil, apperrors.InvalidDefinition("terms entries require a field and a term")
		}
		terms = append(terms, index.Term{Field: t.Field, Text: t.Term})
	}
	if body.Query != "" {
		if len(body.Fields) == 0 {
			return nil, apperrors.InvalidDefinition("Field [fields] is mandatory with [query].")
		}
		for _, field := range body.Fields {
			name := body.Analyzer
			if name == "" {
				name = b.Schema.SearchAnalyzer(field)
			}
			a, err := b.Analyzers.Get(name)
			if err != nil {
				return nil, err
			}
			for _, text := range analysis.Terms(a, body.Query) {
				terms = append(terms, index.Term{Field: field, Text: text})
			}
		}
	}

	q, err := termstat.NewQuery(body.Expr, aggr, posAggr, terms)
	if err != nil {
		return nil, apperrors.InvalidDefinition("%v", err)
	}
	q.Mode = mode
	q.Settings = b.Settings
	return q, nil
}

// Recording returns ctx with a fresh feature log recorder attached, so that
// the LTR queries parsed with it record their vectors.
func Recording(ctx context.Context) (context.Context, *featurelog.Recorder) {
	rec := featurelog.NewRecorder()
	return featurelog.WithRecorder(ctx, rec), rec
}
