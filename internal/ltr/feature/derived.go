package feature

import (
	"context"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/expr"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/ranker"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
)

// DerivedFeature computes an expression over the values of features with
// lower ordinals and numeric request parameters. It is only scored inside a
// ranker query, from the partially filled feature vector.
type DerivedFeature struct {
	name   string
	params []string
	expr   *expr.Expression
}

func compileDerived(def StoredFeature) (*DerivedFeature, error) {
	e, err := expr.Compile(def.Template, append(expr.Identifiers(def.Template), def.Params...)...)
	if err != nil {
		return nil, apperrors.InvalidDefinition("feature [%s]: %v", def.Name, err)
	}
	return &DerivedFeature{name: def.Name, params: def.Params, expr: e}, nil
}

func (f *DerivedFeature) Name() string { return f.name }

func (f *DerivedFeature) Kind() Kind { return KindDerived }

func (f *DerivedFeature) isParam(name string) bool {
	for _, p := range f.params {
		if p == name {
			return true
		}
	}
	return false
}

func (f *DerivedFeature) validate(set *Set) error {
	self, ok := set.FeatureOrdinal(f.name)
	if !ok {
		return apperrors.InvalidDefinition("derived feature [%s] is not part of set [%s]", f.name, set.Name())
	}
	for _, ref := range f.expr.References() {
		if f.isParam(ref) {
			continue
		}
		ord, ok := set.FeatureOrdinal(ref)
		if !ok {
			return apperrors.InvalidDefinition("derived feature [%s] refers to unknown feature [%s]", f.name, ref)
		}
		if ord >= self {
			return apperrors.InvalidDefinition("derived feature [%s] refers to feature [%s] which is not declared before it", f.name, ref)
		}
	}
	return nil
}

func (f *DerivedFeature) ToQuery(_ context.Context, _ *QueryContext, set *Set, params Params) (search.Query, error) {
	if err := checkRequired(f.name, f.params, params); err != nil {
		return nil, err
	}
	q := &DerivedQuery{feature: f, ordinals: make(map[string]int), params: expr.Vars{}}
	for _, ref := range f.expr.References() {
		if f.isParam(ref) {
			v, ok := toFloat(params[ref])
			if !ok {
				return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400,
					"feature [%s]: param [%s] must be numeric", f.name, ref)
			}
			q.params[ref] = v
			continue
		}
		ord, ok := set.FeatureOrdinal(ref)
		if !ok {
			return nil, apperrors.InvalidDefinition("derived feature [%s] refers to unknown feature [%s]", f.name, ref)
		}
		q.ordinals[ref] = ord
	}
	return q, nil
}

// VectorQuery is implemented by queries scored from the feature vector
// instead of the index.
type VectorQuery interface {
	search.Query
	NewVectorScorer() VectorScorer
}

// VectorScorer scores the current document from its partially filled
// vector. One per segment scorer.
type VectorScorer interface {
	ScoreVector(v *ranker.FeatureVector) (float32, error)
}

// DerivedQuery is a derived feature bound to request parameters.
type DerivedQuery struct {
	feature  *DerivedFeature
	ordinals map[string]int
	params   expr.Vars
}

func (q *DerivedQuery) String() string { return "derived(" + q.feature.expr.String() + ")" }

func (q *DerivedQuery) CreateWeight(*search.Searcher) (search.Weight, error) {
	return nil, apperrors.InvalidDefinition("derived feature [%s] can only be scored by a ranker", q.feature.name)
}

func (q *DerivedQuery) NewVectorScorer() VectorScorer {
	s := &derivedScorer{query: q}
	s.bound = q.feature.expr.Bind(s)
	return s
}

type derivedScorer struct {
	query *DerivedQuery
	bound *expr.Binder
	vec   *ranker.FeatureVector
}

func (s *derivedScorer) ScoreVector(v *ranker.FeatureVector) (float32, error) {
	s.vec = v
	out, err := s.bound.Evaluate()
	s.vec = nil
	return float32(out), err
}

func (s *derivedScorer) Resolve(name string) (float64, bool) {
	if ord, ok := s.query.ordinals[name]; ok {
		return float64(s.vec.Get(ord)), true
	}
	return s.query.params.Resolve(name)
}
