// Package query turns LTR models into search queries. A RankerQuery scores
// every document matched by at least one of its features: it fills the
// document's feature vector in ordinal order and returns the model's score.
package query

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/feature"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/featurelog"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/ranker"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/settings"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
)

// RankerQuery scores documents with a model. Queries are built per request
// and never cached.
type RankerQuery struct {
	model    *feature.Model
	features []search.Query
	settings *settings.Settings
	logger   featurelog.Logger
}

// Build binds every active feature of model to params. Inactive features
// match nothing and leave their slot at 0. An empty active list activates
// every feature.
func Build(ctx context.Context, qc *feature.QueryContext, model *feature.Model, params feature.Params, active []string) (*RankerQuery, error) {
	set := model.Set()
	enabled, err := set.ResolveActive(active)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = feature.Params{}
	}
	q := &RankerQuery{
		model:    model,
		features: make([]search.Query, set.Size()),
		settings: qc.Settings,
	}
	for i, f := range set.Features() {
		if !enabled[i] {
			q.features[i] = &search.MatchNoneQuery{Reason: "feature [" + f.Name() + "] is not active"}
			continue
		}
		fq, err := f.ToQuery(ctx, qc, set, params)
		if err != nil {
			return nil, err
		}
		q.features[i] = fq
	}
	if rec := featurelog.RecorderFrom(ctx); rec != nil {
		q.logger = rec
	}
	return q, nil
}

// WithLogger returns a copy of q that logs every scored vector to l.
func (q *RankerQuery) WithLogger(l featurelog.Logger) *RankerQuery {
	out := *q
	out.logger = l
	return &out
}

func (q *RankerQuery) Model() *feature.Model { return q.model }

// Features returns the bound feature queries in ordinal order.
func (q *RankerQuery) Features() []search.Query { return q.features }

func (q *RankerQuery) String() string {
	parts := make([]string, len(q.features))
	for i, f := range q.features {
		parts[i] = f.String()
	}
	return fmt.Sprintf("LtrModel(%s, [%s])", q.model.Name(), strings.Join(parts, ", "))
}

func (q *RankerQuery) CreateWeight(s *search.Searcher) (search.Weight, error) {
	if err := q.settings.CheckEnabled(); err != nil {
		return nil, err
	}
	w := &rankerWeight{query: q, subs: make([]subWeight, len(q.features))}
	for i, f := range q.features {
		if vq, ok := f.(feature.VectorQuery); ok {
			w.subs[i].vector = vq
			w.hasVector = true
			continue
		}
		fw, err := f.CreateWeight(s)
		if err != nil {
			return nil, fmt.Errorf("feature [%s]: %w", q.model.Set().Feature(i).Name(), err)
		}
		w.subs[i].weight = fw
	}
	return w, nil
}

// subWeight holds either the weight of an index-backed feature or a feature
// scored from the vector.
type subWeight struct {
	weight search.Weight
	vector feature.VectorQuery
}

type rankerWeight struct {
	query     *RankerQuery
	subs      []subWeight
	hasVector bool
}

func (w *rankerWeight) Query() search.Query { return w.query }

func (w *rankerWeight) Cacheable() bool { return false }

func (w *rankerWeight) Scorer(leaf index.SegmentContext) (search.Scorer, error) {
	return w.newScorer(leaf)
}

func (w *rankerWeight) newScorer(leaf index.SegmentContext) (*Scorer, error) {
	r := w.query.model.Ranker()
	s := &Scorer{
		ranker: r,
		vec:    r.NewFeatureVector(nil),
		subs:   make([]subScorer, len(w.subs)),
		leaf:   leaf,
		logger: w.query.logger,
		model:  w.query.model,
	}
	iterators := make([]search.DocIterator, 0, len(w.subs)+1)
	for i, sub := range w.subs {
		if sub.vector != nil {
			s.subs[i].vector = sub.vector.NewVectorScorer()
			continue
		}
		sc, err := sub.weight.Scorer(leaf)
		if err != nil {
			return nil, err
		}
		s.subs[i].scorer = sc
		iterators = append(iterators, sc)
	}
	if w.hasVector {
		iterators = append(iterators, search.AllDocs(leaf.Segment.MaxDoc()))
	}
	s.DocIterator = search.NewDisjunction(iterators...)
	return s, nil
}

func (w *rankerWeight) Explain(leaf index.SegmentContext, doc int) (*search.Explanation, error) {
	s, err := w.newScorer(leaf)
	if err != nil {
		return nil, err
	}
	s.logger = nil
	if s.Advance(doc) != doc {
		return search.NoMatch("no matching features"), nil
	}
	score, err := s.Score()
	if err != nil {
		return nil, err
	}
	set := w.query.model.Set()
	details := make([]*search.Explanation, len(w.subs))
	for i, sub := range w.subs {
		name := set.Feature(i).Name()
		value := s.values[i]
		switch {
		case sub.vector != nil:
			details[i] = search.Match(value, fmt.Sprintf("Feature %d(%s): derived from the vector", i, name))
		default:
			e, err := sub.weight.Explain(leaf, doc)
			if err != nil {
				return nil, err
			}
			if !e.Match {
				details[i] = search.Match(0, fmt.Sprintf("Feature %d(%s): [no match, default value 0.0 used]", i, name))
				continue
			}
			details[i] = search.Match(value, fmt.Sprintf("Feature %d(%s):", i, name), e)
		}
	}
	return search.Match(score, "LtrModel: "+w.query.model.Name()+" using features:", details...), nil
}

type subScorer struct {
	scorer search.Scorer
	vector feature.VectorScorer
}

// Scorer is the per-segment scorer of a RankerQuery. It owns its feature
// vector and sub-scorers and is used by one goroutine.
type Scorer struct {
	search.DocIterator
	ranker ranker.Ranker
	vec    *ranker.FeatureVector
	subs   []subScorer
	leaf   index.SegmentContext
	logger featurelog.Logger
	model  *feature.Model
	// values keeps the raw feature values of the last scored document.
	values []float32
}

func (s *Scorer) Score() (float32, error) {
	doc := s.DocID()
	s.vec.Reset()
	for i, sub := range s.subs {
		var (
			v   float32
			err error
		)
		if sub.vector != nil {
			v, err = sub.vector.ScoreVector(s.vec)
		} else {
			sc := sub.scorer
			if sc.DocID() < doc {
				sc.Advance(doc)
			}
			if sc.DocID() == doc {
				v, err = sc.Score()
			}
		}
		if err != nil {
			return 0, fmt.Errorf("feature [%s]: %w", s.model.Set().Feature(i).Name(), err)
		}
		s.vec.Set(i, v)
	}
	s.values = append(s.values[:0], s.vec.Scores()...)
	if s.logger != nil {
		if id := s.leaf.Segment.DocID(doc); s.logger.Wants(id) {
			s.log(id)
		}
	}
	return s.ranker.Score(s.vec), nil
}

func (s *Scorer) log(docID string) {
	set := s.model.Set()
	values := make([]featurelog.Value, len(s.values))
	for i, v := range s.values {
		values[i] = featurelog.Value{Name: set.Feature(i).Name(), Value: v}
	}
	s.logger.LogFeatures(featurelog.Entry{
		Model:    s.model.Name(),
		DocID:    docID,
		Features: values,
	})
}

// Vector returns the raw feature values of the last scored document. The
// slice is reused by the next call to Score.
func (s *Scorer) Vector() []float32 { return s.values }

func (s *Scorer) MaxScore() float32 { return float32(math.Inf(1)) }
