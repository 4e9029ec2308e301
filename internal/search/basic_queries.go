package search

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
)

// MatchAllQuery matches every document with a constant score.
type MatchAllQuery struct {
	Boost float32
}

func (q *MatchAllQuery) String() string { return "*:*" }

func (q *MatchAllQuery) CreateWeight(*Searcher) (Weight, error) {
	return &constantWeight{query: q, score: q.Boost, all: true}, nil
}

// MatchNoneQuery matches nothing. It stands in for features that are not
// active in a request.
type MatchNoneQuery struct {
	Reason string
}

func (q *MatchNoneQuery) String() string { return "MatchNoDocsQuery(\"" + q.Reason + "\")" }

func (q *MatchNoneQuery) CreateWeight(*Searcher) (Weight, error) {
	return &constantWeight{query: q}, nil
}

type constantWeight struct {
	query Query
	score float32
	all   bool
}

func (w *constantWeight) Query() Query { return w.query }

func (w *constantWeight) Cacheable() bool { return true }

func (w *constantWeight) Scorer(leaf index.SegmentContext) (Scorer, error) {
	if !w.all {
		return EmptyScorer(), nil
	}
	return ConstantScorer(AllDocs(leaf.Segment.MaxDoc()), w.score), nil
}

func (w *constantWeight) Explain(leaf index.SegmentContext, doc int) (*Explanation, error) {
	if !w.all || doc >= leaf.Segment.MaxDoc() {
		return NoMatch(w.query.String()), nil
	}
	return Match(w.score, w.query.String()), nil
}

// ConstantScoreQuery matches the documents of Filter with score Boost.
type ConstantScoreQuery struct {
	Filter Query
	Boost  float32
}

func (q *ConstantScoreQuery) String() string {
	return fmt.Sprintf("ConstantScore(%s)^%s", q.Filter, FormatFloat(q.Boost))
}

func (q *ConstantScoreQuery) CreateWeight(s *Searcher) (Weight, error) {
	inner, err := q.Filter.CreateWeight(s)
	if err != nil {
		return nil, err
	}
	return &constantScoreWeight{query: q, inner: inner}, nil
}

type constantScoreWeight struct {
	query *ConstantScoreQuery
	inner Weight
}

func (w *constantScoreWeight) Query() Query { return w.query }

func (w *constantScoreWeight) Cacheable() bool { return w.inner.Cacheable() }

func (w *constantScoreWeight) Scorer(leaf index.SegmentContext) (Scorer, error) {
	inner, err := w.inner.Scorer(leaf)
	if err != nil {
		return nil, err
	}
	return ConstantScorer(inner, w.query.Boost), nil
}

func (w *constantScoreWeight) Explain(leaf index.SegmentContext, doc int) (*Explanation, error) {
	e, err := w.inner.Explain(leaf, doc)
	if err != nil {
		return nil, err
	}
	if !e.Match {
		return e, nil
	}
	return Match(w.query.Boost, w.query.String()), nil
}
