package search

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
)

// BoolQuery combines clauses. Must and Should clauses contribute to the
// score, Filter clauses must match without scoring, MustNot clauses exclude.
// Without Must or Filter clauses at least one Should clause must match; a
// query with only MustNot clauses matches every other document.
type BoolQuery struct {
	Must    []Query
	Should  []Query
	Filter  []Query
	MustNot []Query
}

func (q *BoolQuery) String() string {
	var parts []string
	for _, c := range q.Must {
		parts = append(parts, "+"+c.String())
	}
	for _, c := range q.Filter {
		parts = append(parts, "#"+c.String())
	}
	for _, c := range q.Should {
		parts = append(parts, c.String())
	}
	for _, c := range q.MustNot {
		parts = append(parts, "-"+c.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (q *BoolQuery) CreateWeight(s *Searcher) (Weight, error) {
	w := &boolWeight{query: q}
	var err error
	if w.must, err = createWeights(s, q.Must); err != nil {
		return nil, err
	}
	if w.should, err = createWeights(s, q.Should); err != nil {
		return nil, err
	}
	if w.filter, err = createWeights(s, q.Filter); err != nil {
		return nil, err
	}
	if w.mustNot, err = createWeights(s, q.MustNot); err != nil {
		return nil, err
	}
	return w, nil
}

func createWeights(s *Searcher, queries []Query) ([]Weight, error) {
	weights := make([]Weight, 0, len(queries))
	for _, q := range queries {
		w, err := q.CreateWeight(s)
		if err != nil {
			return nil, err
		}
		weights = append(weights, w)
	}
	return weights, nil
}

type boolWeight struct {
	query   *BoolQuery
	must    []Weight
	should  []Weight
	filter  []Weight
	mustNot []Weight
}

func (w *boolWeight) Query() Query { return w.query }

func (w *boolWeight) Cacheable() bool {
	for _, group := range [][]Weight{w.must, w.should, w.filter, w.mustNot} {
		for _, sub := range group {
			if !sub.Cacheable() {
				return false
			}
		}
	}
	return true
}

func scorers(leaf index.SegmentContext, weights []Weight) ([]Scorer, error) {
	out := make([]Scorer, 0, len(weights))
	for _, w := range weights {
		s, err := w.Scorer(leaf)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (w *boolWeight) Scorer(leaf index.SegmentContext) (Scorer, error) {
	must, err := scorers(leaf, w.must)
	if err != nil {
		return nil, err
	}
	should, err := scorers(leaf, w.should)
	if err != nil {
		return nil, err
	}
	filter, err := scorers(leaf, w.filter)
	if err != nil {
		return nil, err
	}
	mustNot, err := scorers(leaf, w.mustNot)
	if err != nil {
		return nil, err
	}

	var main DocIterator
	required := make([]DocIterator, 0, len(must)+len(filter))
	for _, s := range must {
		required = append(required, s)
	}
	for _, s := range filter {
		required = append(required, s)
	}
	switch {
	case len(required) > 0:
		main = NewConjunction(required...)
	case len(should) > 0:
		optional := make([]DocIterator, len(should))
		for i, s := range should {
			optional[i] = s
		}
		main = NewDisjunction(optional...)
	case len(mustNot) > 0:
		main = AllDocs(leaf.Segment.MaxDoc())
	default:
		return EmptyScorer(), nil
	}
	if len(mustNot) > 0 {
		prohibited := make([]DocIterator, len(mustNot))
		for i, s := range mustNot {
			prohibited[i] = s
		}
		main = &exclusion{main: main, prohibited: prohibited}
	}
	return &boolScorer{DocIterator: main, must: must, should: should}, nil
}

func (w *boolWeight) Explain(leaf index.SegmentContext, doc int) (*Explanation, error) {
	var details []*Explanation
	var sum float32
	matchedShould := false
	for _, sub := range w.must {
		e, err := sub.Explain(leaf, doc)
		if err != nil {
			return nil, err
		}
		if !e.Match {
			return NoMatch("no match on required clause ("+sub.Query().String()+")", e), nil
		}
		sum += e.Value
		details = append(details, e)
	}
	for _, sub := range w.filter {
		e, err := sub.Explain(leaf, doc)
		if err != nil {
			return nil, err
		}
		if !e.Match {
			return NoMatch("no match on required clause ("+sub.Query().String()+")", e), nil
		}
		details = append(details, Match(0, "match on required clause, product of:", Match(0, "# clause"), e))
	}
	for _, sub := range w.mustNot {
		e, err := sub.Explain(leaf, doc)
		if err != nil {
			return nil, err
		}
		if e.Match {
			return NoMatch("match on prohibited clause ("+sub.Query().String()+")", e), nil
		}
	}
	for _, sub := range w.should {
		e, err := sub.Explain(leaf, doc)
		if err != nil {
			return nil, err
		}
		if e.Match {
			matchedShould = true
			sum += e.Value
			details = append(details, e)
		}
	}
	if len(w.must) == 0 && len(w.filter) == 0 && len(w.should) > 0 && !matchedShould {
		return NoMatch("no matching clauses"), nil
	}
	if len(w.must)+len(w.filter)+len(w.should)+len(w.mustNot) == 0 {
		return NoMatch("empty bool query"), nil
	}
	return Match(sum, "sum of:", details...), nil
}

type boolScorer struct {
	DocIterator
	must   []Scorer
	should []Scorer
}

func (s *boolScorer) Score() (float32, error) {
	doc := s.DocID()
	var sum float32
	for _, m := range s.must {
		v, err := m.Score()
		if err != nil {
			return 0, err
		}
		sum += v
	}
	for _, o := range s.should {
		if o.DocID() < doc {
			o.Advance(doc)
		}
		if o.DocID() == doc {
			v, err := o.Score()
			if err != nil {
				return 0, err
			}
			sum += v
		}
	}
	return sum, nil
}

func (s *boolScorer) MaxScore() float32 { return positiveInf() }
