package search

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/analysis"
)

// MatchQuery analyzes Text with the field's search analyzer, or Analyzer
// when set, and matches any (Operator "or") or all ("and") of the terms.
type MatchQuery struct {
	Field    string
	Text     string
	Analyzer string
	Operator string
	Boost    float32
}

func (q *MatchQuery) String() string {
	return fmt.Sprintf("%s:%q", q.Field, q.Text)
}

// Rewrite expands the query into term clauses.
func (q *MatchQuery) Rewrite(s *Searcher) (Query, error) {
	var (
		a   analysis.Analyzer
		err error
	)
	if q.Analyzer != "" {
		a, err = s.Analyzers().Get(q.Analyzer)
	} else {
		a, err = s.SearchAnalyzer(q.Field)
	}
	if err != nil {
		return nil, err
	}
	terms := analysis.Terms(a, q.Text)
	if len(terms) == 0 {
		return &MatchNoneQuery{Reason: "no terms after analysis"}, nil
	}
	boost := q.Boost
	if boost == 0 {
		boost = 1
	}
	clauses := make([]Query, len(terms))
	for i, t := range terms {
		tq := NewTermQuery(q.Field, t)
		tq.Boost = boost
		clauses[i] = tq
	}
	if strings.EqualFold(q.Operator, "and") {
		return &BoolQuery{Must: clauses}, nil
	}
	return &BoolQuery{Should: clauses}, nil
}

func (q *MatchQuery) CreateWeight(s *Searcher) (Weight, error) {
	rewritten, err := q.Rewrite(s)
	if err != nil {
		return nil, err
	}
	return rewritten.CreateWeight(s)
}
