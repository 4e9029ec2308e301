package termstat

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index/indextest"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/expr"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/settings"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
)

func terms(texts ...string) []index.Term {
	out := make([]index.Term, len(texts))
	for i, t := range texts {
		out[i] = index.Term{Field: indextest.Field, Text: t}
	}
	return out
}

func newSearcher() *search.Searcher {
	return search.NewSearcher(indextest.Reader(), search.WithSchema(indextest.Schema()))
}

func mustQuery(t testing.TB, source string, aggr, posAggr AggrType, ts []index.Term) *Query {
	t.Helper()
	q, err := NewQuery(source, aggr, posAggr, ts)
	if err != nil {
		t.Fatalf("NewQuery(%q) error: %v", source, err)
	}
	return q
}

func TestExplainScenarios(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		aggr    AggrType
		posAggr AggrType
		terms   []index.Term
		want    string
	}{
		{"df min", "df", AggrMin, AggrMin, terms("cow"), "2.0"},
		{"df max", "df", AggrMax, AggrMax, terms("cow"), "2.0"},
		{"tf idf avg", "tf * idf", AggrAvg, AggrAvg, terms("cow"), "1.8472979"},
		{"matches", "matches", AggrAvg, AggrAvg, terms("brown", "cow", "horse"), "2.0"},
		{"unique", "unique", AggrAvg, AggrAvg, terms("brown", "cow", "horse"), "3.0"},
		{"no terms", "tf * idf", AggrAvg, AggrAvg, nil, "0.0"},
		{"absent term", "df", AggrSum, AggrAvg, terms("horse"), "0.0"},
	}
	s := newSearcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := mustQuery(t, tt.source, tt.aggr, tt.posAggr, tt.terms)
			e, err := s.Explain(q, 0)
			if err != nil {
				t.Fatalf("Explain() error: %v", err)
			}
			if got := search.FormatFloat(e.Value); got != tt.want {
				t.Errorf("score = %s, want %s", got, tt.want)
			}
			wantDesc := "weight(" + tt.source + " in doc 0)"
			if e.Description != wantDesc {
				t.Errorf("description = %q, want %q", e.Description, wantDesc)
			}
		})
	}
}

func TestExplainPastSegment(t *testing.T) {
	q := mustQuery(t, "df", AggrAvg, AggrAvg, terms("cow"))
	s := newSearcher()
	w, err := q.CreateWeight(s)
	if err != nil {
		t.Fatal(err)
	}
	leaf := s.Reader().Leaves()[0]
	e, err := w.Explain(leaf, leaf.Segment.MaxDoc())
	if err != nil {
		t.Fatal(err)
	}
	if e.Match || e.Description != "no matching term" {
		t.Errorf("Explain() = %+v, want no matching term", e)
	}
}

func TestEmptyTermSetScoresZero(t *testing.T) {
	s := newSearcher()
	for _, aggr := range []AggrType{AggrAvg, AggrMax, AggrMin, AggrSum, AggrStddev} {
		for _, source := range []string{"tf", "df * 3 + 1", "unique + 5"} {
			q := mustQuery(t, source, aggr, aggr, nil)
			top, err := s.Search(context.Background(), q, 10)
			if err != nil {
				t.Fatal(err)
			}
			for _, h := range top.Hits {
				if h.Score != 0 {
					t.Errorf("%s/%s: %s scored %v, want 0", source, aggr, h.ID, h.Score)
				}
			}
		}
	}
}

func TestScoreWithoutTerms(t *testing.T) {
	q := mustQuery(t, "tf + 4", AggrAvg, AggrAvg, nil)
	q.ScoreWithoutTerms = true
	top, err := newSearcher().Search(context.Background(), q, 1)
	if err != nil {
		t.Fatal(err)
	}
	if top.Hits[0].Score != 4 {
		t.Errorf("score = %v, want 4", top.Hits[0].Score)
	}
}

func TestTermOrderInvariance(t *testing.T) {
	s := newSearcher()
	orders := [][]string{
		{"brown", "cow", "cows", "how"},
		{"how", "cows", "cow", "brown"},
		{"cow", "how", "brown", "cows"},
	}
	for _, aggr := range []AggrType{AggrAvg, AggrSum, AggrStddev, AggrMin, AggrMax} {
		var first []search.ScoreDoc
		for i, order := range orders {
			q := mustQuery(t, "tf * idf + tp", aggr, AggrAvg, terms(order...))
			top, err := s.Search(context.Background(), q, 10)
			if err != nil {
				t.Fatal(err)
			}
			if i == 0 {
				first = top.Hits
				continue
			}
			for j := range first {
				if math.Float32bits(first[j].Score) != math.Float32bits(top.Hits[j].Score) || first[j].ID != top.Hits[j].ID {
					t.Errorf("%s order %v: hit %d = %+v, want %+v", aggr, order, j, top.Hits[j], first[j])
				}
			}
		}
	}
}

func TestPositionAggregation(t *testing.T) {
	// "dance" occurs at positions 1 and 9 (1-based) of doc-4.
	tests := []struct {
		posAggr AggrType
		want    float32
	}{
		{AggrMin, 1},
		{AggrMax, 9},
		{AggrAvg, 5},
		{AggrSum, 10},
		{AggrStddev, 4},
	}
	s := newSearcher()
	for _, tt := range tests {
		q := mustQuery(t, "tp", AggrAvg, tt.posAggr, terms("dance"))
		e, err := s.Explain(q, 4)
		if err != nil {
			t.Fatal(err)
		}
		if e.Value != tt.want {
			t.Errorf("pos_aggr %s: tp = %v, want %v", tt.posAggr, e.Value, tt.want)
		}
	}
}

func TestLocalMode(t *testing.T) {
	s := search.NewSearcher(indextest.SplitReader(3))
	q := mustQuery(t, "df", AggrMax, AggrAvg, terms("cows"))
	q.Mode = ModeLocal
	top, err := s.Search(context.Background(), q, 10)
	if err != nil {
		t.Fatal(err)
	}
	byID := make(map[string]float32)
	for _, h := range top.Hits {
		byID[h.ID] = h.Score
	}
	// Each segment of three documents holds one "cows" document.
	if byID["doc-1"] != 1 || byID["doc-3"] != 1 {
		t.Errorf("local df = %v / %v, want 1 / 1", byID["doc-1"], byID["doc-3"])
	}
	q.Mode = ModeGlobal
	top, err = s.Search(context.Background(), q, 1)
	if err != nil {
		t.Fatal(err)
	}
	if top.Hits[0].Score != 2 {
		t.Errorf("global df = %v, want 2", top.Hits[0].Score)
	}
}

func TestExtraBindings(t *testing.T) {
	q, err := NewQuery("tf * weight", AggrSum, AggrAvg, terms("brown", "cow"), "weight")
	if err != nil {
		t.Fatal(err)
	}
	q.Extra = expr.Vars{"weight": 3}
	e, err := newSearcher().Explain(q, 2)
	if err != nil {
		t.Fatal(err)
	}
	if e.Value != 6 {
		t.Errorf("score = %v, want 6", e.Value)
	}
}

func TestDisabled(t *testing.T) {
	q := mustQuery(t, "df", AggrAvg, AggrAvg, terms("cow"))
	q.Settings = settings.New(false)
	_, err := newSearcher().Search(context.Background(), q, 10)
	if !errors.Is(err, apperrors.ErrFeatureDisabled) {
		t.Errorf("Search() error = %v, want ErrFeatureDisabled", err)
	}
}

func TestNotCacheable(t *testing.T) {
	q := mustQuery(t, "df", AggrAvg, AggrAvg, terms("cow"))
	top, err := newSearcher().Search(context.Background(), q, 10)
	if err != nil {
		t.Fatal(err)
	}
	if top.Cacheable {
		t.Error("term_stat results must not be cacheable")
	}
}

func TestConcurrentIsolation(t *testing.T) {
	s := newSearcher()
	q := mustQuery(t, "tf * idf", AggrSum, AggrAvg, terms("brown", "cow", "cows", "dance"))
	want, err := s.Search(context.Background(), q, 10)
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				got, err := s.Search(context.Background(), q, 10)
				if err != nil {
					t.Error(err)
					return
				}
				for j := range want.Hits {
					if got.Hits[j] != want.Hits[j] {
						t.Errorf("hit %d = %+v, want %+v", j, got.Hits[j], want.Hits[j])
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestParseAggr(t *testing.T) {
	tests := []struct {
		in   string
		want AggrType
	}{
		{"", AggrAvg},
		{"MIN", AggrMin},
		{"max", AggrMax},
		{"Sum", AggrSum},
		{"stddev", AggrStddev},
	}
	for _, tt := range tests {
		got, err := ParseAggr(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseAggr(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseAggr("median"); !errors.Is(err, apperrors.ErrInvalidDefinition) {
		t.Errorf("ParseAggr(median) error = %v, want ErrInvalidDefinition", err)
	}
}

func TestAggregateDoesNotAllocate(t *testing.T) {
	var st Stats
	for _, v := range []float32{3, 1, 2, 5, 4} {
		st.Add(v)
	}
	for a := AggrAvg; a <= AggrStddev; a++ {
		st.Aggregate(a)
		if n := testing.AllocsPerRun(100, func() { st.Aggregate(a) }); n != 0 {
			t.Errorf("Aggregate(%s) allocs = %v, want 0", a, n)
		}
	}
}

func TestScoreAllocsBoundedByEvaluation(t *testing.T) {
	s := newSearcher()
	q := mustQuery(t, "tf * idf", AggrAvg, AggrAvg, terms("brown", "cow", "cows"))
	w, err := q.CreateWeight(s)
	if err != nil {
		t.Fatal(err)
	}
	sc, err := w.Scorer(s.Reader().Leaves()[0])
	if err != nil {
		t.Fatal(err)
	}
	scorer := sc.(*Scorer)
	if doc := scorer.NextDoc(); doc == search.NoMoreDocs {
		t.Fatal("empty segment")
	}
	scorer.sup.Bump(scorer.DocID())
	matched := scorer.sup.Matched()
	if matched == 0 {
		t.Fatal("first document matches no terms")
	}
	if n := testing.AllocsPerRun(100, func() { scorer.sup.Bump(scorer.DocID()) }); n != 0 {
		t.Errorf("Bump allocs = %v, want 0", n)
	}

	bound := q.Expr.Bind(expr.Vars{"tf": 2, "idf": 1.5})
	perEval := testing.AllocsPerRun(100, func() { bound.Evaluate() })
	got := testing.AllocsPerRun(100, func() {
		if _, err := scorer.Score(); err != nil {
			t.Fatal(err)
		}
	})
	if limit := float64(matched) * perEval; got > limit {
		t.Errorf("Score allocs = %v over %d matched terms, want at most %v (%v per evaluation)", got, matched, limit, perEval)
	}
}

func BenchmarkScore(b *testing.B) {
	s := newSearcher()
	q := mustQuery(b, "tf * idf", AggrAvg, AggrAvg, terms("brown", "cow", "cows"))
	w, err := q.CreateWeight(s)
	if err != nil {
		b.Fatal(err)
	}
	leaf := s.Reader().Leaves()[0]
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sc, err := w.Scorer(leaf)
		if err != nil {
			b.Fatal(err)
		}
		for doc := sc.NextDoc(); doc != search.NoMoreDocs; doc = sc.NextDoc() {
			if _, err := sc.Score(); err != nil {
				b.Fatal(err)
			}
		}
	}
}
