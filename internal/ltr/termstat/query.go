// Package termstat scores documents with an expression over the statistics
// of a fixed set of terms. For each document the expression runs once per
// matched term with df, idf, tf, tp and ttf bound to that term's values and
// matches and unique bound to the counts; the outputs are folded with the
// query's aggregation. Positions within a term are folded into tp with the
// position aggregation.
package termstat

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/expr"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/settings"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
)

// Query is the term_stat query. It matches every document of a segment.
type Query struct {
	Expr    *expr.Expression
	Aggr    AggrType
	PosAggr AggrType
	Terms   []index.Term
	Mode    Mode
	// Settings gates weight creation; nil means always enabled.
	Settings *settings.Settings
	// Extra binds variables other than the term symbols.
	Extra expr.Bindings
	// ScoreWithoutTerms evaluates the expression once per document with the
	// term symbols at 0 when Terms is empty, instead of scoring 0.
	ScoreWithoutTerms bool
}

// NewQuery compiles source with the term symbols and vars declared and
// returns a query over terms, deduplicated in order.
func NewQuery(source string, aggr, posAggr AggrType, terms []index.Term, vars ...string) (*Query, error) {
	e, err := expr.Compile(source, append(append([]string(nil), Symbols...), vars...)...)
	if err != nil {
		return nil, err
	}
	return &Query{Expr: e, Aggr: aggr, PosAggr: posAggr, Terms: UniqueTerms(terms)}, nil
}

func (q *Query) String() string {
	terms := make([]string, len(q.Terms))
	for i, t := range q.Terms {
		terms[i] = t.String()
	}
	return fmt.Sprintf("TermStat(expr=%s, aggr=%s, pos_aggr=%s, mode=%s, terms=[%s])",
		q.Expr, q.Aggr, q.PosAggr, q.Mode, strings.Join(terms, ","))
}

func (q *Query) CreateWeight(s *search.Searcher) (search.Weight, error) {
	if err := q.Settings.CheckEnabled(); err != nil {
		return nil, err
	}
	w := &weight{query: q}
	if q.Mode == ModeGlobal {
		w.snapshot = Capture(s, q.Terms)
	}
	return w, nil
}

type weight struct {
	query    *Query
	snapshot *Snapshot
}

func (w *weight) Query() search.Query { return w.query }

func (w *weight) Cacheable() bool { return false }

func (w *weight) Scorer(leaf index.SegmentContext) (search.Scorer, error) {
	return w.newScorer(leaf)
}

func (w *weight) newScorer(leaf index.SegmentContext) (*Scorer, error) {
	snapshot := w.snapshot
	if snapshot == nil {
		snapshot = Capture(leaf.Segment, w.query.Terms)
	}
	sc := &Scorer{
		DocIterator: search.AllDocs(leaf.Segment.MaxDoc()),
		eval:        NewEvaluator(w.query.Expr, w.query.Aggr, w.query.Extra),
	}
	if len(w.query.Terms) > 0 || !w.query.ScoreWithoutTerms {
		sc.sup = NewSupplier(snapshot, w.query.PosAggr)
		if err := sc.sup.Reset(leaf.Segment); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

func (w *weight) Explain(leaf index.SegmentContext, doc int) (*search.Explanation, error) {
	if doc < 0 || doc >= leaf.Segment.MaxDoc() {
		return search.NoMatch("no matching term"), nil
	}
	sc, err := w.newScorer(leaf)
	if err != nil {
		return nil, err
	}
	if sc.Advance(doc) != doc {
		return search.NoMatch("no matching term"), nil
	}
	score, err := sc.Score()
	if err != nil {
		return nil, err
	}
	return search.Match(score, fmt.Sprintf("weight(%s in doc %d)", w.query.Expr, doc)), nil
}

// Scorer visits every document of a segment. It owns its supplier and
// evaluator and is used by a single goroutine.
type Scorer struct {
	search.DocIterator
	sup  *Supplier
	eval *Evaluator
}

func (s *Scorer) Score() (float32, error) {
	if s.sup != nil {
		s.sup.Bump(s.DocID())
	}
	return s.eval.Score(s.sup)
}

func (s *Scorer) MaxScore() float32 { return float32(posInf) }
