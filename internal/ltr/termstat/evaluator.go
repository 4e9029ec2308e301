package termstat

import (
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/expr"
)

// Evaluator runs an expression once per matched term and folds the outputs.
// It implements expr.Bindings over the term currently being evaluated and
// falls back to Extra for other variables. One Evaluator per scorer.
type Evaluator struct {
	expr  *expr.Expression
	aggr  AggrType
	Extra expr.Bindings

	bound *expr.Binder
	sup   *Supplier
	cur   int
	outs  Stats
}

func NewEvaluator(e *expr.Expression, aggr AggrType, extra expr.Bindings) *Evaluator {
	ev := &Evaluator{expr: e, aggr: aggr, Extra: extra}
	ev.bound = e.Bind(ev)
	return ev
}

// Score evaluates over the matched terms of sup. No matches score 0. A nil
// supplier evaluates the expression once with every term symbol at 0.
func (ev *Evaluator) Score(sup *Supplier) (float32, error) {
	ev.sup = sup
	score, err := ev.score()
	ev.sup = nil
	return score, err
}

func (ev *Evaluator) score() (float32, error) {
	if ev.sup == nil {
		v, err := ev.bound.Evaluate()
		return float32(v), err
	}
	if ev.sup.Matched() == 0 {
		return 0, nil
	}
	ev.outs.Reset()
	for ev.cur = 0; ev.cur < ev.sup.Matched(); ev.cur++ {
		v, err := ev.bound.Evaluate()
		if err != nil {
			return 0, err
		}
		ev.outs.Add(float32(v))
	}
	return ev.outs.Aggregate(ev.aggr), nil
}

func (ev *Evaluator) Resolve(name string) (float64, bool) {
	if ev.sup != nil {
		if v, ok := ev.sup.Symbol(name, ev.cur); ok {
			return float64(v), true
		}
	} else {
		for _, s := range Symbols {
			if s == name {
				return 0, true
			}
		}
	}
	if ev.Extra != nil {
		return ev.Extra.Resolve(name)
	}
	return 0, false
}
