package feature

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/expr"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/termstat"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
)

// termSpec describes the terms a script feature reads statistics for. Each
// of the three entries is either a literal or the name of a request
// parameter holding the value. An analyzer prefixed with "!" is used as is.
type termSpec struct {
	Analyzer string `json:"analyzer"`
	Fields   any    `json:"fields"`
	Terms    any    `json:"terms"`
}

// ScriptFeature scores an expression, optionally bound to the statistics of
// terms extracted from the request.
type ScriptFeature struct {
	name      string
	params    []string
	expr      *expr.Expression
	aggr      termstat.AggrType
	posAggr   termstat.AggrType
	spec      *termSpec
	constants expr.Vars
	// rename maps request parameters to expression variables.
	rename map[string]string
}

func compileScript(def StoredFeature) (*ScriptFeature, error) {
	var script struct {
		Source string                     `json:"source"`
		Lang   string                     `json:"lang"`
		Params map[string]json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal([]byte(def.Template), &script); err != nil {
		return nil, apperrors.InvalidDefinition("feature [%s]: script template: %v", def.Name, err)
	}
	if strings.TrimSpace(script.Source) == "" {
		return nil, apperrors.InvalidDefinition("feature [%s]: script source is required", def.Name)
	}
	f := &ScriptFeature{
		name:      def.Name,
		params:    def.Params,
		constants: expr.Vars{},
		rename:    map[string]string{},
	}
	var err error
	for key, raw := range script.Params {
		switch key {
		case "term_stat":
			f.spec = &termSpec{}
			if err := json.Unmarshal(raw, f.spec); err != nil {
				return nil, apperrors.InvalidDefinition("feature [%s]: term_stat: %v", def.Name, err)
			}
		case "aggr", "pos_aggr":
			var name string
			if err := json.Unmarshal(raw, &name); err != nil {
				return nil, apperrors.InvalidDefinition("feature [%s]: %s must be a string", def.Name, key)
			}
			a, err := termstat.ParseAggr(name)
			if err != nil {
				return nil, err
			}
			if key == "aggr" {
				f.aggr = a
			} else {
				f.posAggr = a
			}
		case "extra_script_params":
			if err := json.Unmarshal(raw, &f.rename); err != nil {
				return nil, apperrors.InvalidDefinition("feature [%s]: extra_script_params: %v", def.Name, err)
			}
		default:
			var v float64
			if json.Unmarshal(raw, &v) == nil {
				f.constants[key] = v
			}
		}
	}

	vars := make([]string, 0, len(termstat.Symbols)+len(f.constants)+len(def.Params))
	vars = append(vars, termstat.Symbols...)
	for name := range f.constants {
		vars = append(vars, name)
	}
	for _, p := range def.Params {
		if renamed, ok := f.rename[p]; ok {
			vars = append(vars, renamed)
		} else {
			vars = append(vars, p)
		}
	}
	if f.expr, err = expr.Compile(script.Source, vars...); err != nil {
		return nil, apperrors.InvalidDefinition("feature [%s]: %v", def.Name, err)
	}
	return f, nil
}

func (f *ScriptFeature) Name() string { return f.name }

func (f *ScriptFeature) Kind() Kind { return KindScript }

func (f *ScriptFeature) ToQuery(_ context.Context, qc *QueryContext, _ *Set, params Params) (search.Query, error) {
	if err := checkRequired(f.name, f.params, params); err != nil {
		return nil, err
	}
	bindings := make(expr.Vars, len(f.constants)+len(f.params))
	for k, v := range f.constants {
		bindings[k] = v
	}
	for _, p := range f.params {
		name := p
		if renamed, ok := f.rename[p]; ok {
			name = renamed
		}
		if !f.expr.Uses(name) {
			continue
		}
		v, ok := toFloat(params[p])
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400,
				"feature [%s]: param [%s] must be numeric", f.name, p)
		}
		bindings[name] = v
	}

	q := &termstat.Query{
		Expr:              f.expr,
		Aggr:              f.aggr,
		PosAggr:           f.posAggr,
		Mode:              qc.StatsMode,
		Settings:          qc.Settings,
		Extra:             bindings,
		ScoreWithoutTerms: f.spec == nil,
	}
	if f.spec != nil {
		terms, err := f.spec.resolve(qc, params)
		if err != nil {
			return nil, err
		}
		q.Terms = terms
	}
	return q, nil
}

func (s *termSpec) resolve(qc *QueryContext, params Params) ([]index.Term, error) {
	fields := s.list(s.Fields, params)
	texts := s.list(s.Terms, params)
	if fields == nil || texts == nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "Term Stats injection requires fields and terms")
	}
	var (
		named    analysis.Analyzer
		hasNamed bool
	)
	switch {
	case strings.HasPrefix(s.Analyzer, "!"):
		a, err := qc.Analyzers.Get(s.Analyzer[1:])
		if err != nil {
			return nil, err
		}
		named, hasNamed = a, true
	case s.Analyzer != "":
		if name, ok := params[s.Analyzer].(string); ok {
			a, err := qc.Analyzers.Get(name)
			if err != nil {
				return nil, err
			}
			named, hasNamed = a, true
		}
	}

	var terms []index.Term
	for _, field := range fields {
		a := named
		if !hasNamed {
			var err error
			if a, err = qc.SearchAnalyzer(field); err != nil {
				return nil, err
			}
		}
		for _, text := range texts {
			for _, t := range analysis.Terms(a, text) {
				terms = append(terms, index.Term{Field: field, Text: t})
			}
		}
	}
	terms = termstat.UniqueTerms(terms)
	sort.SliceStable(terms, func(i, j int) bool { return terms[i].Less(terms[j]) })
	return terms, nil
}

// list reads a literal list or, for a string, the named request parameter.
func (s *termSpec) list(v any, params Params) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		p, ok := params[val]
		if !ok {
			return nil
		}
		out, _ := toStrings(p)
		return out
	default:
		out, _ := toStrings(val)
		return out
	}
}
