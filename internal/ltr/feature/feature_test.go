package feature

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index/indextest"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/normalizer"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/ranker"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search/dsl"
)

func testContext() *QueryContext {
	return &QueryContext{
		Analyzers: analysis.NewRegistry(),
		Schema:    indextest.Schema(),
		Parser:    dsl.New(),
	}
}

func testSearcher() *search.Searcher {
	return search.NewSearcher(indextest.Reader(), search.WithSchema(indextest.Schema()))
}

func mustCompile(t *testing.T, def StoredFeature) *Stored {
	t.Helper()
	f, err := Compile(def)
	if err != nil {
		t.Fatalf("Compile(%s) error: %v", def.Name, err)
	}
	return f
}

func TestStoredFeatureJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"inline object",
			`{"name": "f", "params": ["q"], "template": {"match": {"text": "{{q}}"}}}`,
			`{"match": {"text": "{{q}}"}}`,
		},
		{
			"string",
			`{"name": "f", "template_language": "derived_expression", "template": "a * 2"}`,
			`a * 2`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var def StoredFeature
			if err := json.Unmarshal([]byte(tt.in), &def); err != nil {
				t.Fatal(err)
			}
			if def.Template != tt.want {
				t.Errorf("Template = %q, want %q", def.Template, tt.want)
			}
			out, err := json.Marshal(def)
			if err != nil {
				t.Fatal(err)
			}
			var again StoredFeature
			if err := json.Unmarshal(out, &again); err != nil {
				t.Fatal(err)
			}
			if again.Name != def.Name || again.TemplateLanguage != def.TemplateLanguage {
				t.Errorf("re-decoded %+v, want %+v", again, def)
			}
		})
	}
}

func TestStoredFeatureYAML(t *testing.T) {
	src := `
name: title_match
params: [keywords]
template:
  match:
    text: "{{keywords}}"
`
	var def StoredFeature
	if err := yaml.Unmarshal([]byte(src), &def); err != nil {
		t.Fatal(err)
	}
	if def.Template != `{"match":{"text":"{{keywords}}"}}` {
		t.Errorf("Template = %q", def.Template)
	}
	if _, err := Compile(def); err != nil {
		t.Errorf("Compile() error: %v", err)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		def  StoredFeature
	}{
		{"no name", StoredFeature{Template: `{"match_all": {}}`}},
		{"no template", StoredFeature{Name: "f"}},
		{"unknown language", StoredFeature{Name: "f", TemplateLanguage: "painless", Template: "1"}},
		{"bad json", StoredFeature{Name: "f", Template: `{"match": `}},
		{"not an object", StoredFeature{Name: "f", Template: `[1]`}},
		{"duplicate params", StoredFeature{Name: "f", Params: []string{"a", "a"}, Template: `{"match_all": {}}`}},
		{"bad expression", StoredFeature{Name: "f", TemplateLanguage: LanguageDerived, Template: "a *"}},
		{"bad script", StoredFeature{Name: "f", TemplateLanguage: LanguageScript, Template: `{"source": "tf +"}`}},
		{"bad aggr", StoredFeature{Name: "f", TemplateLanguage: LanguageScript, Template: `{"source": "tf", "params": {"aggr": "median"}}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.def)
			if !errors.Is(err, apperrors.ErrInvalidDefinition) {
				t.Errorf("Compile() error = %v, want ErrInvalidDefinition", err)
			}
		})
	}
}

func TestOptimize(t *testing.T) {
	tests := []struct {
		def  StoredFeature
		want Kind
	}{
		{StoredFeature{Name: "t", Template: `{"match_all": {}}`}, KindTemplate},
		{StoredFeature{Name: "d", TemplateLanguage: LanguageDerived, Template: "1 + 1"}, KindDerived},
		{StoredFeature{Name: "s", TemplateLanguage: LanguageScript, Template: `{"source": "1"}`}, KindScript},
	}
	for _, tt := range tests {
		f := mustCompile(t, tt.def)
		if f.Kind() != KindStored {
			t.Errorf("%s: Kind() = %s, want stored", tt.def.Name, f.Kind())
		}
		if got := Optimize(f).Kind(); got != tt.want {
			t.Errorf("%s: optimized kind = %s, want %s", tt.def.Name, got, tt.want)
		}
		if opt := Optimize(f); Optimize(opt) != opt {
			t.Errorf("%s: optimizing twice should be a no-op", tt.def.Name)
		}
	}
}

func TestMissingParams(t *testing.T) {
	f := mustCompile(t, StoredFeature{
		Name:     "title_match",
		Params:   []string{"keywords", "boost"},
		Template: `{"match": {"text": "{{keywords}}"}}`,
	})
	for _, feat := range []Feature{f, Optimize(f)} {
		_, err := feat.ToQuery(context.Background(), testContext(), nil, Params{})
		var mpe *apperrors.MissingParameterError
		if !errors.As(err, &mpe) {
			t.Fatalf("ToQuery() error = %v, want MissingParameterError", err)
		}
		if got := err.Error(); got != "feature [title_match]: Missing required param(s): [keywords,boost]" {
			t.Errorf("Error() = %q", got)
		}
	}
}

func TestTemplateRendering(t *testing.T) {
	f := mustCompile(t, StoredFeature{
		Name:     "term_boost",
		Params:   []string{"word", "boost"},
		Template: `{"term": {"text": {"value": "{{word}}", "boost": "{{boost}}"}}}`,
	})
	q, err := f.ToQuery(context.Background(), testContext(), nil, Params{"word": "cow", "boost": 2.0})
	if err != nil {
		t.Fatal(err)
	}
	tq, ok := q.(*search.TermQuery)
	if !ok {
		t.Fatalf("ToQuery() = %T, want *search.TermQuery", q)
	}
	if tq.Term.Text != "cow" || tq.Boost != 2 {
		t.Errorf("query = %+v", tq)
	}
}

func TestTextTemplate(t *testing.T) {
	f := mustCompile(t, StoredFeature{
		Name:     "raw",
		Params:   []string{"n"},
		Template: `{"constant_score": {"filter": {"match_all": {}}, "boost": {{n}}}}`,
	})
	q, err := f.ToQuery(context.Background(), testContext(), nil, Params{"n": 3.5})
	if err != nil {
		t.Fatal(err)
	}
	top, err := testSearcher().Search(context.Background(), q, 1)
	if err != nil {
		t.Fatal(err)
	}
	if top.Hits[0].Score != 3.5 {
		t.Errorf("score = %v, want 3.5", top.Hits[0].Score)
	}
}

func TestTemplateParseError(t *testing.T) {
	f := mustCompile(t, StoredFeature{Name: "bad", Template: `{"fuzzy": {"text": "x"}}`})
	_, err := f.ToQuery(context.Background(), testContext(), nil, Params{})
	if !errors.Is(err, apperrors.ErrInvalidDefinition) || !strings.Contains(err.Error(), "feature [bad]") {
		t.Errorf("ToQuery() error = %v", err)
	}
}

func scriptDef(template string, params ...string) StoredFeature {
	return StoredFeature{Name: "script", Params: params, TemplateLanguage: LanguageScript, Template: template}
}

func TestScriptFeatureTermStats(t *testing.T) {
	f := mustCompile(t, scriptDef(
		`{"source": "tf * idf", "params": {"term_stat": {"analyzer": "!standard", "fields": ["text"], "terms": "query_terms"}, "aggr": "avg", "pos_aggr": "avg"}}`,
		"query_terms",
	))
	q, err := f.ToQuery(context.Background(), testContext(), nil, Params{"query_terms": []any{"Cow"}})
	if err != nil {
		t.Fatal(err)
	}
	e, err := testSearcher().Explain(q, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := search.FormatFloat(e.Value); got != "1.8472979" {
		t.Errorf("score = %s, want 1.8472979", got)
	}
}

func TestScriptFeatureFieldAnalyzer(t *testing.T) {
	f := mustCompile(t, scriptDef(
		`{"source": "matches", "params": {"term_stat": {"fields": "fields", "terms": ["brown", "cow horse"]}}}`,
		"fields",
	))
	q, err := f.ToQuery(context.Background(), testContext(), nil, Params{"fields": []string{"text"}})
	if err != nil {
		t.Fatal(err)
	}
	e, err := testSearcher().Explain(q, 0)
	if err != nil {
		t.Fatal(err)
	}
	if e.Value != 2 {
		t.Errorf("matches = %v, want 2", e.Value)
	}
}

func TestScriptFeatureErrors(t *testing.T) {
	tests := []struct {
		name     string
		template string
		params   Params
		sentinel error
		message  string
	}{
		{
			"no fields",
			`{"source": "tf", "params": {"term_stat": {"terms": ["cow"]}}}`,
			Params{},
			apperrors.ErrInvalidInput,
			"Term Stats injection requires fields and terms",
		},
		{
			"terms param absent",
			`{"source": "tf", "params": {"term_stat": {"fields": ["text"], "terms": "missing"}}}`,
			Params{},
			apperrors.ErrInvalidInput,
			"Term Stats injection requires fields and terms",
		},
		{
			"unknown analyzer",
			`{"source": "tf", "params": {"term_stat": {"analyzer": "!nope", "fields": ["text"], "terms": ["cow"]}}}`,
			Params{},
			apperrors.ErrAnalyzerNotFound,
			"No analyzer found for [nope]",
		},
		{
			"analyzer from params",
			`{"source": "tf", "params": {"term_stat": {"analyzer": "an", "fields": ["text"], "terms": ["cow"]}}}`,
			Params{"an": "klingon"},
			apperrors.ErrAnalyzerNotFound,
			"No analyzer found for [klingon]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustCompile(t, scriptDef(tt.template))
			_, err := f.ToQuery(context.Background(), testContext(), nil, tt.params)
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("ToQuery() error = %v, want %v", err, tt.sentinel)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.message)
			}
		})
	}
}

func TestScriptFeatureParams(t *testing.T) {
	f := mustCompile(t, scriptDef(
		`{"source": "boost * factor", "params": {"factor": 2, "extra_script_params": {"user_boost": "boost"}}}`,
		"user_boost",
	))
	q, err := f.ToQuery(context.Background(), testContext(), nil, Params{"user_boost": 3})
	if err != nil {
		t.Fatal(err)
	}
	top, err := testSearcher().Search(context.Background(), q, 10)
	if err != nil {
		t.Fatal(err)
	}
	if top.TotalHits != 6 || top.Hits[0].Score != 6 {
		t.Errorf("hits = %d, top score = %v, want 6 and 6", top.TotalHits, top.Hits[0].Score)
	}
	if _, err := f.ToQuery(context.Background(), testContext(), nil, Params{"user_boost": "high"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("non-numeric param error = %v, want ErrInvalidInput", err)
	}
}

func derivedDef(name, template string, params ...string) StoredFeature {
	return StoredFeature{Name: name, Params: params, TemplateLanguage: LanguageDerived, Template: template}
}

func TestDerivedValidation(t *testing.T) {
	base := StoredFeature{Name: "bm25", Template: `{"match_all": {}}`}
	tests := []struct {
		name    string
		defs    []StoredFeature
		wantErr string
	}{
		{"valid", []StoredFeature{base, derivedDef("double", "bm25 * 2")}, ""},
		{"param reference", []StoredFeature{base, derivedDef("scaled", "bm25 * w", "w")}, ""},
		{"forward reference", []StoredFeature{derivedDef("double", "bm25 * 2"), base}, "not declared before it"},
		{"unknown reference", []StoredFeature{base, derivedDef("double", "other * 2")}, "unknown feature [other]"},
		{"self reference", []StoredFeature{base, derivedDef("loop", "loop + 1")}, "not declared before it"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := StoredFeatureSet{Name: "set", Features: tt.defs}.Compile()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Compile() error: %v", err)
				}
				return
			}
			if !errors.Is(err, apperrors.ErrInvalidDefinition) || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Compile() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestDerivedScoring(t *testing.T) {
	set, err := StoredFeatureSet{Name: "set", Features: []StoredFeature{
		{Name: "a", Template: `{"match_all": {}}`},
		derivedDef("b", "a * w + 1", "w"),
	}}.Compile()
	if err != nil {
		t.Fatal(err)
	}
	q, err := set.Feature(1).ToQuery(context.Background(), testContext(), set, Params{"w": 4})
	if err != nil {
		t.Fatal(err)
	}
	vq, ok := q.(VectorQuery)
	if !ok {
		t.Fatalf("ToQuery() = %T, want a VectorQuery", q)
	}
	v := ranker.NewFeatureVector(2)
	v.Set(0, 2.5)
	got, err := vq.NewVectorScorer().ScoreVector(v)
	if err != nil {
		t.Fatal(err)
	}
	if got != 11 {
		t.Errorf("ScoreVector() = %v, want 11", got)
	}
	if _, err := q.CreateWeight(testSearcher()); err == nil {
		t.Error("derived queries should not be scored outside a ranker")
	}
}

func TestSet(t *testing.T) {
	a := mustCompile(t, StoredFeature{Name: "a", Template: `{"match_all": {}}`})
	b := mustCompile(t, StoredFeature{Name: "b", Template: `{"match_all": {}}`})
	if _, err := NewSet("dup", []Feature{a, a}); !errors.Is(err, apperrors.ErrInvalidDefinition) {
		t.Errorf("NewSet(dup) error = %v, want ErrInvalidDefinition", err)
	}
	set, err := NewSet("s", []Feature{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if ord, ok := set.FeatureOrdinal("b"); !ok || ord != 1 {
		t.Errorf("FeatureOrdinal(b) = %d, %v", ord, ok)
	}
	active, err := set.ResolveActive([]string{"b"})
	if err != nil || active[0] || !active[1] {
		t.Errorf("ResolveActive([b]) = %v, %v", active, err)
	}
	all, _ := set.ResolveActive(nil)
	if !all[0] || !all[1] {
		t.Errorf("ResolveActive(nil) = %v, want all active", all)
	}
	_, err = set.ResolveActive([]string{"c"})
	if !errors.Is(err, apperrors.ErrUnknownFeature) ||
		!strings.Contains(err.Error(), "Feature: [c] provided in active_features does not exist") {
		t.Errorf("ResolveActive([c]) error = %v", err)
	}
}

func TestTooManyFeatures(t *testing.T) {
	f := NewPrebuilt("x", &search.MatchAllQuery{})
	features := make([]Feature, MaxFeatures+1)
	for i := range features {
		features[i] = f
	}
	if _, err := NewSet("big", features); !errors.Is(err, apperrors.ErrTooManyFeatures) {
		t.Errorf("NewSet() error = %v, want ErrTooManyFeatures", err)
	}
}

const modelJSON = `{
  "name": "my_model",
  "feature_set": {
    "name": "my_set",
    "features": [
      {"name": "f0", "template": {"match_all": {}}},
      {"name": "f1", "template": {"match_all": {}}},
      {"name": "f2", "params": ["q"], "template": {"match": {"text": "{{q}}"}}}
    ]
  },
  "model": {
    "type": "model/linear",
    "definition": {"f0": 0.1, "f1": 0.2, "f2": 0.3},
    "feature_normalizers": {"f2": {"standard": {"mean": 1.0, "standard_deviation": 0.5}}}
  }
}`

func TestStoredModelCompile(t *testing.T) {
	var def StoredModel
	if err := json.Unmarshal([]byte(modelJSON), &def); err != nil {
		t.Fatal(err)
	}
	m, err := def.Compile(ranker.NewParsers())
	if err != nil {
		t.Fatal(err)
	}
	if m.Name() != "my_model" || m.Set().Size() != 3 {
		t.Errorf("model %s with %d features", m.Name(), m.Set().Size())
	}
	if _, ok := m.Ranker().(*ranker.FeatureNormalizing); !ok {
		t.Errorf("Ranker() = %T, want *ranker.FeatureNormalizing", m.Ranker())
	}

	def.Model.FeatureNormalizers = map[string]normalizer.Definition{"nope": {}}
	if _, err := def.Compile(ranker.NewParsers()); !errors.Is(err, apperrors.ErrInvalidDefinition) {
		t.Errorf("unknown normalizer feature error = %v, want ErrInvalidDefinition", err)
	}
}

func TestStringDefinition(t *testing.T) {
	def := StoredModel{
		Name:       "m",
		FeatureSet: StoredFeatureSet{Name: "s", Features: []StoredFeature{{Name: "a", Template: `{"match_all": {}}`}}},
		Model:      ModelDefinition{Type: ranker.LinearType, Definition: json.RawMessage(`"{\"a\": 2}"`)},
	}
	m, err := def.Compile(ranker.NewParsers())
	if err != nil {
		t.Fatal(err)
	}
	if w := m.Ranker().(*ranker.Linear).Weights(); w[0] != 2 {
		t.Errorf("weights = %v, want [2]", w)
	}
}

func TestUnitModel(t *testing.T) {
	set, err := NewSet("s", []Feature{NewPrebuilt("a", &search.MatchAllQuery{}), NewPrebuilt("b", &search.MatchAllQuery{})})
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewUnitModel(set)
	if err != nil {
		t.Fatal(err)
	}
	v := m.Ranker().NewFeatureVector(nil)
	v.Set(0, 2)
	v.Set(1, 3)
	if got := m.Ranker().Score(v); got != 5 {
		t.Errorf("Score() = %v, want 5", got)
	}
}
