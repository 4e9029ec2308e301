package feature

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
)

var placeholder = regexp.MustCompile(`\{\{\s*([\w.\-]+)\s*\}\}`)

// TemplateFeature is a query template with {{param}} placeholders. When the
// template is a JSON object, a string leaf consisting of exactly one
// placeholder takes the parameter value with its JSON type; placeholders
// embedded in longer strings are replaced by the parameter's text. Templates
// that are not valid JSON until rendered are substituted as text.
type TemplateFeature struct {
	name   string
	params []string
	tree   any
	text   string
}

func compileTemplate(def StoredFeature) (*TemplateFeature, error) {
	f := &TemplateFeature{name: def.Name, params: def.Params}
	if err := json.Unmarshal([]byte(def.Template), &f.tree); err == nil {
		if _, ok := f.tree.(map[string]any); !ok {
			return nil, apperrors.InvalidDefinition("feature [%s]: template must be a JSON object", def.Name)
		}
		return f, nil
	}
	// Text templates must at least be JSON once placeholders are filled.
	probe := placeholder.ReplaceAllString(def.Template, "0")
	if !json.Valid([]byte(probe)) {
		return nil, apperrors.InvalidDefinition("feature [%s]: template is not valid JSON", def.Name)
	}
	f.tree = nil
	f.text = def.Template
	return f, nil
}

func (f *TemplateFeature) Name() string { return f.name }

func (f *TemplateFeature) Kind() Kind { return KindTemplate }

// Render fills the template with params and returns the query JSON.
func (f *TemplateFeature) Render(params Params) (json.RawMessage, error) {
	if f.tree == nil {
		out := placeholder.ReplaceAllStringFunc(f.text, func(m string) string {
			return stringify(params[placeholder.FindStringSubmatch(m)[1]])
		})
		return json.RawMessage(out), nil
	}
	return json.Marshal(render(f.tree, params))
}

func render(node any, params Params) any {
	switch n := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[renderString(k, params)] = render(v, params)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, v := range n {
			out[i] = render(v, params)
		}
		return out
	case string:
		if m := placeholder.FindStringSubmatchIndex(n); m != nil && m[0] == 0 && m[1] == len(n) {
			return params[n[m[2]:m[3]]]
		}
		return renderString(n, params)
	default:
		return n
	}
}

func renderString(s string, params Params) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		return stringify(params[placeholder.FindStringSubmatch(m)[1]])
	})
}

func (f *TemplateFeature) ToQuery(ctx context.Context, qc *QueryContext, _ *Set, params Params) (search.Query, error) {
	if err := checkRequired(f.name, f.params, params); err != nil {
		return nil, err
	}
	raw, err := f.Render(params)
	if err != nil {
		return nil, apperrors.InvalidDefinition("Cannot create query while parsing feature [%s]: %v", f.name, err)
	}
	q, err := qc.Parser.Parse(ctx, raw)
	if err != nil {
		return nil, apperrors.InvalidDefinition("Cannot create query while parsing feature [%s]: %v", f.name, err)
	}
	return q, nil
}
