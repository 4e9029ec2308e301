package feature

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
)

// Template languages of stored features.
const (
	LanguageMustache = "mustache"
	LanguageDerived  = "derived_expression"
	LanguageScript   = "script_feature"
)

// StoredFeature is the persisted definition of a feature. Template holds
// either JSON text (query templates, script definitions) or an expression.
// In JSON and YAML the template may be written as a string or inline as an
// object.
type StoredFeature struct {
	Name             string   `json:"name" yaml:"name"`
	Params           []string `json:"params" yaml:"params"`
	TemplateLanguage string   `json:"template_language" yaml:"template_language"`
	Template         string   `json:"template" yaml:"template"`
}

func (d *StoredFeature) UnmarshalJSON(data []byte) error {
	var aux struct {
		Name             string          `json:"name"`
		Params           []string        `json:"params"`
		TemplateLanguage string          `json:"template_language"`
		Template         json.RawMessage `json:"template"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.Name = aux.Name
	d.Params = aux.Params
	d.TemplateLanguage = aux.TemplateLanguage
	d.Template = ""
	raw := bytes.TrimSpace(aux.Template)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &d.Template); err != nil {
			return err
		}
	default:
		d.Template = string(raw)
	}
	return nil
}

func (d StoredFeature) MarshalJSON() ([]byte, error) {
	aux := struct {
		Name             string          `json:"name"`
		Params           []string        `json:"params"`
		TemplateLanguage string          `json:"template_language"`
		Template         json.RawMessage `json:"template"`
	}{Name: d.Name, Params: d.Params, TemplateLanguage: d.TemplateLanguage}
	if aux.Params == nil {
		aux.Params = []string{}
	}
	if json.Valid([]byte(d.Template)) && bytes.HasPrefix(bytes.TrimSpace([]byte(d.Template)), []byte("{")) {
		aux.Template = json.RawMessage(d.Template)
	} else {
		quoted, err := json.Marshal(d.Template)
		if err != nil {
			return nil, err
		}
		aux.Template = quoted
	}
	return json.Marshal(aux)
}

func (d *StoredFeature) UnmarshalYAML(value *yaml.Node) error {
	var aux struct {
		Name             string    `yaml:"name"`
		Params           []string  `yaml:"params"`
		TemplateLanguage string    `yaml:"template_language"`
		Template         yaml.Node `yaml:"template"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	d.Name = aux.Name
	d.Params = aux.Params
	d.TemplateLanguage = aux.TemplateLanguage
	d.Template = ""
	switch aux.Template.Kind {
	case 0:
	case yaml.ScalarNode:
		d.Template = aux.Template.Value
	default:
		text, err := yamlToJSON(&aux.Template)
		if err != nil {
			return fmt.Errorf("feature [%s] template: %w", d.Name, err)
		}
		d.Template = string(text)
	}
	return nil
}

// yamlToJSON re-encodes a YAML node as JSON.
func yamlToJSON(node *yaml.Node) ([]byte, error) {
	var v any
	if err := node.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (d StoredFeature) language() string {
	if d.TemplateLanguage == "" {
		return LanguageMustache
	}
	return d.TemplateLanguage
}

// Stored is a compiled stored feature. It keeps the definition and the
// precompiled variant selected by its template language.
type Stored struct {
	def       StoredFeature
	optimized Feature
}

// Compile validates def and precompiles it.
func Compile(def StoredFeature) (*Stored, error) {
	if def.Name == "" {
		return nil, apperrors.InvalidDefinition("feature name is required")
	}
	if def.Template == "" {
		return nil, apperrors.InvalidDefinition("feature [%s]: Field [template] is mandatory", def.Name)
	}
	if err := checkParamNames(def.Name, def.Params); err != nil {
		return nil, err
	}
	var (
		optimized Feature
		err       error
	)
	switch def.language() {
	case LanguageMustache:
		optimized, err = compileTemplate(def)
	case LanguageDerived:
		optimized, err = compileDerived(def)
	case LanguageScript:
		optimized, err = compileScript(def)
	default:
		return nil, apperrors.InvalidDefinition("feature [%s]: unknown template language [%s]", def.Name, def.TemplateLanguage)
	}
	if err != nil {
		return nil, err
	}
	return &Stored{def: def, optimized: optimized}, nil
}

func (s *Stored) Name() string { return s.def.Name }

func (s *Stored) Kind() Kind { return KindStored }

// Definition returns the definition the feature was compiled from.
func (s *Stored) Definition() StoredFeature { return s.def }

func (s *Stored) ToQuery(ctx context.Context, qc *QueryContext, set *Set, params Params) (search.Query, error) {
	if err := checkRequired(s.def.Name, s.def.Params, params); err != nil {
		return nil, err
	}
	return s.optimized.ToQuery(ctx, qc, set, params)
}
