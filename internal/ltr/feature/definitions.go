package feature

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/normalizer"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/ranker"
)

// StoredFeatureSet is the persisted definition of a feature set.
type StoredFeatureSet struct {
	Name     string          `json:"name" yaml:"name"`
	Features []StoredFeature `json:"features" yaml:"features"`
}

// Compile compiles, optimizes and validates every feature.
func (d StoredFeatureSet) Compile() (*Set, error) {
	if d.Name == "" {
		return nil, apperrors.InvalidDefinition("feature set name is required")
	}
	features := make([]Feature, len(d.Features))
	for i, def := range d.Features {
		f, err := Compile(def)
		if err != nil {
			return nil, fmt.Errorf("feature set [%s]: %w", d.Name, err)
		}
		features[i] = f
	}
	set, err := NewSet(d.Name, features)
	if err != nil {
		return nil, err
	}
	set = set.Optimize()
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// StoredModel is the persisted definition of a model with its feature set.
type StoredModel struct {
	Name       string           `json:"name" yaml:"name"`
	FeatureSet StoredFeatureSet `json:"feature_set" yaml:"feature_set"`
	Model      ModelDefinition  `json:"model" yaml:"model"`
}

// ModelDefinition holds the ranker type and its type-specific definition.
// Definition may be given as a JSON string or inline.
type ModelDefinition struct {
	Type               string                           `json:"type" yaml:"type"`
	Definition         json.RawMessage                  `json:"definition" yaml:"-"`
	FeatureNormalizers map[string]normalizer.Definition `json:"feature_normalizers,omitempty" yaml:"feature_normalizers,omitempty"`
}

func (d *ModelDefinition) UnmarshalYAML(value *yaml.Node) error {
	var aux struct {
		Type               string                           `yaml:"type"`
		Definition         yaml.Node                        `yaml:"definition"`
		FeatureNormalizers map[string]normalizer.Definition `yaml:"feature_normalizers"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	d.Type = aux.Type
	d.FeatureNormalizers = aux.FeatureNormalizers
	d.Definition = nil
	switch aux.Definition.Kind {
	case 0:
	case yaml.ScalarNode:
		d.Definition = json.RawMessage(aux.Definition.Value)
	default:
		text, err := yamlToJSON(&aux.Definition)
		if err != nil {
			return fmt.Errorf("model definition: %w", err)
		}
		d.Definition = text
	}
	return nil
}

// Body returns the definition, unwrapping one stored as a JSON string.
func (d ModelDefinition) Body() json.RawMessage {
	raw := bytes.TrimSpace(d.Definition)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return json.RawMessage(s)
		}
	}
	return raw
}

// Compile compiles the feature set, parses the ranker and wraps it with the
// declared normalizers.
func (d StoredModel) Compile(parsers *ranker.Parsers) (*Model, error) {
	if d.Name == "" {
		return nil, apperrors.InvalidDefinition("model name is required")
	}
	set, err := d.FeatureSet.Compile()
	if err != nil {
		return nil, fmt.Errorf("model [%s]: %w", d.Name, err)
	}
	r, err := parsers.Parse(d.Model.Type, set, d.Model.Body())
	if err != nil {
		return nil, fmt.Errorf("model [%s]: %w", d.Name, err)
	}
	if len(d.Model.FeatureNormalizers) > 0 {
		byOrdinal := make(map[int]normalizer.Normalizer, len(d.Model.FeatureNormalizers))
		names := make([]string, 0, len(d.Model.FeatureNormalizers))
		for name := range d.Model.FeatureNormalizers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ord, ok := set.FeatureOrdinal(name)
			if !ok {
				return nil, apperrors.InvalidDefinition("model [%s]: normalizer for unknown feature [%s]", d.Name, name)
			}
			n, err := d.Model.FeatureNormalizers[name].Build()
			if err != nil {
				return nil, fmt.Errorf("model [%s] feature [%s]: %w", d.Name, name, err)
			}
			byOrdinal[ord] = n
		}
		r = ranker.NewFeatureNormalizing(r, byOrdinal)
	}
	return NewModel(d.Name, set, r)
}
