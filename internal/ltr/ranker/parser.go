package ranker

import (
	"encoding/json"
	"sort"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"
)

// LinearType is the model type of linear models.
const LinearType = "model/linear"

// FeatureNames resolves feature names to ordinals for model parsers.
type FeatureNames interface {
	FeatureOrdinal(name string) (int, bool)
	Size() int
}

// ParseFunc builds a ranker from a model definition.
type ParseFunc func(names FeatureNames, definition json.RawMessage) (Ranker, error)

// Parsers is a registry of model parsers keyed by model type.
type Parsers struct {
	mu      sync.RWMutex
	parsers map[string]ParseFunc
}

// NewParsers returns a registry with the linear parser registered.
func NewParsers() *Parsers {
	p := &Parsers{parsers: make(map[string]ParseFunc)}
	p.Register(LinearType, ParseLinear)
	return p
}

func (p *Parsers) Register(modelType string, fn ParseFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parsers[modelType] = fn
}

func (p *Parsers) Types() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	types := make([]string, 0, len(p.parsers))
	for t := range p.parsers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (p *Parsers) Parse(modelType string, names FeatureNames, definition json.RawMessage) (Ranker, error) {
	p.mu.RLock()
	fn, ok := p.parsers[modelType]
	p.mu.RUnlock()
	if !ok {
		return nil, apperrors.InvalidDefinition("unknown model type [%s]", modelType)
	}
	return fn(names, definition)
}

// ParseLinear reads {"<feature>": weight}. Features without a weight get 0.
func ParseLinear(names FeatureNames, definition json.RawMessage) (Ranker, error) {
	var byName map[string]float32
	if err := json.Unmarshal(definition, &byName); err != nil {
		return nil, apperrors.InvalidDefinition("linear model definition: %v", err)
	}
	weights := make([]float32, names.Size())
	for name, w := range byName {
		ord, ok := names.FeatureOrdinal(name)
		if !ok {
			return nil, apperrors.InvalidDefinition("linear model references unknown feature [%s]", name)
		}
		weights[ord] = w
	}
	return NewLinear(weights, names.Size())
}
