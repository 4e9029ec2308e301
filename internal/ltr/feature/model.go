package feature

import (
	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/ranker"
)

// Model pairs a feature set with the ranker trained on it. It is immutable
// and shared by every query built from it.
type Model struct {
	name   string
	set    *Set
	ranker ranker.Ranker
}

// NewModel checks that the ranker scores vectors of the set's size.
func NewModel(name string, set *Set, r ranker.Ranker) (*Model, error) {
	if n := r.NewFeatureVector(nil).Len(); n != set.Size() {
		return nil, apperrors.InvalidDefinition("model [%s]: ranker expects %d features, set [%s] has %d",
			name, n, set.Name(), set.Size())
	}
	return &Model{name: name, set: set, ranker: r}, nil
}

// NewUnitModel scores the sum of every feature, the model used when a query
// names only a feature set.
func NewUnitModel(set *Set) (*Model, error) {
	weights := make([]float32, set.Size())
	for i := range weights {
		weights[i] = 1
	}
	r, err := ranker.NewLinear(weights, set.Size())
	if err != nil {
		return nil, err
	}
	return NewModel("linear", set, r)
}

// NewInlineModel builds a set from prebuilt features, naming unnamed ones by
// position.
func NewInlineModel(name string, features []*PrebuiltFeature, build func(set *Set) (ranker.Ranker, error)) (*Model, error) {
	fs := make([]Feature, len(features))
	for i, f := range features {
		if f.name == "" {
			f.name = defaultFeatureName(i)
		}
		fs[i] = f
	}
	set, err := NewSet(name, fs)
	if err != nil {
		return nil, err
	}
	r, err := build(set)
	if err != nil {
		return nil, err
	}
	return NewModel(name, set, r)
}

func (m *Model) Name() string { return m.name }

func (m *Model) Set() *Set { return m.set }

func (m *Model) Ranker() ranker.Ranker { return m.ranker }
