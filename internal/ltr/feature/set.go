package feature

import (
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"
)

// MaxFeatures bounds the size of a feature set.
const MaxFeatures = 10000

// Set is an ordered list of uniquely named features. A feature's position is
// its ordinal and its slot in the feature vector.
type Set struct {
	name     string
	features []Feature
	ordinals map[string]int
}

func NewSet(name string, features []Feature) (*Set, error) {
	if len(features) > MaxFeatures {
		return nil, apperrors.Newf(apperrors.ErrTooManyFeatures, 400,
			"feature set [%s] has %d features, the maximum is %d", name, len(features), MaxFeatures)
	}
	s := &Set{
		name:     name,
		features: append([]Feature(nil), features...),
		ordinals: make(map[string]int, len(features)),
	}
	for i, f := range s.features {
		if _, dup := s.ordinals[f.Name()]; dup {
			return nil, apperrors.InvalidDefinition("feature set [%s] declares feature [%s] more than once", name, f.Name())
		}
		s.ordinals[f.Name()] = i
	}
	return s, nil
}

func (s *Set) Name() string { return s.name }

func (s *Set) Size() int { return len(s.features) }

func (s *Set) Feature(ordinal int) Feature { return s.features[ordinal] }

// Features returns the features in ordinal order. The slice must not be
// modified.
func (s *Set) Features() []Feature { return s.features }

func (s *Set) FeatureOrdinal(name string) (int, bool) {
	ord, ok := s.ordinals[name]
	return ord, ok
}

// Names returns the feature names in ordinal order.
func (s *Set) Names() []string {
	names := make([]string, len(s.features))
	for i, f := range s.features {
		names[i] = f.Name()
	}
	return names
}

// Optimize returns a set of the optimized features, with unchanged ordinals.
func (s *Set) Optimize() *Set {
	out := &Set{name: s.name, features: make([]Feature, len(s.features)), ordinals: s.ordinals}
	for i, f := range s.features {
		out.features[i] = Optimize(f)
	}
	return out
}

// Validate validates every feature against the set.
func (s *Set) Validate() error {
	for _, f := range s.features {
		if err := Validate(f, s); err != nil {
			return err
		}
	}
	return nil
}

// ResolveActive marks the features named in names as active. An empty list
// activates every feature.
func (s *Set) ResolveActive(names []string) ([]bool, error) {
	active := make([]bool, len(s.features))
	if len(names) == 0 {
		for i := range active {
			active[i] = true
		}
		return active, nil
	}
	for _, name := range names {
		ord, ok := s.ordinals[name]
		if !ok {
			return nil, apperrors.UnknownFeature(name)
		}
		active[ord] = true
	}
	return active, nil
}

// defaultFeatureName names inline features declared without a name.
func defaultFeatureName(ordinal int) string {
	return "feature_" + strconv.Itoa(ordinal)
}
