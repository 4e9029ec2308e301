package store

import (
	"context"
	"errors"
	"net/http"
	"slices"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/feature"
)

// AddFeaturesToSet adds every stored feature whose name matches pattern to
// the feature set setName, creating the set when it does not exist, and
// stores the result. Without merge the features are appended and a name
// already in the set is rejected. With merge a feature replaces the one of
// the same name at its ordinal and only new names are appended.
func (s *DefinitionStore) AddFeaturesToSet(ctx context.Context, setName, pattern string, merge bool) (feature.StoredFeatureSet, error) {
	set, err := s.FeatureSetDefinition(ctx, setName)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		set = feature.StoredFeatureSet{Name: setName}
	case err != nil:
		return feature.StoredFeatureSet{}, err
	}

	names, err := s.SearchFeatures(ctx, pattern)
	if err != nil {
		return feature.StoredFeatureSet{}, err
	}
	if len(names) == 0 {
		return feature.StoredFeatureSet{}, apperrors.NoFeaturesFound(pattern)
	}
	incoming := make([]feature.StoredFeature, 0, len(names))
	for _, name := range names {
		def, err := s.FeatureDefinition(ctx, name)
		if err != nil {
			return feature.StoredFeatureSet{}, err
		}
		incoming = append(incoming, def)
	}
	if merge {
		set.Features = mergeFeatures(set.Features, incoming)
	} else {
		set.Features = append(set.Features, incoming...)
	}
	if len(set.Features) > feature.MaxFeatures {
		return feature.StoredFeatureSet{}, apperrors.TooManyFeatures(pattern)
	}
	if err := s.PutFeatureSet(ctx, set); err != nil {
		return feature.StoredFeatureSet{}, err
	}
	return set, nil
}

func mergeFeatures(current, incoming []feature.StoredFeature) []feature.StoredFeature {
	out := slices.Clone(current)
	for _, f := range incoming {
		i := slices.IndexFunc(out, func(c feature.StoredFeature) bool { return c.Name == f.Name })
		if i < 0 {
			out = append(out, f)
			continue
		}
		out[i] = f
	}
	return out
}

// CreateModelFromSet stores a model named modelName over a copy of the
// feature set setName. An existing model is never replaced.
func (s *DefinitionStore) CreateModelFromSet(ctx context.Context, setName, modelName string, def feature.ModelDefinition) (feature.StoredModel, error) {
	_, err := s.backend.Get(ctx, TypeModel, modelName)
	switch {
	case err == nil:
		return feature.StoredModel{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusConflict,
			"Model [%s] already exists", modelName)
	case !errors.Is(err, apperrors.ErrNotFound):
		return feature.StoredModel{}, err
	}

	set, err := s.FeatureSetDefinition(ctx, setName)
	if err != nil {
		return feature.StoredModel{}, err
	}
	model := feature.StoredModel{Name: modelName, FeatureSet: set, Model: def}
	if err := s.PutModel(ctx, model); err != nil {
		return feature.StoredModel{}, err
	}
	return model, nil
}
