// Package store persists stored feature, feature set and model definitions
// and hands out their compiled forms. A DefinitionStore compiles elements read
// from a Backend on every load; Cached keeps the compiled elements in memory.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/feature"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/ranker"
)

// ElementType names the kind of a stored element.
type ElementType string

const (
	TypeFeature    ElementType = "feature"
	TypeFeatureSet ElementType = "featureset"
	TypeModel      ElementType = "model"
)

// Store loads compiled elements by name. Missing elements are reported with
// errors wrapping apperrors.ErrNotFound.
type Store interface {
	Name() string
	LoadFeature(ctx context.Context, name string) (feature.Feature, error)
	LoadFeatureSet(ctx context.Context, name string) (*feature.Set, error)
	LoadModel(ctx context.Context, name string) (*feature.Model, error)
}

// Backend stores the JSON definitions of one store. Get returns an error
// wrapping apperrors.ErrNotFound when the element does not exist. Search
// lists the names matching a glob pattern where '*' matches any run of
// characters, in ascending order.
type Backend interface {
	Get(ctx context.Context, typ ElementType, name string) ([]byte, error)
	Put(ctx context.Context, typ ElementType, name string, definition []byte) error
	Delete(ctx context.Context, typ ElementType, name string) error
	Search(ctx context.Context, typ ElementType, pattern string) ([]string, error)
}

func notFound(typ ElementType, name string) error {
	return apperrors.NotFound(string(typ), name)
}

// DefinitionStore compiles the definitions read from its backend.
type DefinitionStore struct {
	name    string
	backend Backend
	parsers *ranker.Parsers
	logger  *slog.Logger
}

func New(name string, backend Backend, parsers *ranker.Parsers) *DefinitionStore {
	if parsers == nil {
		parsers = ranker.NewParsers()
	}
	return &DefinitionStore{
		name:    name,
		backend: backend,
		parsers: parsers,
		logger:  slog.Default().With("component", "feature-store", "store", name),
	}
}

func (s *DefinitionStore) Name() string { return s.name }

func (s *DefinitionStore) Backend() Backend { return s.backend }

func (s *DefinitionStore) get(ctx context.Context, typ ElementType, name string, v any) error {
	data, err := s.backend.Get(ctx, typ, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s [%s]: %w", typ, name, err)
	}
	return nil
}

func (s *DefinitionStore) put(ctx context.Context, typ ElementType, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s [%s]: %w", typ, name, err)
	}
	if err := s.backend.Put(ctx, typ, name, data); err != nil {
		return fmt.Errorf("storing %s [%s]: %w", typ, name, err)
	}
	s.logger.Info("element stored", "type", typ, "name", name)
	return nil
}

func (s *DefinitionStore) FeatureDefinition(ctx context.Context, name string) (feature.StoredFeature, error) {
	var def feature.StoredFeature
	err := s.get(ctx, TypeFeature, name, &def)
	return def, err
}

func (s *DefinitionStore) FeatureSetDefinition(ctx context.Context, name string) (feature.StoredFeatureSet, error) {
	var def feature.StoredFeatureSet
	err := s.get(ctx, TypeFeatureSet, name, &def)
	return def, err
}

func (s *DefinitionStore) ModelDefinition(ctx context.Context, name string) (feature.StoredModel, error) {
	var def feature.StoredModel
	err := s.get(ctx, TypeModel, name, &def)
	return def, err
}

func (s *DefinitionStore) LoadFeature(ctx context.Context, name string) (feature.Feature, error) {
	def, err := s.FeatureDefinition(ctx, name)
	if err != nil {
		return nil, err
	}
	return feature.Compile(def)
}

func (s *DefinitionStore) LoadFeatureSet(ctx context.Context, name string) (*feature.Set, error) {
	def, err := s.FeatureSetDefinition(ctx, name)
	if err != nil {
		return nil, err
	}
	return def.Compile()
}

func (s *DefinitionStore) LoadModel(ctx context.Context, name string) (*feature.Model, error) {
	def, err := s.ModelDefinition(ctx, name)
	if err != nil {
		return nil, err
	}
	return def.Compile(s.parsers)
}

// PutFeature compiles def and stores it.
func (s *DefinitionStore) PutFeature(ctx context.Context, def feature.StoredFeature) error {
	if _, err := feature.Compile(def); err != nil {
		return err
	}
	return s.put(ctx, TypeFeature, def.Name, def)
}

// PutFeatureSet compiles def and stores it.
func (s *DefinitionStore) PutFeatureSet(ctx context.Context, def feature.StoredFeatureSet) error {
	if _, err := def.Compile(); err != nil {
		return err
	}
	return s.put(ctx, TypeFeatureSet, def.Name, def)
}

// PutModel compiles def and stores it.
func (s *DefinitionStore) PutModel(ctx context.Context, def feature.StoredModel) error {
	if _, err := def.Compile(s.parsers); err != nil {
		return err
	}
	return s.put(ctx, TypeModel, def.Name, def)
}

func (s *DefinitionStore) Delete(ctx context.Context, typ ElementType, name string) error {
	return s.backend.Delete(ctx, typ, name)
}

// SearchFeatures lists the stored feature names matching pattern.
func (s *DefinitionStore) SearchFeatures(ctx context.Context, pattern string) ([]string, error) {
	return s.backend.Search(ctx, TypeFeature, pattern)
}

// Seed is the layout of a seed file.
type Seed struct {
	Features    []feature.StoredFeature    `yaml:"features"`
	FeatureSets []feature.StoredFeatureSet `yaml:"featuresets"`
	Models      []feature.StoredModel      `yaml:"models"`
}

// LoadFile stores every element of the YAML seed file at path.
func (s *DefinitionStore) LoadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading seed file %s: %w", path, err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parsing seed file %s: %w", path, err)
	}
	return s.Apply(ctx, seed)
}

// Apply stores the elements of seed, features first.
func (s *DefinitionStore) Apply(ctx context.Context, seed Seed) error {
	for _, def := range seed.Features {
		if err := s.PutFeature(ctx, def); err != nil {
			return err
		}
	}
	for _, def := range seed.FeatureSets {
		if err := s.PutFeatureSet(ctx, def); err != nil {
			return err
		}
	}
	for _, def := range seed.Models {
		if err := s.PutModel(ctx, def); err != nil {
			return err
		}
	}
	s.logger.Info("seed applied",
		"features", len(seed.Features),
		"featuresets", len(seed.FeatureSets),
		"models", len(seed.Models),
	)
	return nil
}
