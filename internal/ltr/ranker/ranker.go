// Package ranker turns feature vectors into scores. A Ranker is immutable and
// shared by every scorer of a model; FeatureVectors are owned by one scorer
// and reused across documents.
package ranker

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/normalizer"
)

// FeatureVector is a dense vector of feature values indexed by ordinal.
type FeatureVector struct {
	scores []float32
}

func NewFeatureVector(size int) *FeatureVector {
	return &FeatureVector{scores: make([]float32, size)}
}

func (v *FeatureVector) Len() int { return len(v.scores) }

func (v *FeatureVector) Get(ordinal int) float32 { return v.scores[ordinal] }

func (v *FeatureVector) Set(ordinal int, value float32) { v.scores[ordinal] = value }

// Reset zeroes every slot without reallocating.
func (v *FeatureVector) Reset() {
	clear(v.scores)
}

// Scores exposes the backing slice. Callers must not retain it past the
// current document.
func (v *FeatureVector) Scores() []float32 { return v.scores }

// Ranker scores a fully populated feature vector.
type Ranker interface {
	Name() string
	// NewFeatureVector returns reuse when it has the right size, otherwise a
	// new zeroed vector.
	NewFeatureVector(reuse *FeatureVector) *FeatureVector
	Score(v *FeatureVector) float32
}

func vectorOfSize(reuse *FeatureVector, size int) *FeatureVector {
	if reuse != nil && reuse.Len() == size {
		reuse.Reset()
		return reuse
	}
	return NewFeatureVector(size)
}

// Linear scores the dot product of the vector with fixed weights.
type Linear struct {
	weights []float32
}

func NewLinear(weights []float32, size int) (*Linear, error) {
	if len(weights) != size {
		return nil, fmt.Errorf("linear ranker expects %d weights, got %d", size, len(weights))
	}
	return &Linear{weights: append([]float32(nil), weights...)}, nil
}

func (r *Linear) Name() string { return "linear" }

func (r *Linear) NewFeatureVector(reuse *FeatureVector) *FeatureVector {
	return vectorOfSize(reuse, len(r.weights))
}

func (r *Linear) Score(v *FeatureVector) float32 {
	var score float32
	for i, w := range r.weights {
		score += w * v.scores[i]
	}
	return score
}

// Weights returns a copy of the weights.
func (r *Linear) Weights() []float32 { return append([]float32(nil), r.weights...) }

// FeatureNormalizing normalizes selected slots in place, in ascending ordinal
// order, before delegating to the wrapped ranker.
type FeatureNormalizing struct {
	inner       Ranker
	ordinals    []int
	normalizers []normalizer.Normalizer
}

func NewFeatureNormalizing(inner Ranker, byOrdinal map[int]normalizer.Normalizer) *FeatureNormalizing {
	r := &FeatureNormalizing{inner: inner}
	for ord := range byOrdinal {
		r.ordinals = append(r.ordinals, ord)
	}
	sort.Ints(r.ordinals)
	for _, ord := range r.ordinals {
		r.normalizers = append(r.normalizers, byOrdinal[ord])
	}
	return r
}

func (r *FeatureNormalizing) Name() string { return "normalized " + r.inner.Name() }

func (r *FeatureNormalizing) NewFeatureVector(reuse *FeatureVector) *FeatureVector {
	return r.inner.NewFeatureVector(reuse)
}

func (r *FeatureNormalizing) Score(v *FeatureVector) float32 {
	for i, ord := range r.ordinals {
		v.scores[ord] = r.normalizers[i].Normalize(v.scores[ord])
	}
	return r.inner.Score(v)
}

// Inner returns the wrapped ranker.
func (r *FeatureNormalizing) Inner() Ranker { return r.inner }
