// Package normalizer rescales individual feature values before they reach a
// ranker.
package normalizer

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"
)

// Normalizer maps a raw feature value to a normalized one. Implementations
// are immutable.
type Normalizer interface {
	Normalize(v float32) float32
}

// MinMax maps [Min, Max] linearly onto [0, 1].
type MinMax struct {
	min, max float32
}

func NewMinMax(min, max float32) (*MinMax, error) {
	if min >= max {
		return nil, fmt.Errorf("%w: Minimum %s must be smaller than than maximum %s",
			apperrors.ErrNormalizerRange, fmtFloat(min), fmtFloat(max))
	}
	if min < 0 {
		return nil, fmt.Errorf("%w: Minimum %s must be positive", apperrors.ErrNormalizerRange, fmtFloat(min))
	}
	if max < 0 {
		return nil, fmt.Errorf("%w: Maximum %s must be positive", apperrors.ErrNormalizerRange, fmtFloat(max))
	}
	return &MinMax{min: min, max: max}, nil
}

func (n *MinMax) Normalize(v float32) float32 {
	return (v - n.min) / (n.max - n.min)
}

// Standard computes the z-score (v - mean) / stddev.
type Standard struct {
	mean, stddev float32
}

func NewStandard(mean, stddev float32) (*Standard, error) {
	if stddev <= 0 {
		return nil, fmt.Errorf("%w: Standard deviation %s must be positive", apperrors.ErrNormalizerRange, fmtFloat(stddev))
	}
	return &Standard{mean: mean, stddev: stddev}, nil
}

func (n *Standard) Normalize(v float32) float32 {
	return (v - n.mean) / n.stddev
}

// Definition is the stored form of a normalizer: exactly one of MinMax and
// Standard is set.
type Definition struct {
	MinMax   *MinMaxDef   `json:"min_max,omitempty" yaml:"min_max,omitempty"`
	Standard *StandardDef `json:"standard,omitempty" yaml:"standard,omitempty"`
}

type MinMaxDef struct {
	Minimum float32 `json:"minimum" yaml:"minimum"`
	Maximum float32 `json:"maximum" yaml:"maximum"`
}

type StandardDef struct {
	Mean              float32 `json:"mean" yaml:"mean"`
	StandardDeviation float32 `json:"standard_deviation" yaml:"standard_deviation"`
}

// Build constructs the normalizer described by d.
func (d Definition) Build() (Normalizer, error) {
	switch {
	case d.MinMax != nil && d.Standard != nil:
		return nil, apperrors.InvalidDefinition("normalizer must declare exactly one of min_max or standard")
	case d.MinMax != nil:
		return NewMinMax(d.MinMax.Minimum, d.MinMax.Maximum)
	case d.Standard != nil:
		return NewStandard(d.Standard.Mean, d.Standard.StandardDeviation)
	default:
		return nil, apperrors.InvalidDefinition("normalizer must declare one of min_max or standard")
	}
}

func fmtFloat(v float32) string {
	s := fmt.Sprintf("%v", v)
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'N' || c == 'I' {
			return s
		}
	}
	return s + ".0"
}
