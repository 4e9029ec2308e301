package ranker

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/normalizer"
)

func TestLinear(t *testing.T) {
	r, err := NewLinear([]float32{0.5, 2}, 2)
	if err != nil {
		t.Fatal(err)
	}
	v := r.NewFeatureVector(nil)
	if v.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", v.Len())
	}
	v.Set(0, 4)
	v.Set(1, 1)
	if got := r.Score(v); got != 4 {
		t.Errorf("Score() = %v, want 4", got)
	}
	if _, err := NewLinear([]float32{1}, 2); err == nil {
		t.Error("expected error on weight count mismatch")
	}
}

func TestVectorReuse(t *testing.T) {
	r, _ := NewLinear([]float32{1, 1, 1}, 3)
	v := r.NewFeatureVector(nil)
	v.Set(1, 7)
	if reused := r.NewFeatureVector(v); reused != v || reused.Get(1) != 0 {
		t.Error("expected the same zeroed vector")
	}
	if other := r.NewFeatureVector(NewFeatureVector(2)); other.Len() != 3 {
		t.Errorf("Len() = %d, want 3", other.Len())
	}
}

func TestFeatureNormalizing(t *testing.T) {
	linear, err := NewLinear([]float32{0.1, 0.2, 0.3}, 3)
	if err != nil {
		t.Fatal(err)
	}
	std, err := normalizer.NewStandard(1.0, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	r := NewFeatureNormalizing(linear, map[int]normalizer.Normalizer{2: std})

	score := func() float32 {
		v := r.NewFeatureVector(nil)
		v.Set(0, 1)
		v.Set(1, 2)
		v.Set(2, 3)
		s := r.Score(v)
		if v.Get(2) != 4 {
			t.Errorf("slot 2 = %v, want 4 after normalization", v.Get(2))
		}
		if v.Get(0) != 1 || v.Get(1) != 2 {
			t.Error("unmapped slots must be left untouched")
		}
		return s
	}
	weights := []float32{0.1, 0.2, 0.3}
	normalized := []float32{1, 2, 4}
	var want float32
	for i, w := range weights {
		want += w * normalized[i]
	}
	first := score()
	if first != want {
		t.Errorf("Score() = %v, want %v", first, want)
	}
	if math.Abs(float64(first)-1.7) > 1e-6 {
		t.Errorf("Score() = %v, want ~1.7", first)
	}
	for i := 0; i < 10; i++ {
		if got := score(); math.Float32bits(got) != math.Float32bits(first) {
			t.Fatalf("run %d: Score() = %v, want bit-identical %v", i, got, first)
		}
	}
}

type names map[string]int

func (n names) FeatureOrdinal(name string) (int, bool) {
	ord, ok := n[name]
	return ord, ok
}

func (n names) Size() int { return len(n) }

func TestParseLinear(t *testing.T) {
	set := names{"a": 0, "b": 1, "c": 2}
	p := NewParsers()
	r, err := p.Parse(LinearType, set, json.RawMessage(`{"a": 1.5, "c": -1}`))
	if err != nil {
		t.Fatal(err)
	}
	linear := r.(*Linear)
	want := []float32{1.5, 0, -1}
	for i, w := range linear.Weights() {
		if w != want[i] {
			t.Errorf("weight %d = %v, want %v", i, w, want[i])
		}
	}

	tests := []struct {
		name      string
		modelType string
		def       string
	}{
		{"unknown feature", LinearType, `{"z": 1}`},
		{"bad json", LinearType, `[1, 2]`},
		{"unknown type", "model/xgboost", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.modelType, set, json.RawMessage(tt.def))
			if !errors.Is(err, apperrors.ErrInvalidDefinition) {
				t.Errorf("Parse() error = %v, want ErrInvalidDefinition", err)
			}
		})
	}
}

func BenchmarkNormalizedLinear(b *testing.B) {
	linear, _ := NewLinear([]float32{0.1, 0.2, 0.3}, 3)
	std, _ := normalizer.NewStandard(1.0, 0.5)
	r := NewFeatureNormalizing(linear, map[int]normalizer.Normalizer{2: std})
	v := r.NewFeatureVector(nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v = r.NewFeatureVector(v)
		v.Set(2, 3)
		_ = r.Score(v)
	}
}
