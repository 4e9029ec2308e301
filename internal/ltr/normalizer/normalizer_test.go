package normalizer

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"
)

func TestNewMinMax(t *testing.T) {
	tests := []struct {
		name     string
		min, max float32
		wantErr  string
	}{
		{"valid", 0, 10, ""},
		{"equal", 5, 5, "Minimum 5.0 must be smaller than than maximum 5.0"},
		{"inverted", 10, 1, "must be smaller than than maximum"},
		{"negative min", -1, 10, "Minimum -1.0 must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewMinMax(tt.min, tt.max)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("NewMinMax() error: %v", err)
				}
				if got := n.Normalize(5); got != 0.5 {
					t.Errorf("Normalize(5) = %v, want 0.5", got)
				}
				return
			}
			if !errors.Is(err, apperrors.ErrNormalizerRange) {
				t.Fatalf("error = %v, want ErrNormalizerRange", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestStandard(t *testing.T) {
	n, err := NewStandard(1, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if got := n.Normalize(3); got != 4 {
		t.Errorf("Normalize(3) = %v, want 4", got)
	}
	if _, err := NewStandard(0, 0); !errors.Is(err, apperrors.ErrNormalizerRange) {
		t.Errorf("NewStandard(0, 0) error = %v, want ErrNormalizerRange", err)
	}
}

func TestDefinitionBuild(t *testing.T) {
	n, err := Definition{Standard: &StandardDef{Mean: 1, StandardDeviation: 0.5}}.Build()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := n.(*Standard); !ok {
		t.Errorf("Build() = %T, want *Standard", n)
	}
	if _, err := (Definition{}).Build(); !errors.Is(err, apperrors.ErrInvalidDefinition) {
		t.Errorf("empty definition error = %v, want ErrInvalidDefinition", err)
	}
	both := Definition{MinMax: &MinMaxDef{Maximum: 1}, Standard: &StandardDef{StandardDeviation: 1}}
	if _, err := both.Build(); !errors.Is(err, apperrors.ErrInvalidDefinition) {
		t.Errorf("ambiguous definition error = %v, want ErrInvalidDefinition", err)
	}
}
