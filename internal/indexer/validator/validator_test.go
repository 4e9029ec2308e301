package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name      string
		doc       index.Document
		wantField string
	}{
		{"valid", index.Document{ID: "d1", Fields: map[string]string{"text": "brown cow"}}, ""},
		{"missing id", index.Document{ID: " ", Fields: map[string]string{"text": "x"}}, "id"},
		{"long id", index.Document{ID: strings.Repeat("a", 256), Fields: map[string]string{"text": "x"}}, "id"},
		{"no fields", index.Document{ID: "d1"}, "fields"},
		{"empty field name", index.Document{ID: "d1", Fields: map[string]string{"": "x"}}, "fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(&tt.doc)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := ve.Fields[tt.wantField]; !ok {
				t.Errorf("expected error on %q, got %v", tt.wantField, ve.Fields)
			}
		})
	}
}
