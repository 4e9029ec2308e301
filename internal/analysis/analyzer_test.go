package analysis

import (
	"errors"
	"reflect"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"
)

func TestStandard(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Token
	}{
		{"basic", "How now brown Cow", []Token{{"how", 0}, {"now", 1}, {"brown", 2}, {"cow", 3}}},
		{"keeps plurals", "banana cows", []Token{{"banana", 0}, {"cows", 1}}},
		{"punctuation", "side... to the", []Token{{"side", 0}, {"to", 1}, {"the", 2}}},
		{"empty", "", []Token{}},
	}
	a := Standard()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Analyze(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Analyze(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestEnglishStemsAndLeavesPositionGaps(t *testing.T) {
	got := English().Analyze("the cows are dancing")
	want := []Token{{"cow", 1}, {"danc", 3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Analyze() = %v, want %v", got, want)
	}
}

func TestSimple(t *testing.T) {
	got := Terms(Simple(), "a cat is jumping")
	want := []string{"cat", "jump"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Terms() = %v, want %v", got, want)
	}
}

func TestKeywordAndWhitespace(t *testing.T) {
	if got := Terms(Keyword(), "New York"); !reflect.DeepEqual(got, []string{"New York"}) {
		t.Errorf("keyword = %v", got)
	}
	if got := Terms(Whitespace(), "New  York"); !reflect.DeepEqual(got, []string{"New", "York"}) {
		t.Errorf("whitespace = %v", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("standard"); err != nil {
		t.Fatalf("Get(standard): %v", err)
	}
	_, err := r.Get("klingon")
	if !errors.Is(err, apperrors.ErrAnalyzerNotFound) {
		t.Fatalf("Get(klingon) error = %v, want ErrAnalyzerNotFound", err)
	}
	if err.Error() != "analyzer not found: No analyzer found for [klingon]" {
		t.Errorf("unexpected message %q", err.Error())
	}
	want := []string{"english", "keyword", "simple", "standard", "whitespace"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func BenchmarkStandard(b *testing.B) {
	a := Standard()
	text := "break on through to the other side break on through to the other side"
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		a.Analyze(text)
	}
}
