package termstat

import (
	"fmt"
	"math"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
)

// Mode selects where term statistics come from.
type Mode int

const (
	// ModeGlobal reads reader-wide statistics from the searcher.
	ModeGlobal Mode = iota
	// ModeLocal reads statistics from each segment.
	ModeLocal
)

func (m Mode) String() string {
	if m == ModeLocal {
		return "local"
	}
	return "global"
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "global":
		return ModeGlobal, nil
	case "local":
		return ModeLocal, nil
	default:
		return 0, apperrors.InvalidDefinition("unknown term stats mode [%s]", s)
	}
}

// StatsSource provides term and field statistics. *search.Searcher and
// index.Segment both satisfy it.
type StatsSource interface {
	TermStats(t index.Term) index.TermStats
	FieldStats(field string) index.FieldStats
}

// TermContext is the statistics of one term captured at weight creation.
type TermContext struct {
	Term          index.Term
	DocFreq       int64
	TotalTermFreq int64
	DocCount      int64
}

// Present reports whether any document contains the term.
func (c TermContext) Present() bool { return c.DocFreq > 0 }

// IDF is ln((docCount + 1) / (df + 1)) + 1.
func (c TermContext) IDF() float32 {
	return float32(math.Log(float64(c.DocCount+1)/float64(c.DocFreq+1)) + 1)
}

// Snapshot is the immutable set of term contexts a weight scores with.
type Snapshot struct {
	terms []TermContext
}

// Capture reads statistics for terms, in order, from src.
func Capture(src StatsSource, terms []index.Term) *Snapshot {
	s := &Snapshot{terms: make([]TermContext, len(terms))}
	docCounts := make(map[string]int64)
	for i, t := range terms {
		dc, ok := docCounts[t.Field]
		if !ok {
			dc = src.FieldStats(t.Field).DocCount
			docCounts[t.Field] = dc
		}
		ts := src.TermStats(t)
		s.terms[i] = TermContext{Term: t, DocFreq: ts.DocFreq, TotalTermFreq: ts.TotalTermFreq, DocCount: dc}
	}
	return s
}

func (s *Snapshot) Terms() []TermContext { return s.terms }

func (s *Snapshot) Len() int { return len(s.terms) }

func (s *Snapshot) String() string {
	parts := make([]string, len(s.terms))
	for i, t := range s.terms {
		parts[i] = fmt.Sprintf("%s(df=%d)", t.Term, t.DocFreq)
	}
	return strings.Join(parts, " ")
}

// UniqueTerms drops repeated terms, keeping the first occurrence.
func UniqueTerms(terms []index.Term) []index.Term {
	seen := make(map[index.Term]struct{}, len(terms))
	out := make([]index.Term, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
