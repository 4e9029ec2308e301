package termstat

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
)

// Symbols are the variables bound by a Supplier for each matched term.
var Symbols = []string{"df", "idf", "tf", "tp", "ttf", "matches", "unique"}

// Supplier holds the per-document statistics of the matched terms. It is
// owned by a single scorer, refilled by Bump for every document in
// increasing order.
type Supplier struct {
	posAggr   AggrType
	terms     []TermContext
	its       []*index.PostingsIterator
	df        []float32
	idf       []float32
	tf        []float32
	tp        []float32
	ttf       []float32
	positions Stats
}

func NewSupplier(snapshot *Snapshot, posAggr AggrType) *Supplier {
	n := snapshot.Len()
	return &Supplier{
		posAggr: posAggr,
		terms:   snapshot.Terms(),
		its:     make([]*index.PostingsIterator, n),
		df:      make([]float32, 0, n),
		idf:     make([]float32, 0, n),
		tf:      make([]float32, 0, n),
		tp:      make([]float32, 0, n),
		ttf:     make([]float32, 0, n),
	}
}

// Reset opens postings for the present terms on seg.
func (s *Supplier) Reset(seg index.Segment) error {
	s.clear()
	for i, t := range s.terms {
		s.its[i] = nil
		if !t.Present() {
			continue
		}
		postings, err := seg.Postings(t.Term)
		if err != nil {
			return fmt.Errorf("opening postings for %s: %w", t.Term, err)
		}
		if len(postings) > 0 {
			s.its[i] = postings.Iterator()
		}
	}
	return nil
}

func (s *Supplier) clear() {
	s.df = s.df[:0]
	s.idf = s.idf[:0]
	s.tf = s.tf[:0]
	s.tp = s.tp[:0]
	s.ttf = s.ttf[:0]
}

// Bump loads the statistics of every term whose postings contain doc. Docs
// must be visited in increasing order.
func (s *Supplier) Bump(doc int) {
	s.clear()
	for i, it := range s.its {
		if it == nil {
			continue
		}
		if it.DocID() < doc {
			it.Advance(doc)
		}
		if it.DocID() != doc {
			continue
		}
		t := s.terms[i]
		s.positions.Reset()
		for _, p := range it.Positions() {
			s.positions.Add(float32(p + 1))
		}
		s.df = append(s.df, float32(t.DocFreq))
		s.idf = append(s.idf, t.IDF())
		s.tf = append(s.tf, float32(it.Freq()))
		s.tp = append(s.tp, s.positions.Aggregate(s.posAggr))
		s.ttf = append(s.ttf, float32(t.TotalTermFreq))
	}
}

// Matched is the number of terms found in the current document.
func (s *Supplier) Matched() int { return len(s.df) }

// Unique is the number of declared terms, present or not.
func (s *Supplier) Unique() int { return len(s.terms) }

// Symbol returns the value of a per-term symbol for the i-th matched term.
func (s *Supplier) Symbol(name string, i int) (float32, bool) {
	switch name {
	case "df":
		return s.df[i], true
	case "idf":
		return s.idf[i], true
	case "tf":
		return s.tf[i], true
	case "tp":
		return s.tp[i], true
	case "ttf":
		return s.ttf[i], true
	case "matches":
		return float32(s.Matched()), true
	case "unique":
		return float32(s.Unique()), true
	}
	return 0, false
}
