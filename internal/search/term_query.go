package search

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
)

// TermQuery matches documents containing an exact term and scores them with
// BM25.
type TermQuery struct {
	Term  index.Term
	Boost float32
}

func NewTermQuery(field, text string) *TermQuery {
	return &TermQuery{Term: index.Term{Field: field, Text: text}, Boost: 1}
}

func (q *TermQuery) String() string {
	if q.Boost != 1 {
		return fmt.Sprintf("%s^%s", q.Term, FormatFloat(q.Boost))
	}
	return q.Term.String()
}

func (q *TermQuery) CreateWeight(s *Searcher) (Weight, error) {
	stats := s.TermStats(q.Term)
	field := s.FieldStats(q.Term.Field)
	return &termWeight{
		query:  q,
		idf:    bm25IDF(field.DocCount, stats.DocFreq),
		avgLen: field.AvgLength(),
		stats:  stats,
		field:  field,
	}, nil
}

type termWeight struct {
	query  *TermQuery
	idf    float32
	avgLen float64
	stats  index.TermStats
	field  index.FieldStats
}

func (w *termWeight) Query() Query { return w.query }

func (w *termWeight) Cacheable() bool { return true }

func (w *termWeight) Scorer(leaf index.SegmentContext) (Scorer, error) {
	postings, err := leaf.Segment.Postings(w.query.Term)
	if err != nil {
		return nil, fmt.Errorf("term query %s: %w", w.query.Term, err)
	}
	if len(postings) == 0 {
		return EmptyScorer(), nil
	}
	return &termScorer{weight: w, seg: leaf.Segment, it: postings.Iterator()}, nil
}

func (w *termWeight) score(freq, length int) float32 {
	return w.query.Boost * w.idf * bm25TFNorm(float32(freq), float32(length), w.avgLen)
}

func (w *termWeight) Explain(leaf index.SegmentContext, doc int) (*Explanation, error) {
	postings, err := leaf.Segment.Postings(w.query.Term)
	if err != nil {
		return nil, err
	}
	it := postings.Iterator()
	if it.Advance(doc) != doc {
		return NoMatch(fmt.Sprintf("no matching term %s", w.query.Term)), nil
	}
	length := leaf.Segment.FieldLength(w.query.Term.Field, doc)
	tfNorm := bm25TFNorm(float32(it.Freq()), float32(length), w.avgLen)
	return Match(w.score(it.Freq(), length),
		fmt.Sprintf("weight(%s in %d), bm25", w.query.Term, doc),
		Match(w.query.Boost, "boost"),
		Match(w.idf, fmt.Sprintf("idf, computed as log((N - n) / (n + 0.5) + 1) from n=%d, N=%d", w.stats.DocFreq, w.field.DocCount)),
		Match(tfNorm, fmt.Sprintf("tf, computed from freq=%d, dl=%d, avgdl=%s", it.Freq(), length, FormatFloat(float32(w.avgLen)))),
	), nil
}

type termScorer struct {
	weight *termWeight
	seg    index.Segment
	it     *index.PostingsIterator
}

func (s *termScorer) DocID() int { return s.it.DocID() }
func (s *termScorer) NextDoc() int { return s.it.NextDoc() }
func (s *termScorer) Advance(target int) int { return s.it.Advance(target) }
func (s *termScorer) Cost() int64 { return s.it.Cost() }
func (s *termScorer) MaxScore() float32 { return positiveInf() }

func (s *termScorer) Score() (float32, error) {
	doc := s.it.DocID()
	return s.weight.score(s.it.Freq(), s.seg.FieldLength(s.weight.query.Term.Field, doc)), nil
}
