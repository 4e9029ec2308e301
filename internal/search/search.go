// Package search is the query-execution layer. Queries are compiled against a
// Searcher into Weights, and Weights produce one Scorer per segment. Scorers
// are pull-based iterators that visit matching documents in increasing order
// and score the current document on demand.
package search

import (
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
)

// NoMoreDocs is returned by exhausted iterators.
const NoMoreDocs = index.NoMoreDocs

// Query is an immutable description of what to match and how to score it.
type Query interface {
	// CreateWeight binds the query to the searcher's statistics.
	CreateWeight(s *Searcher) (Weight, error)
	String() string
}

// Weight is a query bound to a searcher. It is shared by the scorers of all
// segments and must be safe for concurrent use.
type Weight interface {
	Query() Query
	// Scorer returns a scorer over leaf. It never returns a nil scorer.
	Scorer(leaf index.SegmentContext) (Scorer, error)
	// Explain describes the score of the segment-local document doc.
	Explain(leaf index.SegmentContext, doc int) (*Explanation, error)
	// Cacheable reports whether results for this weight may be stored in the
	// query result cache.
	Cacheable() bool
}

// DocIterator visits documents in increasing order. DocID is -1 before the
// first call to NextDoc or Advance and NoMoreDocs once exhausted.
type DocIterator interface {
	DocID() int
	NextDoc() int
	// Advance moves to the first document >= target. Calling it with a
	// target <= DocID() leaves the iterator in place.
	Advance(target int) int
	Cost() int64
}

// Scorer is a DocIterator that can score its current document. A scorer is
// used by one goroutine at a time.
type Scorer interface {
	DocIterator
	Score() (float32, error)
	// MaxScore is an upper bound of Score over all documents.
	MaxScore() float32
}
