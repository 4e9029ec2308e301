// Package index holds the inverted index data model: documents, positional
// postings, immutable segments and point-in-time readers over them, plus the
// in-memory buffer that builds new segments.
package index

import (
	"fmt"
	"math"
)

// NoMoreDocs is returned by iterators once they are exhausted.
const NoMoreDocs = math.MaxInt32

// Term identifies a token in a specific field.
type Term struct {
	Field string `json:"field"`
	Text  string `json:"term"`
}

func (t Term) String() string {
	return fmt.Sprintf("%s:%s", t.Field, t.Text)
}

// Less orders terms by field, then text.
func (t Term) Less(o Term) bool {
	if t.Field != o.Field {
		return t.Field < o.Field
	}
	return t.Text < o.Text
}

// Document is the unit of indexing. Fields map field names to raw text.
type Document struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Posting records one document's occurrences of a term. Doc is the
// segment-local document number.
type Posting struct {
	Doc       int   `json:"d"`
	Frequency int   `json:"f"`
	Positions []int `json:"p"`
}

// PostingList is sorted by ascending Doc.
type PostingList []Posting

// TermStats are corpus-level statistics of one term.
type TermStats struct {
	DocFreq       int64
	TotalTermFreq int64
}

// Add accumulates o into s.
func (s TermStats) Add(o TermStats) TermStats {
	return TermStats{DocFreq: s.DocFreq + o.DocFreq, TotalTermFreq: s.TotalTermFreq + o.TotalTermFreq}
}

// FieldStats are corpus-level statistics of one field. DocCount counts
// documents with at least one token in the field.
type FieldStats struct {
	DocCount         int64
	SumTotalTermFreq int64
}

// Add accumulates o into s.
func (s FieldStats) Add(o FieldStats) FieldStats {
	return FieldStats{DocCount: s.DocCount + o.DocCount, SumTotalTermFreq: s.SumTotalTermFreq + o.SumTotalTermFreq}
}

// AvgLength is the mean number of tokens per document in the field.
func (s FieldStats) AvgLength() float64 {
	if s.DocCount == 0 {
		return 0
	}
	return float64(s.SumTotalTermFreq) / float64(s.DocCount)
}

// Segment is an immutable slice of the index with its own document numbering
// starting at 0. Implementations must be safe for concurrent readers.
type Segment interface {
	Name() string
	MaxDoc() int
	// DocID maps a segment-local document number to the external id.
	DocID(doc int) string
	// Postings returns the postings of t, or nil if the term is absent.
	Postings(t Term) (PostingList, error)
	TermStats(t Term) TermStats
	FieldStats(field string) FieldStats
	FieldLength(field string, doc int) int
}
