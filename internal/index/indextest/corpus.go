// Package indextest provides a small fixed corpus and helpers for building
// readers over it in tests.
package indextest

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
)

// Field is the single text field of the corpus.
const Field = "text"

// Texts is the corpus, one document per entry, indexed with the standard
// analyzer.
var Texts = []string{
	"how now brown cow",
	"brown is the color of cows",
	"brown cow",
	"banana cows are yummy",
	"dance with monkeys and do not stop to dance",
	strings.Repeat("break on through to the other side... ", 3),
}

// Documents returns the corpus as documents with ids doc-0 .. doc-5.
func Documents() []index.Document {
	docs := make([]index.Document, len(Texts))
	for i, text := range Texts {
		docs[i] = index.Document{
			ID:     fmt.Sprintf("doc-%d", i),
			Fields: map[string]string{Field: text},
		}
	}
	return docs
}

// Schema maps every field to the standard analyzer.
func Schema() index.Schema {
	return index.Schema{DefaultAnalyzer: "standard"}
}

// Segment builds docs into one in-memory segment.
func Segment(name string, docs []index.Document) *index.MemSegment {
	mem := index.NewMemoryIndex(Schema(), analysis.NewRegistry())
	for _, doc := range docs {
		if err := mem.AddDocument(doc); err != nil {
			panic(err)
		}
	}
	return mem.Build(name)
}

// Reader returns a reader over the corpus in a single segment.
func Reader() *index.Reader {
	return index.NewReader(Segment("seg-0", Documents()))
}

// SplitReader returns a reader over the corpus split into segments of at
// most perSegment documents.
func SplitReader(perSegment int) *index.Reader {
	docs := Documents()
	var segs []index.Segment
	for start := 0; start < len(docs); start += perSegment {
		end := min(start+perSegment, len(docs))
		segs = append(segs, Segment(fmt.Sprintf("seg-%d", len(segs)), docs[start:end]))
	}
	return index.NewReader(segs...)
}
