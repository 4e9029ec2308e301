package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/analysis"
)

// MemoryIndex buffers documents until they are built into a segment.
// Documents are numbered in insertion order.
type MemoryIndex struct {
	mu        sync.RWMutex
	schema    Schema
	analyzers *analysis.Registry
	ids       []string
	fields    map[string]*fieldBuffer
	size      int64
}

type fieldBuffer struct {
	postings map[string]PostingList
	lengths  []int32
	stats    FieldStats
}

func NewMemoryIndex(schema Schema, analyzers *analysis.Registry) *MemoryIndex {
	return &MemoryIndex{
		schema:    schema,
		analyzers: analyzers,
		fields:    make(map[string]*fieldBuffer),
	}
}

// AddDocument analyzes every field of doc and appends its postings.
func (m *MemoryIndex) AddDocument(doc Document) error {
	type fieldTerms struct {
		terms  map[string]*Posting
		length int
	}
	analyzed := make(map[string]fieldTerms, len(doc.Fields))
	for field, text := range doc.Fields {
		a, err := m.analyzers.Get(m.schema.IndexAnalyzer(field))
		if err != nil {
			return fmt.Errorf("analyzing field %s of document %s: %w", field, doc.ID, err)
		}
		tokens := a.Analyze(text)
		termData := make(map[string]*Posting)
		for _, token := range tokens {
			p, exists := termData[token.Term]
			if !exists {
				p = &Posting{Positions: make([]int, 0, 4)}
				termData[token.Term] = p
			}
			p.Frequency++
			p.Positions = append(p.Positions, token.Position)
		}
		analyzed[field] = fieldTerms{terms: termData, length: len(tokens)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docNum := len(m.ids)
	m.ids = append(m.ids, doc.ID)
	for field, ft := range analyzed {
		fb, ok := m.fields[field]
		if !ok {
			fb = &fieldBuffer{postings: make(map[string]PostingList)}
			m.fields[field] = fb
		}
		for len(fb.lengths) < docNum {
			fb.lengths = append(fb.lengths, 0)
		}
		fb.lengths = append(fb.lengths, int32(ft.length))
		if ft.length > 0 {
			fb.stats.DocCount++
			fb.stats.SumTotalTermFreq += int64(ft.length)
		}
		for term, posting := range ft.terms {
			posting.Doc = docNum
			fb.postings[term] = append(fb.postings[term], *posting)
			m.size += int64(len(term) + len(posting.Positions)*8 + 32)
		}
	}
	m.size += int64(len(doc.ID) + 16)
	return nil
}

// Build freezes the buffered documents into an immutable segment. The buffer
// remains usable; later additions are not visible to the returned segment.
func (m *MemoryIndex) Build(name string) *MemSegment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.build(name)
}

// Drain builds the buffered documents into a segment and empties the buffer
// atomically, so documents added concurrently land in the next segment.
func (m *MemoryIndex) Drain(name string) *MemSegment {
	m.mu.Lock()
	defer m.mu.Unlock()
	seg := m.build(name)
	m.ids = nil
	m.fields = make(map[string]*fieldBuffer)
	m.size = 0
	return seg
}

func (m *MemoryIndex) build(name string) *MemSegment {
	seg := &MemSegment{
		name:   name,
		ids:    append([]string(nil), m.ids...),
		fields: make(map[string]*fieldData, len(m.fields)),
	}
	for field, fb := range m.fields {
		fd := &fieldData{
			terms:   make(map[string]PostingList, len(fb.postings)),
			ttf:     make(map[string]int64, len(fb.postings)),
			lengths: append([]int32(nil), fb.lengths...),
			stats:   fb.stats,
		}
		for term, pl := range fb.postings {
			fd.terms[term] = pl[:len(pl):len(pl)]
			var ttf int64
			for _, p := range pl {
				ttf += int64(p.Frequency)
			}
			fd.ttf[term] = ttf
		}
		seg.fields[field] = fd
	}
	return seg
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// MemSegment is a segment held entirely in memory.
type MemSegment struct {
	name   string
	ids    []string
	fields map[string]*fieldData
}

type fieldData struct {
	terms   map[string]PostingList
	ttf     map[string]int64
	lengths []int32
	stats   FieldStats
}

// TermEntry is one term's postings, used when serialising a segment.
type TermEntry struct {
	Term          Term
	TotalTermFreq int64
	Postings      PostingList
}

// FieldEntry carries the per-field data of a serialised segment.
type FieldEntry struct {
	Stats   FieldStats
	Lengths []int32
}

// NewMemSegment assembles a segment from decoded parts.
func NewMemSegment(name string, ids []string, fields map[string]FieldEntry, entries []TermEntry) *MemSegment {
	seg := &MemSegment{name: name, ids: ids, fields: make(map[string]*fieldData, len(fields))}
	for field, fe := range fields {
		seg.fields[field] = &fieldData{
			terms:   make(map[string]PostingList),
			ttf:     make(map[string]int64),
			lengths: fe.Lengths,
			stats:   fe.Stats,
		}
	}
	for _, e := range entries {
		fd, ok := seg.fields[e.Term.Field]
		if !ok {
			fd = &fieldData{terms: make(map[string]PostingList), ttf: make(map[string]int64)}
			seg.fields[e.Term.Field] = fd
		}
		fd.terms[e.Term.Text] = e.Postings
		fd.ttf[e.Term.Text] = e.TotalTermFreq
	}
	return seg
}

func (s *MemSegment) Name() string { return s.name }

func (s *MemSegment) MaxDoc() int { return len(s.ids) }

func (s *MemSegment) DocID(doc int) string { return s.ids[doc] }

func (s *MemSegment) Postings(t Term) (PostingList, error) {
	fd, ok := s.fields[t.Field]
	if !ok {
		return nil, nil
	}
	return fd.terms[t.Text], nil
}

func (s *MemSegment) TermStats(t Term) TermStats {
	fd, ok := s.fields[t.Field]
	if !ok {
		return TermStats{}
	}
	return TermStats{DocFreq: int64(len(fd.terms[t.Text])), TotalTermFreq: fd.ttf[t.Text]}
}

func (s *MemSegment) FieldStats(field string) FieldStats {
	if fd, ok := s.fields[field]; ok {
		return fd.stats
	}
	return FieldStats{}
}

func (s *MemSegment) FieldLength(field string, doc int) int {
	fd, ok := s.fields[field]
	if !ok || doc >= len(fd.lengths) {
		return 0
	}
	return int(fd.lengths[doc])
}

// IDs returns the external document ids in document order.
func (s *MemSegment) IDs() []string { return s.ids }

// Fields returns per-field statistics and lengths keyed by field name.
func (s *MemSegment) Fields() map[string]FieldEntry {
	out := make(map[string]FieldEntry, len(s.fields))
	for field, fd := range s.fields {
		out[field] = FieldEntry{Stats: fd.stats, Lengths: fd.lengths}
	}
	return out
}

// Entries lists every term with its postings, sorted by field then text.
func (s *MemSegment) Entries() []TermEntry {
	var entries []TermEntry
	for field, fd := range s.fields {
		for text, pl := range fd.terms {
			entries = append(entries, TermEntry{
				Term:          Term{Field: field, Text: text},
				TotalTermFreq: fd.ttf[text],
				Postings:      pl,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term.Less(entries[j].Term)
	})
	return entries
}
