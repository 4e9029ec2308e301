package index

import "sort"

// SegmentContext locates a segment within a Reader.
type SegmentContext struct {
	Segment Segment
	Ord     int
	DocBase int
}

// Reader is a point-in-time view over a fixed list of segments. Global
// document numbers are DocBase + segment-local numbers.
type Reader struct {
	leaves []SegmentContext
	maxDoc int
}

func NewReader(segments ...Segment) *Reader {
	r := &Reader{leaves: make([]SegmentContext, 0, len(segments))}
	for i, seg := range segments {
		r.leaves = append(r.leaves, SegmentContext{Segment: seg, Ord: i, DocBase: r.maxDoc})
		r.maxDoc += seg.MaxDoc()
	}
	return r
}

func (r *Reader) Leaves() []SegmentContext { return r.leaves }

func (r *Reader) MaxDoc() int { return r.maxDoc }

// TermStats sums the term's statistics over every segment.
func (r *Reader) TermStats(t Term) TermStats {
	var stats TermStats
	for _, leaf := range r.leaves {
		stats = stats.Add(leaf.Segment.TermStats(t))
	}
	return stats
}

// FieldStats sums the field's statistics over every segment.
func (r *Reader) FieldStats(field string) FieldStats {
	var stats FieldStats
	for _, leaf := range r.leaves {
		stats = stats.Add(leaf.Segment.FieldStats(field))
	}
	return stats
}

// Leaf returns the segment containing the global document doc and the
// segment-local document number.
func (r *Reader) Leaf(doc int) (SegmentContext, int, bool) {
	if doc < 0 || doc >= r.maxDoc {
		return SegmentContext{}, 0, false
	}
	i := sort.Search(len(r.leaves), func(i int) bool {
		return r.leaves[i].DocBase+r.leaves[i].Segment.MaxDoc() > doc
	})
	leaf := r.leaves[i]
	return leaf, doc - leaf.DocBase, true
}

// DocID maps a global document number to the external id.
func (r *Reader) DocID(doc int) (string, bool) {
	leaf, local, ok := r.Leaf(doc)
	if !ok {
		return "", false
	}
	return leaf.Segment.DocID(local), true
}
