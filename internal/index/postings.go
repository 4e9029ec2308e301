package index

import "sort"

// PostingsIterator walks a PostingList in document order.
type PostingsIterator struct {
	list PostingList
	i    int
	doc  int
}

// Iterator returns an iterator positioned before the first document.
func (pl PostingList) Iterator() *PostingsIterator {
	return &PostingsIterator{list: pl, i: -1, doc: -1}
}

// DocID returns the current document, -1 before the first call to NextDoc or
// Advance, NoMoreDocs once exhausted.
func (it *PostingsIterator) DocID() int {
	return it.doc
}

func (it *PostingsIterator) NextDoc() int {
	it.i++
	return it.settle()
}

// Advance moves to the first document >= target.
func (it *PostingsIterator) Advance(target int) int {
	if it.doc >= target {
		return it.doc
	}
	start := it.i + 1
	n := sort.Search(len(it.list)-start, func(k int) bool {
		return it.list[start+k].Doc >= target
	})
	it.i = start + n
	return it.settle()
}

func (it *PostingsIterator) settle() int {
	if it.i >= len(it.list) {
		it.i = len(it.list)
		it.doc = NoMoreDocs
	} else {
		it.doc = it.list[it.i].Doc
	}
	return it.doc
}

// Freq is the term frequency in the current document.
func (it *PostingsIterator) Freq() int {
	return it.list[it.i].Frequency
}

// Positions are the 0-based token positions in the current document.
func (it *PostingsIterator) Positions() []int {
	return it.list[it.i].Positions
}

// Cost is the number of documents the iterator can visit.
func (it *PostingsIterator) Cost() int64 {
	return int64(len(it.list))
}
