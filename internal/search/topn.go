package search

import "container/heap"

// topN keeps the n best hits seen so far.
type topN struct {
	n int
	h scoreDocHeap
}

func newTopN(n int) *topN {
	if n <= 0 {
		n = 10
	}
	return &topN{n: n, h: make(scoreDocHeap, 0, n+1)}
}

func (t *topN) collect(d ScoreDoc) {
	heap.Push(&t.h, d)
	if t.h.Len() > t.n {
		heap.Pop(&t.h)
	}
}

func (t *topN) results() []ScoreDoc {
	result := make([]ScoreDoc, t.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&t.h).(ScoreDoc)
	}
	return result
}

// Merge combines per-segment results into the global top limit, ordered by
// descending score then ascending document.
func Merge(results [][]ScoreDoc, limit int) []ScoreDoc {
	t := newTopN(limit)
	for _, docs := range results {
		for _, doc := range docs {
			t.collect(doc)
		}
	}
	return t.results()
}

type scoreDocHeap []ScoreDoc

func (h scoreDocHeap) Len() int { return len(h) }

func (h scoreDocHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Doc > h[j].Doc
}

func (h scoreDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoreDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ScoreDoc))
}

func (h *scoreDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
