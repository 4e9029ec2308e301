package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
)

const checkInterval = 1024

// Searcher executes queries against a point-in-time reader. It is cheap to
// create and is usually built per request.
type Searcher struct {
	reader      *index.Reader
	analyzers   *analysis.Registry
	schema      index.Schema
	parallelism int
	logger      *slog.Logger
}

type Option func(*Searcher)

func WithAnalyzers(r *analysis.Registry) Option {
	return func(s *Searcher) { s.analyzers = r }
}

func WithSchema(schema index.Schema) Option {
	return func(s *Searcher) { s.schema = schema }
}

// WithParallelism bounds the number of segments scored concurrently.
func WithParallelism(n int) Option {
	return func(s *Searcher) { s.parallelism = n }
}

func NewSearcher(reader *index.Reader, opts ...Option) *Searcher {
	s := &Searcher{
		reader:      reader,
		parallelism: 4,
		logger:      slog.Default().With("component", "searcher"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.analyzers == nil {
		s.analyzers = analysis.NewRegistry()
	}
	return s
}

func (s *Searcher) Reader() *index.Reader { return s.reader }

func (s *Searcher) Analyzers() *analysis.Registry { return s.analyzers }

func (s *Searcher) Schema() index.Schema { return s.schema }

// SearchAnalyzer resolves the search-time analyzer of field.
func (s *Searcher) SearchAnalyzer(field string) (analysis.Analyzer, error) {
	return s.analyzers.Get(s.schema.SearchAnalyzer(field))
}

// TermStats are the reader-wide statistics of t.
func (s *Searcher) TermStats(t index.Term) index.TermStats {
	return s.reader.TermStats(t)
}

func (s *Searcher) FieldStats(field string) index.FieldStats {
	return s.reader.FieldStats(field)
}

// ScoreDoc is one hit. Doc is the reader-global document number.
type ScoreDoc struct {
	Doc   int     `json:"-"`
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

// TopDocs is the result of a search.
type TopDocs struct {
	TotalHits int        `json:"total_hits"`
	Hits      []ScoreDoc `json:"hits"`
	// Cacheable is false when any part of the query was bound to
	// request-time state.
	Cacheable bool `json:"-"`
}

// Search scores every matching document and returns the top n. Segments are
// scored concurrently; each segment gets its own scorer.
func (s *Searcher) Search(ctx context.Context, q Query, n int) (*TopDocs, error) {
	w, err := q.CreateWeight(s)
	if err != nil {
		return nil, err
	}
	leaves := s.reader.Leaves()
	perLeaf := make([][]ScoreDoc, len(leaves))
	hits := make([]int, len(leaves))

	g, gctx := errgroup.WithContext(ctx)
	if s.parallelism > 0 {
		g.SetLimit(s.parallelism)
	}
	for i, leaf := range leaves {
		g.Go(func() error {
			docs, total, err := s.searchLeaf(gctx, w, leaf, n)
			if err != nil {
				return fmt.Errorf("segment %s: %w", leaf.Segment.Name(), err)
			}
			perLeaf[i] = docs
			hits[i] = total
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	top := &TopDocs{Hits: Merge(perLeaf, n), Cacheable: w.Cacheable()}
	for _, h := range hits {
		top.TotalHits += h
	}
	s.logger.Debug("query executed",
		"query", q.String(),
		"segments", len(leaves),
		"total_hits", top.TotalHits,
		"returned", len(top.Hits),
	)
	return top, nil
}

func (s *Searcher) searchLeaf(ctx context.Context, w Weight, leaf index.SegmentContext, n int) ([]ScoreDoc, int, error) {
	scorer, err := w.Scorer(leaf)
	if err != nil {
		return nil, 0, err
	}
	collector := newTopN(n)
	total := 0
	for doc := scorer.NextDoc(); doc != NoMoreDocs; doc = scorer.NextDoc() {
		if total%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}
		score, err := scorer.Score()
		if err != nil {
			return nil, 0, fmt.Errorf("scoring doc %d: %w", doc, err)
		}
		total++
		collector.collect(ScoreDoc{Doc: leaf.DocBase + doc, ID: leaf.Segment.DocID(doc), Score: score})
	}
	return collector.results(), total, nil
}

// Explain describes the score of the reader-global document doc.
func (s *Searcher) Explain(q Query, doc int) (*Explanation, error) {
	leaf, local, ok := s.reader.Leaf(doc)
	if !ok {
		return nil, fmt.Errorf("document %d out of range [0, %d)", doc, s.reader.MaxDoc())
	}
	w, err := q.CreateWeight(s)
	if err != nil {
		return nil, err
	}
	return w.Explain(leaf, local)
}

// RescoreOptions control Rescore. Window is the number of top hits to
// rescore.
type RescoreOptions struct {
	Window        int
	QueryWeight   float32
	RescoreWeight float32
}

// Rescore re-scores the top Window hits of top with q. A hit matched by q
// scores QueryWeight*original + RescoreWeight*rescore; unmatched hits keep
// QueryWeight*original. Hits beyond the window keep their order after the
// rescored window.
func (s *Searcher) Rescore(ctx context.Context, top *TopDocs, q Query, opts RescoreOptions) (*TopDocs, error) {
	window := min(opts.Window, len(top.Hits))
	if window <= 0 {
		return top, nil
	}
	w, err := q.CreateWeight(s)
	if err != nil {
		return nil, err
	}
	rescored := append([]ScoreDoc(nil), top.Hits[:window]...)
	scores, matched, err := s.scoreHits(ctx, w, rescored)
	if err != nil {
		return nil, err
	}
	for i := range rescored {
		hit := &rescored[i]
		base := opts.QueryWeight * hit.Score
		if matched[i] {
			hit.Score = base + opts.RescoreWeight*scores[i]
		} else {
			hit.Score = base
		}
	}
	sortHits(rescored)
	out := &TopDocs{
		TotalHits: top.TotalHits,
		Hits:      append(rescored, top.Hits[window:]...),
		Cacheable: top.Cacheable && w.Cacheable(),
	}
	return out, nil
}

// ScoreHits scores q on the documents of hits. matched[i] is false when q
// does not match hits[i]; its score is then 0. Documents are visited in
// increasing order with one scorer per segment.
func (s *Searcher) ScoreHits(ctx context.Context, q Query, hits []ScoreDoc) (scores []float32, matched []bool, err error) {
	w, err := q.CreateWeight(s)
	if err != nil {
		return nil, nil, err
	}
	return s.scoreHits(ctx, w, hits)
}

func (s *Searcher) scoreHits(ctx context.Context, w Weight, hits []ScoreDoc) ([]float32, []bool, error) {
	scores := make([]float32, len(hits))
	matched := make([]bool, len(hits))
	order := make([]int, len(hits))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return hits[order[a]].Doc < hits[order[b]].Doc })

	var (
		scorer  Scorer
		curLeaf = -1
		err     error
	)
	for _, i := range order {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		doc := hits[i].Doc
		leaf, local, ok := s.reader.Leaf(doc)
		if !ok {
			return nil, nil, fmt.Errorf("document %d out of range", doc)
		}
		if leaf.Ord != curLeaf {
			if scorer, err = w.Scorer(leaf); err != nil {
				return nil, nil, fmt.Errorf("segment %s: %w", leaf.Segment.Name(), err)
			}
			curLeaf = leaf.Ord
		}
		if scorer.DocID() < local {
			scorer.Advance(local)
		}
		if scorer.DocID() != local {
			continue
		}
		v, err := scorer.Score()
		if err != nil {
			return nil, nil, fmt.Errorf("scoring doc %d: %w", doc, err)
		}
		scores[i], matched[i] = v, true
	}
	return scores, matched, nil
}

func sortHits(hits []ScoreDoc) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Doc < hits[j].Doc
	})
}
