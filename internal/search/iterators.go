package search

import "math"

type allDocs struct {
	maxDoc int
	doc    int
}

// AllDocs iterates every document of a segment with maxDoc documents.
func AllDocs(maxDoc int) DocIterator {
	return &allDocs{maxDoc: maxDoc, doc: -1}
}

func (it *allDocs) DocID() int { return it.doc }

func (it *allDocs) NextDoc() int {
	return it.Advance(it.doc + 1)
}

func (it *allDocs) Advance(target int) int {
	if target <= it.doc {
		return it.doc
	}
	if target >= it.maxDoc {
		it.doc = NoMoreDocs
	} else {
		it.doc = target
	}
	return it.doc
}

func (it *allDocs) Cost() int64 { return int64(it.maxDoc) }

type emptyScorer struct {
	doc int
}

// EmptyScorer matches no documents.
func EmptyScorer() Scorer { return &emptyScorer{doc: -1} }

func (s *emptyScorer) DocID() int { return s.doc }

func (s *emptyScorer) NextDoc() int {
	s.doc = NoMoreDocs
	return s.doc
}

func (s *emptyScorer) Advance(int) int {
	s.doc = NoMoreDocs
	return s.doc
}

func (s *emptyScorer) Cost() int64 { return 0 }

func (s *emptyScorer) Score() (float32, error) { return 0, nil }

func (s *emptyScorer) MaxScore() float32 { return 0 }

// constantScorer scores every document of an iterator with the same value.
type constantScorer struct {
	DocIterator
	score float32
}

// ConstantScorer wraps it so every matching document scores score.
func ConstantScorer(it DocIterator, score float32) Scorer {
	return &constantScorer{DocIterator: it, score: score}
}

func (s *constantScorer) Score() (float32, error) { return s.score, nil }
func (s *constantScorer) MaxScore() float32 { return s.score }

// Disjunction iterates the union of its sub-iterators. After each move every
// sub-iterator is positioned at or after the current document, and those
// positioned exactly on it match.
type Disjunction struct {
	subs []DocIterator
	doc  int
}

func NewDisjunction(subs ...DocIterator) *Disjunction {
	return &Disjunction{subs: subs, doc: -1}
}

func (d *Disjunction) DocID() int { return d.doc }

func (d *Disjunction) NextDoc() int {
	if d.doc == NoMoreDocs {
		return d.doc
	}
	for _, s := range d.subs {
		if s.DocID() <= d.doc {
			s.NextDoc()
		}
	}
	return d.settle()
}

func (d *Disjunction) Advance(target int) int {
	if target <= d.doc {
		return d.doc
	}
	for _, s := range d.subs {
		if s.DocID() < target {
			s.Advance(target)
		}
	}
	return d.settle()
}

func (d *Disjunction) settle() int {
	d.doc = NoMoreDocs
	for _, s := range d.subs {
		if doc := s.DocID(); doc < d.doc {
			d.doc = doc
		}
	}
	return d.doc
}

func (d *Disjunction) Cost() int64 {
	var cost int64
	for _, s := range d.subs {
		cost += s.Cost()
	}
	return cost
}

// Conjunction iterates the intersection of its sub-iterators.
type Conjunction struct {
	lead   DocIterator
	others []DocIterator
	doc    int
}

// NewConjunction requires at least one iterator. The cheapest iterator
// leads.
func NewConjunction(subs ...DocIterator) *Conjunction {
	lead := 0
	for i, s := range subs {
		if s.Cost() < subs[lead].Cost() {
			lead = i
		}
	}
	others := make([]DocIterator, 0, len(subs)-1)
	for i, s := range subs {
		if i != lead {
			others = append(others, s)
		}
	}
	return &Conjunction{lead: subs[lead], others: others, doc: -1}
}

func (c *Conjunction) DocID() int { return c.doc }

func (c *Conjunction) NextDoc() int {
	return c.align(c.lead.NextDoc())
}

func (c *Conjunction) Advance(target int) int {
	if target <= c.doc {
		return c.doc
	}
	return c.align(c.lead.Advance(target))
}

func (c *Conjunction) align(target int) int {
outer:
	for target != NoMoreDocs {
		for _, o := range c.others {
			doc := o.DocID()
			if doc < target {
				doc = o.Advance(target)
			}
			if doc > target {
				target = c.lead.Advance(doc)
				continue outer
			}
		}
		break
	}
	c.doc = target
	return c.doc
}

func (c *Conjunction) Cost() int64 { return c.lead.Cost() }

// exclusion skips documents matched by any prohibited iterator.
type exclusion struct {
	main       DocIterator
	prohibited []DocIterator
}

func (e *exclusion) DocID() int { return e.main.DocID() }

func (e *exclusion) NextDoc() int { return e.skip(e.main.NextDoc()) }

func (e *exclusion) Advance(target int) int {
	if target <= e.main.DocID() {
		return e.main.DocID()
	}
	return e.skip(e.main.Advance(target))
}

func (e *exclusion) skip(doc int) int {
	for doc != NoMoreDocs && e.excluded(doc) {
		doc = e.main.NextDoc()
	}
	return doc
}

func (e *exclusion) excluded(doc int) bool {
	for _, p := range e.prohibited {
		if p.DocID() < doc {
			p.Advance(doc)
		}
		if p.DocID() == doc {
			return true
		}
	}
	return false
}

func (e *exclusion) Cost() int64 { return e.main.Cost() }

func positiveInf() float32 { return float32(math.Inf(1)) }
