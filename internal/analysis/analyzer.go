// Package analysis turns field text into positioned tokens. Analyzers are
// looked up by name from a Registry; the same registry serves index-time
// analysis and query-time term extraction for match and term_stat queries.
package analysis

import (
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"
)

// Token represents a single normalised term and its position in the
// original text. Positions are 0-based and count every word of the input,
// so removed stop-words leave gaps.
type Token struct {
	Term     string
	Position int
}

// Analyzer converts text into tokens.
type Analyzer interface {
	Name() string
	Analyze(text string) []Token
}

// Registry holds named analyzers. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	analyzers map[string]Analyzer
}

// NewRegistry returns a registry pre-populated with the built-in analyzers:
// standard, simple, english, whitespace and keyword.
func NewRegistry() *Registry {
	r := &Registry{analyzers: make(map[string]Analyzer)}
	for _, a := range []Analyzer{
		Standard(),
		Simple(),
		English(),
		Whitespace(),
		Keyword(),
	} {
		r.analyzers[a.Name()] = a
	}
	return r
}

// Register adds or replaces an analyzer.
func (r *Registry) Register(a Analyzer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyzers[a.Name()] = a
}

// Get returns the analyzer registered under name.
func (r *Registry) Get(name string) (Analyzer, error) {
	r.mu.RLock()
	a, ok := r.analyzers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.AnalyzerNotFound(name)
	}
	return a, nil
}

// Names lists registered analyzer names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.analyzers))
	for name := range r.analyzers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Terms analyzes text and returns only the term strings.
func Terms(a Analyzer, text string) []string {
	tokens := a.Analyze(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

// MustGet is Get for analyzers known to exist, such as the built-ins.
func (r *Registry) MustGet(name string) Analyzer {
	a, err := r.Get(name)
	if err != nil {
		panic(fmt.Sprintf("analysis: %v", err))
	}
	return a
}
