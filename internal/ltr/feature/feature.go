// Package feature defines LTR features and feature sets. A feature turns
// request parameters into a search.Query whose score becomes one slot of the
// feature vector. Features are compiled once from their stored definitions
// and are immutable afterwards; every request binds them again through
// ToQuery.
package feature

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/settings"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/termstat"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search/dsl"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
)

type Kind int

const (
	KindStored Kind = iota
	KindTemplate
	KindScript
	KindDerived
	KindPrebuilt
)

func (k Kind) String() string {
	switch k {
	case KindStored:
		return "stored"
	case KindTemplate:
		return "template"
	case KindScript:
		return "script"
	case KindDerived:
		return "derived"
	case KindPrebuilt:
		return "prebuilt"
	default:
		return "unknown"
	}
}

// Params are the request parameters a feature is bound with.
type Params map[string]any

// Feature is one named signal of a feature set.
type Feature interface {
	Name() string
	Kind() Kind
	// ToQuery binds the feature to params. Every required parameter must be
	// present.
	ToQuery(ctx context.Context, qc *QueryContext, set *Set, params Params) (search.Query, error)
}

// QueryContext carries what features need from the host to build queries.
type QueryContext struct {
	Analyzers *analysis.Registry
	Schema    index.Schema
	Parser    *dsl.Parser
	Settings  *settings.Settings
	StatsMode termstat.Mode
}

// SearchAnalyzer resolves the analyzer used for field at query time.
func (qc *QueryContext) SearchAnalyzer(field string) (analysis.Analyzer, error) {
	return qc.Analyzers.Get(qc.Schema.SearchAnalyzer(field))
}

// Optimize returns the precompiled form of f when there is one.
func Optimize(f Feature) Feature {
	switch f := f.(type) {
	case *Stored:
		return f.optimized
	default:
		return f
	}
}

// Validate checks f against the set it belongs to.
func Validate(f Feature, set *Set) error {
	switch f := f.(type) {
	case *Stored:
		return Validate(f.optimized, set)
	case *DerivedFeature:
		return f.validate(set)
	default:
		return nil
	}
}
