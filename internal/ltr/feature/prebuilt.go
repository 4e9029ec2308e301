package feature

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
)

// PrebuiltFeature wraps a query supplied inline with the request. It has no
// parameters.
type PrebuiltFeature struct {
	name  string
	query search.Query
}

func NewPrebuilt(name string, q search.Query) *PrebuiltFeature {
	return &PrebuiltFeature{name: name, query: q}
}

func (f *PrebuiltFeature) Name() string { return f.name }

func (f *PrebuiltFeature) Kind() Kind { return KindPrebuilt }

func (f *PrebuiltFeature) ToQuery(context.Context, *QueryContext, *Set, Params) (search.Query, error) {
	return f.query, nil
}
