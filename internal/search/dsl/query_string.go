package dsl

import (
	"context"
	"encoding/json"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
)

// QueryPlan is the parsed form of a query string such as
// "brown AND cow NOT horse". AND and OR switch the operator for the whole
// query; NOT excludes the next word.
type QueryPlan struct {
	Words        []string
	Operator     string
	ExcludeWords []string
}

// ParseQueryString splits a query string into words and operators. Words
// are analyzed later, with the field's search analyzer.
func ParseQueryString(query string) *QueryPlan {
	plan := &QueryPlan{Operator: "and"}
	excludeNext := false
	for _, word := range strings.Fields(query) {
		switch strings.ToUpper(word) {
		case "AND":
			plan.Operator = "and"
			continue
		case "OR":
			plan.Operator = "or"
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		if excludeNext {
			plan.ExcludeWords = append(plan.ExcludeWords, word)
			excludeNext = false
		} else {
			plan.Words = append(plan.Words, word)
		}
	}
	return plan
}

// Query builds the plan against field.
func (p *QueryPlan) Query(field string) search.Query {
	if len(p.Words) == 0 && len(p.ExcludeWords) == 0 {
		return &search.MatchNoneQuery{Reason: "empty query string"}
	}
	q := &search.BoolQuery{}
	if len(p.Words) > 0 {
		q.Must = []search.Query{&search.MatchQuery{
			Field:    field,
			Text:     strings.Join(p.Words, " "),
			Operator: p.Operator,
			Boost:    1,
		}}
	}
	for _, w := range p.ExcludeWords {
		q.MustNot = append(q.MustNot, &search.MatchQuery{Field: field, Text: w, Boost: 1})
	}
	return q
}

func parseQueryString(_ context.Context, _ *Parser, body json.RawMessage) (search.Query, error) {
	var qs struct {
		Query string `json:"query"`
		Field string `json:"default_field"`
	}
	if err := Decode(body, &qs); err != nil {
		return nil, err
	}
	if qs.Field == "" {
		return nil, apperrors.InvalidDefinition("query_string requires default_field")
	}
	return ParseQueryString(qs.Query).Query(qs.Field), nil
}
