package dsl

import (
	"context"
	"encoding/json"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
)

// singleField unpacks {"<field>": <value>}.
func singleField(body json.RawMessage) (string, json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", nil, apperrors.InvalidDefinition("%v", err)
	}
	if len(obj) != 1 {
		return "", nil, apperrors.InvalidDefinition("expected exactly one field, got %d", len(obj))
	}
	var (
		field string
		value json.RawMessage
	)
	for k, v := range obj {
		field, value = k, v
	}
	return field, value, nil
}

// isString reports whether raw is a JSON string, the short form of match and
// term.
func isString(raw json.RawMessage) bool {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '"':
			return true
		default:
			return false
		}
	}
	return false
}

func boostOrDefault(b *float32) float32 {
	if b == nil {
		return 1
	}
	return *b
}

func parseMatch(_ context.Context, _ *Parser, body json.RawMessage) (search.Query, error) {
	field, value, err := singleField(body)
	if err != nil {
		return nil, err
	}
	q := &search.MatchQuery{Field: field, Boost: 1}
	if isString(value) {
		if err := json.Unmarshal(value, &q.Text); err != nil {
			return nil, apperrors.InvalidDefinition("%v", err)
		}
		return q, nil
	}
	var long struct {
		Query    string   `json:"query"`
		Operator string   `json:"operator"`
		Analyzer string   `json:"analyzer"`
		Boost    *float32 `json:"boost"`
	}
	if err := Decode(value, &long); err != nil {
		return nil, err
	}
	switch long.Operator {
	case "", "or", "OR", "and", "AND":
	default:
		return nil, apperrors.InvalidDefinition("unknown operator [%s]", long.Operator)
	}
	q.Text = long.Query
	q.Operator = long.Operator
	q.Analyzer = long.Analyzer
	q.Boost = boostOrDefault(long.Boost)
	return q, nil
}

func parseTerm(_ context.Context, _ *Parser, body json.RawMessage) (search.Query, error) {
	field, value, err := singleField(body)
	if err != nil {
		return nil, err
	}
	if isString(value) {
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			return nil, apperrors.InvalidDefinition("%v", err)
		}
		return search.NewTermQuery(field, text), nil
	}
	var long struct {
		Value string   `json:"value"`
		Boost *float32 `json:"boost"`
	}
	if err := Decode(value, &long); err != nil {
		return nil, err
	}
	q := search.NewTermQuery(field, long.Value)
	q.Boost = boostOrDefault(long.Boost)
	return q, nil
}

func parseMatchAll(_ context.Context, _ *Parser, body json.RawMessage) (search.Query, error) {
	var opts struct {
		Boost *float32 `json:"boost"`
	}
	if err := Decode(body, &opts); err != nil {
		return nil, err
	}
	return &search.MatchAllQuery{Boost: boostOrDefault(opts.Boost)}, nil
}

func parseMatchNone(context.Context, *Parser, json.RawMessage) (search.Query, error) {
	return &search.MatchNoneQuery{Reason: "match_none"}, nil
}

func parseBool(ctx context.Context, p *Parser, body json.RawMessage) (search.Query, error) {
	var clauses struct {
		Must    json.RawMessage `json:"must"`
		Should  json.RawMessage `json:"should"`
		Filter  json.RawMessage `json:"filter"`
		MustNot json.RawMessage `json:"must_not"`
	}
	if err := Decode(body, &clauses); err != nil {
		return nil, err
	}
	q := &search.BoolQuery{}
	var err error
	if q.Must, err = p.ParseList(ctx, clauses.Must); err != nil {
		return nil, err
	}
	if q.Should, err = p.ParseList(ctx, clauses.Should); err != nil {
		return nil, err
	}
	if q.Filter, err = p.ParseList(ctx, clauses.Filter); err != nil {
		return nil, err
	}
	if q.MustNot, err = p.ParseList(ctx, clauses.MustNot); err != nil {
		return nil, err
	}
	return q, nil
}

func parseConstantScore(ctx context.Context, p *Parser, body json.RawMessage) (search.Query, error) {
	var cs struct {
		Filter json.RawMessage `json:"filter"`
		Boost  *float32        `json:"boost"`
	}
	if err := Decode(body, &cs); err != nil {
		return nil, err
	}
	if len(cs.Filter) == 0 {
		return nil, apperrors.InvalidDefinition("constant_score requires a filter")
	}
	filter, err := p.Parse(ctx, cs.Filter)
	if err != nil {
		return nil, err
	}
	return &search.ConstantScoreQuery{Filter: filter, Boost: boostOrDefault(cs.Boost)}, nil
}
