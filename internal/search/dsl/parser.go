// Package dsl parses the JSON query language into search.Query trees. A query
// is a JSON object with exactly one key naming the query type; the value is
// handed to the ParseFunc registered for that type. Packages outside search
// register their own query types (sltr, ltr, term_stat) on a Parser.
package dsl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
)

// ParseFunc builds a query from the body of its DSL object. Nested queries
// are parsed with p.
type ParseFunc func(ctx context.Context, p *Parser, body json.RawMessage) (search.Query, error)

// Parser is a registry of query types. It is safe for concurrent use.
type Parser struct {
	mu      sync.RWMutex
	parsers map[string]ParseFunc
}

// New returns a parser with the built-in query types registered.
func New() *Parser {
	p := &Parser{parsers: make(map[string]ParseFunc)}
	p.Register("match", parseMatch)
	p.Register("term", parseTerm)
	p.Register("match_all", parseMatchAll)
	p.Register("match_none", parseMatchNone)
	p.Register("bool", parseBool)
	p.Register("constant_score", parseConstantScore)
	p.Register("query_string", parseQueryString)
	return p
}

// Register adds or replaces the parser for a query type.
func (p *Parser) Register(name string, fn ParseFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parsers[name] = fn
}

// Types lists the registered query types in sorted order.
func (p *Parser) Types() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.parsers))
	for name := range p.parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse parses one query object.
func (p *Parser) Parse(ctx context.Context, raw json.RawMessage) (search.Query, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, apperrors.InvalidDefinition("query must be a JSON object: %v", err)
	}
	if len(obj) != 1 {
		return nil, apperrors.InvalidDefinition("query object must have exactly one key, got %d", len(obj))
	}
	var (
		name string
		body json.RawMessage
	)
	for k, v := range obj {
		name, body = k, v
	}
	p.mu.RLock()
	fn, ok := p.parsers[name]
	p.mu.RUnlock()
	if !ok {
		return nil, apperrors.InvalidDefinition("unknown query [%s]", name)
	}
	q, err := fn(ctx, p, body)
	if err != nil {
		return nil, fmt.Errorf("[%s] %w", name, err)
	}
	return q, nil
}

// ParseList parses either a single query object or an array of them.
func (p *Parser) ParseList(ctx context.Context, raw json.RawMessage) ([]search.Query, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] != '[' {
		q, err := p.Parse(ctx, raw)
		if err != nil {
			return nil, err
		}
		return []search.Query{q}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, apperrors.InvalidDefinition("expected an array of queries: %v", err)
	}
	out := make([]search.Query, 0, len(items))
	for _, item := range items {
		q, err := p.Parse(ctx, item)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// Decode unmarshals body into v, rejecting unknown fields.
func Decode(body json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.InvalidDefinition("%v", err)
	}
	return nil
}
