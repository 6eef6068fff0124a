package store

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/sjson"
)

// Query is one fragment of a search request. Fragments compose via AndQuery
// and serialize into the request body with BuildRequestBody.
type Query interface {
	// Fragment returns the fragment's JSON-serializable form.
	Fragment() map[string]any
}

// TermQuery matches documents whose field holds exactly the given value.
type TermQuery struct {
	Field string
	Value string
}

// Fragment implements Query.
func (q TermQuery) Fragment() map[string]any {
	return map[string]any{"term": map[string]any{q.Field: q.Value}}
}

// QueryStringQuery evaluates a free-text query string (Lucene syntax).
type QueryStringQuery struct {
	Text string
}

// Fragment implements Query.
func (q QueryStringQuery) Fragment() map[string]any {
	return map[string]any{"query_string": map[string]any{"query": q.Text}}
}

// MatchAllQuery matches every document.
type MatchAllQuery struct{}

// Fragment implements Query.
func (MatchAllQuery) Fragment() map[string]any {
	return map[string]any{"match_all": map[string]any{}}
}

// RawQuery carries an arbitrary request body and bypasses composition
// entirely. Useful for debugging and one-offs.
type RawQuery struct {
	Body map[string]any
}

// Fragment implements Query.
func (q RawQuery) Fragment() map[string]any {
	return q.Body
}

// AndQuery wraps its fragments in a constant-score filter so the ANDed
// constraints do not affect relevance scoring. Free-text fragments have to
// be nested under a "query" key inside the filter.
type AndQuery struct {
	Queries []Query
}

// Fragment implements Query.
func (q AndQuery) Fragment() map[string]any {
	parts := make([]map[string]any, 0, len(q.Queries))
	for _, sub := range q.Queries {
		if _, ok := sub.(QueryStringQuery); ok {
			parts = append(parts, map[string]any{"query": sub.Fragment()})
			continue
		}
		parts = append(parts, sub.Fragment())
	}
	return map[string]any{
		"constant_score": map[string]any{
			"filter": map[string]any{"and": parts},
		},
	}
}

// Term is one field/value equality pair for ParseQuery. Pairs keep their
// caller-supplied order.
type Term struct {
	Field string
	Value string
}

// ParseQuery turns a free-text string plus ordered field/value pairs into
// composable fragments: one QueryStringQuery when text is non-empty,
// followed by one TermQuery per pair.
func ParseQuery(text string, pairs ...Term) []Query {
	queries := make([]Query, 0, len(pairs)+1)
	if text != "" {
		queries = append(queries, QueryStringQuery{Text: text})
	}
	for _, p := range pairs {
		queries = append(queries, TermQuery{Field: p.Field, Value: p.Value})
	}
	return queries
}

// BuildRequestBody serializes fragments into a search request body. A
// top-level RawQuery is serialized verbatim; a single fragment is used
// directly; multiple fragments are ANDed. Each facet field attaches a terms
// facet block keyed by the field name.
func BuildRequestBody(queries []Query, facetFields []string) ([]byte, error) {
	if len(queries) == 0 {
		return nil, fmt.Errorf("store: request body needs at least one query")
	}

	if raw, ok := queries[0].(RawQuery); ok && len(queries) == 1 {
		return json.Marshal(raw.Fragment())
	}

	var query Query
	if len(queries) == 1 {
		query = queries[0]
	} else {
		query = AndQuery{Queries: queries}
	}

	body, err := json.Marshal(map[string]any{"query": query.Fragment()})
	if err != nil {
		return nil, fmt.Errorf("store: encode query: %w", err)
	}
	for _, field := range facetFields {
		body, err = sjson.SetBytes(body, "facets."+field+".terms.field", field)
		if err != nil {
			return nil, fmt.Errorf("store: attach facet %q: %w", field, err)
		}
	}
	return body, nil
}
