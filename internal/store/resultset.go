package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/chanlog/chanlog/internal/event"
)

// DefaultPageSize is the page size a fresh result set requests.
const DefaultPageSize = 100

// FacetTerm is one term/count pair from a terms facet, in server order.
type FacetTerm struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// ResultSet is a deferred, cacheable, chainable query over the store. It
// owns one query under construction; every mutation (filter, ordering,
// facets, pagination) marks the set dirty, and the next evaluating call
// (Count, Documents, Facets, At) performs exactly one store round trip and
// re-validates the cache.
type ResultSet struct {
	client  *Client
	index   string
	doctype string

	queries     []Query
	orderBy     string
	facetFields []string
	size        int
	offset      int

	needsRefresh bool

	docs     []*event.Event
	facets   map[string][]FacetTerm
	total    int64
	tookMS   int64
	timedOut bool
}

// NewResultSet builds a dirty result set over the given fragments.
func NewResultSet(client *Client, index, doctype string, queries []Query) *ResultSet {
	return &ResultSet{
		client:       client,
		index:        index,
		doctype:      doctype,
		queries:      queries,
		size:         DefaultPageSize,
		needsRefresh: true,
	}
}

// NeedsRefresh reports whether the cache is stale.
func (rs *ResultSet) NeedsRefresh() bool {
	return rs.needsRefresh
}

// Filter appends fragments parsed from text and pairs, and marks the set
// dirty. Returns the same set for chaining.
func (rs *ResultSet) Filter(text string, pairs ...Term) *ResultSet {
	rs.queries = append(rs.queries, ParseQuery(text, pairs...)...)
	rs.needsRefresh = true
	return rs
}

// OrderBy sorts by the given field, ascending. A leading '-' on the field
// name sorts descending. Marks the set dirty.
func (rs *ResultSet) OrderBy(field string) *ResultSet {
	order := "asc"
	if strings.HasPrefix(field, "-") {
		order = "desc"
		field = field[1:]
	}
	rs.orderBy = field + ":" + order
	rs.needsRefresh = true
	return rs
}

// FacetBy requests a terms facet per field and marks the set dirty.
func (rs *ResultSet) FacetBy(fields ...string) *ResultSet {
	rs.facetFields = append(rs.facetFields, fields...)
	rs.needsRefresh = true
	return rs
}

// Slice sets the page window to [start, stop) and returns the same lazy
// set without evaluating it. stop <= 0 leaves the current size in place.
// Slicing always dirties the set, even when the bounds are unchanged, so
// callers must not assume slicing is idempotent with respect to caching.
func (rs *ResultSet) Slice(start, stop int) (*ResultSet, error) {
	if start < 0 || stop < 0 {
		return nil, fmt.Errorf("%w: negative slice bounds [%d:%d]", ErrInvalidQuery, start, stop)
	}
	if stop > 0 && stop < start {
		return nil, fmt.Errorf("%w: slice stop %d precedes start %d", ErrInvalidQuery, stop, start)
	}
	rs.offset = start
	if stop > 0 {
		rs.size = stop - start
	}
	rs.needsRefresh = true
	return rs, nil
}

// At materializes the set if needed and returns the document at position i
// within the current page.
func (rs *ResultSet) At(ctx context.Context, i int) (*event.Event, error) {
	if i < 0 {
		return nil, fmt.Errorf("%w: negative index %d", ErrInvalidQuery, i)
	}
	docs, err := rs.Documents(ctx)
	if err != nil {
		return nil, err
	}
	if i >= len(docs) {
		return nil, fmt.Errorf("%w: index %d out of range (%d documents)", ErrInvalidQuery, i, len(docs))
	}
	return docs[i], nil
}

// Count evaluates the query if needed and returns the total hit count.
func (rs *ResultSet) Count(ctx context.Context) (int64, error) {
	if err := rs.refreshIfNeeded(ctx); err != nil {
		return 0, err
	}
	return rs.total, nil
}

// Documents evaluates the query if needed and returns the current page of
// documents mapped back into events.
func (rs *ResultSet) Documents(ctx context.Context) ([]*event.Event, error) {
	if err := rs.refreshIfNeeded(ctx); err != nil {
		return nil, err
	}
	return rs.docs, nil
}

// Facets evaluates the query if needed and returns the facet terms per
// faceted field.
func (rs *ResultSet) Facets(ctx context.Context) (map[string][]FacetTerm, error) {
	if err := rs.refreshIfNeeded(ctx); err != nil {
		return nil, err
	}
	return rs.facets, nil
}

// TookMillis reports how long the store said the last evaluation took.
// Only valid after an evaluating call succeeded.
func (rs *ResultSet) TookMillis() int64 {
	return rs.tookMS
}

// TimedOut reports whether the store flagged the last evaluation as timed
// out. Only valid after an evaluating call succeeded.
func (rs *ResultSet) TimedOut() bool {
	return rs.timedOut
}

func (rs *ResultSet) refreshIfNeeded(ctx context.Context) error {
	if !rs.needsRefresh {
		return nil
	}
	queries := rs.queries
	if len(queries) == 0 {
		queries = []Query{MatchAllQuery{}}
	}
	body, err := BuildRequestBody(queries, rs.facetFields)
	if err != nil {
		return err
	}
	res, err := rs.client.Search(ctx, rs.index, rs.doctype, body, rs.orderBy, rs.size, rs.offset)
	if err != nil {
		return err
	}
	rs.parseResponse(res)
	rs.needsRefresh = false
	return nil
}

// parseResponse pulls hits, totals, facets and timing out of a raw search
// response.
func (rs *ResultSet) parseResponse(res gjson.Result) {
	rs.tookMS = res.Get("took").Int()
	rs.timedOut = res.Get("timed_out").Bool()
	rs.total = res.Get("hits.total").Int()

	hits := res.Get("hits.hits").Array()
	rs.docs = make([]*event.Event, 0, len(hits))
	for _, hit := range hits {
		src, ok := hit.Get("_source").Value().(map[string]any)
		if !ok {
			continue
		}
		rs.docs = append(rs.docs, event.FromDocument(src))
	}

	rs.facets = make(map[string][]FacetTerm)
	res.Get("facets").ForEach(func(field, block gjson.Result) bool {
		terms := block.Get("terms").Array()
		fl := make([]FacetTerm, 0, len(terms))
		for _, t := range terms {
			fl = append(fl, FacetTerm{Term: t.Get("term").String(), Count: t.Get("count").Int()})
		}
		rs.facets[field.String()] = fl
		return true
	})
}
