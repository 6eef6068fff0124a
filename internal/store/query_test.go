package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestParseQueryOrder(t *testing.T) {
	queries := ParseQuery("foo", Term{Field: "user", Value: "bob"})
	require.Len(t, queries, 2)
	assert.Equal(t, QueryStringQuery{Text: "foo"}, queries[0])
	assert.Equal(t, TermQuery{Field: "user", Value: "bob"}, queries[1])
}

func TestParseQueryTermsOnly(t *testing.T) {
	queries := ParseQuery("",
		Term{Field: "channel", Value: "#dev"},
		Term{Field: "actor", Value: "alice"},
	)
	require.Len(t, queries, 2)
	assert.Equal(t, TermQuery{Field: "channel", Value: "#dev"}, queries[0])
	assert.Equal(t, TermQuery{Field: "actor", Value: "alice"}, queries[1])
}

func TestBuildRequestBodySingleFragment(t *testing.T) {
	body, err := BuildRequestBody([]Query{TermQuery{Field: "actor", Value: "bob"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "bob", gjson.GetBytes(body, "query.term.actor").String())
}

func TestBuildRequestBodyAndComposition(t *testing.T) {
	body, err := BuildRequestBody(ParseQuery("deploy", Term{Field: "channel", Value: "#ops"}), nil)
	require.NoError(t, err)

	filter := gjson.GetBytes(body, "query.constant_score.filter.and")
	require.True(t, filter.IsArray())
	parts := filter.Array()
	require.Len(t, parts, 2)
	// Free-text fragments get nested under a query key inside the filter.
	assert.Equal(t, "deploy", parts[0].Get("query.query_string.query").String())
	assert.Equal(t, "#ops", parts[1].Get("term.channel").String())
}

func TestBuildRequestBodyFacets(t *testing.T) {
	body, err := BuildRequestBody([]Query{MatchAllQuery{}}, []string{"channel", "actor"})
	require.NoError(t, err)
	assert.Equal(t, "channel", gjson.GetBytes(body, "facets.channel.terms.field").String())
	assert.Equal(t, "actor", gjson.GetBytes(body, "facets.actor.terms.field").String())
}

func TestBuildRequestBodyRawBypassesComposition(t *testing.T) {
	raw := RawQuery{Body: map[string]any{"custom": map[string]any{"anything": true}}}
	body, err := BuildRequestBody([]Query{raw}, []string{"channel"})
	require.NoError(t, err)
	// Raw bodies are serialized verbatim: no query wrapper, no facets.
	assert.True(t, gjson.GetBytes(body, "custom.anything").Bool())
	assert.False(t, gjson.GetBytes(body, "query").Exists())
	assert.False(t, gjson.GetBytes(body, "facets").Exists())
}

func TestBuildRequestBodyEmpty(t *testing.T) {
	_, err := BuildRequestBody(nil, nil)
	assert.Error(t, err)
}
