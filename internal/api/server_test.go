package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/chanlog/chanlog/internal/store"
)

const stubSearchResponse = `{
	"took": 3,
	"timed_out": false,
	"hits": {
		"total": 1,
		"hits": [
			{"_source": {"time": "2025-06-01T10:00:00Z", "actor": "alice", "channel": "#dev", "kind": "MESSAGE", "payload": "hello", "origin": "irc"}}
		]
	},
	"facets": {
		"channel": {"terms": [{"term": "#dev", "count": 1}]},
		"actor": {"terms": [{"term": "alice", "count": 1}]}
	}
}`

func serverFixture(t *testing.T, storeHandler http.HandlerFunc) *Server {
	t.Helper()
	es := httptest.NewServer(storeHandler)
	t.Cleanup(es.Close)

	client, err := store.NewClient(store.ClientConfig{Nodes: []string{es.URL}, Timeout: time.Second})
	require.NoError(t, err)
	manager := store.NewManager(client, "chatlines", "chatline")
	return NewServer(manager, NewHub(), []string{"#dev", "#ops"})
}

func TestSearchEndpoint(t *testing.T) {
	var gotPath, gotSort string
	srv := serverFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSort = r.URL.Query().Get("sort")
		_, _ = w.Write([]byte(stubSearchResponse))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=hello&channel=%23dev", nil)
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/chatlines/chatline/_search", gotPath)
	assert.Equal(t, "time:desc", gotSort)

	body := w.Body.String()
	assert.Equal(t, int64(1), gjson.Get(body, "total").Int())
	assert.Equal(t, "alice", gjson.Get(body, "results.0.actor").String())
	assert.Equal(t, "hello", gjson.Get(body, "results.0.payload").String())
	assert.Equal(t, "#dev", gjson.Get(body, "facets.channel.0.term").String())
}

func TestSearchEndpointRejectsBadPagination(t *testing.T) {
	srv := serverFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("store must not be reached for invalid input")
	})

	tests := []struct {
		name string
		url  string
	}{
		{"non-numeric size", "/api/search?size=banana"},
		{"non-numeric from", "/api/search?from=x"},
		{"negative from", "/api/search?from=-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSearchEndpointMapsStoreFailures(t *testing.T) {
	t.Run("store error", func(t *testing.T) {
		srv := serverFixture(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error": "IndexMissingException"}`))
		})
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search?q=x", nil))
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), "IndexMissingException")
	})

	t.Run("no nodes", func(t *testing.T) {
		client, err := store.NewClient(store.ClientConfig{Nodes: []string{"127.0.0.1:1"}, Timeout: 200 * time.Millisecond})
		require.NoError(t, err)
		srv := NewServer(store.NewManager(client, "chatlines", "chatline"), NewHub(), nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search?q=x", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestChannelsEndpoint(t *testing.T) {
	srv := serverFixture(t, func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/channels", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "#dev", gjson.Get(w.Body.String(), "channels.0").String())

	srv.SetChannels([]string{"#only"})
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/channels", nil))
	res := gjson.Get(w.Body.String(), "channels")
	require.True(t, res.IsArray())
	require.Len(t, res.Array(), 1)
	assert.Equal(t, "#only", res.Array()[0].String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := serverFixture(t, func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
