// Package store implements the Elasticsearch-compatible document store
// layer: a failover-aware HTTP client, a composable query DSL, a lazily
// evaluated result set, and a manager bound to one index/doctype pair.
package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/chanlog/chanlog/internal/metrics"
)

// DefaultTimeout is the per-attempt transport timeout when none is
// configured.
const DefaultTimeout = 10 * time.Second

// ClientConfig configures a store client.
type ClientConfig struct {
	// Nodes is the list of cluster node addresses, e.g. "localhost:9200" or
	// "http://es1:9200". Must contain at least one entry.
	Nodes []string `yaml:"nodes" json:"nodes"`

	// Timeout is the per-attempt transport timeout. Zero means
	// DefaultTimeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// MaxAttempts bounds how many nodes a single request may try.
	// <= 0 means all configured nodes.
	MaxAttempts int `yaml:"max-attempts" json:"max-attempts"`
}

// Client sends HTTP requests to a cluster of document store nodes. It keeps
// a failure score per node and walks nodes in score order on every request,
// so a request only fails once every eligible node has failed at the
// transport level.
type Client struct {
	httpc *http.Client
	nodes []string

	mu    sync.Mutex
	score map[string]int

	maxAttempts int
}

// NewClient builds a Client from cfg. It returns an error when no nodes are
// configured.
func NewClient(cfg ClientConfig) (*Client, error) {
	if len(cfg.Nodes) == 0 {
		return nil, fmt.Errorf("store: at least one cluster node is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 || maxAttempts > len(cfg.Nodes) {
		maxAttempts = len(cfg.Nodes)
	}
	nodes := make([]string, len(cfg.Nodes))
	score := make(map[string]int, len(cfg.Nodes))
	for i, n := range cfg.Nodes {
		nodes[i] = normalizeNode(n)
		score[nodes[i]] = 0
	}
	return &Client{
		httpc:       &http.Client{Timeout: timeout},
		nodes:       nodes,
		score:       score,
		maxAttempts: maxAttempts,
	}, nil
}

func normalizeNode(node string) string {
	if !strings.Contains(node, "://") {
		node = "http://" + node
	}
	return strings.TrimRight(node, "/")
}

// Scores returns a copy of the node failure score table.
func (c *Client) Scores() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.score))
	for k, v := range c.score {
		out[k] = v
	}
	return out
}

// rankedNodes returns up to maxAttempts node addresses ordered by ascending
// failure score, original configuration order breaking ties.
func (c *Client) rankedNodes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ranked := make([]string, len(c.nodes))
	copy(ranked, c.nodes)
	index := make(map[string]int, len(c.nodes))
	for i, n := range c.nodes {
		index[n] = i
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := c.score[ranked[i]], c.score[ranked[j]]
		if si != sj {
			return si < sj
		}
		return index[ranked[i]] < index[ranked[j]]
	})
	if len(ranked) > c.maxAttempts {
		ranked = ranked[:c.maxAttempts]
	}
	return ranked
}

func (c *Client) markFailed(node string) {
	c.mu.Lock()
	c.score[node]--
	c.mu.Unlock()
	metrics.NodeFailovers.Inc()
}

// Request sends one request to the cluster, failing over across nodes on
// transport-level errors (connect failures, timeouts, unreadable or
// non-JSON bodies). A well-formed response whose body carries a top-level
// "error" field is escalated to *StoreError and not retried; exhausting all
// eligible nodes yields *NoNodesError wrapping the last transport failure.
func (c *Client) Request(ctx context.Context, method, pathSuffix string, body []byte, params url.Values) (gjson.Result, error) {
	nodes := c.rankedNodes()

	suffix := pathSuffix
	if len(params) > 0 {
		suffix += "?" + params.Encode()
	}

	var lastErr error
	attempts := 0
	for _, node := range nodes {
		attempts++
		res, err := c.attempt(ctx, method, node+suffix, body)
		if err != nil {
			lastErr = err
			c.markFailed(node)
			log.WithFields(log.Fields{
				"node":   node,
				"method": method,
				"path":   pathSuffix,
			}).Debugf("store node failed, trying next: %v", err)
			continue
		}
		if errField := res.body.Get("error"); errField.Exists() {
			metrics.StoreRequests.WithLabelValues("store_error").Inc()
			return gjson.Result{}, &StoreError{StatusCode: res.status, Reason: errField.String()}
		}
		metrics.StoreRequests.WithLabelValues("ok").Inc()
		return res.body, nil
	}

	metrics.StoreRequests.WithLabelValues("no_nodes").Inc()
	return gjson.Result{}, &NoNodesError{Attempts: attempts, Err: lastErr}
}

type attemptResult struct {
	status int
	body   gjson.Result
}

// attempt performs a single HTTP exchange against one node. Every error it
// returns is transport-level by definition.
func (c *Client) attempt(ctx context.Context, method, rawurl string, body []byte) (attemptResult, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawurl, reader)
	if err != nil {
		return attemptResult{}, err
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return attemptResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return attemptResult{}, err
	}
	if !gjson.ValidBytes(raw) {
		return attemptResult{}, fmt.Errorf("malformed response from %s (%d bytes)", rawurl, len(raw))
	}
	return attemptResult{status: resp.StatusCode, body: gjson.ParseBytes(raw)}, nil
}

// Search runs a query body against one index/doctype. orderBy, size and
// offset are passed through as the sort/size/from URL parameters; zero
// values are omitted.
func (c *Client) Search(ctx context.Context, index, doctype string, queryBody []byte, orderBy string, size, offset int) (gjson.Result, error) {
	params := url.Values{}
	if size > 0 {
		params.Set("size", strconv.Itoa(size))
	}
	if offset > 0 {
		params.Set("from", strconv.Itoa(offset))
	}
	if orderBy != "" {
		params.Set("sort", orderBy)
	}
	return c.Request(ctx, http.MethodGet, fmt.Sprintf("/%s/%s/_search", index, doctype), queryBody, params)
}

// Index stores one document. With an id the document is PUT at that id,
// otherwise the store assigns one via POST.
func (c *Client) Index(ctx context.Context, doc map[string]any, index, doctype, id string) (gjson.Result, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("store: encode document: %w", err)
	}
	if id != "" {
		return c.Request(ctx, http.MethodPut, fmt.Sprintf("/%s/%s/%s", index, doctype, id), body, nil)
	}
	return c.Request(ctx, http.MethodPost, fmt.Sprintf("/%s/%s/", index, doctype), body, nil)
}

// Get fetches a single document by id.
func (c *Client) Get(ctx context.Context, index, doctype, id string) (gjson.Result, error) {
	return c.Request(ctx, http.MethodGet, fmt.Sprintf("/%s/%s/%s", index, doctype, id), nil, nil)
}

// DeleteByID removes a single document by id.
func (c *Client) DeleteByID(ctx context.Context, index, doctype, id string) (gjson.Result, error) {
	return c.Request(ctx, http.MethodDelete, fmt.Sprintf("/%s/%s/%s", index, doctype, id), nil, nil)
}

// DeleteByQuery removes every document matching the query body.
func (c *Client) DeleteByQuery(ctx context.Context, index, doctype string, queryBody []byte) (gjson.Result, error) {
	return c.Request(ctx, http.MethodDelete, fmt.Sprintf("/%s/%s/_query", index, doctype), queryBody, nil)
}

// CreateIndex creates an index, optionally with a mapping body.
func (c *Client) CreateIndex(ctx context.Context, index string, mapping []byte) (gjson.Result, error) {
	return c.Request(ctx, http.MethodPut, "/"+index, mapping, nil)
}

// DeleteIndex deletes an index.
func (c *Client) DeleteIndex(ctx context.Context, index string) (gjson.Result, error) {
	return c.Request(ctx, http.MethodDelete, "/"+index, nil, nil)
}

// Optimize asks the store to optimize an index, or the whole cluster when
// index is empty.
func (c *Client) Optimize(ctx context.Context, index string) (gjson.Result, error) {
	path := "/_optimize"
	if index != "" {
		path = "/" + index + "/_optimize"
	}
	return c.Request(ctx, http.MethodPost, path, nil, nil)
}

// Refresh makes recent writes visible to search, for an index or the whole
// cluster when index is empty.
func (c *Client) Refresh(ctx context.Context, index string) (gjson.Result, error) {
	path := "/_refresh"
	if index != "" {
		path = "/" + index + "/_refresh"
	}
	return c.Request(ctx, http.MethodPost, path, nil, nil)
}
