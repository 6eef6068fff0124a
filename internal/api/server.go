// Package api provides the HTTP query surface over the recorded history:
// a JSON search endpoint backed by the lazy result set, a channel listing,
// a live WebSocket tail, and the metrics endpoint.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/chanlog/chanlog/internal/logging"
	"github.com/chanlog/chanlog/internal/metrics"
	"github.com/chanlog/chanlog/internal/store"
)

// Server is the query API server.
type Server struct {
	engine  *gin.Engine
	manager *store.Manager
	hub     *Hub

	mu       sync.Mutex
	channels []string

	httpServer *http.Server
}

// NewServer wires routes and middleware over the given manager. channels is
// the initial channel list served by /api/channels and may be replaced at
// runtime via SetChannels.
func NewServer(manager *store.Manager, hub *Hub, channels []string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(logging.GinRecovery(), logging.GinLogrusLogger())

	s := &Server{
		engine:   engine,
		manager:  manager,
		hub:      hub,
		channels: channels,
	}

	engine.GET("/api/search", s.handleSearch)
	engine.GET("/api/channels", s.handleChannels)
	engine.GET("/live", s.handleLive)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	return s
}

// Handler exposes the underlying handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// SetChannels replaces the channel list served by /api/channels.
func (s *Server) SetChannels(channels []string) {
	s.mu.Lock()
	s.channels = channels
	s.mu.Unlock()
}

// Run serves the API on addr until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()
	log.WithField("addr", addr).Info("query API listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// searchResult is the JSON shape of one hit.
type searchResult struct {
	Time    time.Time `json:"time"`
	Actor   string    `json:"actor"`
	Channel string    `json:"channel"`
	Kind    string    `json:"kind"`
	Payload string    `json:"payload"`
	Origin  string    `json:"origin"`
}

// handleSearch runs a search over the recorded history. Supported query
// parameters: q (free text), actor, channel, kind (field equality), sort
// (field name, leading '-' for descending), size and from (pagination).
// Facets over channel and actor ride along with every response.
func (s *Server) handleSearch(c *gin.Context) {
	var pairs []store.Term
	for _, field := range []string{"actor", "channel", "kind"} {
		if v := c.Query(field); v != "" {
			pairs = append(pairs, store.Term{Field: field, Value: v})
		}
	}
	text := c.Query("q")
	if text == "" && len(pairs) == 0 {
		text = "*:*"
	}

	rs := s.manager.Filter(text, pairs...).FacetBy("channel", "actor")
	if sort := c.Query("sort"); sort != "" {
		rs.OrderBy(sort)
	} else {
		rs.OrderBy("-time")
	}

	from, err := intQuery(c, "from", 0)
	if err != nil {
		badRequest(c, "invalid from parameter")
		return
	}
	size, err := intQuery(c, "size", store.DefaultPageSize)
	if err != nil {
		badRequest(c, "invalid size parameter")
		return
	}
	if _, err = rs.Slice(from, from+size); err != nil {
		badRequest(c, err.Error())
		return
	}

	docs, err := rs.Documents(c.Request.Context())
	if err != nil {
		storeFailure(c, err)
		return
	}
	total, _ := rs.Count(c.Request.Context())
	facets, _ := rs.Facets(c.Request.Context())

	results := make([]searchResult, 0, len(docs))
	for _, ev := range docs {
		results = append(results, searchResult{
			Time:    ev.Time,
			Actor:   ev.Actor,
			Channel: ev.Channel,
			Kind:    string(ev.Kind),
			Payload: ev.Payload,
			Origin:  ev.Origin,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     total,
		"took_ms":   rs.TookMillis(),
		"timed_out": rs.TimedOut(),
		"results":   results,
		"facets":    facets,
	})
}

// handleChannels lists the channels the pipeline is configured to record.
func (s *Server) handleChannels(c *gin.Context) {
	s.mu.Lock()
	channels := make([]string, len(s.channels))
	copy(channels, s.channels)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// handleLive upgrades the connection and attaches it to the live tail hub.
func (s *Server) handleLive(c *gin.Context) {
	if s.hub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "live tail disabled"}})
		return
	}
	s.hub.ServeWS(c.Writer, c.Request)
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": msg}})
}

// storeFailure maps the store error taxonomy onto HTTP statuses: invalid
// usage is the caller's fault, a store-reported error is a bad gateway with
// the store's reason attached, and an unreachable cluster is a 503.
func storeFailure(c *gin.Context, err error) {
	var storeErr *store.StoreError
	var noNodes *store.NoNodesError
	switch {
	case errors.Is(err, store.ErrInvalidQuery):
		badRequest(c, err.Error())
	case errors.As(err, &storeErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"message": storeErr.Reason}})
	case errors.As(err, &noNodes):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{"message": "document store unavailable"}})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "search failed"}})
	}
}
