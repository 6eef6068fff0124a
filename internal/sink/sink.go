// Package sink contains the destinations an event can be recorded to
// (console, rotating files, the document store), the buffering decorator
// that batches writes to slow sinks, and the dispatcher that fans one event
// out to every configured sink.
package sink

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/chanlog/chanlog/internal/event"
	"github.com/chanlog/chanlog/internal/store"
)

// Sink durably records one event. Log may perform I/O and may be called
// from the dispatcher's goroutine, so slow sinks should be wrapped in a
// BufferedSink.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	// Log records one event. The event must not be retained mutably.
	Log(ev *event.Event) error
}

// ConsoleSink writes every event line through the process logger. It never
// fails.
type ConsoleSink struct{}

// NewConsoleSink returns a write-through console sink.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{}
}

// Name implements Sink.
func (s *ConsoleSink) Name() string { return "console" }

// Log implements Sink.
func (s *ConsoleSink) Log(ev *event.Event) error {
	log.WithFields(log.Fields{
		"kind":    string(ev.Kind),
		"channel": ev.Channel,
	}).Info(ev.Line())
	return nil
}

// StoreSink records events as documents in the search index through a
// manager bound to one index/doctype.
type StoreSink struct {
	manager *store.Manager
}

// NewStoreSink returns a sink indexing events via manager.
func NewStoreSink(manager *store.Manager) *StoreSink {
	return &StoreSink{manager: manager}
}

// Name implements Sink.
func (s *StoreSink) Name() string { return "store" }

// Log implements Sink.
func (s *StoreSink) Log(ev *event.Event) error {
	return s.manager.Create(context.Background(), ev)
}
