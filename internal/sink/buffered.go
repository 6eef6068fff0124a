package sink

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/chanlog/chanlog/internal/event"
	"github.com/chanlog/chanlog/internal/metrics"
)

// DefaultFlushInterval is how often a buffered sink drains its buffer when
// no interval is configured.
const DefaultFlushInterval = 5 * time.Second

// BufferedSink decorates any Sink with batched, interval-based delivery.
// Log appends to an in-memory buffer and returns immediately; a flush loop
// periodically swaps the buffer out and replays it through the wrapped
// sink. Events whose delivery fails are re-queued into the live buffer and
// retried on the next cycle, with no backoff and no retry bound: delivery
// is at-least-once, and a permanently failing sink grows the buffer without
// bound.
type BufferedSink struct {
	wrapped  Sink
	interval time.Duration

	mu  sync.Mutex
	buf []*event.Event

	// flushMu serializes flush cycles; a tick that arrives while a flush is
	// still in flight is skipped.
	flushMu  sync.Mutex
	flushing bool

	done     chan struct{}
	stopped  sync.WaitGroup
	stopOnce sync.Once
}

// NewBufferedSink wraps sink with a buffer flushed every interval. Start
// must be called to begin the flush loop.
func NewBufferedSink(wrapped Sink, interval time.Duration) *BufferedSink {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &BufferedSink{
		wrapped:  wrapped,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Name implements Sink.
func (s *BufferedSink) Name() string {
	return "buffered(" + s.wrapped.Name() + ")"
}

// Log implements Sink. It never performs I/O on the caller's goroutine.
func (s *BufferedSink) Log(ev *event.Event) error {
	s.mu.Lock()
	s.buf = append(s.buf, ev)
	depth := len(s.buf)
	s.mu.Unlock()
	metrics.BufferDepth.WithLabelValues(s.wrapped.Name()).Set(float64(depth))
	return nil
}

// Start launches the periodic flush loop.
func (s *BufferedSink) Start() {
	s.stopped.Add(1)
	go func() {
		defer s.stopped.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Flush()
			case <-s.done:
				return
			}
		}
	}()
}

// Flush atomically swaps the buffer for an empty one and replays the
// captured events through the wrapped sink. Failed events are re-appended
// to the current buffer for the next cycle. A flush that finds another
// flush in flight returns without doing anything.
func (s *BufferedSink) Flush() {
	s.flushMu.Lock()
	if s.flushing {
		s.flushMu.Unlock()
		return
	}
	s.flushing = true
	s.flushMu.Unlock()
	defer func() {
		s.flushMu.Lock()
		s.flushing = false
		s.flushMu.Unlock()
	}()

	s.mu.Lock()
	batch := s.buf
	s.buf = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	metrics.FlushCycles.WithLabelValues(s.wrapped.Name()).Inc()

	retried := 0
	for _, ev := range batch {
		if err := s.wrapped.Log(ev); err != nil {
			log.WithField("sink", s.wrapped.Name()).Warnf("flush failed, re-queueing event: %v", err)
			metrics.SinkFailures.WithLabelValues(s.wrapped.Name()).Inc()
			s.mu.Lock()
			s.buf = append(s.buf, ev)
			s.mu.Unlock()
			retried++
		}
	}
	if retried > 0 {
		metrics.FlushRetried.WithLabelValues(s.wrapped.Name()).Add(float64(retried))
	}

	s.mu.Lock()
	depth := len(s.buf)
	s.mu.Unlock()
	metrics.BufferDepth.WithLabelValues(s.wrapped.Name()).Set(float64(depth))
}

// Pending reports how many events are waiting in the buffer.
func (s *BufferedSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Close stops the flush loop and attempts one final drain of the buffer.
// Events that still fail on the final drain are dropped with a warning.
func (s *BufferedSink) Close() error {
	s.stopOnce.Do(func() {
		close(s.done)
		s.stopped.Wait()
		s.Flush()
		if n := s.Pending(); n > 0 {
			log.WithField("sink", s.wrapped.Name()).Warnf("dropping %d undelivered events at shutdown", n)
		}
	})
	return nil
}
