// Package metrics exposes Prometheus collectors for the logging pipeline:
// dispatched events, sink outcomes, buffered flush activity, and document
// store request results.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EventsDispatched counts events fanned out by the dispatcher, by kind.
	EventsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chanlog_events_dispatched_total",
			Help: "Total number of events fanned out to sinks",
		},
		[]string{"kind"},
	)

	// SinkFailures counts Sink.Log failures, by sink name.
	SinkFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chanlog_sink_failures_total",
			Help: "Total number of failed sink log attempts",
		},
		[]string{"sink"},
	)

	// FlushCycles counts buffered sink flush cycles, by sink name.
	FlushCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chanlog_flush_cycles_total",
			Help: "Total number of buffered sink flush cycles",
		},
		[]string{"sink"},
	)

	// FlushRetried counts events re-queued after a failed flush attempt.
	FlushRetried = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chanlog_flush_retried_events_total",
			Help: "Total number of events re-queued for a later flush",
		},
		[]string{"sink"},
	)

	// BufferDepth reports the number of events waiting in a sink buffer.
	BufferDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chanlog_buffer_depth",
			Help: "Number of events currently buffered per sink",
		},
		[]string{"sink"},
	)

	// StoreRequests counts document store requests by outcome
	// (ok, store_error, no_nodes).
	StoreRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chanlog_store_requests_total",
			Help: "Total number of document store requests by outcome",
		},
		[]string{"outcome"},
	)

	// NodeFailovers counts transport-level failures that moved a request to
	// the next cluster node.
	NodeFailovers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chanlog_store_node_failovers_total",
			Help: "Total number of transport failures retried on another node",
		},
	)
)

// Registry is the pipeline's dedicated registry, served on /metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		EventsDispatched,
		SinkFailures,
		FlushCycles,
		FlushRetried,
		BufferDepth,
		StoreRequests,
		NodeFailovers,
	)
}
