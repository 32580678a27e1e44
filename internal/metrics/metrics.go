// Package metrics holds the Prometheus metrics of the workflow engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine
type Metrics struct {
	connectionsRejected *prometheus.CounterVec
	packetsOmitted      *prometheus.CounterVec
	contextsBuilt       prometheus.Counter
	contextPackets      prometheus.Histogram
	runsEvaluated       *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a metrics instance on its own registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		connectionsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_connections_rejected_total",
				Help: "Total number of proposed edges rejected, by cause",
			},
			[]string{"cause"},
		),

		packetsOmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_context_packets_omitted_total",
				Help: "Total number of upstream nodes that produced no packet, by reason",
			},
			[]string{"reason"},
		),

		contextsBuilt: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workflow_contexts_built_total",
				Help: "Total number of execution contexts built",
			},
		),

		contextPackets: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "workflow_context_packets",
				Help:    "Number of packets per execution context",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
			},
		),

		runsEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_runs_evaluated_total",
				Help: "Total number of run records evaluated for listing, by reason and decision",
			},
			[]string{"reason", "included"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.connectionsRejected,
		m.packetsOmitted,
		m.contextsBuilt,
		m.contextPackets,
		m.runsEvaluated,
	)

	return m
}

// ConnectionRejected records a rejected edge
func (m *Metrics) ConnectionRejected(cause string) {
	m.connectionsRejected.WithLabelValues(cause).Inc()
}

// PacketOmitted records an upstream node that produced no packet
func (m *Metrics) PacketOmitted(reason string) {
	m.packetsOmitted.WithLabelValues(reason).Inc()
}

// ContextBuilt records a finished execution context
func (m *Metrics) ContextBuilt(packets, _ int) {
	m.contextsBuilt.Inc()
	m.contextPackets.Observe(float64(packets))
}

// RunEvaluated records one listing decision
func (m *Metrics) RunEvaluated(reason string, include bool) {
	included := "false"
	if include {
		included = "true"
	}
	m.runsEvaluated.WithLabelValues(reason, included).Inc()
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
