package flow

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus-compatible metrics for workflow execution
// monitoring. All metrics are namespaced with "dagflow":
//
//   - runs_total (counter): completed executions by terminal status.
//   - nodes_total (counter): node invocations by outcome
//     (success/failed/skipped).
//   - node_latency_ms (histogram): node execution duration, labeled by
//     node_type and status.
//   - inflight_nodes (gauge): nodes currently executing.
//   - level_size (gauge): node count of the level being driven.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := flow.NewMetrics(registry)
//	exec := flow.NewExecutor(flow.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
type Metrics struct {
	runs        *prometheus.CounterVec
	nodes       *prometheus.CounterVec
	nodeLatency *prometheus.HistogramVec
	inflight    prometheus.Gauge
	levelSize   prometheus.Gauge

	mu      sync.RWMutex
	enabled bool
}

// NewMetrics creates and registers the execution metrics with the given
// registry. A nil registry falls back to prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		enabled: true,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dagflow",
			Name:      "runs_total",
			Help:      "Workflow executions reaching a terminal state, by status",
		}, []string{"status"}),
		nodes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dagflow",
			Name:      "nodes_total",
			Help:      "Node invocations by outcome",
		}, []string{"status"}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dagflow",
			Name:      "node_latency_ms",
			Help:      "Node execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"node_type", "status"}),
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dagflow",
			Name:      "inflight_nodes",
			Help:      "Nodes currently executing",
		}),
		levelSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dagflow",
			Name:      "level_size",
			Help:      "Node count of the level currently being driven",
		}),
	}
}

// RecordRun counts a terminal execution by status.
func (m *Metrics) RecordRun(status Status) {
	if !m.isEnabled() {
		return
	}
	m.runs.WithLabelValues(string(status)).Inc()
}

// RecordNode counts one node invocation and observes its latency.
func (m *Metrics) RecordNode(nodeType, status string, latency time.Duration) {
	if !m.isEnabled() {
		return
	}
	m.nodes.WithLabelValues(status).Inc()
	m.nodeLatency.WithLabelValues(nodeType, status).Observe(float64(latency.Milliseconds()))
}

// RecordSkipped counts a node skipped because a dependency failed fatally.
func (m *Metrics) RecordSkipped() {
	if !m.isEnabled() {
		return
	}
	m.nodes.WithLabelValues("skipped").Inc()
}

// IncInflight increments the inflight node gauge as a node starts
// executing. Paired with DecInflight when it returns, so the gauge tracks
// actual concurrency rather than dispatched work.
func (m *Metrics) IncInflight() {
	if !m.isEnabled() {
		return
	}
	m.inflight.Inc()
}

// DecInflight decrements the inflight node gauge.
func (m *Metrics) DecInflight() {
	if !m.isEnabled() {
		return
	}
	m.inflight.Dec()
}

// SetLevelSize sets the current level-size gauge.
func (m *Metrics) SetLevelSize(n int) {
	if !m.isEnabled() {
		return
	}
	m.levelSize.Set(float64(n))
}

// Disable temporarily disables metric recording (useful for testing).
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// Enable re-enables metric recording after Disable.
func (m *Metrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}

func (m *Metrics) isEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}
