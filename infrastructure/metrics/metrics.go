// Package metrics provides Prometheus metrics collection for the gateway.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/neuron-gateway/gateway/infrastructure/runtime"
)

// Metrics holds all Prometheus collectors registered for one process.
type Metrics struct {
	// Node lifecycle
	NodesTotal     *prometheus.GaugeVec
	NodeStateTotal *prometheus.CounterVec

	// Error metrics, labeled by the GatewayError code
	ErrorsTotal *prometheus.CounterVec

	// Driver read/report cycle
	GroupReadDuration   *prometheus.HistogramVec
	GroupReadsTotal     *prometheus.CounterVec
	TransDataEmitted    *prometheus.CounterVec
	TagCacheStaleTotal  *prometheus.CounterVec
	WriteRequestsTotal  *prometheus.CounterVec
	AdapterQueueDropped *prometheus.CounterVec
	AdapterQueueDepth   *prometheus.GaugeVec

	// Persistence
	PersistenceQueriesTotal  *prometheus.CounterVec
	PersistenceQueryDuration *prometheus.HistogramVec

	// Process health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec

	// Plugin-declared metrics (register_metric/update_metric, spec.md §4.3).
	// One gauge vector shared across every node/plugin, since the set of
	// metric names a plugin declares isn't known until it runs.
	PluginMetricValue *prometheus.GaugeVec
}

// New creates a new Metrics instance with all collectors registered against
// the default Prometheus registry.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodesTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_nodes_total",
				Help: "Current number of registered nodes by running state",
			},
			[]string{"state"},
		),
		NodeStateTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_node_state_transitions_total",
				Help: "Total number of node state transitions",
			},
			[]string{"node", "from", "to"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_errors_total",
				Help: "Total number of errors by code",
			},
			[]string{"code"},
		),

		GroupReadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_group_read_duration_seconds",
				Help:    "Group read/report cycle duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"node", "group"},
		),
		GroupReadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_group_reads_total",
				Help: "Total number of group read cycles by outcome",
			},
			[]string{"node", "group", "status"},
		),
		TransDataEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_trans_data_frames_total",
				Help: "Total number of trans-data frames emitted by a group's report timer",
			},
			[]string{"node", "group"},
		),
		TagCacheStaleTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_tag_cache_stale_total",
				Help: "Total number of tag reads that hit the cache freshness rule",
			},
			[]string{"node", "group"},
		),
		WriteRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_write_requests_total",
				Help: "Total number of write_tag/write_tags requests by outcome",
			},
			[]string{"node", "status"},
		),
		AdapterQueueDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_adapter_queue_dropped_total",
				Help: "Total number of messages dropped because an adapter's inbound queue was full",
			},
			[]string{"node"},
		),
		AdapterQueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_adapter_queue_depth",
				Help: "Current depth of an adapter's inbound message queue",
			},
			[]string{"node"},
		),

		PersistenceQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_persistence_queries_total",
				Help: "Total number of persister operations by outcome",
			},
			[]string{"operation", "status"},
		),
		PersistenceQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_persistence_query_duration_seconds",
				Help:    "Persister operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_uptime_seconds",
				Help: "Gateway process uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_info",
				Help: "Gateway build/environment information",
			},
			[]string{"service", "version", "environment"},
		),

		PluginMetricValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_plugin_metric_value",
				Help: "Current value of a plugin-declared metric registered via register_metric",
			},
			[]string{"node", "group", "metric"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.NodesTotal,
			m.NodeStateTotal,
			m.ErrorsTotal,
			m.GroupReadDuration,
			m.GroupReadsTotal,
			m.TransDataEmitted,
			m.TagCacheStaleTotal,
			m.WriteRequestsTotal,
			m.AdapterQueueDropped,
			m.AdapterQueueDepth,
			m.PersistenceQueriesTotal,
			m.PersistenceQueryDuration,
			m.ServiceUptime,
			m.ServiceInfo,
			m.PluginMetricValue,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", getEnvironment()).Set(1)

	return m
}

// RecordNodeStateChange records a node lifecycle transition.
func (m *Metrics) RecordNodeStateChange(node, from, to string) {
	m.NodeStateTotal.WithLabelValues(node, from, to).Inc()
}

// RecordError records an error by its GatewayError code.
func (m *Metrics) RecordError(code string) {
	m.ErrorsTotal.WithLabelValues(code).Inc()
}

// RecordGroupRead records one read/report cycle for a group.
func (m *Metrics) RecordGroupRead(node, group, status string, duration time.Duration) {
	m.GroupReadsTotal.WithLabelValues(node, group, status).Inc()
	m.GroupReadDuration.WithLabelValues(node, group).Observe(duration.Seconds())
}

// RecordTransData records one trans-data frame emitted by a group's report
// timer.
func (m *Metrics) RecordTransData(node, group string) {
	m.TransDataEmitted.WithLabelValues(node, group).Inc()
}

// RecordCacheStale records a tag read that hit the cache freshness rule.
func (m *Metrics) RecordCacheStale(node, group string) {
	m.TagCacheStaleTotal.WithLabelValues(node, group).Inc()
}

// RecordWriteRequest records the outcome of a write_tag/write_tags request.
func (m *Metrics) RecordWriteRequest(node, status string) {
	m.WriteRequestsTotal.WithLabelValues(node, status).Inc()
}

// RecordQueueDrop records a message dropped because an adapter's inbound
// queue was full.
func (m *Metrics) RecordQueueDrop(node string) {
	m.AdapterQueueDropped.WithLabelValues(node).Inc()
}

// SetQueueDepth sets the current depth of an adapter's inbound queue.
func (m *Metrics) SetQueueDepth(node string, depth int) {
	m.AdapterQueueDepth.WithLabelValues(node).Set(float64(depth))
}

// RecordPersistenceQuery records a persister operation.
func (m *Metrics) RecordPersistenceQuery(operation, status string, duration time.Duration) {
	m.PersistenceQueriesTotal.WithLabelValues(operation, status).Inc()
	m.PersistenceQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateUptime updates the process uptime gauge.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// SetNodeCount sets the current number of nodes in a given running state.
func (m *Metrics) SetNodeCount(state string, count int) {
	m.NodesTotal.WithLabelValues(state).Set(float64(count))
}

// RegisterPluginMetric seeds a plugin-declared metric at its initial value.
func (m *Metrics) RegisterPluginMetric(node, metric string, init float64) {
	m.PluginMetricValue.WithLabelValues(node, "", metric).Set(init)
}

// UpdatePluginMetric applies a delta to a previously registered plugin
// metric, scoped to group when the plugin reports it per-group.
func (m *Metrics) UpdatePluginMetric(node, group, metric string, delta float64) {
	m.PluginMetricValue.WithLabelValues(node, group, metric).Add(delta)
}

// Helper functions

func getEnvironment() string {
	return string(runtime.Env())
}

// Enabled returns whether Prometheus metrics should be exposed.
//
// Defaults:
// - production: disabled unless explicitly enabled via METRICS_ENABLED
// - non-production: enabled unless explicitly disabled via METRICS_ENABLED
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return !runtime.IsProduction()
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Global metrics instance
var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New("unknown")
	}
	return globalMetrics
}
