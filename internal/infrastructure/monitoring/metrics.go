package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message direction labels.
const (
	DirectionInbound  = "in"
	DirectionOutbound = "out"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	// HTTP metrics for the glue endpoints
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Connection metrics
	Connections      prometheus.Gauge
	ConnectionsTotal prometheus.Counter

	// Message metrics
	Messages *prometheus.CounterVec

	// Dispatch metrics
	DispatchDuration *prometheus.HistogramVec
	Failures         *prometheus.CounterVec

	// Upstream metrics
	UpstreamCalls    *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec

	// Broadcast metrics
	BroadcastsTotal  prometheus.Counter
	BroadcastFanout  prometheus.Histogram
	SendFailures     prometheus.Counter

	// Webhook and scheduler metrics
	WebhookEvents *prometheus.CounterVec
	ScheduledRuns *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Sliding window of dispatch latencies for quantile snapshots
	window *latencyWindow

	// Snapshot for the JSON stats API
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON stats API.
type Snapshot struct {
	ActiveConnections int64
	TotalRequests     int64
	TotalErrors       int64
	MessagesIn        int64
	MessagesOut       int64
	SendFailures      int64
}

// New creates a metrics collector registered on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a metrics collector registered on reg. Tests pass a
// fresh registry to avoid duplicate registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),
		window:    newLatencyWindow(defaultWindowSize),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		Connections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		ConnectionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_ws_connections_total",
				Help: "Total number of WebSocket connections accepted",
			},
		),

		Messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_ws_messages_total",
				Help: "Total number of WebSocket messages by direction and kind",
			},
			[]string{"direction", "kind"},
		),

		DispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_dispatch_duration_seconds",
				Help:    "Message dispatch duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 15},
			},
			[]string{"kind"},
		),
		Failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_failures_total",
				Help: "Total number of gateway failures by code",
			},
			[]string{"code"},
		),

		UpstreamCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_upstream_calls_total",
				Help: "Total number of upstream calls",
			},
			[]string{"target", "status"},
		),
		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_upstream_duration_seconds",
				Help:    "Upstream call duration in seconds",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 15},
			},
			[]string{"target"},
		),

		BroadcastsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_broadcasts_total",
				Help: "Total number of broadcasts relayed",
			},
		),
		BroadcastFanout: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gateway_broadcast_fanout",
				Help:    "Number of recipients per broadcast",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
			},
		),
		SendFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_send_failures_total",
				Help: "Total number of failed deliveries to clients",
			},
		),

		WebhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_webhook_events_total",
				Help: "Total number of webhook events ingested",
			},
			[]string{"source"},
		),
		ScheduledRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_scheduled_runs_total",
				Help: "Total number of scheduled workflow runs",
			},
			[]string{"workflow", "status"},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "gateway_uptime_seconds",
			Help: "Gateway uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records a request against a glue endpoint.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordMessage records a WebSocket message.
func (m *Metrics) RecordMessage(direction, kind string) {
	m.Messages.WithLabelValues(direction, kind).Inc()

	m.mu.Lock()
	switch direction {
	case DirectionInbound:
		m.snapshot.MessagesIn++
	case DirectionOutbound:
		m.snapshot.MessagesOut++
	}
	m.mu.Unlock()
}

// RecordDispatch records a completed dispatch for a message kind.
func (m *Metrics) RecordDispatch(kind string, duration time.Duration) {
	m.DispatchDuration.WithLabelValues(kind).Observe(duration.Seconds())
	m.window.Observe(duration.Seconds())
}

// RecordFailure records a gateway failure by taxonomy code.
func (m *Metrics) RecordFailure(code string) {
	m.Failures.WithLabelValues(code).Inc()
}

// RecordUpstreamCall records an upstream call.
func (m *Metrics) RecordUpstreamCall(target, status string, duration time.Duration) {
	m.UpstreamCalls.WithLabelValues(target, status).Inc()
	m.UpstreamDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// RecordBroadcast records a broadcast and its recipient count.
func (m *Metrics) RecordBroadcast(recipients int) {
	m.BroadcastsTotal.Inc()
	m.BroadcastFanout.Observe(float64(recipients))
}

// RecordSendFailure records a failed delivery to a client.
func (m *Metrics) RecordSendFailure() {
	m.SendFailures.Inc()

	m.mu.Lock()
	m.snapshot.SendFailures++
	m.mu.Unlock()
}

// RecordWebhookEvent records an ingested webhook event.
func (m *Metrics) RecordWebhookEvent(source string) {
	m.WebhookEvents.WithLabelValues(source).Inc()
}

// RecordScheduledRun records a scheduled workflow run.
func (m *Metrics) RecordScheduledRun(workflow, status string) {
	m.ScheduledRuns.WithLabelValues(workflow, status).Inc()
}

// IncConnections increments the active connection gauge.
func (m *Metrics) IncConnections() {
	m.Connections.Inc()
	m.ConnectionsTotal.Inc()

	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecConnections decrements the active connection gauge.
func (m *Metrics) DecConnections() {
	m.Connections.Dec()

	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// GetSnapshot returns current values for the JSON stats API.
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// UptimeDuration returns elapsed time since the collector was created.
func (m *Metrics) UptimeDuration() time.Duration {
	return time.Since(m.startTime)
}
