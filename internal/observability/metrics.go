package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the prometheus collectors used by the client and the stand-in server.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	errors        *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	remoteCalls   *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	staleDropped  prometheus.Counter
	sessionEvents *prometheus.CounterVec
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telepredict_server_requests_total",
			Help: "Requests served by the stand-in service.",
		}, []string{"path", "method", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telepredict_server_errors_total",
			Help: "Errors returned by the stand-in service.",
		}, []string{"path", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "telepredict_server_request_seconds",
			Help:    "Request latency of the stand-in service.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telepredict_client_remote_calls_total",
			Help: "Remote calls made by the client, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telepredict_client_workflow_transitions_total",
			Help: "Workflow transitions by target status.",
		}, []string{"status"}),
		staleDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telepredict_client_stale_responses_total",
			Help: "Responses discarded because their job was superseded.",
		}),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telepredict_client_session_events_total",
			Help: "Session lifecycle events.",
		}, []string{"event"}),
	}
	m.registry.MustRegister(m.requests, m.errors, m.latency, m.remoteCalls, m.transitions, m.staleDropped, m.sessionEvents)
	return m
}

// Registry exposes the underlying registry for scraping.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordRemoteCall counts one outbound call.
func (m *Metrics) RecordRemoteCall(operation, outcome string) {
	if m == nil {
		return
	}
	m.remoteCalls.WithLabelValues(operation, outcome).Inc()
}

// RecordTransition counts a workflow transition.
func (m *Metrics) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// RecordStaleDrop counts a discarded response.
func (m *Metrics) RecordStaleDrop() {
	if m == nil {
		return
	}
	m.staleDropped.Inc()
}

// RecordSessionEvent counts login, logout and sync events.
func (m *Metrics) RecordSessionEvent(event string) {
	if m == nil {
		return
	}
	m.sessionEvents.WithLabelValues(event).Inc()
}
