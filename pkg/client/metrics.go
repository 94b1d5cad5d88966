package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the client's Prometheus collectors. A nil *Metrics is valid
// and records nothing, so tests and the threads subcommands can skip it.
type Metrics struct {
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	pushEvents     *prometheus.CounterVec
	signals        *prometheus.CounterVec
	staleResponses *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forumchat",
			Name:      "api_requests_total",
			Help:      "Forum API requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "forumchat",
			Name:      "api_request_duration_seconds",
			Help:      "Forum API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		pushEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forumchat",
			Name:      "realtime_events_total",
			Help:      "Inbound realtime events by event name.",
		}, []string{"event"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forumchat",
			Name:      "realtime_signals_total",
			Help:      "Outbound realtime signals by event name.",
		}, []string{"event"}),
		staleResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forumchat",
			Name:      "stale_responses_total",
			Help:      "Responses discarded because the user navigated away before they arrived.",
		}, []string{"operation"}),
	}
	reg.MustRegister(m.requests, m.requestLatency, m.pushEvents, m.signals, m.staleResponses)
	return m
}

// ObserveRequest records one API call started at start.
func (m *Metrics) ObserveRequest(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.requests.WithLabelValues(operation, outcome).Inc()
	m.requestLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// PushEvent counts an inbound realtime event.
func (m *Metrics) PushEvent(event string) {
	if m == nil {
		return
	}
	m.pushEvents.WithLabelValues(event).Inc()
}

// Signal counts an outbound realtime signal.
func (m *Metrics) Signal(event string) {
	if m == nil {
		return
	}
	m.signals.WithLabelValues(event).Inc()
}

// StaleResponse counts a response dropped by the generation guard.
func (m *Metrics) StaleResponse(operation string) {
	if m == nil {
		return
	}
	m.staleResponses.WithLabelValues(operation).Inc()
}
