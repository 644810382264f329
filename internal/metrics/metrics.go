// Package metrics exposes Prometheus counters and histograms for the HTTP layer and domain flows.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP traffic by method, route pattern and status code
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// Request lifecycle transitions by target status
	RequestTransitions *prometheus.CounterVec

	// Donor responses by outcome
	Responses *prometheus.CounterVec

	// Size of ranked result lists by kind: requests, donors, centers
	MatchResults *prometheus.HistogramVec

	// Published events by type and result
	EventsPublished *prometheus.CounterVec

	// Center cache lookups by result: hit, miss, error
	CenterCache *prometheus.CounterVec
}

// New registers every metric with reg. Pass prometheus.DefaultRegisterer in production
// and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "redblood_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),

		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "redblood_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),

		RequestTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "redblood_request_transitions_total",
			Help: "Blood request status transitions by target status",
		}, []string{"status"}),

		Responses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "redblood_responses_total",
			Help: "Donor responses by resulting status",
		}, []string{"status"}),

		MatchResults: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "redblood_match_results",
			Help:    "Number of ranked results returned by searches",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
		}, []string{"kind"}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "redblood_events_published_total",
			Help: "Domain events published by type and result",
		}, []string{"type", "result"}),

		CenterCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "redblood_center_cache_lookups_total",
			Help: "Donation center cache lookups by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
		m.HTTPLatency.WithLabelValues(method, route).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementTransition(status string) {
	if m != nil {
		m.RequestTransitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncrementResponse(status string) {
	if m != nil {
		m.Responses.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) ObserveMatches(kind string, n int) {
	if m != nil {
		m.MatchResults.WithLabelValues(kind).Observe(float64(n))
	}
}

func (m *Metrics) IncrementPublished(eventType string, err error) {
	if m != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		m.EventsPublished.WithLabelValues(eventType, result).Inc()
	}
}

func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CenterCache.WithLabelValues(result).Inc()
	}
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
