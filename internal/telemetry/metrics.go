// Package telemetry sets up tracing and Prometheus metrics for the proxy.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatproxy"

// Metrics holds the proxy's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
//
// Metrics:
//   - chatproxy_requests_total: chat calls by endpoint and outcome
//   - chatproxy_request_duration_seconds: chat call latency by endpoint
//   - chatproxy_stream_frames_total: frames written by format and kind
//   - chatproxy_tokens_total: estimated tokens by model and kind
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	framesTotal     *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors with a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of chat requests handled",
			},
			[]string{"endpoint", "outcome"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of chat requests in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"endpoint"},
		),

		framesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_frames_total",
				Help:      "Total number of stream frames written",
			},
			[]string{"format", "kind"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_total",
				Help:      "Estimated number of tokens processed",
			},
			[]string{"model", "kind"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.framesTotal,
		m.tokensTotal,
	)

	return m
}

// RecordRequest records a finished chat request.
func (m *Metrics) RecordRequest(endpoint, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(endpoint, outcome).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordFrame counts one written stream frame.
func (m *Metrics) RecordFrame(format, kind string) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(format, kind).Inc()
}

// RecordTokens adds a token estimate.
func (m *Metrics) RecordTokens(model, kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.tokensTotal.WithLabelValues(model, kind).Add(float64(n))
}

// Handler exposes the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
