package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	suggestionsTotal  *prometheus.CounterVec
	decisionsTotal    *prometheus.CounterVec
	suggestionLatency *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sortmeister",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sortmeister",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sortmeister",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	suggestionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sortmeister",
			Subsystem: "suggest",
			Name:      "requests_total",
			Help:      "Suggestion requests by priority and cache state served.",
		},
		[]string{"service", "priority", "state"},
	)
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sortmeister",
			Subsystem: "decisions",
			Name:      "recorded_total",
			Help:      "Confirmed filing decisions by source.",
		},
		[]string{"service", "source"},
	)
	suggestionLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sortmeister",
			Subsystem: "suggest",
			Name:      "latency_seconds",
			Help:      "End-to-end suggestion latency by priority.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"service", "priority"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		suggestionsTotal,
		decisionsTotal,
		suggestionLatency,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		suggestionsTotal:  suggestionsTotal,
		decisionsTotal:    decisionsTotal,
		suggestionLatency: suggestionLatency,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/suggestions/"):
		return "/v1/suggestions/{fingerprint}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordSuggestionServed(service, priority, state string, latency time.Duration) {
	m.suggestionsTotal.WithLabelValues(service, priority, state).Inc()
	m.suggestionLatency.WithLabelValues(service, priority).Observe(latency.Seconds())
}

func (m *HTTPServerMetrics) RecordDecision(service, source string) {
	if source == "" {
		source = "unknown"
	}
	m.decisionsTotal.WithLabelValues(service, source).Inc()
}

// statusRecorder only needs the response code; the JSON handlers never
// stream, hijack, or push.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
