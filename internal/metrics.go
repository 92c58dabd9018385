package internal

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for console requests, backend calls,
// validation rejections and cache lookups
type Metrics struct {
	reqTotal             *prometheus.CounterVec
	reqLatency           *prometheus.HistogramVec
	validationRejections *prometheus.CounterVec
	backendRequests      *prometheus.CounterVec
	backendLatency       *prometheus.HistogramVec
	cacheLookups         *prometheus.CounterVec
	registry             *prometheus.Registry
}

// NewMetrics creates a new Metrics instance with a private Prometheus registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	reqTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	reqLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	validationRejections := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_rejections_total",
			Help: "Mutations rejected locally before reaching the backend",
		},
		[]string{"operation", "code"},
	)

	backendRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Requests sent to the inventory backend",
		},
		[]string{"method", "endpoint", "outcome"},
	)

	backendLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Backend request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_lookups_total",
			Help: "Query cache lookups by result",
		},
		[]string{"result"},
	)

	registry.MustRegister(reqTotal, reqLatency, validationRejections, backendRequests, backendLatency, cacheLookups)

	return &Metrics{
		reqTotal:             reqTotal,
		reqLatency:           reqLatency,
		validationRejections: validationRejections,
		backendRequests:      backendRequests,
		backendLatency:       backendLatency,
		cacheLookups:         cacheLookups,
		registry:             registry,
	}
}

// Middleware returns a Chi middleware that collects metrics
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

			next.ServeHTTP(rw, r)

			// Use Chi's route pattern if available
			path := r.URL.Path
			if chiCtx := chi.RouteContext(r.Context()); chiCtx != nil && len(chiCtx.RoutePatterns) > 0 {
				path = chiCtx.RoutePatterns[len(chiCtx.RoutePatterns)-1]
			}

			status := http.StatusText(rw.code)
			m.reqTotal.WithLabelValues(r.Method, path, status).Inc()
			m.reqLatency.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}

// ObserveBackend records one backend call; it matches backend.Observer
func (m *Metrics) ObserveBackend(method, endpoint, outcome string, elapsed time.Duration) {
	m.backendRequests.WithLabelValues(method, endpoint, outcome).Inc()
	m.backendLatency.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// RejectValidation counts a mutation refused before the network
func (m *Metrics) RejectValidation(operation, code string) {
	m.validationRejections.WithLabelValues(operation, code).Inc()
}

// CacheLookup counts a cache hit or miss
func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the HTTP status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	return sr.ResponseWriter.Write(b)
}
