package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	securityEvents  *prometheus.CounterVec
	authFailures    *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "awibi_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "awibi_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	securityEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "awibi_security_events_total",
		Help: "Suspicious request patterns by kind.",
	}, []string{"kind"})
	authFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "awibi_auth_failures_total",
		Help: "Failed authentications on auth endpoints by route.",
	}, []string{"route"})
	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "awibi_rate_limited_total",
		Help: "Requests rejected by rate-limit policy.",
	}, []string{"policy"})
	registry.MustRegister(requests, duration, securityEvents, authFailures, rateLimited)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		securityEvents:  securityEvents,
		authFailures:    authFailures,
		rateLimited:     rateLimited,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveSecurityEvent counts a suspicious request pattern match.
func (m *Metrics) ObserveSecurityEvent(kind string) {
	if m == nil {
		return
	}
	m.securityEvents.WithLabelValues(kind).Inc()
}

// ObserveAuthFailure counts a 401 on an authentication endpoint.
func (m *Metrics) ObserveAuthFailure(route string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(route).Inc()
}

// ObserveRateLimited counts a rejection under a named policy.
func (m *Metrics) ObserveRateLimited(policy string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(policy).Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
