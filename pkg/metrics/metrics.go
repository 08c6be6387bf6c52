package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cscportal/portal-backend/pkg/httputil"
)

// Upload outcomes recorded by DocumentUpload
const (
	OutcomeStored  = "stored"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Metrics owns a private prometheus registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	applicationsSubmitted *prometheus.CounterVec
	documentUploads       *prometheus.CounterVec
	statusChanges         *prometheus.CounterVec
	schemaParseFailures   *prometheus.CounterVec
}

// New registers the portal collectors plus the Go and process collectors.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		applicationsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "applications_submitted_total",
			Help:      "Applications created, by service title.",
		}, []string{"service"}),
		documentUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_uploads_total",
			Help:      "Document uploads by direction and outcome.",
		}, []string{"direction", "outcome"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "application_status_changes_total",
			Help:      "Status writes by resulting status.",
		}, []string{"status"}),
		schemaParseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_parse_failures_total",
			Help:      "Stored schema lists that failed to parse and degraded to empty.",
		}, []string{"list"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpLatency,
		m.applicationsSubmitted,
		m.documentUploads,
		m.statusChanges,
		m.schemaParseFailures,
	)

	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request counts and latency keyed by chi route pattern,
// so /applications/{id} is one series rather than one per id.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := httputil.NewStatusRecorder(w)
		start := time.Now()

		next.ServeHTTP(rec, r)

		route := routePattern(r)
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status())).Inc()
		m.httpLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// ApplicationSubmitted counts one created application.
func (m *Metrics) ApplicationSubmitted(service string) {
	if m == nil {
		return
	}
	m.applicationsSubmitted.WithLabelValues(service).Inc()
}

// DocumentUpload counts one upload attempt.
func (m *Metrics) DocumentUpload(direction, outcome string) {
	if m == nil {
		return
	}
	m.documentUploads.WithLabelValues(direction, outcome).Inc()
}

// StatusChanged counts one status write.
func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

// SchemaParseFailed counts one degraded schema list.
func (m *Metrics) SchemaParseFailed(list string) {
	if m == nil {
		return
	}
	m.schemaParseFailures.WithLabelValues(list).Inc()
}
