// Package obs holds the Prometheus instrumentation shared by the HTTP layer
// and the application core.
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clinicsite/internal/util"
)

// Metrics owns a private registry so several servers can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	faqAppends     *prometheus.CounterVec
	galleryUploads *prometheus.CounterVec
	chatAnswers    *prometheus.CounterVec
	logins         *prometheus.CounterVec
}

// NewMetrics builds and registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		faqAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "site_faq_appends_total",
			Help: "FAQ appends by persistence outcome.",
		}, []string{"outcome"}),
		galleryUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "site_gallery_uploads_total",
			Help: "Gallery uploads by outcome.",
		}, []string{"outcome"}),
		chatAnswers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "site_chat_answers_total",
			Help: "Chat questions by match result.",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "site_admin_logins_total",
			Help: "Admin login attempts by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.faqAppends,
		m.galleryUploads,
		m.chatAnswers,
		m.logins,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Instrument records in-flight, count and latency per route. routeOf maps a
// request onto a bounded label so static paths do not explode cardinality.
func (m *Metrics) Instrument(routeOf func(*http.Request) string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()
		start := time.Now()

		rec := &util.StatusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		route := routeOf(r)
		status := strconv.Itoa(rec.Code())
		m.httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

// FAQAppended counts an append; persisted reports whether the flush succeeded.
func (m *Metrics) FAQAppended(persisted bool) {
	if m == nil {
		return
	}
	m.faqAppends.WithLabelValues(outcome(persisted)).Inc()
}

// GalleryUploaded counts an upload attempt by outcome label.
func (m *Metrics) GalleryUploaded(result string) {
	if m == nil {
		return
	}
	m.galleryUploads.WithLabelValues(result).Inc()
}

// ChatAnswered counts a chat question; matched is false for fallbacks.
func (m *Metrics) ChatAnswered(matched bool) {
	if m == nil {
		return
	}
	result := "fallback"
	if matched {
		result = "matched"
	}
	m.chatAnswers.WithLabelValues(result).Inc()
}

// LoginAttempted counts an admin login attempt.
func (m *Metrics) LoginAttempted(ok bool) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "fail"
}
