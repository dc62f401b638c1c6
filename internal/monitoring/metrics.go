package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/saferoute/internal/model"
)

// Metrics holds the process's prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	explanations      *prometheus.CounterVec
	liveCalls         *prometheus.CounterVec
	mockMode          prometheus.Gauge
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
}

// NewMetrics creates the collectors and registers them on a fresh registry
// alongside the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		explanations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saferoute_explanations_total",
			Help: "Explanations served by provenance.",
		}, []string{"provenance"}),
		liveCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saferoute_ai_live_calls_total",
			Help: "Budgeted calls made to the AI provider by outcome.",
		}, []string{"outcome"}),
		mockMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "saferoute_ai_mock_mode",
			Help: "1 once the AI client has switched to templated explanations.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saferoute_explanation_cache_hits_total",
			Help: "Total explanation cache hits observed.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saferoute_explanation_cache_misses_total",
			Help: "Total explanation cache misses observed.",
		}),
	}

	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.explanations,
		m.liveCalls,
		m.mockMode,
		m.cacheHits,
		m.cacheMisses,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Middleware records request counts and durations labelled by the matched
// chi route pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m == nil {
			return
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ExplanationServed(p model.Provenance) {
	if m == nil {
		return
	}
	m.explanations.WithLabelValues(string(p)).Inc()
}

func (m *Metrics) LiveCall(outcome string) {
	if m == nil {
		return
	}
	m.liveCalls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) MockModeEntered() {
	if m == nil {
		return
	}
	m.mockMode.Set(1)
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}
