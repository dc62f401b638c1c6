package monitoring

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/saferoute/internal/model"
)

func TestMetrics_Recorder(t *testing.T) {
	m := NewMetrics()

	m.ExplanationServed(model.ProvenanceLive)
	m.ExplanationServed(model.ProvenanceFallback)
	m.ExplanationServed(model.ProvenanceFallback)
	m.LiveCall("success")
	m.LiveCall("quota")
	m.MockModeEntered()
	m.CacheHit()
	m.CacheMiss()
	m.CacheMiss()

	assert.InDelta(t, 1, testutil.ToFloat64(m.explanations.WithLabelValues("live")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.explanations.WithLabelValues("fallback")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.liveCalls.WithLabelValues("quota")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.mockMode), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.cacheHits), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.cacheMisses), 0)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ExplanationServed(model.ProvenanceLive)
		m.LiveCall("error")
		m.MockModeEntered()
		m.CacheHit()
		m.CacheMiss()
	})

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMetrics_MiddlewareUsesRoutePattern(t *testing.T) {
	m := NewMetrics()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/routes/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/routes/route1", "/routes/route2", "/health"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.InDelta(t, 2, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/routes/{id}", "404")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/health", "200")), 0)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.LiveCall("success")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `saferoute_ai_live_calls_total{outcome="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
