// Package api serves the scoring engine over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/monitoring"
	"github.com/sells-group/saferoute/internal/normalize"
)

// Engine is the subset of *scoring.Engine the handlers call.
type Engine interface {
	ScoreAllRoutes(ctx context.Context) []model.ScoredRoute
	ScoreCatalogue(ctx context.Context) []model.ScoredRoute
	RankRoutes(ctx context.Context, criteria []normalize.Criterion) []model.RankedRoute
	ScoreRouteByID(ctx context.Context, id string) (model.ScoredRoute, error)
	ExplainRoute(ctx context.Context, id string) (model.ScoredRoute, error)
	CompareRoutes(ctx context.Context, ids []string) (model.Comparison, error)
	SubmitFeedback(ctx context.Context, in model.FeedbackInput) (model.Feedback, error)
	FeedbackForRoute(ctx context.Context, routeID string) ([]model.Feedback, error)
	FeedbackSummary(ctx context.Context, routeID string) (model.FeedbackSummary, error)
	QuotaStats() model.QuotaStats
	TestConnection(ctx context.Context) model.ConnectionStatus
}

// Options configures the router.
type Options struct {
	CORSOrigins []string
	Metrics     *monitoring.Metrics
	// Now stamps responses; defaults to time.Now.
	Now func() time.Time
}

type server struct {
	engine Engine
	now    func() time.Time
}

// NewRouter builds the HTTP handler for the API.
func NewRouter(engine Engine, opts Options) http.Handler {
	s := &server{engine: engine, now: opts.Now}
	if s.now == nil {
		s.now = time.Now
	}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(opts.Metrics.Middleware)

	r.Get("/health", s.handleHealth)

	r.Route("/routes", func(r chi.Router) {
		r.Get("/", s.handleListRoutes)
		r.Get("/geometry", s.handleAllGeometry)
		r.Post("/compare", s.handleCompare)
		r.Get("/{id}", s.handleGetRoute)
		r.Get("/{id}/explain", s.handleExplainRoute)
		r.Get("/{id}/geometry", s.handleRouteGeometry)
	})

	r.Route("/feedback", func(r chi.Router) {
		r.Post("/", s.handleSubmitFeedback)
		r.Get("/{routeId}", s.handleListFeedback)
		r.Get("/{routeId}/summary", s.handleFeedbackSummary)
	})

	r.Get("/ai/stats", s.handleAIStats)
	r.Get("/ai/test", s.handleAITest)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC(),
	})
}
