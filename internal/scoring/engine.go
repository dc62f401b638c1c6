// Package scoring computes route safety scores from infrastructure counts and
// user feedback. The explained entry points also attach an explanation.
//
// The pipeline order is fixed: base score, feedback adjustment, time-of-day
// adjustment (display only), category, explanation. Scoring never fails
// because of feedback or explanation problems; it degrades instead.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/normalize"
	"github.com/sells-group/saferoute/internal/store"
)

const (
	defaultConcurrency = 4
	defaultCacheTTL    = 5 * time.Minute
)

// Explainer produces explanations and comparisons for scored routes.
// *explain.Client implements it.
type Explainer interface {
	ExplainRoute(ctx context.Context, route model.ScoredRoute) model.Explanation
	CompareRoutes(ctx context.Context, routes []model.ScoredRoute) (model.Comparison, error)
	Stats() model.QuotaStats
	TestConnection(ctx context.Context) model.ConnectionStatus
}

// CacheObserver is notified of explanation cache lookups.
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

// Option configures an Engine.
type Option func(*Engine)

// WithExplanationCache caches live explanations for ttl so repeat requests
// for an unchanged score do not spend call budget.
func WithExplanationCache(cache store.ExplanationCache, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = cache
		if ttl > 0 {
			e.cacheTTL = ttl
		}
	}
}

// WithCacheObserver reports cache hits and misses, e.g. to metrics.
func WithCacheObserver(o CacheObserver) Option {
	return func(e *Engine) { e.observer = o }
}

// WithClock overrides the wall clock used for decay and time-of-day.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the location whose local hour drives the time-of-day
// adjustment.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithConcurrency bounds how many routes are explained in parallel.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// Engine is the scoring pipeline. It holds no per-request state and is safe
// for concurrent use.
type Engine struct {
	routes    store.RouteSource
	feedback  store.FeedbackStore
	explainer Explainer

	cache       store.ExplanationCache
	cacheTTL    time.Duration
	observer    CacheObserver
	now         func() time.Time
	loc         *time.Location
	concurrency int
}

// New creates an Engine.
func New(routes store.RouteSource, feedback store.FeedbackStore, explainer Explainer, opts ...Option) *Engine {
	e := &Engine{
		routes:      routes,
		feedback:    feedback,
		explainer:   explainer,
		cacheTTL:    defaultCacheTTL,
		now:         time.Now,
		loc:         time.Local,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ScoreRoute runs every pipeline stage except the explanation, so it never
// spends call budget.
func (e *Engine) ScoreRoute(ctx context.Context, route model.Route) model.ScoredRoute {
	return e.score(ctx, route)
}

// ScoreRouteByID scores the catalogue route with the given id. Unknown ids
// return an error wrapping store.ErrNotFound.
func (e *Engine) ScoreRouteByID(ctx context.Context, id string) (model.ScoredRoute, error) {
	route, err := e.Route(ctx, id)
	if err != nil {
		return model.ScoredRoute{}, err
	}
	return e.score(ctx, route), nil
}

// ExplainRoute scores one catalogue route and attaches its explanation.
func (e *Engine) ExplainRoute(ctx context.Context, id string) (model.ScoredRoute, error) {
	sr, err := e.ScoreRouteByID(ctx, id)
	if err != nil {
		return model.ScoredRoute{}, err
	}
	e.attachExplanation(ctx, &sr)
	return sr, nil
}

// ScoreAllRoutes scores every catalogue route, sorted by adjusted score
// descending with ties in catalogue order. An unreadable catalogue yields an
// empty result.
func (e *Engine) ScoreAllRoutes(ctx context.Context) []model.ScoredRoute {
	routes, err := e.routes.ListRoutes(ctx)
	if err != nil {
		zap.L().Error("scoring: list routes", zap.Error(err))
		return []model.ScoredRoute{}
	}

	scored := make([]model.ScoredRoute, len(routes))
	for i, r := range routes {
		scored[i] = e.score(ctx, r)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range scored {
		g.Go(func() error {
			e.attachExplanation(gCtx, &scored[i])
			return nil
		})
	}
	_ = g.Wait()

	SortByScore(scored)
	return scored
}

// ScoreCatalogue is ScoreAllRoutes without explanations.
func (e *Engine) ScoreCatalogue(ctx context.Context) []model.ScoredRoute {
	routes, err := e.routes.ListRoutes(ctx)
	if err != nil {
		zap.L().Error("scoring: list routes", zap.Error(err))
		return []model.ScoredRoute{}
	}
	scored := make([]model.ScoredRoute, len(routes))
	for i, r := range routes {
		scored[i] = e.score(ctx, r)
	}
	SortByScore(scored)
	return scored
}

// Route looks up a catalogue route by id.
func (e *Engine) Route(ctx context.Context, id string) (model.Route, error) {
	routes, err := e.routes.ListRoutes(ctx)
	if err != nil {
		return model.Route{}, eris.Wrap(err, "scoring: list routes")
	}
	for _, r := range routes {
		if r.ID == id {
			return r, nil
		}
	}
	return model.Route{}, eris.Wrapf(store.ErrNotFound, "scoring: route %s", id)
}

// CompareRoutes scores the requested routes and asks the explainer to pick
// the safest. At least two known route ids are required.
func (e *Engine) CompareRoutes(ctx context.Context, ids []string) (model.Comparison, error) {
	if len(ids) < 2 {
		return model.Comparison{}, invalid("routeIds", "at least 2 routes are required for comparison, got %d", len(ids))
	}

	routes, err := e.routes.ListRoutes(ctx)
	if err != nil {
		return model.Comparison{}, eris.Wrap(err, "scoring: list routes")
	}
	byID := make(map[string]model.Route, len(routes))
	for _, r := range routes {
		byID[r.ID] = r
	}

	scored := make([]model.ScoredRoute, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			return model.Comparison{}, invalid("routeIds", "unknown route %q", id)
		}
		scored = append(scored, e.score(ctx, r))
	}

	cmp, err := e.explainer.CompareRoutes(ctx, scored)
	if err != nil {
		return model.Comparison{}, eris.Wrap(err, "scoring: compare routes")
	}
	return cmp, nil
}

// QuotaStats reports the explainer's call budget.
func (e *Engine) QuotaStats() model.QuotaStats {
	return e.explainer.Stats()
}

// TestConnection probes the explanation provider.
func (e *Engine) TestConnection(ctx context.Context) model.ConnectionStatus {
	return e.explainer.TestConnection(ctx)
}

// score runs every pipeline stage except the explanation.
func (e *Engine) score(ctx context.Context, route model.Route) model.ScoredRoute {
	now := e.now()
	base := BaseScore(route.Infrastructure)

	adjusted := base
	count := 0
	items, err := e.feedback.ListFeedbackByRoute(ctx, route.ID)
	if err != nil {
		zap.L().Error("scoring: feedback unavailable, using base score",
			zap.String("route_id", route.ID),
			zap.Error(err),
		)
	} else {
		count = len(items)
		adjusted = AdjustForFeedback(base, items, now)
	}

	return model.ScoredRoute{
		Route:             route,
		BaseScore:         base,
		SafetyScore:       adjusted,
		TimeAdjustedScore: normalize.AdjustForTimeOfDay(adjusted, now.In(e.loc)),
		Category:          Categorize(adjusted),
		Coverage:          normalize.Coverage(route.Infrastructure),
		FeedbackCount:     count,
		ScoredAt:          now.UTC(),
	}
}

// attachExplanation sets sr.Explanation, consulting the cache first. It
// always leaves a non-nil explanation.
func (e *Engine) attachExplanation(ctx context.Context, sr *model.ScoredRoute) {
	key := cacheKey(*sr)

	if e.cache != nil {
		cached, err := e.cache.GetCachedExplanation(ctx, key)
		switch {
		case err != nil:
			zap.L().Warn("scoring: explanation cache read failed", zap.String("key", key), zap.Error(err))
		case cached != nil:
			e.cacheHit()
			cached.Cached = true
			sr.Explanation = cached
			return
		default:
			e.cacheMiss()
		}
	}

	exp := e.explainer.ExplainRoute(ctx, *sr)
	if exp.Text == "" {
		exp = model.Explanation{
			Text:        fmt.Sprintf("Safety score for %s: %d/100.", sr.Name, sr.SafetyScore),
			Provenance:  model.ProvenanceFallback,
			GeneratedAt: e.now(),
		}
	}
	sr.Explanation = &exp

	if e.cache != nil && exp.Provenance == model.ProvenanceLive {
		if err := e.cache.SetCachedExplanation(ctx, key, exp, e.cacheTTL); err != nil {
			zap.L().Warn("scoring: explanation cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (e *Engine) cacheHit() {
	if e.observer != nil {
		e.observer.CacheHit()
	}
}

func (e *Engine) cacheMiss() {
	if e.observer != nil {
		e.observer.CacheMiss()
	}
}

// cacheKey ties a cached explanation to the score it describes, so new
// feedback that moves the score invalidates it.
func cacheKey(sr model.ScoredRoute) string {
	return fmt.Sprintf("explanation:%s:%d", sr.ID, sr.SafetyScore)
}

// BaseScore maps the weighted infrastructure sum onto 0-100 against the
// largest achievable capped sum.
func BaseScore(inf model.Infrastructure) int {
	return normalize.ToHundred(normalize.RawScore(inf), 0, normalize.MaxPossibleRawScore())
}

// AdjustForFeedback adds the decay-smoothed feedback average to the base
// score as a raw point delta, then clamps and rounds.
func AdjustForFeedback(base int, items []model.Feedback, now time.Time) int {
	if len(items) == 0 {
		return base
	}
	ratings := make([]float64, len(items))
	stamps := make([]time.Time, len(items))
	for i, fb := range items {
		ratings[i] = float64(fb.Rating)
		stamps[i] = fb.CreatedAt
	}
	delta := normalize.SmoothFeedback(ratings, stamps, now)
	return int(normalize.Round(normalize.Clamp(float64(base)+delta, 0, 100)))
}

// SortByScore orders routes by adjusted score descending. Equal scores keep
// their relative order.
func SortByScore(routes []model.ScoredRoute) {
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].SafetyScore > routes[j].SafetyScore
	})
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
