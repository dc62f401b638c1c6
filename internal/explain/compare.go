package explain

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/saferoute/internal/model"
)

// CompareRoutes recommends the highest-scoring route. Ties go to the route
// that appears first. In live mode the narrative comes from one provider call
// for the whole set; otherwise it is built from the scores alone.
func (c *Client) CompareRoutes(ctx context.Context, routes []model.ScoredRoute) (model.Comparison, error) {
	if len(routes) < 2 {
		return model.Comparison{}, eris.Errorf("explain: compare needs at least 2 routes, got %d", len(routes))
	}

	best := BestRoute(routes)
	cmp := model.Comparison{
		BestRouteID:   best.ID,
		BestRouteName: best.Name,
		BestScore:     best.SafetyScore,
		Routes:        routes,
		GeneratedAt:   c.opts.Now(),
	}

	if _, ok := c.fallbackOnly(); !ok {
		text, n, err := c.callWithRateLimit(ctx, comparePrompt(routes))
		if err == nil {
			c.recorder.ExplanationServed(model.ProvenanceLive)
			cmp.Narrative = text
			cmp.Analysis = "AI-assisted route comparison"
			cmp.Provenance = model.ProvenanceLive
			cmp.CallNumber = n
			return cmp, nil
		}
		zap.L().Info("explain: serving fallback comparison", zap.Error(err))
	}

	c.recorder.ExplanationServed(model.ProvenanceFallback)
	cmp.Narrative = fmt.Sprintf("Choose %s: it has the highest safety score (%d/100) of the %d routes compared.",
		best.Name, best.SafetyScore, len(routes))
	cmp.Analysis = scoreSummary(routes)
	cmp.Provenance = model.ProvenanceFallback
	return cmp, nil
}

// BestRoute returns the first route with the highest safety score. routes
// must be non-empty.
func BestRoute(routes []model.ScoredRoute) model.ScoredRoute {
	best := routes[0]
	for _, r := range routes[1:] {
		if r.SafetyScore > best.SafetyScore {
			best = r
		}
	}
	return best
}

func scoreSummary(routes []model.ScoredRoute) string {
	parts := make([]string, len(routes))
	for i, r := range routes {
		parts[i] = fmt.Sprintf("%s %d/100 (%s)", r.Name, r.SafetyScore, r.Category.Level)
	}
	return "Routes compared on safety score: " + strings.Join(parts, "; ")
}
