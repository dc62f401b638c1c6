package scoring

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/normalize"
	"github.com/sells-group/saferoute/internal/store"
)

// recentFeedbackLimit is how many items a summary carries.
const recentFeedbackLimit = 5

// SubmitFeedback validates and appends one feedback record. Invalid input
// returns a *ValidationError and writes nothing.
func (e *Engine) SubmitFeedback(ctx context.Context, in model.FeedbackInput) (model.Feedback, error) {
	routeID := strings.TrimSpace(in.RouteID)
	if routeID == "" {
		return model.Feedback{}, invalid("routeId", "route id is required")
	}
	if in.Rating == nil {
		return model.Feedback{}, invalid("rating", "rating is required")
	}
	rating := model.Rating(*in.Rating)
	if !rating.Valid() {
		return model.Feedback{}, invalid("rating", "rating must be one of -2, 0, 1, got %d", *in.Rating)
	}

	if _, err := e.Route(ctx, routeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Feedback{}, invalid("routeId", "unknown route %q", routeID)
		}
		return model.Feedback{}, err
	}

	fb := model.Feedback{
		RouteID:   routeID,
		Rating:    rating,
		Comments:  strings.TrimSpace(in.Comments),
		Issues:    cleanIssues(in.Issues),
		CreatedAt: e.now().UTC(),
	}
	id, err := e.feedback.AppendFeedback(ctx, fb)
	if err != nil {
		return model.Feedback{}, eris.Wrap(err, "scoring: append feedback")
	}
	fb.ID = id

	zap.L().Info("scoring: feedback recorded",
		zap.String("route_id", fb.RouteID),
		zap.String("feedback_id", fb.ID),
		zap.Stringer("rating", fb.Rating),
	)
	return fb, nil
}

// FeedbackForRoute returns the route's feedback in submission order.
func (e *Engine) FeedbackForRoute(ctx context.Context, routeID string) ([]model.Feedback, error) {
	items, err := e.feedback.ListFeedbackByRoute(ctx, routeID)
	if err != nil {
		return nil, eris.Wrapf(err, "scoring: feedback for route %s", routeID)
	}
	return items, nil
}

// FeedbackSummary aggregates a route's feedback: rounded percentage per
// rating and the most recent items, newest first.
func (e *Engine) FeedbackSummary(ctx context.Context, routeID string) (model.FeedbackSummary, error) {
	items, err := e.FeedbackForRoute(ctx, routeID)
	if err != nil {
		return model.FeedbackSummary{}, err
	}

	summary := model.FeedbackSummary{
		RouteID: routeID,
		Count:   len(items),
		Recent:  []model.Feedback{},
	}
	if len(items) == 0 {
		return summary, nil
	}

	var safe, neutral, unsafe int
	for _, fb := range items {
		switch fb.Rating {
		case model.RatingSafe:
			safe++
		case model.RatingNeutral:
			neutral++
		case model.RatingUnsafe:
			unsafe++
		}
	}
	summary.SafePct = percent(safe, len(items))
	summary.NeutralPct = percent(neutral, len(items))
	summary.UnsafePct = percent(unsafe, len(items))

	for i := len(items) - 1; i >= 0 && len(summary.Recent) < recentFeedbackLimit; i-- {
		summary.Recent = append(summary.Recent, items[i])
	}
	return summary, nil
}

func percent(n, total int) int {
	return int(normalize.Round(float64(n) / float64(total) * 100))
}

func cleanIssues(issues []string) []string {
	var out []string
	for _, s := range issues {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
