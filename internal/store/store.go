package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/saferoute/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// RouteSource supplies the catalogue of candidate routes.
type RouteSource interface {
	ListRoutes(ctx context.Context) ([]model.Route, error)
}

// FeedbackStore is an append-only log of route feedback. Reads return
// records in the order they were appended.
type FeedbackStore interface {
	// AppendFeedback stores fb and returns its id. An empty ID or zero
	// CreatedAt is filled in by the store.
	AppendFeedback(ctx context.Context, fb model.Feedback) (string, error)
	ListFeedback(ctx context.Context) ([]model.Feedback, error)
	ListFeedbackByRoute(ctx context.Context, routeID string) ([]model.Feedback, error)
}

// ExplanationCache holds generated explanations for a limited time.
type ExplanationCache interface {
	// GetCachedExplanation returns nil without error on a miss or expiry.
	GetCachedExplanation(ctx context.Context, key string) (*model.Explanation, error)
	SetCachedExplanation(ctx context.Context, key string, exp model.Explanation, ttl time.Duration) error
}

// Store is the persistence interface for feedback and cached explanations.
type Store interface {
	FeedbackStore
	ExplanationCache

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// timeLayout is a fixed-width UTC layout so stored timestamps sort
// lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// stamp assigns an id and creation time to feedback that lacks them.
func stamp(fb model.Feedback) model.Feedback {
	if fb.ID == "" {
		fb.ID = uuid.New().String()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	return fb
}
