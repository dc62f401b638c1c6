package model

import "time"

// Rating is a user's perceived-safety vote for a route.
type Rating int

const (
	RatingUnsafe  Rating = -2
	RatingNeutral Rating = 0
	RatingSafe    Rating = 1
)

// Valid reports whether r is one of the three accepted ratings.
func (r Rating) Valid() bool {
	switch r {
	case RatingUnsafe, RatingNeutral, RatingSafe:
		return true
	default:
		return false
	}
}

func (r Rating) String() string {
	switch r {
	case RatingUnsafe:
		return "unsafe"
	case RatingNeutral:
		return "neutral"
	case RatingSafe:
		return "safe"
	default:
		return "invalid"
	}
}

// Feedback is an immutable user feedback record for a route.
type Feedback struct {
	ID        string    `json:"id"`
	RouteID   string    `json:"routeId"`
	Rating    Rating    `json:"rating"`
	Comments  string    `json:"comments,omitempty"`
	Issues    []string  `json:"issues,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}

// FeedbackInput is a feedback submission before validation.
type FeedbackInput struct {
	RouteID  string   `json:"routeId"`
	Rating   *int     `json:"rating"`
	Comments string   `json:"comments,omitempty"`
	Issues   []string `json:"issues,omitempty"`
}

// FeedbackSummary aggregates the feedback recorded for a route.
type FeedbackSummary struct {
	RouteID    string     `json:"routeId"`
	Count      int        `json:"count"`
	SafePct    int        `json:"safe"`
	NeutralPct int        `json:"okay"`
	UnsafePct  int        `json:"unsafe"`
	Recent     []Feedback `json:"recentFeedback"`
}
