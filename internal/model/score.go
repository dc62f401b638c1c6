package model

import "time"

// SafetyLevel is the categorical band of an adjusted safety score.
type SafetyLevel string

const (
	LevelSafe     SafetyLevel = "safe"
	LevelModerate SafetyLevel = "moderate"
	LevelUnsafe   SafetyLevel = "unsafe"
)

// Category carries a safety level plus its display tokens.
type Category struct {
	Level SafetyLevel `json:"level"`
	Label string      `json:"label"`
	Color string      `json:"color"`
	Icon  string      `json:"icon"`
}

// ScoredRoute is a route with its derived scores. It is recomputed on every
// request and never persisted.
type ScoredRoute struct {
	Route

	BaseScore         int                        `json:"baseScore"`
	SafetyScore       int                        `json:"safetyScore"`
	TimeAdjustedScore int                        `json:"timeAdjustedScore"`
	Category          Category                   `json:"safetyCategory"`
	Coverage          map[InfrastructureKind]int `json:"coverage"`
	FeedbackCount     int                        `json:"feedbackCount"`
	Explanation       *Explanation               `json:"aiExplanation,omitempty"`
	ScoredAt          time.Time                  `json:"lastUpdated"`
}

// RankedRoute is a scored route with per-criterion normalized scores used for
// multi-criteria ranking.
type RankedRoute struct {
	ScoredRoute

	SafetyNormalized   int `json:"safetyNormalized"`
	TimeNormalized     int `json:"timeNormalized"`
	DistanceNormalized int `json:"distanceNormalized"`
	Composite          int `json:"compositeScore"`
}

// Provenance marks where an explanation came from.
type Provenance string

const (
	ProvenanceLive     Provenance = "live"
	ProvenanceFallback Provenance = "fallback"
)

// Explanation is natural-language text describing a route's safety.
type Explanation struct {
	Text           string     `json:"explanation"`
	Provenance     Provenance `json:"provenance"`
	Model          string     `json:"model"`
	CallNumber     int        `json:"apiCallNumber,omitempty"`
	RemainingCalls *int       `json:"remainingCalls,omitempty"`
	Cached         bool       `json:"cached,omitempty"`
	Note           string     `json:"note,omitempty"`
	GeneratedAt    time.Time  `json:"timestamp"`
}

// Comparison is the recommendation produced when comparing routes.
type Comparison struct {
	BestRouteID   string        `json:"bestRouteId"`
	BestRouteName string        `json:"bestRoute"`
	BestScore     int           `json:"bestScore"`
	Narrative     string        `json:"recommendation"`
	Analysis      string        `json:"analysis"`
	Provenance    Provenance    `json:"provenance"`
	CallNumber    int           `json:"apiCallNumber,omitempty"`
	Routes        []ScoredRoute `json:"routes,omitempty"`
	GeneratedAt   time.Time     `json:"timestamp"`
}

// QuotaStats reports the state of the live AI call budget.
type QuotaStats struct {
	Enabled    bool       `json:"enabled"`
	MockMode   bool       `json:"mockMode"`
	UseMock    bool       `json:"useMock"`
	CallCount  int        `json:"callCount"`
	Budget     int        `json:"maxCalls"`
	Remaining  int        `json:"remainingCalls"`
	Model      string     `json:"model"`
	LastCallAt *time.Time `json:"lastCallAt,omitempty"`
}

// ConnectionStatus is the result of probing the AI provider.
type ConnectionStatus struct {
	Success bool   `json:"success"`
	Mode    string `json:"mode"`
	Message string `json:"message"`
	Model   string `json:"model"`
}
