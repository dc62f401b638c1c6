package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/store"
)

// RouteFeedbackStats summarises one route's feedback within the lookback window.
type RouteFeedbackStats struct {
	RouteID    string  `json:"route_id"`
	Total      int     `json:"total"`
	Unsafe     int     `json:"unsafe"`
	UnsafeRate float64 `json:"unsafe_rate"`
}

// MetricsSnapshot holds a point-in-time view of feedback and AI quota health.
type MetricsSnapshot struct {
	// Feedback metrics (within lookback window).
	FeedbackTotal  int                  `json:"feedback_total"`
	FeedbackUnsafe int                  `json:"feedback_unsafe"`
	Routes         []RouteFeedbackStats `json:"routes"`

	// AI client state at collection time.
	Quota model.QuotaStats `json:"quota"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// QuotaSource abstracts the explain client's budget report.
type QuotaSource interface {
	Stats() model.QuotaStats
}

// Collector gathers metrics from the feedback store and the AI client.
type Collector struct {
	feedback store.FeedbackStore
	quota    QuotaSource
	now      func() time.Time
}

// NewCollector creates a new metrics collector. quota may be nil.
func NewCollector(fb store.FeedbackStore, quota QuotaSource) *Collector {
	return &Collector{feedback: fb, quota: quota, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window. Routes are
// ordered by unsafe rate, highest first.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	items, err := c.feedback.ListFeedback(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list feedback")
	}

	byRoute := make(map[string]*RouteFeedbackStats)
	for _, fb := range items {
		if fb.CreatedAt.Before(cutoff) {
			continue
		}
		rs, ok := byRoute[fb.RouteID]
		if !ok {
			rs = &RouteFeedbackStats{RouteID: fb.RouteID}
			byRoute[fb.RouteID] = rs
		}
		snap.FeedbackTotal++
		rs.Total++
		if fb.Rating == model.RatingUnsafe {
			snap.FeedbackUnsafe++
			rs.Unsafe++
		}
	}

	snap.Routes = make([]RouteFeedbackStats, 0, len(byRoute))
	for _, rs := range byRoute {
		rs.UnsafeRate = float64(rs.Unsafe) / float64(rs.Total)
		snap.Routes = append(snap.Routes, *rs)
	}
	sort.Slice(snap.Routes, func(i, j int) bool {
		if snap.Routes[i].UnsafeRate != snap.Routes[j].UnsafeRate {
			return snap.Routes[i].UnsafeRate > snap.Routes[j].UnsafeRate
		}
		return snap.Routes[i].RouteID < snap.Routes[j].RouteID
	})

	if c.quota != nil {
		snap.Quota = c.quota.Stats()
	}
	return snap, nil
}
