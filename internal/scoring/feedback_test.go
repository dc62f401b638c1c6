package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/store"
)

func intPtr(v int) *int { return &v }

func TestSubmitFeedback(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	e := newTestEngine(t, mem, fallbackExplainer())

	fb, err := e.SubmitFeedback(ctx, model.FeedbackInput{
		RouteID:  " route3 ",
		Rating:   intPtr(-2),
		Comments: "  dark stretch near the gate ",
		Issues:   []string{"poor lighting", " ", "isolated"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, fb.ID)
	assert.Equal(t, "route3", fb.RouteID)
	assert.Equal(t, model.RatingUnsafe, fb.Rating)
	assert.Equal(t, "dark stretch near the gate", fb.Comments)
	assert.Equal(t, []string{"poor lighting", "isolated"}, fb.Issues)
	assert.Equal(t, noon, fb.CreatedAt)

	stored, err := mem.ListFeedbackByRoute(ctx, "route3")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, fb.ID, stored[0].ID)

	// The new feedback is reflected in the next score.
	sr, err := e.ScoreRouteByID(ctx, "route3")
	require.NoError(t, err)
	assert.Equal(t, 23, sr.SafetyScore)
}

func TestSubmitFeedback_Validation(t *testing.T) {
	tests := []struct {
		name  string
		in    model.FeedbackInput
		field string
	}{
		{"missing route", model.FeedbackInput{Rating: intPtr(1)}, "routeId"},
		{"missing rating", model.FeedbackInput{RouteID: "route1"}, "rating"},
		{"rating out of set", model.FeedbackInput{RouteID: "route1", Rating: intPtr(5)}, "rating"},
		{"rating minus one", model.FeedbackInput{RouteID: "route1", Rating: intPtr(-1)}, "rating"},
		{"unknown route", model.FeedbackInput{RouteID: "route77", Rating: intPtr(0)}, "routeId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemory()
			e := newTestEngine(t, mem, fallbackExplainer())

			_, err := e.SubmitFeedback(context.Background(), tt.in)
			require.Error(t, err)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)

			all, err := mem.ListFeedback(context.Background())
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestSubmitFeedback_StoreError(t *testing.T) {
	e := newTestEngine(t, failingFeedback{}, fallbackExplainer())

	_, err := e.SubmitFeedback(context.Background(), model.FeedbackInput{RouteID: "route1", Rating: intPtr(1)})
	require.Error(t, err)
	assert.False(t, IsValidation(err))
	assert.Contains(t, err.Error(), "scoring: append feedback")
}

func TestSubmitFeedback_CatalogueUnreadable(t *testing.T) {
	e := New(failingRoutes{}, store.NewMemory(), fallbackExplainer())

	_, err := e.SubmitFeedback(context.Background(), model.FeedbackInput{RouteID: "route1", Rating: intPtr(1)})
	require.Error(t, err)
	assert.False(t, IsValidation(err))
}

func TestFeedbackSummary(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	e := newTestEngine(t, mem, fallbackExplainer())

	ratings := []model.Rating{
		model.RatingSafe, model.RatingSafe, model.RatingUnsafe,
		model.RatingSafe, model.RatingNeutral, model.RatingSafe,
	}
	for i, r := range ratings {
		_, err := mem.AppendFeedback(ctx, model.Feedback{
			ID:        string(rune('a' + i)),
			RouteID:   "route5",
			Rating:    r,
			CreatedAt: noon.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	summary, err := e.FeedbackSummary(ctx, "route5")
	require.NoError(t, err)
	assert.Equal(t, "route5", summary.RouteID)
	assert.Equal(t, 6, summary.Count)
	assert.Equal(t, 67, summary.SafePct)
	assert.Equal(t, 17, summary.NeutralPct)
	assert.Equal(t, 17, summary.UnsafePct)

	require.Len(t, summary.Recent, 5)
	assert.Equal(t, "f", summary.Recent[0].ID)
	assert.Equal(t, "b", summary.Recent[4].ID)
}

func TestFeedbackSummary_Empty(t *testing.T) {
	e := newTestEngine(t, store.NewMemory(), fallbackExplainer())

	summary, err := e.FeedbackSummary(context.Background(), "route1")
	require.NoError(t, err)
	assert.Zero(t, summary.Count)
	assert.NotNil(t, summary.Recent)
	assert.Empty(t, summary.Recent)
}

func TestFeedbackForRoute_StoreError(t *testing.T) {
	e := newTestEngine(t, failingFeedback{}, fallbackExplainer())

	_, err := e.FeedbackForRoute(context.Background(), "route1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scoring: feedback for route route1")
}
