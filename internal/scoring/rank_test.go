package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/normalize"
	"github.com/sells-group/saferoute/internal/store"
)

func rankFixture() []model.ScoredRoute {
	return []model.ScoredRoute{
		{Route: model.Route{ID: "a", EstimatedTime: "10 mins", Distance: "2 km"}, SafetyScore: 80},
		{Route: model.Route{ID: "b", EstimatedTime: "5 mins", Distance: "1 km"}, SafetyScore: 60},
		{Route: model.Route{ID: "c"}, SafetyScore: 40},
	}
}

func rankedIDs(rr []model.RankedRoute) []string {
	ids := make([]string, len(rr))
	for i, r := range rr {
		ids[i] = r.ID
	}
	return ids
}

func TestRank_AllCriteria(t *testing.T) {
	all, err := ParseCriteria(nil)
	require.NoError(t, err)

	ranked := Rank(rankFixture(), all)
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"a", "b", "c"}, rankedIDs(ranked))

	a, b, c := ranked[0], ranked[1], ranked[2]
	assert.Equal(t, 100, a.SafetyNormalized)
	assert.Equal(t, 0, a.TimeNormalized)
	assert.Equal(t, 70, a.Composite)

	assert.Equal(t, 50, b.SafetyNormalized)
	assert.Equal(t, 100, b.TimeNormalized)
	assert.Equal(t, 100, b.DistanceNormalized)
	assert.Equal(t, 65, b.Composite)

	// No parsable time or distance: ranked on safety alone.
	assert.Equal(t, 0, c.SafetyNormalized)
	assert.Equal(t, 0, c.Composite)
}

func TestRank_SingleCriterion(t *testing.T) {
	ranked := Rank(rankFixture(), []normalize.Criterion{normalize.CriterionTime})
	assert.Equal(t, []string{"b", "a", "c"}, rankedIDs(ranked))
	assert.Equal(t, 100, ranked[0].Composite)

	ranked = Rank(rankFixture(), []normalize.Criterion{normalize.CriterionSafety})
	assert.Equal(t, []string{"a", "b", "c"}, rankedIDs(ranked))
	assert.Equal(t, []int{100, 50, 0}, []int{ranked[0].Composite, ranked[1].Composite, ranked[2].Composite})
}

func TestParseCriteria(t *testing.T) {
	got, err := ParseCriteria([]string{"safety", "distance"})
	require.NoError(t, err)
	assert.Equal(t, []normalize.Criterion{normalize.CriterionSafety, normalize.CriterionDistance}, got)

	_, err = ParseCriteria([]string{"price"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), `unknown criterion "price"`)
}

func TestRankRoutes_Catalogue(t *testing.T) {
	ex := liveExplainer()
	e := newTestEngine(t, store.NewMemory(), ex)

	ranked := e.RankRoutes(context.Background(), []normalize.Criterion{normalize.CriterionSafety})
	require.Len(t, ranked, 5)
	assert.Equal(t, "route4", ranked[0].ID)
	assert.Equal(t, 100, ranked[0].Composite)
	assert.Equal(t, "route3", ranked[4].ID)
	assert.Equal(t, 0, ranked[4].Composite)

	// Ranking never spends explanation budget.
	ex.AssertNumberOfCalls(t, "ExplainRoute", 0)
	assert.Nil(t, ranked[0].Explanation)
}

func TestRankRoutes_CatalogueUnreadable(t *testing.T) {
	e := New(failingRoutes{}, store.NewMemory(), fallbackExplainer())
	assert.Empty(t, e.RankRoutes(context.Background(), nil))
}
