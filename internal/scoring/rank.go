package scoring

import (
	"context"
	"sort"

	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/normalize"
)

// ParseCriteria converts names to criteria. Unknown names are a validation
// error; an empty list selects every criterion.
func ParseCriteria(names []string) ([]normalize.Criterion, error) {
	if len(names) == 0 {
		return []normalize.Criterion{normalize.CriterionSafety, normalize.CriterionTime, normalize.CriterionDistance}, nil
	}
	out := make([]normalize.Criterion, 0, len(names))
	for _, n := range names {
		c := normalize.Criterion(n)
		if _, ok := normalize.DefaultCompositeWeights[c]; !ok {
			return nil, invalid("criteria", "unknown criterion %q", n)
		}
		out = append(out, c)
	}
	return out, nil
}

// RankRoutes scores every route without explanations and orders them by a
// weighted composite of the chosen criteria. Each criterion is normalized to
// 0-100 within the set; shorter time and distance rank higher. Routes whose
// time or distance cannot be parsed are ranked on their other criteria.
func (e *Engine) RankRoutes(ctx context.Context, criteria []normalize.Criterion) []model.RankedRoute {
	return Rank(e.ScoreCatalogue(ctx), criteria)
}

// Rank computes normalized and composite scores for already-scored routes.
func Rank(scored []model.ScoredRoute, criteria []normalize.Criterion) []model.RankedRoute {
	weights := make(map[normalize.Criterion]float64, len(criteria))
	for _, c := range criteria {
		weights[c] = normalize.DefaultCompositeWeights[c]
	}

	safety := normalizeMetric(scored, func(r model.ScoredRoute) float64 { return float64(r.SafetyScore) }, false)
	travel := normalizeMetric(scored, func(r model.ScoredRoute) float64 { return normalize.ParseLeadingNumber(r.EstimatedTime) }, true)
	dist := normalizeMetric(scored, func(r model.ScoredRoute) float64 { return normalize.ParseLeadingNumber(r.Distance) }, true)

	ranked := make([]model.RankedRoute, len(scored))
	for i, r := range scored {
		rr := model.RankedRoute{ScoredRoute: r}
		scores := make(map[normalize.Criterion]float64, 3)

		rr.SafetyNormalized = safety[i]
		scores[normalize.CriterionSafety] = float64(safety[i])
		if travel[i] >= 0 {
			rr.TimeNormalized = travel[i]
			scores[normalize.CriterionTime] = float64(travel[i])
		}
		if dist[i] >= 0 {
			rr.DistanceNormalized = dist[i]
			scores[normalize.CriterionDistance] = float64(dist[i])
		}
		rr.Composite = normalize.Composite(scores, weights)
		ranked[i] = rr
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Composite > ranked[j].Composite
	})
	return ranked
}

// normalizeMetric normalizes a metric within the set. invert flips the scale
// so smaller raw values score higher; inverted metrics treat non-positive
// values as missing and mark them -1.
func normalizeMetric(routes []model.ScoredRoute, value func(model.ScoredRoute) float64, invert bool) []int {
	out := make([]int, len(routes))
	var (
		idx  []int
		vals []float64
	)
	for i, r := range routes {
		v := value(r)
		if v <= 0 && invert {
			out[i] = -1
			continue
		}
		idx = append(idx, i)
		vals = append(vals, v)
	}

	for k, n := range normalize.ForComparison(vals) {
		if invert {
			n = 100 - n
		}
		out[idx[k]] = n
	}
	return out
}
