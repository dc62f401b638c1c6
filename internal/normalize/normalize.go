// Package normalize converts raw infrastructure counts and feedback into
// 0-100 safety scores. Every function is pure.
package normalize

import (
	"math"
	"time"

	"github.com/sells-group/saferoute/internal/model"
)

// DecayDays is the window over which feedback weight falls linearly to zero.
const DecayDays = 30

const (
	nightFactor = 0.85
	dayFactor   = 1.05
)

// factor is the scoring weight and per-route cap of one infrastructure kind.
type factor struct {
	weight float64
	cap    int
}

var factors = map[model.InfrastructureKind]factor{
	model.PoliceStation: {weight: 3, cap: 3},
	model.PoliceBooth:   {weight: 2, cap: 4},
	model.CCTV:          {weight: 2, cap: 8},
	model.Streetlight:   {weight: 2, cap: 10},
	model.ATM:           {weight: 1, cap: 8},
}

// Weight returns the scoring weight of an infrastructure kind.
func Weight(kind model.InfrastructureKind) float64 {
	return factors[kind].weight
}

// Cap returns the maximum count of an infrastructure kind that contributes
// to the maximum possible raw score.
func Cap(kind model.InfrastructureKind) int {
	return factors[kind].cap
}

// ToHundred linearly scales value from [lo, hi] to [0, 100], rounds to the
// nearest integer and clamps. When lo == hi there is no range to scale
// against and 50 is returned.
func ToHundred(value, lo, hi float64) int {
	if hi == lo {
		return 50
	}
	normalized := (value - lo) / (hi - lo) * 100
	return int(Clamp(Round(normalized), 0, 100))
}

// MaxPossibleRawScore is the weighted sum of every category at its cap. It is
// the common denominator that makes raw scores comparable across routes.
func MaxPossibleRawScore() float64 {
	var total float64
	for _, kind := range model.InfrastructureKinds {
		f := factors[kind]
		total += float64(f.cap) * f.weight
	}
	return total
}

// RawScore is the weighted infrastructure sum for a route.
func RawScore(inf model.Infrastructure) float64 {
	var total float64
	for _, kind := range model.InfrastructureKinds {
		total += float64(inf.Count(kind)) * factors[kind].weight
	}
	return total
}

// SmoothFeedback returns the linearly time-decayed weighted average of
// ratings. Each item is weighted max(0, 1 - daysAgo/30); anything older than
// the decay window contributes nothing. Returns 0 when there is no feedback or
// all weights are zero. Timestamps in the future count as current.
func SmoothFeedback(ratings []float64, timestamps []time.Time, now time.Time) float64 {
	if len(ratings) == 0 {
		return 0
	}

	var weightedSum, totalWeight float64
	for i, rating := range ratings {
		if i >= len(timestamps) {
			break
		}
		daysAgo := now.Sub(timestamps[i]).Hours() / 24
		if daysAgo < 0 {
			daysAgo = 0
		}
		weight := math.Max(0, 1-daysAgo/DecayDays)
		weightedSum += rating * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

// AdjustForTimeOfDay applies the travel-time modifier to a score: a 15%
// penalty from 22:00 to 04:59, a 5% bonus (capped at 100) from 08:00 to
// 17:59, and no change otherwise. The hour is read in at's location.
func AdjustForTimeOfDay(score int, at time.Time) int {
	hour := at.Hour()

	switch {
	case hour >= 22 || hour < 5:
		return int(Round(float64(score) * nightFactor))
	case hour >= 8 && hour < 18:
		return int(Round(math.Min(100, float64(score)*dayFactor)))
	default:
		return score
	}
}

// Coverage returns, per category, the count as a rounded percentage of its
// cap. Values above the cap exceed 100.
func Coverage(inf model.Infrastructure) map[model.InfrastructureKind]int {
	out := make(map[model.InfrastructureKind]int, len(model.InfrastructureKinds))
	for _, kind := range model.InfrastructureKinds {
		out[kind] = int(Round(float64(inf.Count(kind)) / float64(factors[kind].cap) * 100))
	}
	return out
}

// Round rounds half up, so 0.5 becomes 1 and -0.5 becomes 0.
func Round(x float64) float64 {
	return math.Floor(x + 0.5)
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
