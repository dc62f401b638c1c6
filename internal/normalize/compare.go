package normalize

import (
	"strconv"
	"strings"
	"unicode"
)

// Criterion is a dimension routes can be ranked on.
type Criterion string

const (
	CriterionSafety   Criterion = "safety"
	CriterionTime     Criterion = "time"
	CriterionDistance Criterion = "distance"
)

// DefaultCompositeWeights weights safety well above travel time and distance.
var DefaultCompositeWeights = map[Criterion]float64{
	CriterionSafety:   0.7,
	CriterionTime:     0.2,
	CriterionDistance: 0.1,
}

// ForComparison normalizes values to 0-100 relative to the smallest and
// largest value in the set. A set whose values are all equal maps to 50.
func ForComparison(values []float64) []int {
	if len(values) == 0 {
		return nil
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	out := make([]int, len(values))
	for i, v := range values {
		out[i] = ToHundred(v, lo, hi)
	}
	return out
}

// Composite combines per-criterion scores using weights. Criteria missing
// from scores are skipped and the remaining weights are re-normalized.
func Composite(scores map[Criterion]float64, weights map[Criterion]float64) int {
	var composite, totalWeight float64
	for criterion, w := range weights {
		s, ok := scores[criterion]
		if !ok {
			continue
		}
		composite += s * w
		totalWeight += w
	}

	if totalWeight > 0 && totalWeight != 1 {
		composite /= totalWeight
	}
	return int(Round(composite))
}

// ParseLeadingNumber parses the number at the start of a display string such
// as "8 mins" or "1.2 km". It returns 0 when there is no leading number.
func ParseLeadingNumber(s string) float64 {
	s = strings.TrimSpace(s)
	end := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.' && r != '-'
	})
	if end == -1 {
		end = len(s)
	}

	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return v
}
