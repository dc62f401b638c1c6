package scoring

import "github.com/sells-group/saferoute/internal/model"

// Lower bounds of the safe and moderate bands. Scores below ModerateMin are
// unsafe.
const (
	SafeMin     = 67
	ModerateMin = 34
)

var (
	categorySafe     = model.Category{Level: model.LevelSafe, Label: "Safe", Color: "green", Icon: "check-circle"}
	categoryModerate = model.Category{Level: model.LevelModerate, Label: "Moderate", Color: "yellow", Icon: "alert-circle"}
	categoryUnsafe   = model.Category{Level: model.LevelUnsafe, Label: "Unsafe", Color: "red", Icon: "x-circle"}
)

// Categorize bands an adjusted score: [67,100] safe, [34,66] moderate,
// [0,33] unsafe.
func Categorize(score int) model.Category {
	switch {
	case score >= SafeMin:
		return categorySafe
	case score >= ModerateMin:
		return categoryModerate
	default:
		return categoryUnsafe
	}
}
