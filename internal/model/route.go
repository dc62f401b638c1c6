package model

// InfrastructureKind identifies one of the fixed safety infrastructure categories.
type InfrastructureKind string

const (
	PoliceStation InfrastructureKind = "policeStation"
	PoliceBooth   InfrastructureKind = "policeBooth"
	CCTV          InfrastructureKind = "cctv"
	Streetlight   InfrastructureKind = "streetlight"
	ATM           InfrastructureKind = "atm"
)

// InfrastructureKinds lists every category in display order.
var InfrastructureKinds = []InfrastructureKind{
	PoliceStation,
	PoliceBooth,
	CCTV,
	Streetlight,
	ATM,
}

// Infrastructure holds the non-negative counts of safety infrastructure
// observed along a route.
type Infrastructure struct {
	PoliceStation int `json:"policeStation" yaml:"policeStation"`
	PoliceBooth   int `json:"policeBooth" yaml:"policeBooth"`
	CCTV          int `json:"cctv" yaml:"cctv"`
	Streetlight   int `json:"streetlight" yaml:"streetlight"`
	ATM           int `json:"atm" yaml:"atm"`
}

// Count returns the count for the given category. Unknown kinds count as zero.
func (i Infrastructure) Count(kind InfrastructureKind) int {
	switch kind {
	case PoliceStation:
		return i.PoliceStation
	case PoliceBooth:
		return i.PoliceBooth
	case CCTV:
		return i.CCTV
	case Streetlight:
		return i.Streetlight
	case ATM:
		return i.ATM
	default:
		return 0
	}
}

// Total returns the sum of all counts.
func (i Infrastructure) Total() int {
	return i.PoliceStation + i.PoliceBooth + i.CCTV + i.Streetlight + i.ATM
}

// Route is a pre-enumerated pedestrian route with fixed infrastructure
// annotations. Routes are loaded from the catalogue and never mutated while
// being scored.
type Route struct {
	ID             string         `json:"id" yaml:"id"`
	Name           string         `json:"name" yaml:"name"`
	Description    string         `json:"description" yaml:"description"`
	Infrastructure Infrastructure `json:"infrastructure" yaml:"infrastructure"`

	// Optional display metadata, opaque to scoring.
	EstimatedTime string     `json:"estimatedTime,omitempty" yaml:"estimatedTime,omitempty"`
	Distance      string     `json:"distance,omitempty" yaml:"distance,omitempty"`
	Waypoints     []Waypoint `json:"waypoints,omitempty" yaml:"waypoints,omitempty"`
}

// Waypoint is a longitude/latitude pair along a route.
type Waypoint struct {
	Lon float64 `json:"lon" yaml:"lon"`
	Lat float64 `json:"lat" yaml:"lat"`
}
