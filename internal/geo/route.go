// Package geo renders route waypoints as GeoJSON for map clients.
package geo

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/saferoute/internal/model"
)

const earthRadiusKM = 6371.0

// Geometry returns the route's path: a LineString for two or more waypoints,
// a Point for one, and nil when the route has no waypoints.
func Geometry(waypoints []model.Waypoint) (geom.T, error) {
	switch len(waypoints) {
	case 0:
		return nil, nil
	case 1:
		return geom.NewPointFlat(geom.XY, []float64{waypoints[0].Lon, waypoints[0].Lat}), nil
	}

	for i, w := range waypoints {
		if w.Lat < -90 || w.Lat > 90 || w.Lon < -180 || w.Lon > 180 {
			return nil, eris.Errorf("geo: waypoint %d out of range (%f, %f)", i, w.Lon, w.Lat)
		}
	}
	return geom.NewLineStringFlat(geom.XY, flatCoords(waypoints)), nil
}

// Feature builds a GeoJSON feature for a scored route. Score fields are
// attached as properties so the client can colour the path.
func Feature(route model.ScoredRoute) (*geojson.Feature, error) {
	g, err := Geometry(route.Waypoints)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: route %s", route.ID)
	}

	f := &geojson.Feature{
		ID:       route.ID,
		Geometry: g,
		Properties: map[string]any{
			"name":        route.Name,
			"safetyScore": route.SafetyScore,
			"category":    route.Category.Level,
			"color":       route.Category.Color,
			"lengthKm":    math.Round(LengthKM(route.Waypoints)*100) / 100,
		},
	}
	if g != nil {
		f.BBox = g.Bounds()
	}
	return f, nil
}

// FeatureCollection builds one feature per route, in input order.
func FeatureCollection(routes []model.ScoredRoute) (*geojson.FeatureCollection, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(routes))}
	for _, r := range routes {
		f, err := Feature(r)
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, f)
	}
	return fc, nil
}

// LengthKM sums the great-circle distance between consecutive waypoints.
func LengthKM(waypoints []model.Waypoint) float64 {
	var total float64
	for i := 1; i < len(waypoints); i++ {
		total += haversineKM(waypoints[i-1], waypoints[i])
	}
	return total
}

func haversineKM(a, b model.Waypoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}

// flatCoords converts waypoints to flat lon/lat pairs for go-geom.
func flatCoords(waypoints []model.Waypoint) []float64 {
	flat := make([]float64, 0, len(waypoints)*2)
	for _, w := range waypoints {
		flat = append(flat, w.Lon, w.Lat)
	}
	return flat
}
