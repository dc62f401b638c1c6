package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/saferoute/internal/geo"
	"github.com/sells-group/saferoute/internal/scoring"
)

func (s *server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortBy := q.Get("sort")
	criteriaParam := q.Get("criteria")

	switch sortBy {
	case "", "safety":
		if criteriaParam == "" {
			routes := s.engine.ScoreAllRoutes(r.Context())
			writeJSON(w, http.StatusOK, map[string]any{
				"success":   true,
				"routes":    routes,
				"count":     len(routes),
				"timestamp": s.now().UTC(),
			})
			return
		}
	case "composite":
	default:
		writeFailure(w, r, &scoring.ValidationError{Field: "sort", Message: "sort must be safety or composite"})
		return
	}

	criteria, err := scoring.ParseCriteria(splitList(criteriaParam))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	ranked := s.engine.RankRoutes(r.Context(), criteria)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"routes":    ranked,
		"count":     len(ranked),
		"criteria":  criteria,
		"timestamp": s.now().UTC(),
	})
}

func (s *server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	sr, err := s.engine.ExplainRoute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "route": sr})
}

func (s *server) handleExplainRoute(w http.ResponseWriter, r *http.Request) {
	sr, err := s.engine.ExplainRoute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"routeId":     sr.ID,
		"routeName":   sr.Name,
		"safetyScore": sr.SafetyScore,
		"explanation": sr.Explanation,
	})
}

func (s *server) handleRouteGeometry(w http.ResponseWriter, r *http.Request) {
	sr, err := s.engine.ScoreRouteByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	f, err := geo.Feature(sr)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeGeoJSON(w, f)
}

func (s *server) handleAllGeometry(w http.ResponseWriter, r *http.Request) {
	fc, err := geo.FeatureCollection(s.engine.ScoreCatalogue(r.Context()))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeGeoJSON(w, fc)
}

type compareRequest struct {
	RouteIDs []string `json:"routeIds"`
}

func (s *server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cmp, err := s.engine.CompareRoutes(r.Context(), req.RouteIDs)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "comparison": cmp})
}

func writeGeoJSON(w http.ResponseWriter, v json.Marshaler) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
