package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/saferoute/internal/model"
)

func (s *server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var in model.FeedbackInput
	if !decodeJSON(w, r, &in) {
		return
	}
	fb, err := s.engine.SubmitFeedback(r.Context(), in)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"message":  "Feedback submitted successfully",
		"feedback": fb,
	})
}

func (s *server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeId")
	items, err := s.engine.FeedbackForRoute(r.Context(), routeID)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if items == nil {
		items = []model.Feedback{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"routeId":  routeID,
		"feedback": items,
		"count":    len(items),
	})
}

func (s *server) handleFeedbackSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.FeedbackSummary(r.Context(), chi.URLParam(r, "routeId"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "summary": summary})
}
