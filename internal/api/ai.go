package api

import "net/http"

func (s *server) handleAIStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": s.engine.QuotaStats()})
}

// handleAITest spends one call of the budget when the client is live.
func (s *server) handleAITest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.TestConnection(r.Context()))
}
