package api

import (
	"net/http"
)

// handleListInsights handles GET /api/ai-insights
func (s *Server) handleListInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := s.insightService.List(r.Context(), r.URL.Query().Get("wallet"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, insights)
}

// handleAnalyzePosition handles POST /api/analyze-position
func (s *Server) handleAnalyzePosition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WalletAddress string `json:"walletAddress"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	insight, err := s.insightService.AnalyzePositions(r.Context(), req.WalletAddress)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, insight)
}
