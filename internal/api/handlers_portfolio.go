package api

import (
	"net/http"
	"strconv"
)

// handlePortfolioHistory handles GET /api/portfolio-history
func (s *Server) handlePortfolioHistory(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			days = v
		}
	}

	snapshots, err := s.portfolioService.History(r.Context(), r.URL.Query().Get("wallet"), days)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snapshots)
}

// handleRecordSnapshot handles POST /api/portfolio-history
func (s *Server) handleRecordSnapshot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WalletAddress string `json:"walletAddress"`
		TotalValue    string `json:"totalValue"`
		RiskScore     int    `json:"riskScore"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	snapshot, err := s.portfolioService.RecordSnapshot(r.Context(), req.WalletAddress, req.TotalValue, req.RiskScore)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, snapshot)
}
