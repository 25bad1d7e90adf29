package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/risk-sentinel/internal/service"
)

// handleListPositions handles GET /api/positions
func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.positionService.List(r.Context(), r.URL.Query().Get("wallet"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, positions)
}

// handleCreatePosition handles POST /api/positions
func (s *Server) handleCreatePosition(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePositionInput
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	position, err := s.positionService.Create(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, position)
}

// handleDeletePosition handles DELETE /api/positions/{id}
func (s *Server) handleDeletePosition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Position ID required", nil)
		return
	}

	if err := s.positionService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleRebalancePosition handles POST /api/rebalance-position
func (s *Server) handleRebalancePosition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PositionID string `json:"positionId"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.PositionID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "positionId required", nil)
		return
	}

	result, err := s.positionService.Rebalance(r.Context(), req.PositionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
