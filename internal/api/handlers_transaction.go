package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/risk-sentinel/internal/service"
)

// handleTransactionHistory handles GET /api/transaction-history
func (s *Server) handleTransactionHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}

	transactions, err := s.transactionService.History(r.Context(), r.URL.Query().Get("wallet"), limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, transactions)
}

// handleRecordTransaction handles POST /api/record-transaction
func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req service.RecordTransactionInput
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	record, err := s.transactionService.Record(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, record)
}

// handleUpdateTransactionStatus handles PATCH /api/transaction-history/{hash}/status
func (s *Server) handleUpdateTransactionStatus(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	var req struct {
		Status      string `json:"status"`
		BlockNumber *int64 `json:"blockNumber"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if err := s.transactionService.UpdateStatus(r.Context(), hash, req.Status, req.BlockNumber); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
