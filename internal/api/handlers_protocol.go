package api

import (
	"net/http"
	"strconv"

	"github.com/risk-sentinel/internal/service"
)

// parseFloatParam returns a pointer to the parsed query value, or nil when
// the parameter is absent or malformed. A malformed bound is deliberately
// ignored rather than matching nothing, so "minTvl=abc" lists all protocols
// instead of an empty result.
func parseFloatParam(r *http.Request, name string) *float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

// handleListProtocols handles GET /api/protocols
func (s *Server) handleListProtocols(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := service.ProtocolFilter{
		Search:    q.Get("search"),
		RiskLevel: q.Get("riskLevel"),
		MinTVL:    parseFloatParam(r, "minTvl"),
		MaxTVL:    parseFloatParam(r, "maxTvl"),
		MinAPY:    parseFloatParam(r, "minApy"),
		MaxAPY:    parseFloatParam(r, "maxApy"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}

	protocols, err := s.protocolService.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, protocols)
}

// handleRiskMetrics handles GET /api/risk-metrics
func (s *Server) handleRiskMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.protocolService.Metrics(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, metrics)
}

// handleAlerts handles GET /api/alerts
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.protocolService.Alerts(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, alerts)
}

// handleRiskTimeline handles GET /api/risk-timeline
func (s *Server) handleRiskTimeline(w http.ResponseWriter, r *http.Request) {
	points, err := s.timelineService.Chart(r.Context(), r.URL.Query().Get("protocolId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, points)
}

// handleAnalyzeProtocol handles POST /api/analyze-protocol
func (s *Server) handleAnalyzeProtocol(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProtocolID string `json:"protocolId"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.ProtocolID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "protocolId required", nil)
		return
	}

	analysis, err := s.protocolService.Analyze(r.Context(), req.ProtocolID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, analysis)
}

// handleExplainRisk handles POST /api/explain-risk
func (s *Server) handleExplainRisk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProtocolID string `json:"protocolId"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.ProtocolID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "protocolId required", nil)
		return
	}

	explanation, err := s.protocolService.Explain(r.Context(), req.ProtocolID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, explanation)
}
