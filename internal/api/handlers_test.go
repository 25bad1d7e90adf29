package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/risk-sentinel/internal/ai"
	"github.com/risk-sentinel/internal/errors"
	"github.com/risk-sentinel/internal/service"
	"github.com/risk-sentinel/internal/storage"
)

// Mock services for handler tests

type mockProtocolService struct {
	protocols []*storage.Protocol
	filter    service.ProtocolFilter
}

func (m *mockProtocolService) List(ctx context.Context, filter service.ProtocolFilter) ([]*storage.Protocol, error) {
	m.filter = filter
	return m.protocols, nil
}

func (m *mockProtocolService) Metrics(ctx context.Context) (*service.RiskMetrics, error) {
	return &service.RiskMetrics{TotalValue: "1000.00", AvgRiskScore: 40, ProtocolsMonitored: 2, ActiveAlerts: 1}, nil
}

func (m *mockProtocolService) Alerts(ctx context.Context) ([]service.Alert, error) {
	return []service.Alert{{ID: "alert-1", Severity: "warning"}}, nil
}

func (m *mockProtocolService) Analyze(ctx context.Context, protocolID string) (*ai.RiskAnalysis, error) {
	if protocolID == "missing" {
		return nil, errors.NewProtocolNotFoundError(protocolID)
	}
	return &ai.RiskAnalysis{RiskScore: 55}, nil
}

func (m *mockProtocolService) Explain(ctx context.Context, protocolID string) (*ai.RiskExplanation, error) {
	return &ai.RiskExplanation{Summary: "ok"}, nil
}

type mockInsightService struct{}

func (m *mockInsightService) List(ctx context.Context, walletAddress string) ([]*storage.AIInsight, error) {
	if walletAddress == "" {
		return nil, errors.NewMissingParameterError("wallet")
	}
	return []*storage.AIInsight{}, nil
}

func (m *mockInsightService) AnalyzePositions(ctx context.Context, walletAddress string) (*storage.AIInsight, error) {
	if walletAddress == "" {
		return nil, errors.NewMissingParameterError("walletAddress")
	}
	if walletAddress == "0xempty" {
		return nil, errors.NewNoPositionsError(walletAddress)
	}
	return &storage.AIInsight{ID: uuid.New(), WalletAddress: walletAddress, InsightType: "analysis"}, nil
}

type mockTimelineService struct{}

func (m *mockTimelineService) Chart(ctx context.Context, protocolID string) ([]service.TimelinePoint, error) {
	return []service.TimelinePoint{{"timestamp": "Mar 1, 10:00 AM", "isoTime": "2026-03-01T10:00:00Z", "ALP": 20}}, nil
}

type mockPositionService struct {
	deleted []string
}

func (m *mockPositionService) List(ctx context.Context, walletAddress string) ([]*storage.UserPosition, error) {
	if walletAddress == "" {
		return nil, errors.NewMissingParameterError("wallet")
	}
	return []*storage.UserPosition{}, nil
}

func (m *mockPositionService) Create(ctx context.Context, input service.CreatePositionInput) (*storage.UserPosition, error) {
	if input.WalletAddress == "" {
		return nil, errors.NewMissingParameterError("walletAddress")
	}
	return &storage.UserPosition{ID: uuid.New(), WalletAddress: input.WalletAddress, PoolName: input.PoolName}, nil
}

func (m *mockPositionService) Delete(ctx context.Context, positionID string) error {
	m.deleted = append(m.deleted, positionID)
	return nil
}

func (m *mockPositionService) Rebalance(ctx context.Context, positionID string) (*service.RebalanceResult, error) {
	return &service.RebalanceResult{Success: true, PositionID: positionID, Action: "maintain", Message: "ok"}, nil
}

type mockPortfolioService struct{}

func (m *mockPortfolioService) History(ctx context.Context, walletAddress string, days int) ([]*storage.PortfolioSnapshot, error) {
	if walletAddress == "" {
		return nil, errors.NewMissingParameterError("wallet")
	}
	return []*storage.PortfolioSnapshot{}, nil
}

func (m *mockPortfolioService) RecordSnapshot(ctx context.Context, walletAddress, totalValue string, riskScore int) (*storage.PortfolioSnapshot, error) {
	if walletAddress == "" || totalValue == "" {
		return nil, errors.NewMissingParameterError("walletAddress")
	}
	return &storage.PortfolioSnapshot{ID: uuid.New(), WalletAddress: walletAddress, TotalValue: totalValue, RiskScore: riskScore}, nil
}

type mockTransactionService struct{}

func (m *mockTransactionService) History(ctx context.Context, walletAddress string, limit int) ([]*storage.TransactionRecord, error) {
	if walletAddress == "" {
		return nil, errors.NewMissingParameterError("wallet")
	}
	return []*storage.TransactionRecord{}, nil
}

func (m *mockTransactionService) Record(ctx context.Context, input service.RecordTransactionInput) (*storage.TransactionRecord, error) {
	if input.TransactionHash == "0xdupe" {
		return nil, errors.NewDuplicateTransactionError(input.TransactionHash)
	}
	return &storage.TransactionRecord{ID: uuid.New(), TransactionHash: input.TransactionHash, Status: "pending"}, nil
}

func (m *mockTransactionService) UpdateStatus(ctx context.Context, transactionHash, status string, blockNumber *int64) error {
	return nil
}

func newTestServer() (*Server, *mockProtocolService, *mockPositionService) {
	protocols := &mockProtocolService{}
	positions := &mockPositionService{}
	server := NewServer(
		&ServerConfig{Host: "127.0.0.1", Port: "0", ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second},
		protocols,
		&mockInsightService{},
		&mockTimelineService{},
		positions,
		&mockPortfolioService{},
		&mockTransactionService{},
		nil,
	)
	return server, protocols, positions
}

func doRequest(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestHandleHealth(t *testing.T) {
	server, _, _ := newTestServer()

	rr := doRequest(t, server, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %s", resp["status"])
	}
}

func TestHandleListProtocols_ParsesFilters(t *testing.T) {
	server, protocols, _ := newTestServer()

	rr := doRequest(t, server, "GET", "/api/protocols?search=uni&riskLevel=high&minTvl=100&maxApy=50&sortBy=riskScore&sortOrder=asc", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	f := protocols.filter
	if f.Search != "uni" || f.RiskLevel != "high" || f.SortBy != "riskScore" || f.SortOrder != "asc" {
		t.Errorf("Unexpected filter: %+v", f)
	}
	if f.MinTVL == nil || *f.MinTVL != 100 {
		t.Errorf("Expected minTvl 100, got %v", f.MinTVL)
	}
	if f.MaxAPY == nil || *f.MaxAPY != 50 {
		t.Errorf("Expected maxApy 50, got %v", f.MaxAPY)
	}
	if f.MinAPY != nil || f.MaxTVL != nil {
		t.Errorf("Expected absent params to stay nil, got %+v", f)
	}
}

func TestHandleRiskMetrics(t *testing.T) {
	server, _, _ := newTestServer()

	rr := doRequest(t, server, "GET", "/api/risk-metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	var metrics service.RiskMetrics
	if err := json.Unmarshal(rr.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if metrics.TotalValue != "1000.00" || metrics.ActiveAlerts != 1 {
		t.Errorf("Unexpected metrics: %+v", metrics)
	}
}

func TestHandleAnalyzeProtocol_Validation(t *testing.T) {
	server, _, _ := newTestServer()

	rr := doRequest(t, server, "POST", "/api/analyze-protocol", map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing protocolId, got %d", rr.Code)
	}

	rr = doRequest(t, server, "POST", "/api/analyze-protocol", map[string]string{"protocolId": "missing"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown protocol, got %d", rr.Code)
	}

	rr = doRequest(t, server, "POST", "/api/analyze-protocol", map[string]string{"protocolId": "known"})
	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rr.Code)
	}
}

func TestHandleAnalyzePosition_ErrorMapping(t *testing.T) {
	server, _, _ := newTestServer()

	rr := doRequest(t, server, "POST", "/api/analyze-position", map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing wallet, got %d", rr.Code)
	}

	rr = doRequest(t, server, "POST", "/api/analyze-position", map[string]string{"walletAddress": "0xempty"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for wallet with no positions, got %d", rr.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error.Code != "NO_POSITIONS" {
		t.Errorf("Expected NO_POSITIONS code, got %s", resp.Error.Code)
	}

	rr = doRequest(t, server, "POST", "/api/analyze-position", map[string]string{"walletAddress": "0xabc"})
	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rr.Code)
	}
}

func TestHandleDeletePosition(t *testing.T) {
	server, _, positions := newTestServer()

	rr := doRequest(t, server, "DELETE", "/api/positions/pos-123", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if len(positions.deleted) != 1 || positions.deleted[0] != "pos-123" {
		t.Errorf("Expected pos-123 deleted, got %v", positions.deleted)
	}
}

func TestHandleRecordTransaction(t *testing.T) {
	server, _, _ := newTestServer()

	rr := doRequest(t, server, "POST", "/api/record-transaction", map[string]interface{}{
		"walletAddress":   "0xabc",
		"transactionHash": "0xhash",
		"transactionType": "deposit",
		"amount":          "10",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rr.Code)
	}

	rr = doRequest(t, server, "POST", "/api/record-transaction", map[string]interface{}{
		"walletAddress":   "0xabc",
		"transactionHash": "0xdupe",
		"transactionType": "deposit",
		"amount":          "10",
	})
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate hash, got %d", rr.Code)
	}
}

func TestHandleUpdateTransactionStatus(t *testing.T) {
	server, _, _ := newTestServer()

	rr := doRequest(t, server, "PATCH", "/api/transaction-history/0xhash/status", map[string]interface{}{
		"status":      "confirmed",
		"blockNumber": 19000000,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
}

func TestHandleRebalancePosition(t *testing.T) {
	server, _, _ := newTestServer()

	rr := doRequest(t, server, "POST", "/api/rebalance-position", map[string]string{"positionId": "pos-1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	var result service.RebalanceResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !result.Success || result.Action != "maintain" {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestCORSPreflight(t *testing.T) {
	server, _, _ := newTestServer()

	req := httptest.NewRequest("OPTIONS", "/api/protocols", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS origin header")
	}
}
