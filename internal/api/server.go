// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/risk-sentinel/internal/ai"
	"github.com/risk-sentinel/internal/logging"
	"github.com/risk-sentinel/internal/service"
	"github.com/risk-sentinel/internal/storage"
)

// Service interfaces for dependency injection and testing

// ProtocolServiceInterface defines the interface for protocol operations
type ProtocolServiceInterface interface {
	List(ctx context.Context, filter service.ProtocolFilter) ([]*storage.Protocol, error)
	Metrics(ctx context.Context) (*service.RiskMetrics, error)
	Alerts(ctx context.Context) ([]service.Alert, error)
	Analyze(ctx context.Context, protocolID string) (*ai.RiskAnalysis, error)
	Explain(ctx context.Context, protocolID string) (*ai.RiskExplanation, error)
}

// InsightServiceInterface defines the interface for insight operations
type InsightServiceInterface interface {
	List(ctx context.Context, walletAddress string) ([]*storage.AIInsight, error)
	AnalyzePositions(ctx context.Context, walletAddress string) (*storage.AIInsight, error)
}

// TimelineServiceInterface defines the interface for timeline operations
type TimelineServiceInterface interface {
	Chart(ctx context.Context, protocolID string) ([]service.TimelinePoint, error)
}

// PositionServiceInterface defines the interface for position operations
type PositionServiceInterface interface {
	List(ctx context.Context, walletAddress string) ([]*storage.UserPosition, error)
	Create(ctx context.Context, input service.CreatePositionInput) (*storage.UserPosition, error)
	Delete(ctx context.Context, positionID string) error
	Rebalance(ctx context.Context, positionID string) (*service.RebalanceResult, error)
}

// PortfolioServiceInterface defines the interface for portfolio history operations
type PortfolioServiceInterface interface {
	History(ctx context.Context, walletAddress string, days int) ([]*storage.PortfolioSnapshot, error)
	RecordSnapshot(ctx context.Context, walletAddress, totalValue string, riskScore int) (*storage.PortfolioSnapshot, error)
}

// TransactionServiceInterface defines the interface for transaction log operations
type TransactionServiceInterface interface {
	History(ctx context.Context, walletAddress string, limit int) ([]*storage.TransactionRecord, error)
	Record(ctx context.Context, input service.RecordTransactionInput) (*storage.TransactionRecord, error)
	UpdateStatus(ctx context.Context, transactionHash, status string, blockNumber *int64) error
}

// Server represents the HTTP API server.
type Server struct {
	router             *mux.Router
	handler            http.Handler
	httpServer         *http.Server
	protocolService    ProtocolServiceInterface
	insightService     InsightServiceInterface
	timelineService    TimelineServiceInterface
	positionService    PositionServiceInterface
	portfolioService   PortfolioServiceInterface
	transactionService TransactionServiceInterface
	wsHandler          http.HandlerFunc
	config             *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	protocolService ProtocolServiceInterface,
	insightService InsightServiceInterface,
	timelineService TimelineServiceInterface,
	positionService PositionServiceInterface,
	portfolioService PortfolioServiceInterface,
	transactionService TransactionServiceInterface,
	wsHandler http.HandlerFunc,
) *Server {
	s := &Server{
		router:             mux.NewRouter(),
		protocolService:    protocolService,
		insightService:     insightService,
		timelineService:    timelineService,
		positionService:    positionService,
		portfolioService:   portfolioService,
		transactionService: transactionService,
		wsHandler:          wsHandler,
		config:             config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes. The
// middleware chain wraps the router itself so CORS preflights are answered
// even for method/route combinations mux would otherwise reject.
func (s *Server) setupRouter() {
	s.setupRoutes()

	s.handler = LoggingMiddleware(RecoveryMiddleware(CORSMiddleware(s.router)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	if s.wsHandler != nil {
		s.router.HandleFunc("/ws", s.wsHandler)
	}

	api := s.router.PathPrefix("/api").Subrouter()

	// Protocol endpoints
	api.HandleFunc("/protocols", s.handleListProtocols).Methods("GET")
	api.HandleFunc("/risk-metrics", s.handleRiskMetrics).Methods("GET")
	api.HandleFunc("/alerts", s.handleAlerts).Methods("GET")
	api.HandleFunc("/risk-timeline", s.handleRiskTimeline).Methods("GET")
	api.HandleFunc("/analyze-protocol", s.handleAnalyzeProtocol).Methods("POST")
	api.HandleFunc("/explain-risk", s.handleExplainRisk).Methods("POST")

	// Position endpoints
	api.HandleFunc("/positions", s.handleListPositions).Methods("GET")
	api.HandleFunc("/positions", s.handleCreatePosition).Methods("POST")
	api.HandleFunc("/positions/{id}", s.handleDeletePosition).Methods("DELETE")
	api.HandleFunc("/rebalance-position", s.handleRebalancePosition).Methods("POST")

	// Insight endpoints
	api.HandleFunc("/ai-insights", s.handleListInsights).Methods("GET")
	api.HandleFunc("/analyze-position", s.handleAnalyzePosition).Methods("POST")

	// Portfolio history endpoints
	api.HandleFunc("/portfolio-history", s.handlePortfolioHistory).Methods("GET")
	api.HandleFunc("/portfolio-history", s.handleRecordSnapshot).Methods("POST")

	// Transaction log endpoints
	api.HandleFunc("/transaction-history", s.handleTransactionHistory).Methods("GET")
	api.HandleFunc("/record-transaction", s.handleRecordTransaction).Methods("POST")
	api.HandleFunc("/transaction-history/{hash}/status", s.handleUpdateTransactionStatus).Methods("PATCH")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "risk-sentinel",
	})
}

// Router exposes the fully wrapped handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithFields(map[string]interface{}{"addr": s.httpServer.Addr}).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
