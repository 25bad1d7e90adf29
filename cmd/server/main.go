// Package main provides the API server entry point for the risk sentinel service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/risk-sentinel/internal/ai"
	"github.com/risk-sentinel/internal/api"
	"github.com/risk-sentinel/internal/chain"
	"github.com/risk-sentinel/internal/config"
	"github.com/risk-sentinel/internal/logging"
	"github.com/risk-sentinel/internal/realtime"
	"github.com/risk-sentinel/internal/scanner"
	"github.com/risk-sentinel/internal/service"
	"github.com/risk-sentinel/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize the chain reader
	reader, err := chain.NewReader(&cfg.Chain, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize chain reader")
	}
	logger.WithFields(map[string]interface{}{
		"rpc":       cfg.Chain.RPCURL,
		"factories": len(cfg.Chain.Factories),
	}).Info("Chain reader initialized")

	// Initialize repositories
	protocolRepo := storage.NewProtocolRepository(postgres)
	positionRepo := storage.NewPositionRepository(postgres)
	insightRepo := storage.NewInsightRepository(postgres)
	snapshotRepo := storage.NewSnapshotRepository(postgres)
	transactionRepo := storage.NewTransactionRepository(postgres)
	timelineRepo := storage.NewTimelineRepository(clickhouse)

	// Warm the contract index so scan cycles skip table lookups
	protocolIndex := storage.NewProtocolIndex(redis)
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := protocolIndex.Warm(warmCtx, protocolRepo); err != nil {
		logger.WithError(err).Warn("Failed to warm protocol contract index")
	}
	warmCancel()

	// Initialize the risk scorer. With no API key configured every analysis
	// comes from the heuristic fallbacks.
	scorer := ai.NewGeminiScorer(&cfg.AI, logger)
	if cfg.AI.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, risk scoring uses heuristic fallbacks only")
	}

	// Start the realtime hub
	hub := realtime.NewHub(logger)
	go hub.Run()

	// Initialize services
	logger.Info("Initializing services...")

	protocolService := service.NewProtocolService(protocolRepo, scorer)
	insightService := service.NewInsightService(insightRepo, positionRepo, scorer, hub)
	timelineService := service.NewTimelineService(timelineRepo, protocolRepo)
	positionService := service.NewPositionService(positionRepo, protocolRepo, hub)
	portfolioService := service.NewPortfolioService(snapshotRepo)
	transactionService := service.NewTransactionService(transactionRepo)

	logger.Info("Services initialized")

	// Start the protocol scanner
	scanCtx, scanCancel := context.WithCancel(context.Background())
	defer scanCancel()

	protocolScanner := scanner.New(reader, protocolRepo, protocolIndex, timelineRepo, scorer, hub, cfg.Scanner.Interval, logger)
	protocolScanner.Start(scanCtx)

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}

	server := api.NewServer(
		serverConfig,
		protocolService,
		insightService,
		timelineService,
		positionService,
		portfolioService,
		transactionService,
		hub.HandleWS,
	)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	scanCancel()
	protocolScanner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
