package service

import (
	"context"

	"github.com/risk-sentinel/internal/ai"
	"github.com/risk-sentinel/internal/errors"
	"github.com/risk-sentinel/internal/storage"
)

// InsightStore is the insight repository surface services depend on
type InsightStore interface {
	ListByWallet(ctx context.Context, walletAddress string) ([]*storage.AIInsight, error)
	Create(ctx context.Context, insert storage.InsightInsert) (*storage.AIInsight, error)
}

// PositionLister is the read-only position surface the insight service needs
type PositionLister interface {
	ListByWallet(ctx context.Context, walletAddress string) ([]*storage.UserPosition, error)
}

// InsightService generates and serves AI insights for wallet portfolios
type InsightService struct {
	insights  InsightStore
	positions PositionLister
	scorer    ai.Scorer
	hub       Notifier
}

// NewInsightService creates a new insight service
func NewInsightService(insights InsightStore, positions PositionLister, scorer ai.Scorer, hub Notifier) *InsightService {
	return &InsightService{insights: insights, positions: positions, scorer: scorer, hub: hub}
}

// List returns a wallet's stored insights, newest first
func (s *InsightService) List(ctx context.Context, walletAddress string) ([]*storage.AIInsight, error) {
	if walletAddress == "" {
		return nil, errors.NewMissingParameterError("wallet")
	}
	insights, err := s.insights.ListByWallet(ctx, walletAddress)
	if err != nil {
		return nil, errors.NewDatabaseError("list insights", err)
	}
	return insights, nil
}

// AnalyzePositions runs a portfolio analysis over the wallet's current
// positions, stores the resulting insight, and announces it to connected
// clients.
func (s *InsightService) AnalyzePositions(ctx context.Context, walletAddress string) (*storage.AIInsight, error) {
	if walletAddress == "" {
		return nil, errors.NewMissingParameterError("walletAddress")
	}

	positions, err := s.positions.ListByWallet(ctx, walletAddress)
	if err != nil {
		return nil, errors.NewDatabaseError("list positions", err)
	}
	if len(positions) == 0 {
		return nil, errors.NewNoPositionsError(walletAddress)
	}

	summaries := make([]ai.PositionSummary, 0, len(positions))
	for _, p := range positions {
		apy := ""
		if p.APY != nil {
			apy = *p.APY
		}
		summaries = append(summaries, ai.PositionSummary{
			PoolName:  p.PoolName,
			Amount:    p.Amount,
			APY:       apy,
			RiskLevel: p.RiskLevel,
		})
	}

	result := s.scorer.AnalyzeUserPositions(ctx, walletAddress, summaries)

	insight, err := s.insights.Create(ctx, storage.InsightInsert{
		WalletAddress:   walletAddress,
		InsightType:     "analysis",
		Title:           result.Title,
		Description:     result.Description,
		Severity:        string(result.Severity),
		Recommendations: &result.Recommendations,
	})
	if err != nil {
		return nil, errors.NewDatabaseError("create insight", err)
	}

	if s.hub != nil {
		s.hub.NotifyNewInsight(insight.ID.String(), insight.WalletAddress, insight.Severity)
	}

	return insight, nil
}
