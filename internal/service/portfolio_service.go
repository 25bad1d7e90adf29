package service

import (
	"context"

	"github.com/risk-sentinel/internal/errors"
	"github.com/risk-sentinel/internal/storage"
)

// SnapshotStore is the snapshot repository surface services depend on
type SnapshotStore interface {
	ListByWallet(ctx context.Context, walletAddress string, days int) ([]*storage.PortfolioSnapshot, error)
	Record(ctx context.Context, insert storage.SnapshotInsert) (*storage.PortfolioSnapshot, error)
}

// PortfolioService serves portfolio value history
type PortfolioService struct {
	snapshots SnapshotStore
}

// NewPortfolioService creates a new portfolio service
func NewPortfolioService(snapshots SnapshotStore) *PortfolioService {
	return &PortfolioService{snapshots: snapshots}
}

// History returns a wallet's snapshots for the last days days, oldest first
func (s *PortfolioService) History(ctx context.Context, walletAddress string, days int) ([]*storage.PortfolioSnapshot, error) {
	if walletAddress == "" {
		return nil, errors.NewMissingParameterError("wallet")
	}
	snapshots, err := s.snapshots.ListByWallet(ctx, walletAddress, days)
	if err != nil {
		return nil, errors.NewDatabaseError("list portfolio history", err)
	}
	return snapshots, nil
}

// RecordSnapshot stores a point-in-time portfolio valuation
func (s *PortfolioService) RecordSnapshot(ctx context.Context, walletAddress, totalValue string, riskScore int) (*storage.PortfolioSnapshot, error) {
	if walletAddress == "" {
		return nil, errors.NewMissingParameterError("walletAddress")
	}
	if totalValue == "" {
		return nil, errors.NewMissingParameterError("totalValue")
	}

	snapshot, err := s.snapshots.Record(ctx, storage.SnapshotInsert{
		WalletAddress: walletAddress,
		TotalValue:    totalValue,
		RiskScore:     riskScore,
	})
	if err != nil {
		return nil, errors.NewDatabaseError("record portfolio snapshot", err)
	}
	return snapshot, nil
}
