package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PortfolioSnapshot records a wallet's total value and portfolio-wide risk
// score at a point in time.
type PortfolioSnapshot struct {
	ID            uuid.UUID `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	TotalValue    string    `json:"totalValue"`
	RiskScore     int       `json:"riskScore"`
	Timestamp     time.Time `json:"timestamp"`
}

// SnapshotInsert holds the fields required to record a snapshot
type SnapshotInsert struct {
	WalletAddress string
	TotalValue    string
	RiskScore     int
}

const snapshotColumns = `id, wallet_address, total_value::text, risk_score, timestamp`

// SnapshotRepository handles portfolio history data access
type SnapshotRepository struct {
	db *PostgresDB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *PostgresDB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func scanSnapshot(row pgx.Row) (*PortfolioSnapshot, error) {
	var s PortfolioSnapshot
	err := row.Scan(&s.ID, &s.WalletAddress, &s.TotalValue, &s.RiskScore, &s.Timestamp)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByWallet retrieves a wallet's snapshots within the last days days,
// oldest first for charting.
func (r *SnapshotRepository) ListByWallet(ctx context.Context, walletAddress string, days int) ([]*PortfolioSnapshot, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	query := `
		SELECT ` + snapshotColumns + `
		FROM portfolio_history
		WHERE wallet_address = $1 AND timestamp >= $2
		ORDER BY timestamp ASC`

	rows, err := r.db.Pool().Query(ctx, query, strings.ToLower(walletAddress), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolio history: %w", err)
	}
	defer rows.Close()

	snapshots := make([]*PortfolioSnapshot, 0)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

// Record inserts a new snapshot, lowercasing the wallet address
func (r *SnapshotRepository) Record(ctx context.Context, insert SnapshotInsert) (*PortfolioSnapshot, error) {
	query := `
		INSERT INTO portfolio_history (wallet_address, total_value, risk_score, timestamp)
		VALUES ($1, $2, $3, now())
		RETURNING ` + snapshotColumns

	s, err := scanSnapshot(r.db.Pool().QueryRow(ctx, query,
		strings.ToLower(insert.WalletAddress), insert.TotalValue, insert.RiskScore,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to record portfolio snapshot: %w", err)
	}

	return s, nil
}
