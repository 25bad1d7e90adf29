package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserPosition represents a wallet's stake in a pool
type UserPosition struct {
	ID            uuid.UUID `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	ProtocolID    string    `json:"protocolId"`
	PoolName      string    `json:"poolName"`
	Amount        string    `json:"amount"`
	APY           *string   `json:"apy"`
	RiskLevel     string    `json:"riskLevel"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PositionInsert holds the fields required to create a position
type PositionInsert struct {
	WalletAddress string
	ProtocolID    string
	PoolName      string
	Amount        string
	APY           *string
	RiskLevel     string
}

const positionColumns = `id, wallet_address, protocol_id, pool_name, amount::text, apy::text, risk_level, created_at`

// PositionRepository handles user position data access
type PositionRepository struct {
	db *PostgresDB
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *PostgresDB) *PositionRepository {
	return &PositionRepository{db: db}
}

func scanPosition(row pgx.Row) (*UserPosition, error) {
	var p UserPosition
	err := row.Scan(
		&p.ID, &p.WalletAddress, &p.ProtocolID, &p.PoolName,
		&p.Amount, &p.APY, &p.RiskLevel, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByWallet retrieves all positions for a wallet. Addresses are stored
// lowercased so lookups are case-insensitive.
func (r *PositionRepository) ListByWallet(ctx context.Context, walletAddress string) ([]*UserPosition, error) {
	query := `SELECT ` + positionColumns + ` FROM user_positions WHERE wallet_address = $1`

	rows, err := r.db.Pool().Query(ctx, query, strings.ToLower(walletAddress))
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*UserPosition, 0)
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}

	return positions, rows.Err()
}

// GetByID retrieves a position by ID. Returns nil if not found.
func (r *PositionRepository) GetByID(ctx context.Context, id uuid.UUID) (*UserPosition, error) {
	query := `SELECT ` + positionColumns + ` FROM user_positions WHERE id = $1`

	p, err := scanPosition(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	return p, nil
}

// Create inserts a new position, lowercasing the wallet address
func (r *PositionRepository) Create(ctx context.Context, insert PositionInsert) (*UserPosition, error) {
	query := `
		INSERT INTO user_positions (wallet_address, protocol_id, pool_name, amount, apy, risk_level)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + positionColumns

	p, err := scanPosition(r.db.Pool().QueryRow(ctx, query,
		strings.ToLower(insert.WalletAddress), insert.ProtocolID, insert.PoolName,
		insert.Amount, insert.APY, insert.RiskLevel,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create position: %w", err)
	}

	return p, nil
}

// Delete removes a position. Returns false if nothing was deleted.
func (r *PositionRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM user_positions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete position: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
