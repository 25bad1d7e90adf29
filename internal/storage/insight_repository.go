package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AIInsight represents a stored model- or heuristic-generated insight
type AIInsight struct {
	ID              uuid.UUID `json:"id"`
	WalletAddress   string    `json:"walletAddress"`
	ProtocolID      *string   `json:"protocolId"`
	InsightType     string    `json:"insightType"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Severity        string    `json:"severity"`
	Recommendations *string   `json:"recommendations"`
	CreatedAt       time.Time `json:"createdAt"`
}

// InsightInsert holds the fields required to create an insight
type InsightInsert struct {
	WalletAddress   string
	ProtocolID      *string
	InsightType     string
	Title           string
	Description     string
	Severity        string
	Recommendations *string
}

const insightColumns = `id, wallet_address, protocol_id, insight_type, title, description, severity, recommendations, created_at`

// InsightRepository handles AI insight data access
type InsightRepository struct {
	db *PostgresDB
}

// NewInsightRepository creates a new insight repository
func NewInsightRepository(db *PostgresDB) *InsightRepository {
	return &InsightRepository{db: db}
}

func scanInsight(row pgx.Row) (*AIInsight, error) {
	var i AIInsight
	err := row.Scan(
		&i.ID, &i.WalletAddress, &i.ProtocolID, &i.InsightType, &i.Title,
		&i.Description, &i.Severity, &i.Recommendations, &i.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// ListByWallet retrieves a wallet's insights, newest first
func (r *InsightRepository) ListByWallet(ctx context.Context, walletAddress string) ([]*AIInsight, error) {
	query := `SELECT ` + insightColumns + ` FROM ai_insights WHERE wallet_address = $1 ORDER BY created_at DESC`

	rows, err := r.db.Pool().Query(ctx, query, strings.ToLower(walletAddress))
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	defer rows.Close()

	insights := make([]*AIInsight, 0)
	for rows.Next() {
		i, err := scanInsight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		insights = append(insights, i)
	}

	return insights, rows.Err()
}

// Create inserts a new insight, lowercasing the wallet address
func (r *InsightRepository) Create(ctx context.Context, insert InsightInsert) (*AIInsight, error) {
	query := `
		INSERT INTO ai_insights (wallet_address, protocol_id, insight_type, title, description, severity, recommendations)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + insightColumns

	i, err := scanInsight(r.db.Pool().QueryRow(ctx, query,
		strings.ToLower(insert.WalletAddress), insert.ProtocolID, insert.InsightType,
		insert.Title, insert.Description, insert.Severity, insert.Recommendations,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create insight: %w", err)
	}

	return i, nil
}
