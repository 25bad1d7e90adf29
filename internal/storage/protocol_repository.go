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

// Protocol represents a monitored DeFi protocol with its risk metrics
type Protocol struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Symbol          string    `json:"symbol"`
	TVL             string    `json:"tvl"`
	RiskScore       int       `json:"riskScore"`
	RiskLevel       string    `json:"riskLevel"`
	Confidence      int       `json:"confidence"`
	TrustIndex      int       `json:"trustIndex"`
	APY             *string   `json:"apy"`
	ContractAddress string    `json:"contractAddress"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ProtocolInsert holds the fields required to create a protocol
type ProtocolInsert struct {
	Name            string
	Symbol          string
	TVL             string
	RiskScore       int
	RiskLevel       string
	Confidence      int
	TrustIndex      int
	APY             *string
	ContractAddress string
}

// ProtocolUpdate is a partial update; nil fields are left untouched
type ProtocolUpdate struct {
	Name       *string
	Symbol     *string
	TVL        *string
	RiskScore  *int
	RiskLevel  *string
	Confidence *int
	TrustIndex *int
	APY        *string
}

// numeric columns are cast to text so decimal values round-trip as strings
const protocolColumns = `id, name, symbol, tvl::text, risk_score, risk_level, confidence, trust_index, apy::text, contract_address, updated_at`

// ProtocolRepository handles protocol data access
type ProtocolRepository struct {
	db *PostgresDB
}

// NewProtocolRepository creates a new protocol repository
func NewProtocolRepository(db *PostgresDB) *ProtocolRepository {
	return &ProtocolRepository{db: db}
}

func scanProtocol(row pgx.Row) (*Protocol, error) {
	var p Protocol
	err := row.Scan(
		&p.ID, &p.Name, &p.Symbol, &p.TVL, &p.RiskScore, &p.RiskLevel,
		&p.Confidence, &p.TrustIndex, &p.APY, &p.ContractAddress, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List retrieves all protocols
func (r *ProtocolRepository) List(ctx context.Context) ([]*Protocol, error) {
	query := `SELECT ` + protocolColumns + ` FROM defi_protocols ORDER BY updated_at DESC`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list protocols: %w", err)
	}
	defer rows.Close()

	protocols := make([]*Protocol, 0)
	for rows.Next() {
		p, err := scanProtocol(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan protocol: %w", err)
		}
		protocols = append(protocols, p)
	}

	return protocols, rows.Err()
}

// GetByID retrieves a protocol by ID. Returns nil if not found.
func (r *ProtocolRepository) GetByID(ctx context.Context, id uuid.UUID) (*Protocol, error) {
	query := `SELECT ` + protocolColumns + ` FROM defi_protocols WHERE id = $1`

	p, err := scanProtocol(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get protocol: %w", err)
	}

	return p, nil
}

// GetByContract retrieves a protocol by contract address, case-insensitive.
// Returns nil if not found.
func (r *ProtocolRepository) GetByContract(ctx context.Context, contractAddress string) (*Protocol, error) {
	query := `SELECT ` + protocolColumns + ` FROM defi_protocols WHERE lower(contract_address) = $1`

	p, err := scanProtocol(r.db.Pool().QueryRow(ctx, query, strings.ToLower(contractAddress)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get protocol by contract: %w", err)
	}

	return p, nil
}

// Create inserts a new protocol. The unique index on lower(contract_address)
// rejects a second protocol for the same pair contract.
func (r *ProtocolRepository) Create(ctx context.Context, insert ProtocolInsert) (*Protocol, error) {
	query := `
		INSERT INTO defi_protocols (name, symbol, tvl, risk_score, risk_level, confidence, trust_index, apy, contract_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + protocolColumns

	p, err := scanProtocol(r.db.Pool().QueryRow(ctx, query,
		insert.Name, insert.Symbol, insert.TVL, insert.RiskScore, insert.RiskLevel,
		insert.Confidence, insert.TrustIndex, insert.APY, insert.ContractAddress,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create protocol: %w", err)
	}

	return p, nil
}

// Update applies a partial update and bumps updated_at. Returns nil if the
// protocol does not exist.
func (r *ProtocolRepository) Update(ctx context.Context, id uuid.UUID, update ProtocolUpdate) (*Protocol, error) {
	setClauses := []string{"updated_at = now()"}
	args := []interface{}{id}
	argPos := 2

	addSet := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if update.Name != nil {
		addSet("name", *update.Name)
	}
	if update.Symbol != nil {
		addSet("symbol", *update.Symbol)
	}
	if update.TVL != nil {
		addSet("tvl", *update.TVL)
	}
	if update.RiskScore != nil {
		addSet("risk_score", *update.RiskScore)
	}
	if update.RiskLevel != nil {
		addSet("risk_level", *update.RiskLevel)
	}
	if update.Confidence != nil {
		addSet("confidence", *update.Confidence)
	}
	if update.TrustIndex != nil {
		addSet("trust_index", *update.TrustIndex)
	}
	if update.APY != nil {
		addSet("apy", *update.APY)
	}

	query := fmt.Sprintf(
		`UPDATE defi_protocols SET %s WHERE id = $1 RETURNING %s`,
		strings.Join(setClauses, ", "), protocolColumns,
	)

	p, err := scanProtocol(r.db.Pool().QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update protocol: %w", err)
	}

	return p, nil
}
