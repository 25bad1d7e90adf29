package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateTransaction is returned when a transaction hash was already
// recorded.
var ErrDuplicateTransaction = errors.New("transaction hash already recorded")

// TransactionRecord represents one DeFi transaction in the wallet log
type TransactionRecord struct {
	ID              uuid.UUID `json:"id"`
	WalletAddress   string    `json:"walletAddress"`
	TransactionHash string    `json:"transactionHash"`
	TransactionType string    `json:"transactionType"`
	ProtocolID      string    `json:"protocolId"`
	PoolName        string    `json:"poolName"`
	Amount          string    `json:"amount"`
	TokenSymbol     string    `json:"tokenSymbol"`
	Status          string    `json:"status"`
	BlockNumber     *int64    `json:"blockNumber"`
	Timestamp       time.Time `json:"timestamp"`
}

// TransactionInsert holds the fields required to record a transaction
type TransactionInsert struct {
	WalletAddress   string
	TransactionHash string
	TransactionType string
	ProtocolID      string
	PoolName        string
	Amount          string
	TokenSymbol     string
	Status          string
	BlockNumber     *int64
}

const transactionColumns = `id, wallet_address, transaction_hash, transaction_type, protocol_id, pool_name, amount::text, token_symbol, status, block_number, timestamp`

// TransactionRepository handles transaction history data access
type TransactionRepository struct {
	db *PostgresDB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *PostgresDB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func scanTransaction(row pgx.Row) (*TransactionRecord, error) {
	var t TransactionRecord
	err := row.Scan(
		&t.ID, &t.WalletAddress, &t.TransactionHash, &t.TransactionType, &t.ProtocolID,
		&t.PoolName, &t.Amount, &t.TokenSymbol, &t.Status, &t.BlockNumber, &t.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByWallet retrieves a wallet's transactions, newest first
func (r *TransactionRepository) ListByWallet(ctx context.Context, walletAddress string, limit int) ([]*TransactionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transaction_history
		WHERE wallet_address = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.db.Pool().Query(ctx, query, strings.ToLower(walletAddress), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]*TransactionRecord, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}

	return transactions, rows.Err()
}

// Record inserts a new transaction. The unique constraint on
// transaction_hash surfaces as ErrDuplicateTransaction.
func (r *TransactionRepository) Record(ctx context.Context, insert TransactionInsert) (*TransactionRecord, error) {
	query := `
		INSERT INTO transaction_history (wallet_address, transaction_hash, transaction_type, protocol_id, pool_name, amount, token_symbol, status, block_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + transactionColumns

	t, err := scanTransaction(r.db.Pool().QueryRow(ctx, query,
		strings.ToLower(insert.WalletAddress), insert.TransactionHash, insert.TransactionType,
		insert.ProtocolID, insert.PoolName, insert.Amount, insert.TokenSymbol,
		insert.Status, insert.BlockNumber,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateTransaction
		}
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	return t, nil
}

// UpdateStatus sets the status and optional block number for a transaction
// hash. A miss is not an error.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, transactionHash, status string, blockNumber *int64) error {
	query := `UPDATE transaction_history SET status = $2, block_number = $3 WHERE transaction_hash = $1`

	if _, err := r.db.Pool().Exec(ctx, query, transactionHash, status, blockNumber); err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}

	return nil
}
