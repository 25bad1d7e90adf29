package service

import (
	"context"
	stderrors "errors"
	"strconv"

	"github.com/risk-sentinel/internal/errors"
	"github.com/risk-sentinel/internal/storage"
	"github.com/risk-sentinel/internal/types"
)

// TransactionStore is the transaction repository surface services depend on
type TransactionStore interface {
	ListByWallet(ctx context.Context, walletAddress string, limit int) ([]*storage.TransactionRecord, error)
	Record(ctx context.Context, insert storage.TransactionInsert) (*storage.TransactionRecord, error)
	UpdateStatus(ctx context.Context, transactionHash, status string, blockNumber *int64) error
}

// RecordTransactionInput holds the fields for logging a transaction
type RecordTransactionInput struct {
	WalletAddress   string  `json:"walletAddress"`
	TransactionHash string  `json:"transactionHash"`
	TransactionType string  `json:"transactionType"`
	ProtocolID      string  `json:"protocolId"`
	PoolName        string  `json:"poolName"`
	Amount          string  `json:"amount"`
	TokenSymbol     string  `json:"tokenSymbol"`
	Status          string  `json:"status"`
	BlockNumber     *int64  `json:"blockNumber"`
}

// TransactionService manages the wallet transaction log
type TransactionService struct {
	transactions TransactionStore
}

// NewTransactionService creates a new transaction service
func NewTransactionService(transactions TransactionStore) *TransactionService {
	return &TransactionService{transactions: transactions}
}

// History returns a wallet's transactions, newest first
func (s *TransactionService) History(ctx context.Context, walletAddress string, limit int) ([]*storage.TransactionRecord, error) {
	if walletAddress == "" {
		return nil, errors.NewMissingParameterError("wallet")
	}
	transactions, err := s.transactions.ListByWallet(ctx, walletAddress, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("list transactions", err)
	}
	return transactions, nil
}

// Record validates and stores one transaction. The status defaults to
// pending when the caller omits it.
func (s *TransactionService) Record(ctx context.Context, input RecordTransactionInput) (*storage.TransactionRecord, error) {
	switch {
	case input.WalletAddress == "":
		return nil, errors.NewMissingParameterError("walletAddress")
	case input.TransactionHash == "":
		return nil, errors.NewMissingParameterError("transactionHash")
	case input.TransactionType == "":
		return nil, errors.NewMissingParameterError("transactionType")
	case input.Amount == "":
		return nil, errors.NewMissingParameterError("amount")
	}
	if !types.ValidTransactionType(types.TransactionType(input.TransactionType)) {
		return nil, errors.NewInvalidInputError("unknown transaction type: " + input.TransactionType)
	}
	if _, err := strconv.ParseFloat(input.Amount, 64); err != nil {
		return nil, errors.NewInvalidInputError("amount must be numeric")
	}

	status := input.Status
	if status == "" {
		status = string(types.StatusPending)
	}
	if !types.ValidTransactionStatus(types.TransactionStatus(status)) {
		return nil, errors.NewInvalidInputError("unknown transaction status: " + status)
	}

	record, err := s.transactions.Record(ctx, storage.TransactionInsert{
		WalletAddress:   input.WalletAddress,
		TransactionHash: input.TransactionHash,
		TransactionType: input.TransactionType,
		ProtocolID:      input.ProtocolID,
		PoolName:        input.PoolName,
		Amount:          input.Amount,
		TokenSymbol:     input.TokenSymbol,
		Status:          status,
		BlockNumber:     input.BlockNumber,
	})
	if err != nil {
		if stderrors.Is(err, storage.ErrDuplicateTransaction) {
			return nil, errors.NewDuplicateTransactionError(input.TransactionHash)
		}
		return nil, errors.NewDatabaseError("record transaction", err)
	}

	return record, nil
}

// UpdateStatus updates a transaction's status by hash
func (s *TransactionService) UpdateStatus(ctx context.Context, transactionHash, status string, blockNumber *int64) error {
	if transactionHash == "" {
		return errors.NewMissingParameterError("transactionHash")
	}
	if !types.ValidTransactionStatus(types.TransactionStatus(status)) {
		return errors.NewInvalidInputError("unknown transaction status: " + status)
	}
	if err := s.transactions.UpdateStatus(ctx, transactionHash, status, blockNumber); err != nil {
		return errors.NewDatabaseError("update transaction status", err)
	}
	return nil
}
