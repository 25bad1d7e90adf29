package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/risk-sentinel/internal/errors"
	"github.com/risk-sentinel/internal/storage"
)

// PositionStore is the position repository surface services depend on
type PositionStore interface {
	ListByWallet(ctx context.Context, walletAddress string) ([]*storage.UserPosition, error)
	GetByID(ctx context.Context, id uuid.UUID) (*storage.UserPosition, error)
	Create(ctx context.Context, insert storage.PositionInsert) (*storage.UserPosition, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// CreatePositionInput holds the fields for opening a position
type CreatePositionInput struct {
	WalletAddress string  `json:"walletAddress"`
	ProtocolID    string  `json:"protocolId"`
	PoolName      string  `json:"poolName"`
	Amount        string  `json:"amount"`
	APY           *string `json:"apy"`
	RiskLevel     string  `json:"riskLevel"`
}

// RebalanceResult describes the suggested action for one position
type RebalanceResult struct {
	Success    bool   `json:"success"`
	PositionID string `json:"positionId"`
	Action     string `json:"action"`
	Message    string `json:"message"`
}

// PositionService manages wallet positions and rebalance suggestions
type PositionService struct {
	positions PositionStore
	protocols ProtocolStore
	hub       Notifier
}

// NewPositionService creates a new position service
func NewPositionService(positions PositionStore, protocols ProtocolStore, hub Notifier) *PositionService {
	return &PositionService{positions: positions, protocols: protocols, hub: hub}
}

// List returns a wallet's open positions
func (s *PositionService) List(ctx context.Context, walletAddress string) ([]*storage.UserPosition, error) {
	if walletAddress == "" {
		return nil, errors.NewMissingParameterError("wallet")
	}
	positions, err := s.positions.ListByWallet(ctx, walletAddress)
	if err != nil {
		return nil, errors.NewDatabaseError("list positions", err)
	}
	return positions, nil
}

// Create opens a position. The risk level defaults to the protocol's current
// level when the caller leaves it empty.
func (s *PositionService) Create(ctx context.Context, input CreatePositionInput) (*storage.UserPosition, error) {
	switch {
	case input.WalletAddress == "":
		return nil, errors.NewMissingParameterError("walletAddress")
	case input.ProtocolID == "":
		return nil, errors.NewMissingParameterError("protocolId")
	case input.PoolName == "":
		return nil, errors.NewMissingParameterError("poolName")
	case input.Amount == "":
		return nil, errors.NewMissingParameterError("amount")
	}
	if _, err := strconv.ParseFloat(input.Amount, 64); err != nil {
		return nil, errors.NewInvalidInputError("amount must be numeric")
	}

	riskLevel := input.RiskLevel
	if riskLevel == "" {
		id, err := uuid.Parse(input.ProtocolID)
		if err != nil {
			return nil, errors.NewProtocolNotFoundError(input.ProtocolID)
		}
		protocol, err := s.protocols.GetByID(ctx, id)
		if err != nil {
			return nil, errors.NewDatabaseError("get protocol", err)
		}
		if protocol == nil {
			return nil, errors.NewProtocolNotFoundError(input.ProtocolID)
		}
		riskLevel = protocol.RiskLevel
	}

	position, err := s.positions.Create(ctx, storage.PositionInsert{
		WalletAddress: input.WalletAddress,
		ProtocolID:    input.ProtocolID,
		PoolName:      input.PoolName,
		Amount:        input.Amount,
		APY:           input.APY,
		RiskLevel:     riskLevel,
	})
	if err != nil {
		return nil, errors.NewDatabaseError("create position", err)
	}

	if s.hub != nil {
		s.hub.NotifyPositionChange(position.WalletAddress, map[string]interface{}{
			"action":     "created",
			"positionId": position.ID.String(),
			"poolName":   position.PoolName,
		})
	}

	return position, nil
}

// Delete closes a position
func (s *PositionService) Delete(ctx context.Context, positionID string) error {
	id, err := uuid.Parse(positionID)
	if err != nil {
		return errors.NewPositionNotFoundError(positionID)
	}

	position, err := s.positions.GetByID(ctx, id)
	if err != nil {
		return errors.NewDatabaseError("get position", err)
	}
	if position == nil {
		return errors.NewPositionNotFoundError(positionID)
	}

	deleted, err := s.positions.Delete(ctx, id)
	if err != nil {
		return errors.NewDatabaseError("delete position", err)
	}
	if !deleted {
		return errors.NewPositionNotFoundError(positionID)
	}

	if s.hub != nil {
		s.hub.NotifyPositionChange(position.WalletAddress, map[string]interface{}{
			"action":     "deleted",
			"positionId": position.ID.String(),
			"poolName":   position.PoolName,
		})
	}

	return nil
}

// Rebalance suggests an action for one position based on the owning
// protocol's current risk level. High-risk positions get a reduce
// suggestion sized at 30% of the holding.
func (s *PositionService) Rebalance(ctx context.Context, positionID string) (*RebalanceResult, error) {
	id, err := uuid.Parse(positionID)
	if err != nil {
		return nil, errors.NewPositionNotFoundError(positionID)
	}

	position, err := s.positions.GetByID(ctx, id)
	if err != nil {
		return nil, errors.NewDatabaseError("get position", err)
	}
	if position == nil {
		return nil, errors.NewPositionNotFoundError(positionID)
	}

	protocolID, err := uuid.Parse(position.ProtocolID)
	if err != nil {
		return nil, errors.NewProtocolNotFoundError(position.ProtocolID)
	}
	protocol, err := s.protocols.GetByID(ctx, protocolID)
	if err != nil {
		return nil, errors.NewDatabaseError("get protocol", err)
	}
	if protocol == nil {
		return nil, errors.NewProtocolNotFoundError(position.ProtocolID)
	}

	action := "maintain"
	var message string
	switch protocol.RiskLevel {
	case "high":
		action = "reduce"
		amount := parseFloatOrZero(position.Amount)
		message = fmt.Sprintf(
			"Reducing exposure in %s due to high risk. Consider moving %s tokens to lower-risk protocols.",
			protocol.Name, strconv.FormatFloat(amount*0.3, 'f', 4, 64),
		)
	case "medium":
		message = fmt.Sprintf(
			"Optimizing position in %s. Suggested reallocation to maintain balanced risk profile.",
			protocol.Name,
		)
	default:
		message = fmt.Sprintf(
			"Maintaining position in %s. Current allocation is optimal for low-risk strategy.",
			protocol.Name,
		)
	}

	if s.hub != nil {
		s.hub.NotifyPositionChange(position.WalletAddress, map[string]interface{}{
			"action":     action,
			"positionId": position.ID.String(),
			"poolName":   position.PoolName,
		})
	}

	return &RebalanceResult{
		Success:    true,
		PositionID: position.ID.String(),
		Action:     action,
		Message:    message,
	}, nil
}
