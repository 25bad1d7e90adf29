// Package types provides common type definitions for the risk sentinel system.
package types

// RiskLevel represents the categorical risk bucket derived from a risk score.
type RiskLevel string

const (
	// RiskLow represents scores below 40
	RiskLow RiskLevel = "low"
	// RiskMedium represents scores from 40 up to 70
	RiskMedium RiskLevel = "medium"
	// RiskHigh represents scores of 70 and above
	RiskHigh RiskLevel = "high"
)

// RiskLevelForScore buckets a 0-100 risk score into a RiskLevel.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score < 40:
		return RiskLow
	case score < 70:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Severity represents how urgent an insight or alert is.
type Severity string

const (
	// SeverityInfo represents informational insights
	SeverityInfo Severity = "info"
	// SeverityWarning represents insights that warrant attention
	SeverityWarning Severity = "warning"
	// SeverityCritical represents insights that require immediate action
	SeverityCritical Severity = "critical"
)

// TransactionType represents the kind of DeFi transaction recorded.
type TransactionType string

const (
	// TxDeposit represents a deposit into a pool
	TxDeposit TransactionType = "deposit"
	// TxWithdraw represents a withdrawal from a pool
	TxWithdraw TransactionType = "withdraw"
	// TxSwap represents a token swap
	TxSwap TransactionType = "swap"
	// TxRebalance represents a portfolio rebalance
	TxRebalance TransactionType = "rebalance"
)

// ValidTransactionType reports whether t is a known transaction type.
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TxDeposit, TxWithdraw, TxSwap, TxRebalance:
		return true
	}
	return false
}

// TransactionStatus represents transaction execution status.
type TransactionStatus string

const (
	// StatusPending represents a transaction awaiting confirmation
	StatusPending TransactionStatus = "pending"
	// StatusConfirmed represents a confirmed transaction
	StatusConfirmed TransactionStatus = "confirmed"
	// StatusFailed represents a failed transaction
	StatusFailed TransactionStatus = "failed"
)

// ValidTransactionStatus reports whether s is a known transaction status.
func ValidTransactionStatus(s TransactionStatus) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusFailed:
		return true
	}
	return false
}

// EventType represents a realtime event pushed to WebSocket clients.
type EventType string

const (
	// EventConnected is sent once per new connection
	EventConnected EventType = "connected"
	// EventProtocolUpdate announces a created or refreshed protocol
	EventProtocolUpdate EventType = "protocol_update"
	// EventRiskAlert announces a protocol whose risk warrants attention
	EventRiskAlert EventType = "risk_alert"
	// EventNewInsight announces a freshly stored AI insight
	EventNewInsight EventType = "new_insight"
	// EventPositionChange announces a change to a wallet's positions
	EventPositionChange EventType = "position_change"
	// EventPong answers a client ping
	EventPong EventType = "pong"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
