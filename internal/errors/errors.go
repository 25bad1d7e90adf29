// Package errors provides categorized error types shared by the service and API layers.
package errors

import (
	"fmt"
	"net/http"

	"github.com/risk-sentinel/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConflict represents conflict errors
	CategoryConflict ErrorCategory = "conflict"
	// CategoryUpstream represents chain RPC or model provider errors
	CategoryUpstream ErrorCategory = "upstream"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewMissingParameterError creates an error for an absent required input
func NewMissingParameterError(name string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "MISSING_PARAMETER",
		Message:    fmt.Sprintf("%s required", name),
	}
}

// NewInvalidInputError creates a generic bad-input error
func NewInvalidInputError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_INPUT",
		Message:    message,
	}
}

// NewProtocolNotFoundError creates a protocol not found error
func NewProtocolNotFoundError(id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "PROTOCOL_NOT_FOUND",
		Message:    "Protocol not found",
		Details:    map[string]interface{}{"protocolId": id},
	}
}

// NewPositionNotFoundError creates a position not found error
func NewPositionNotFoundError(id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "POSITION_NOT_FOUND",
		Message:    "Position not found",
		Details:    map[string]interface{}{"positionId": id},
	}
}

// NewNoPositionsError indicates a wallet holds no positions to analyze
func NewNoPositionsError(wallet string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NO_POSITIONS",
		Message:    "No positions found for this wallet",
		Details:    map[string]interface{}{"walletAddress": wallet},
	}
}

// NewDuplicateTransactionError indicates a transaction hash was already recorded
func NewDuplicateTransactionError(hash string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       "DUPLICATE_TRANSACTION",
		Message:    "Transaction already recorded",
		Details:    map[string]interface{}{"transactionHash": hash},
	}
}

// NewDatabaseError wraps a storage failure
func NewDatabaseError(op string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("storage operation failed: %s", op),
		Cause:      cause,
	}
}

// NewUpstreamError wraps a chain RPC or model provider failure
func NewUpstreamError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusBadGateway,
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("%s request failed", provider),
		Cause:      cause,
	}
}

// IsNotFound reports whether err is a not-found categorized error
func IsNotFound(err error) bool {
	if ce, ok := err.(*CategorizedError); ok {
		return ce.Category == CategoryNotFound
	}
	return false
}
