// Package ai scores DeFi protocol and portfolio risk through a hosted
// language model, degrading to deterministic heuristics when the model is
// unreachable. Scoring is side-effect free; callers decide what to persist.
package ai

import (
	"context"
	"fmt"

	"github.com/risk-sentinel/internal/types"
)

// ProtocolRiskRequest describes a protocol to be scored
type ProtocolRiskRequest struct {
	ProtocolName     string
	TVL              string
	APY              string
	ContractAddress  string
	LiquidityChanges string
}

// RiskAnalysis is the result of scoring a single protocol
type RiskAnalysis struct {
	RiskScore       int             `json:"riskScore"`
	RiskLevel       types.RiskLevel `json:"riskLevel"`
	Confidence      int             `json:"confidence"`
	TrustIndex      int             `json:"trustIndex"`
	Analysis        string          `json:"analysis"`
	Recommendations string          `json:"recommendations"`
}

// PositionSummary is the slice of a position the scorer sees
type PositionSummary struct {
	PoolName  string `json:"poolName"`
	Amount    string `json:"amount"`
	APY       string `json:"apy,omitempty"`
	RiskLevel string `json:"riskLevel"`
}

// PositionInsight is the result of analyzing a wallet's positions
type PositionInsight struct {
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Recommendations string         `json:"recommendations"`
	Severity        types.Severity `json:"severity"`
}

// ExplainRequest carries the stored risk metrics to be explained
type ExplainRequest struct {
	ProtocolName string
	Symbol       string
	RiskScore    int
	RiskLevel    string
	TVL          string
	APY          *string
	TrustIndex   int
	Confidence   int
}

// KeyFactor is one named risk driver in an explanation
type KeyFactor struct {
	Factor      string `json:"factor"`
	Impact      string `json:"impact"`
	Explanation string `json:"explanation"`
}

// RiskExplanation is a detailed breakdown of why a protocol scored as it did
type RiskExplanation struct {
	Summary           string      `json:"summary"`
	KeyFactors        []KeyFactor `json:"keyFactors"`
	TechnicalAnalysis string      `json:"technicalAnalysis"`
	Recommendation    string      `json:"recommendation"`
}

// Scorer analyzes protocol and portfolio risk. Implementations never fail:
// when the model is unavailable they fall back to deterministic heuristics,
// so every call yields a usable result.
type Scorer interface {
	AnalyzeProtocolRisk(ctx context.Context, req ProtocolRiskRequest) *RiskAnalysis
	AnalyzeUserPositions(ctx context.Context, walletAddress string, positions []PositionSummary) *PositionInsight
	ExplainRiskDecision(ctx context.Context, req ExplainRequest) *RiskExplanation
	GenerateRiskExplanation(ctx context.Context, riskScore int, protocolName string) string
}

// ScoringError wraps a model-call failure with the operation that hit it.
// It never reaches API callers; it is logged before the heuristic fallback
// takes over.
type ScoringError struct {
	Operation string
	Cause     error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("model call failed in %s: %v", e.Operation, e.Cause)
}

func (e *ScoringError) Unwrap() error {
	return e.Cause
}
