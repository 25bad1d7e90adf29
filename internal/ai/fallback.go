package ai

import (
	"fmt"
	"math"
	"strconv"

	"github.com/risk-sentinel/internal/types"
)

// fallbackConfidence is the fixed confidence reported by heuristic analyses.
const fallbackConfidence = 75

// parseAmount mirrors lenient numeric parsing: unparseable input becomes NaN,
// which fails every threshold comparison.
func parseAmount(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FallbackProtocolAnalysis scores a protocol with a pure heuristic: base 30,
// +20 for TVL under one million, +25 for APY over 50, +15 more over 100.
// Deterministic in (tvl, apy).
func FallbackProtocolAnalysis(req ProtocolRiskRequest) *RiskAnalysis {
	tvl := parseAmount(req.TVL)
	apy := 0.0
	if req.APY != "" {
		apy = parseAmount(req.APY)
	}

	riskScore := 30
	if tvl < 1_000_000 {
		riskScore += 20
	}
	if apy > 50 {
		riskScore += 25
	}
	if apy > 100 {
		riskScore += 15
	}

	riskLevel := types.RiskLevelForScore(riskScore)
	trustIndex := 100 - riskScore
	if trustIndex < 0 {
		trustIndex = 0
	}

	liquidityNote := "Healthy TVL suggests good liquidity."
	if tvl < 1_000_000 {
		liquidityNote = "Lower TVL indicates less liquidity depth."
	}

	recommendations := "Maintain current position with regular monitoring."
	if riskLevel == types.RiskHigh {
		recommendations = "Consider reducing exposure or diversifying to lower-risk pools."
	}

	return &RiskAnalysis{
		RiskScore:  riskScore,
		RiskLevel:  riskLevel,
		Confidence: fallbackConfidence,
		TrustIndex: trustIndex,
		Analysis: fmt.Sprintf("Based on TVL of $%s and %s%% APY, this protocol shows %s risk characteristics. %s",
			req.TVL, formatNumber(apy), riskLevel, liquidityNote),
		Recommendations: recommendations,
	}
}

// FallbackPositionInsight keys on the fraction of positions flagged high
// risk: a majority triggers a warning-severity concentration insight.
func FallbackPositionInsight(positions []PositionSummary) *PositionInsight {
	highRiskCount := 0
	for _, p := range positions {
		if p.RiskLevel == "high" {
			highRiskCount++
		}
	}

	if float64(highRiskCount) > float64(len(positions))/2 {
		return &PositionInsight{
			Title:           "High-Risk Concentration Detected",
			Description:     "Your portfolio has significant exposure to high-risk pools. This increases vulnerability to volatility and potential exploits.",
			Recommendations: "Consider rebalancing 30-40% of high-risk positions into medium or low-risk pools to improve risk-adjusted returns.",
			Severity:        types.SeverityWarning,
		}
	}

	return &PositionInsight{
		Title:           "Portfolio Health Looks Good",
		Description:     "Your DeFi positions show reasonable risk diversification. Current allocation balances yield potential with safety considerations.",
		Recommendations: "Continue monitoring protocol risk scores and adjust if any pool's risk level increases significantly.",
		Severity:        types.SeverityInfo,
	}
}

// FallbackRiskExplanation synthesizes three fixed factors with impact
// buckets derived from simple thresholds on the stored metrics.
func FallbackRiskExplanation(req ExplainRequest) *RiskExplanation {
	trustImpact := "High"
	trustNote := "suggests elevated caution warranted"
	if req.TrustIndex > 70 {
		trustImpact = "Low"
		trustNote = "indicates strong community confidence and protocol maturity"
	} else if req.TrustIndex > 40 {
		trustImpact = "Medium"
	}

	tvl := parseAmount(req.TVL)
	tvlImpact := "Medium"
	tvlNote := "indicates limited liquidity which may increase slippage risk"
	if tvl > 1_000_000 {
		tvlImpact = "Low"
		tvlNote = "provides solid liquidity depth"
	}

	apyImpact := "Medium"
	apyExplanation := "APY data not available for comprehensive analysis."
	if req.APY != nil && *req.APY != "" {
		apy := parseAmount(*req.APY)
		qualifier, note := "Moderate", "appears reasonable for current market conditions"
		if apy > 50 {
			apyImpact = "High"
			qualifier, note = "Extremely high", "may signal unsustainable yield or higher risk exposure"
		}
		apyExplanation = fmt.Sprintf("%s APY of %s%% %s.", qualifier, *req.APY, note)
	}

	confidenceNote := "Moderate confidence - consider gathering more data points."
	if req.Confidence > 85 {
		confidenceNote = "High confidence in this assessment due to sufficient data points."
	}
	sizingNote := "Risk profile acceptable for diversified portfolios."
	if req.RiskScore > 70 {
		sizingNote = "Multiple risk factors warrant careful position sizing."
	}

	recommendation := "Low risk profile suitable for conservative DeFi strategies. Consider as core portfolio holding with regular rebalancing."
	if req.RiskScore > 70 {
		recommendation = "Exercise caution. Consider reducing exposure to 5-10% of portfolio max, or wait for risk metrics to improve before entering."
	} else if req.RiskScore > 40 {
		recommendation = "Monitor closely. Acceptable for diversified portfolios with active risk management. Set stop-loss at 15-20% below entry."
	}

	return &RiskExplanation{
		Summary: fmt.Sprintf("%s shows %s risk with a score of %d/100 based on TVL, APY, and trust metrics analysis.",
			req.ProtocolName, req.RiskLevel, req.RiskScore),
		KeyFactors: []KeyFactor{
			{
				Factor:      "Trust Index",
				Impact:      trustImpact,
				Explanation: fmt.Sprintf("Trust index of %d/100 %s.", req.TrustIndex, trustNote),
			},
			{
				Factor:      "TVL Analysis",
				Impact:      tvlImpact,
				Explanation: fmt.Sprintf("TVL of $%s %s.", req.TVL, tvlNote),
			},
			{
				Factor:      "APY Sustainability",
				Impact:      apyImpact,
				Explanation: apyExplanation,
			},
		},
		TechnicalAnalysis: fmt.Sprintf("The protocol demonstrates %s risk characteristics based on quantitative analysis. %s %s",
			req.RiskLevel, confidenceNote, sizingNote),
		Recommendation: recommendation,
	}
}

// FallbackRiskSentence is the one-line explanation used when the model
// yields nothing.
func FallbackRiskSentence(riskScore int) string {
	bucket := "low"
	if riskScore > 70 {
		bucket = "elevated"
	} else if riskScore > 40 {
		bucket = "moderate"
	}
	return fmt.Sprintf("Risk score of %d/100 indicates %s risk levels for this protocol.", riskScore, bucket)
}
