package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/risk-sentinel/internal/circuitbreaker"
	"github.com/risk-sentinel/internal/config"
	"github.com/risk-sentinel/internal/logging"
	"github.com/risk-sentinel/internal/types"
)

// GeminiClient handles REST calls to the Gemini generateContent API
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiClient creates a Gemini API client from configuration
func NewGeminiClient(cfg *config.AIConfig) *GeminiClient {
	return &GeminiClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	Contents          []geminiContent   `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// generateContent issues a single generateContent request. No retry: a
// failed call is attempted exactly once per invocation.
func (c *GeminiClient) generateContent(ctx context.Context, systemPrompt, prompt string, cfg *generationConfig) (string, error) {
	reqBody := generateRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: cfg,
	}
	if systemPrompt != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call Gemini API: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return "", fmt.Errorf("failed to read Gemini response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Gemini API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse Gemini response: %w", err)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini API")
	}

	text := parsed.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", fmt.Errorf("empty response from Gemini API")
	}

	return text, nil
}

// GeminiScorer implements Scorer against the Gemini API. Every model call
// goes through a circuit breaker; any failure exits through the matching
// heuristic fallback so callers always get a result.
type GeminiScorer struct {
	client  *GeminiClient
	breaker *circuitbreaker.CircuitBreaker
	logger  *logging.Logger
}

// NewGeminiScorer creates a scorer backed by the Gemini API
func NewGeminiScorer(cfg *config.AIConfig, logger *logging.Logger) *GeminiScorer {
	return &GeminiScorer{
		client:  NewGeminiClient(cfg),
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("gemini")),
		logger:  logger,
	}
}

// generateJSON runs a breaker-guarded model call and decodes its JSON body
// into out. Returns a ScoringError on any failure.
func (s *GeminiScorer) generateJSON(ctx context.Context, operation, systemPrompt, prompt string, schema json.RawMessage, out interface{}) error {
	var text string
	err := s.breaker.Execute(ctx, func() error {
		var callErr error
		text, callErr = s.client.generateContent(ctx, systemPrompt, prompt, &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		})
		return callErr
	})
	if err != nil {
		return &ScoringError{Operation: operation, Cause: err}
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return &ScoringError{Operation: operation, Cause: fmt.Errorf("failed to parse model JSON: %w", err)}
	}

	return nil
}

const protocolRiskSystemPrompt = `You are an expert DeFi security analyst specializing in risk assessment.
Analyze the provided DeFi protocol data and provide a comprehensive risk assessment.
Consider factors like TVL stability, APY sustainability, contract age, and liquidity patterns.

Respond with JSON in this exact format:
{
  "riskScore": number (0-100, where 0 is safest and 100 is most risky),
  "riskLevel": "low" | "medium" | "high",
  "confidence": number (0-100, your confidence in this assessment),
  "trustIndex": number (0-100, overall trust score for this protocol),
  "analysis": "string (2-3 sentences explaining the risk factors)",
  "recommendations": "string (specific actionable recommendation)"
}`

var protocolRiskSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"riskScore": {"type": "number"},
		"riskLevel": {"type": "string", "enum": ["low", "medium", "high"]},
		"confidence": {"type": "number"},
		"trustIndex": {"type": "number"},
		"analysis": {"type": "string"},
		"recommendations": {"type": "string"}
	},
	"required": ["riskScore", "riskLevel", "confidence", "trustIndex", "analysis", "recommendations"]
}`)

// AnalyzeProtocolRisk scores one protocol. Falls back to the deterministic
// heuristic when the model call fails.
func (s *GeminiScorer) AnalyzeProtocolRisk(ctx context.Context, req ProtocolRiskRequest) *RiskAnalysis {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this DeFi protocol:\nName: %s\nTotal Value Locked (TVL): $%s\n", req.ProtocolName, req.TVL)
	if req.APY != "" {
		fmt.Fprintf(&b, "APY: %s%%\n", req.APY)
	}
	fmt.Fprintf(&b, "Contract Address: %s\n", req.ContractAddress)
	if req.LiquidityChanges != "" {
		fmt.Fprintf(&b, "Recent Liquidity Changes: %s\n", req.LiquidityChanges)
	}
	b.WriteString("\nProvide a thorough risk assessment.")

	var result RiskAnalysis
	if err := s.generateJSON(ctx, "AnalyzeProtocolRisk", protocolRiskSystemPrompt, b.String(), protocolRiskSchema, &result); err != nil {
		s.logger.WithError(err).WithField("protocol", req.ProtocolName).Warn("Model scoring failed, using heuristic fallback")
		return FallbackProtocolAnalysis(req)
	}
	result.RiskLevel = riskLevelOrDefault(result.RiskLevel, result.RiskScore)
	return &result
}

const positionSystemPrompt = `You are a DeFi portfolio advisor. Analyze the user's DeFi positions and provide actionable insights.
Focus on risk diversification, yield optimization, and potential threats.

Respond with JSON in this format:
{
  "title": "string (catchy, concise insight title)",
  "description": "string (2-3 sentences explaining the portfolio analysis)",
  "recommendations": "string (specific actionable advice)",
  "severity": "info" | "warning" | "critical"
}`

var positionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"title": {"type": "string"},
		"description": {"type": "string"},
		"recommendations": {"type": "string"},
		"severity": {"type": "string", "enum": ["info", "warning", "critical"]}
	},
	"required": ["title", "description", "recommendations", "severity"]
}`)

// AnalyzeUserPositions produces an insight over a wallet's positions. Falls
// back to the concentration heuristic when the model call fails.
func (s *GeminiScorer) AnalyzeUserPositions(ctx context.Context, walletAddress string, positions []PositionSummary) *PositionInsight {
	positionsJSON, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		positionsJSON = []byte("[]")
	}

	prompt := fmt.Sprintf("Analyze this DeFi portfolio:\nWallet: %s\nPositions: %s\n\nProvide strategic insights and recommendations.",
		walletAddress, positionsJSON)

	var result PositionInsight
	if err := s.generateJSON(ctx, "AnalyzeUserPositions", positionSystemPrompt, prompt, positionSchema, &result); err != nil {
		s.logger.WithError(err).WithField("wallet", walletAddress).Warn("Model position analysis failed, using heuristic fallback")
		return FallbackPositionInsight(positions)
	}
	return &result
}

// ExplainRiskDecision produces a detailed breakdown of a stored risk score.
// Falls back to the three-factor synthesis when the model call fails.
func (s *GeminiScorer) ExplainRiskDecision(ctx context.Context, req ExplainRequest) *RiskExplanation {
	apy := "N/A"
	if req.APY != nil && *req.APY != "" {
		apy = *req.APY
	}

	prompt := fmt.Sprintf(`You are a DeFi security analyst. Explain in detail why the protocol "%s" (%s) has a risk score of %d/100.

Protocol Data:
- TVL: $%s
- APY: %s%%
- Trust Index: %d/100
- AI Confidence: %d%%
- Risk Level: %s

Provide a detailed breakdown in JSON format with these fields:
- summary: A 2-3 sentence overview of the risk assessment
- keyFactors: Array of 3-4 key risk factors, each with factor name, impact level (High/Medium/Low), and detailed explanation
- technicalAnalysis: Detailed technical analysis including any red flags or positive signals
- recommendation: Specific actionable recommendation for users

Be specific, technical, and actionable. Focus on real DeFi risk factors like liquidity risk, smart contract risk, impermanent loss, and market volatility.`,
		req.ProtocolName, req.Symbol, req.RiskScore, req.TVL, apy, req.TrustIndex, req.Confidence, req.RiskLevel)

	var result RiskExplanation
	if err := s.generateJSON(ctx, "ExplainRiskDecision", "", prompt, nil, &result); err != nil {
		s.logger.WithError(err).WithField("protocol", req.ProtocolName).Warn("Model risk explanation failed, using heuristic fallback")
		return FallbackRiskExplanation(req)
	}
	return &result
}

// GenerateRiskExplanation produces the one-line risk sentence shown next to
// a score. Falls back to a templated sentence when the model call fails.
func (s *GeminiScorer) GenerateRiskExplanation(ctx context.Context, riskScore int, protocolName string) string {
	prompt := fmt.Sprintf(`Explain in 1-2 sentences why a DeFi protocol named "%s" might have a risk score of %d/100. Be specific and educational.`,
		protocolName, riskScore)

	var text string
	err := s.breaker.Execute(ctx, func() error {
		var callErr error
		text, callErr = s.client.generateContent(ctx, "", prompt, nil)
		return callErr
	})
	if err != nil {
		s.logger.WithError(&ScoringError{Operation: "GenerateRiskExplanation", Cause: err}).
			WithField("protocol", protocolName).Warn("Model risk sentence failed, using templated fallback")
		return FallbackRiskSentence(riskScore)
	}
	return text
}

var _ Scorer = (*GeminiScorer)(nil)

// riskLevelOrDefault guards against a model response with an unknown level.
func riskLevelOrDefault(level types.RiskLevel, score int) types.RiskLevel {
	switch level {
	case types.RiskLow, types.RiskMedium, types.RiskHigh:
		return level
	default:
		return types.RiskLevelForScore(score)
	}
}
