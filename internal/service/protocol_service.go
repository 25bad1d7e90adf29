// Package service implements the business operations behind the API:
// protocol listing and scoring, portfolio insights, timelines, positions,
// and the transaction log.
package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/risk-sentinel/internal/ai"
	"github.com/risk-sentinel/internal/errors"
	"github.com/risk-sentinel/internal/storage"
	"github.com/risk-sentinel/internal/types"
)

// ProtocolStore is the protocol repository surface services depend on
type ProtocolStore interface {
	List(ctx context.Context) ([]*storage.Protocol, error)
	GetByID(ctx context.Context, id uuid.UUID) (*storage.Protocol, error)
	GetByContract(ctx context.Context, contractAddress string) (*storage.Protocol, error)
	Create(ctx context.Context, insert storage.ProtocolInsert) (*storage.Protocol, error)
	Update(ctx context.Context, id uuid.UUID, update storage.ProtocolUpdate) (*storage.Protocol, error)
}

// Notifier is the realtime hub surface services depend on
type Notifier interface {
	NotifyProtocolUpdate(protocolID string, data map[string]interface{})
	NotifyRiskAlert(protocolID string, riskScore int, message string)
	NotifyNewInsight(insightID, walletAddress, severity string)
	NotifyPositionChange(walletAddress string, change map[string]interface{})
}

// ProtocolFilter holds the optional list filters from the query string.
// Filtering and sorting run in memory over the full repository result set.
type ProtocolFilter struct {
	Search    string
	RiskLevel string
	MinTVL    *float64
	MaxTVL    *float64
	MinAPY    *float64
	MaxAPY    *float64
	SortBy    string
	SortOrder string
}

// RiskMetrics summarizes the whole monitored protocol set
type RiskMetrics struct {
	TotalValue         string `json:"totalValue"`
	AvgRiskScore       int    `json:"avgRiskScore"`
	ProtocolsMonitored int    `json:"protocolsMonitored"`
	ActiveAlerts       int    `json:"activeAlerts"`
}

// Alert is a synthesized view of a high-risk protocol
type Alert struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Severity   string `json:"severity"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	ProtocolID string `json:"protocolId"`
}

// alertThreshold is the risk score above which a protocol shows up in the
// alerts feed; criticalThreshold is where severity escalates.
const (
	alertThreshold    = 70
	criticalThreshold = 85
)

// ProtocolService handles protocol listing, metrics, and re-scoring
type ProtocolService struct {
	protocols ProtocolStore
	scorer    ai.Scorer
}

// NewProtocolService creates a new protocol service
func NewProtocolService(protocols ProtocolStore, scorer ai.Scorer) *ProtocolService {
	return &ProtocolService{protocols: protocols, scorer: scorer}
}

func parseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// List returns protocols matching the filter, sorted per the filter's sort
// key. Default sort is TVL descending.
func (s *ProtocolService) List(ctx context.Context, filter ProtocolFilter) ([]*storage.Protocol, error) {
	protocols, err := s.protocols.List(ctx)
	if err != nil {
		return nil, errors.NewDatabaseError("list protocols", err)
	}

	filtered := make([]*storage.Protocol, 0, len(protocols))
	search := strings.ToLower(filter.Search)
	for _, p := range protocols {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Symbol), search) &&
			!strings.Contains(strings.ToLower(p.ContractAddress), search) {
			continue
		}
		if filter.RiskLevel != "" && p.RiskLevel != filter.RiskLevel {
			continue
		}
		if filter.MinTVL != nil && parseFloatOrZero(p.TVL) < *filter.MinTVL {
			continue
		}
		if filter.MaxTVL != nil && parseFloatOrZero(p.TVL) > *filter.MaxTVL {
			continue
		}
		if filter.MinAPY != nil && (p.APY == nil || parseFloatOrZero(*p.APY) < *filter.MinAPY) {
			continue
		}
		if filter.MaxAPY != nil && (p.APY == nil || parseFloatOrZero(*p.APY) > *filter.MaxAPY) {
			continue
		}
		filtered = append(filtered, p)
	}

	sortProtocols(filtered, filter.SortBy, filter.SortOrder)

	return filtered, nil
}

func sortProtocols(protocols []*storage.Protocol, sortBy, sortOrder string) {
	asc := sortOrder == "asc"

	numeric := func(get func(*storage.Protocol) float64) func(i, j int) bool {
		return func(i, j int) bool {
			if asc {
				return get(protocols[i]) < get(protocols[j])
			}
			return get(protocols[i]) > get(protocols[j])
		}
	}

	var less func(i, j int) bool
	switch sortBy {
	case "riskScore":
		less = numeric(func(p *storage.Protocol) float64 { return float64(p.RiskScore) })
	case "trustIndex":
		less = numeric(func(p *storage.Protocol) float64 { return float64(p.TrustIndex) })
	case "apy":
		less = numeric(func(p *storage.Protocol) float64 {
			if p.APY == nil {
				return 0
			}
			return parseFloatOrZero(*p.APY)
		})
	case "name":
		less = func(i, j int) bool {
			a, b := strings.ToLower(protocols[i].Name), strings.ToLower(protocols[j].Name)
			if asc {
				return a < b
			}
			return a > b
		}
	default: // tvl
		less = numeric(func(p *storage.Protocol) float64 { return parseFloatOrZero(p.TVL) })
	}

	sort.SliceStable(protocols, less)
}

// Metrics aggregates TVL, average risk score, and alert count over all
// monitored protocols.
func (s *ProtocolService) Metrics(ctx context.Context) (*RiskMetrics, error) {
	protocols, err := s.protocols.List(ctx)
	if err != nil {
		return nil, errors.NewDatabaseError("list protocols", err)
	}

	totalValue := 0.0
	scoreSum := 0
	activeAlerts := 0
	for _, p := range protocols {
		totalValue += parseFloatOrZero(p.TVL)
		scoreSum += p.RiskScore
		if p.RiskScore > alertThreshold {
			activeAlerts++
		}
	}

	avgRiskScore := 0
	if len(protocols) > 0 {
		avgRiskScore = int(math.Round(float64(scoreSum) / float64(len(protocols))))
	}

	return &RiskMetrics{
		TotalValue:         strconv.FormatFloat(totalValue, 'f', 2, 64),
		AvgRiskScore:       avgRiskScore,
		ProtocolsMonitored: len(protocols),
		ActiveAlerts:       activeAlerts,
	}, nil
}

// Alerts synthesizes alerts for every protocol scoring above the alert
// threshold. Scores at or above the critical threshold are critical, the
// rest are warnings.
func (s *ProtocolService) Alerts(ctx context.Context) ([]Alert, error) {
	protocols, err := s.protocols.List(ctx)
	if err != nil {
		return nil, errors.NewDatabaseError("list protocols", err)
	}

	alerts := make([]Alert, 0)
	now := time.Now().UTC().Format(time.RFC3339)
	for _, p := range protocols {
		if p.RiskScore <= alertThreshold {
			continue
		}
		severity := string(types.SeverityWarning)
		if p.RiskScore >= criticalThreshold {
			severity = string(types.SeverityCritical)
		}
		alerts = append(alerts, Alert{
			ID:         "alert-" + p.ID.String(),
			Type:       "high_risk",
			Severity:   severity,
			Title:      fmt.Sprintf("High Risk Detected: %s", p.Name),
			Message:    fmt.Sprintf("%s shows elevated risk score of %d/100. Consider reviewing your position.", p.Symbol, p.RiskScore),
			Timestamp:  now,
			ProtocolID: p.ID.String(),
		})
	}

	return alerts, nil
}

// Analyze re-scores one protocol through the model (or its fallback) and
// persists the new risk fields.
func (s *ProtocolService) Analyze(ctx context.Context, protocolID string) (*ai.RiskAnalysis, error) {
	protocol, err := s.getProtocol(ctx, protocolID)
	if err != nil {
		return nil, err
	}

	apy := ""
	if protocol.APY != nil {
		apy = *protocol.APY
	}
	analysis := s.scorer.AnalyzeProtocolRisk(ctx, ai.ProtocolRiskRequest{
		ProtocolName:    protocol.Name,
		TVL:             protocol.TVL,
		APY:             apy,
		ContractAddress: protocol.ContractAddress,
	})

	riskLevel := string(analysis.RiskLevel)
	if _, err := s.protocols.Update(ctx, protocol.ID, storage.ProtocolUpdate{
		RiskScore:  &analysis.RiskScore,
		RiskLevel:  &riskLevel,
		Confidence: &analysis.Confidence,
		TrustIndex: &analysis.TrustIndex,
	}); err != nil {
		return nil, errors.NewDatabaseError("update protocol", err)
	}

	return analysis, nil
}

// Explain produces the detailed risk breakdown for one protocol
func (s *ProtocolService) Explain(ctx context.Context, protocolID string) (*ai.RiskExplanation, error) {
	protocol, err := s.getProtocol(ctx, protocolID)
	if err != nil {
		return nil, err
	}

	return s.scorer.ExplainRiskDecision(ctx, ai.ExplainRequest{
		ProtocolName: protocol.Name,
		Symbol:       protocol.Symbol,
		RiskScore:    protocol.RiskScore,
		RiskLevel:    protocol.RiskLevel,
		TVL:          protocol.TVL,
		APY:          protocol.APY,
		TrustIndex:   protocol.TrustIndex,
		Confidence:   protocol.Confidence,
	}), nil
}

func (s *ProtocolService) getProtocol(ctx context.Context, protocolID string) (*storage.Protocol, error) {
	id, err := uuid.Parse(protocolID)
	if err != nil {
		return nil, errors.NewProtocolNotFoundError(protocolID)
	}
	protocol, err := s.protocols.GetByID(ctx, id)
	if err != nil {
		return nil, errors.NewDatabaseError("get protocol", err)
	}
	if protocol == nil {
		return nil, errors.NewProtocolNotFoundError(protocolID)
	}
	return protocol, nil
}
