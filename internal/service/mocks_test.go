package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/risk-sentinel/internal/ai"
	"github.com/risk-sentinel/internal/storage"
	"github.com/risk-sentinel/internal/types"
)

// Mock repositories for testing

type mockProtocolStore struct {
	protocols []*storage.Protocol
	listErr   error
	updates   map[uuid.UUID]storage.ProtocolUpdate
}

func newMockProtocolStore(protocols ...*storage.Protocol) *mockProtocolStore {
	return &mockProtocolStore{protocols: protocols, updates: make(map[uuid.UUID]storage.ProtocolUpdate)}
}

func (m *mockProtocolStore) List(ctx context.Context) ([]*storage.Protocol, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*storage.Protocol, len(m.protocols))
	copy(out, m.protocols)
	return out, nil
}

func (m *mockProtocolStore) GetByID(ctx context.Context, id uuid.UUID) (*storage.Protocol, error) {
	for _, p := range m.protocols {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockProtocolStore) GetByContract(ctx context.Context, contractAddress string) (*storage.Protocol, error) {
	for _, p := range m.protocols {
		if p.ContractAddress == contractAddress {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockProtocolStore) Create(ctx context.Context, insert storage.ProtocolInsert) (*storage.Protocol, error) {
	p := &storage.Protocol{
		ID:              uuid.New(),
		Name:            insert.Name,
		Symbol:          insert.Symbol,
		TVL:             insert.TVL,
		RiskScore:       insert.RiskScore,
		RiskLevel:       insert.RiskLevel,
		Confidence:      insert.Confidence,
		TrustIndex:      insert.TrustIndex,
		APY:             insert.APY,
		ContractAddress: insert.ContractAddress,
		UpdatedAt:       time.Now(),
	}
	m.protocols = append(m.protocols, p)
	return p, nil
}

func (m *mockProtocolStore) Update(ctx context.Context, id uuid.UUID, update storage.ProtocolUpdate) (*storage.Protocol, error) {
	m.updates[id] = update
	for _, p := range m.protocols {
		if p.ID == id {
			if update.TVL != nil {
				p.TVL = *update.TVL
			}
			if update.APY != nil {
				p.APY = update.APY
			}
			if update.RiskScore != nil {
				p.RiskScore = *update.RiskScore
			}
			if update.RiskLevel != nil {
				p.RiskLevel = *update.RiskLevel
			}
			if update.Confidence != nil {
				p.Confidence = *update.Confidence
			}
			if update.TrustIndex != nil {
				p.TrustIndex = *update.TrustIndex
			}
			return p, nil
		}
	}
	return nil, nil
}

type mockPositionStore struct {
	positions map[uuid.UUID]*storage.UserPosition
}

func newMockPositionStore() *mockPositionStore {
	return &mockPositionStore{positions: make(map[uuid.UUID]*storage.UserPosition)}
}

func (m *mockPositionStore) ListByWallet(ctx context.Context, walletAddress string) ([]*storage.UserPosition, error) {
	result := make([]*storage.UserPosition, 0)
	for _, p := range m.positions {
		if p.WalletAddress == walletAddress {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockPositionStore) GetByID(ctx context.Context, id uuid.UUID) (*storage.UserPosition, error) {
	return m.positions[id], nil
}

func (m *mockPositionStore) Create(ctx context.Context, insert storage.PositionInsert) (*storage.UserPosition, error) {
	p := &storage.UserPosition{
		ID:            uuid.New(),
		WalletAddress: insert.WalletAddress,
		ProtocolID:    insert.ProtocolID,
		PoolName:      insert.PoolName,
		Amount:        insert.Amount,
		APY:           insert.APY,
		RiskLevel:     insert.RiskLevel,
		CreatedAt:     time.Now(),
	}
	m.positions[p.ID] = p
	return p, nil
}

func (m *mockPositionStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if _, ok := m.positions[id]; !ok {
		return false, nil
	}
	delete(m.positions, id)
	return true, nil
}

type mockInsightStore struct {
	insights []*storage.AIInsight
}

func (m *mockInsightStore) ListByWallet(ctx context.Context, walletAddress string) ([]*storage.AIInsight, error) {
	result := make([]*storage.AIInsight, 0)
	for _, i := range m.insights {
		if i.WalletAddress == walletAddress {
			result = append(result, i)
		}
	}
	return result, nil
}

func (m *mockInsightStore) Create(ctx context.Context, insert storage.InsightInsert) (*storage.AIInsight, error) {
	i := &storage.AIInsight{
		ID:              uuid.New(),
		WalletAddress:   insert.WalletAddress,
		ProtocolID:      insert.ProtocolID,
		InsightType:     insert.InsightType,
		Title:           insert.Title,
		Description:     insert.Description,
		Severity:        insert.Severity,
		Recommendations: insert.Recommendations,
		CreatedAt:       time.Now(),
	}
	m.insights = append(m.insights, i)
	return i, nil
}

type mockSnapshotStore struct {
	snapshots []*storage.PortfolioSnapshot
}

func (m *mockSnapshotStore) ListByWallet(ctx context.Context, walletAddress string, days int) ([]*storage.PortfolioSnapshot, error) {
	result := make([]*storage.PortfolioSnapshot, 0)
	for _, s := range m.snapshots {
		if s.WalletAddress == walletAddress {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *mockSnapshotStore) Record(ctx context.Context, insert storage.SnapshotInsert) (*storage.PortfolioSnapshot, error) {
	s := &storage.PortfolioSnapshot{
		ID:            uuid.New(),
		WalletAddress: insert.WalletAddress,
		TotalValue:    insert.TotalValue,
		RiskScore:     insert.RiskScore,
		Timestamp:     time.Now(),
	}
	m.snapshots = append(m.snapshots, s)
	return s, nil
}

type mockTransactionStore struct {
	transactions []*storage.TransactionRecord
	byHash       map[string]*storage.TransactionRecord
}

func newMockTransactionStore() *mockTransactionStore {
	return &mockTransactionStore{byHash: make(map[string]*storage.TransactionRecord)}
}

func (m *mockTransactionStore) ListByWallet(ctx context.Context, walletAddress string, limit int) ([]*storage.TransactionRecord, error) {
	result := make([]*storage.TransactionRecord, 0)
	for _, t := range m.transactions {
		if t.WalletAddress == walletAddress {
			result = append(result, t)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockTransactionStore) Record(ctx context.Context, insert storage.TransactionInsert) (*storage.TransactionRecord, error) {
	if _, ok := m.byHash[insert.TransactionHash]; ok {
		return nil, storage.ErrDuplicateTransaction
	}
	t := &storage.TransactionRecord{
		ID:              uuid.New(),
		WalletAddress:   insert.WalletAddress,
		TransactionHash: insert.TransactionHash,
		TransactionType: insert.TransactionType,
		ProtocolID:      insert.ProtocolID,
		PoolName:        insert.PoolName,
		Amount:          insert.Amount,
		TokenSymbol:     insert.TokenSymbol,
		Status:          insert.Status,
		BlockNumber:     insert.BlockNumber,
		Timestamp:       time.Now(),
	}
	m.transactions = append(m.transactions, t)
	m.byHash[t.TransactionHash] = t
	return t, nil
}

func (m *mockTransactionStore) UpdateStatus(ctx context.Context, transactionHash, status string, blockNumber *int64) error {
	if t, ok := m.byHash[transactionHash]; ok {
		t.Status = status
		t.BlockNumber = blockNumber
	}
	return nil
}

type mockTimelineStore struct {
	entries []storage.RiskTimelineEntry
}

func (m *mockTimelineStore) Append(ctx context.Context, protocolID string, riskScore int, timestamp time.Time) error {
	m.entries = append(m.entries, storage.RiskTimelineEntry{
		ID:         uuid.New(),
		ProtocolID: protocolID,
		RiskScore:  int32(riskScore),
		Timestamp:  timestamp,
	})
	return nil
}

func (m *mockTimelineStore) List(ctx context.Context, protocolID string) ([]storage.RiskTimelineEntry, error) {
	if protocolID == "" {
		return m.entries, nil
	}
	result := make([]storage.RiskTimelineEntry, 0)
	for _, e := range m.entries {
		if e.ProtocolID == protocolID {
			result = append(result, e)
		}
	}
	return result, nil
}

// mockScorer returns canned analyses so service behavior stays deterministic
type mockScorer struct {
	analysis    *ai.RiskAnalysis
	insight     *ai.PositionInsight
	explanation *ai.RiskExplanation
	lastWallet  string
}

func (m *mockScorer) AnalyzeProtocolRisk(ctx context.Context, req ai.ProtocolRiskRequest) *ai.RiskAnalysis {
	if m.analysis != nil {
		return m.analysis
	}
	return &ai.RiskAnalysis{RiskScore: 50, RiskLevel: types.RiskMedium, Confidence: 75, TrustIndex: 50}
}

func (m *mockScorer) AnalyzeUserPositions(ctx context.Context, walletAddress string, positions []ai.PositionSummary) *ai.PositionInsight {
	m.lastWallet = walletAddress
	if m.insight != nil {
		return m.insight
	}
	return &ai.PositionInsight{
		Title:           "Portfolio Health Looks Good",
		Description:     "balanced",
		Recommendations: "hold",
		Severity:        types.SeverityInfo,
	}
}

func (m *mockScorer) ExplainRiskDecision(ctx context.Context, req ai.ExplainRequest) *ai.RiskExplanation {
	if m.explanation != nil {
		return m.explanation
	}
	return &ai.RiskExplanation{Summary: fmt.Sprintf("%s summary", req.ProtocolName)}
}

func (m *mockScorer) GenerateRiskExplanation(ctx context.Context, riskScore int, protocolName string) string {
	return fmt.Sprintf("%s: %d", protocolName, riskScore)
}

// mockNotifier records hub notifications
type mockNotifier struct {
	protocolUpdates []string
	riskAlerts      []string
	insights        []string
	positionChanges []map[string]interface{}
}

func (m *mockNotifier) NotifyProtocolUpdate(protocolID string, data map[string]interface{}) {
	m.protocolUpdates = append(m.protocolUpdates, protocolID)
}

func (m *mockNotifier) NotifyRiskAlert(protocolID string, riskScore int, message string) {
	m.riskAlerts = append(m.riskAlerts, message)
}

func (m *mockNotifier) NotifyNewInsight(insightID, walletAddress, severity string) {
	m.insights = append(m.insights, insightID)
}

func (m *mockNotifier) NotifyPositionChange(walletAddress string, change map[string]interface{}) {
	m.positionChanges = append(m.positionChanges, change)
}
