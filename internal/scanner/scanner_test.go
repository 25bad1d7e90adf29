package scanner

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/risk-sentinel/internal/ai"
	"github.com/risk-sentinel/internal/chain"
	"github.com/risk-sentinel/internal/logging"
	"github.com/risk-sentinel/internal/storage"
	"github.com/risk-sentinel/internal/types"
)

// Mock dependencies for testing

type mockReader struct {
	pools    []chain.LiquidityPool
	block    uint64
	blockErr error
}

func (m *mockReader) ScanProtocols(ctx context.Context) []chain.LiquidityPool {
	return m.pools
}

func (m *mockReader) GetCurrentBlock(ctx context.Context) (uint64, error) {
	return m.block, m.blockErr
}

type mockProtocolStore struct {
	byID        map[uuid.UUID]*storage.Protocol
	byContract  map[string]*storage.Protocol
	createErr   error
	created     []*storage.Protocol
	updateScore *int
}

func newMockProtocolStore() *mockProtocolStore {
	return &mockProtocolStore{
		byID:       make(map[uuid.UUID]*storage.Protocol),
		byContract: make(map[string]*storage.Protocol),
	}
}

func (m *mockProtocolStore) add(p *storage.Protocol) {
	m.byID[p.ID] = p
	m.byContract[strings.ToLower(p.ContractAddress)] = p
}

func (m *mockProtocolStore) GetByID(ctx context.Context, id uuid.UUID) (*storage.Protocol, error) {
	return m.byID[id], nil
}

func (m *mockProtocolStore) GetByContract(ctx context.Context, contractAddress string) (*storage.Protocol, error) {
	return m.byContract[strings.ToLower(contractAddress)], nil
}

func (m *mockProtocolStore) Create(ctx context.Context, insert storage.ProtocolInsert) (*storage.Protocol, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
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
	m.add(p)
	m.created = append(m.created, p)
	return p, nil
}

func (m *mockProtocolStore) Update(ctx context.Context, id uuid.UUID, update storage.ProtocolUpdate) (*storage.Protocol, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	if update.TVL != nil {
		p.TVL = *update.TVL
	}
	if update.APY != nil {
		p.APY = update.APY
	}
	if update.RiskScore != nil {
		p.RiskScore = *update.RiskScore
	}
	if m.updateScore != nil {
		p.RiskScore = *m.updateScore
	}
	return p, nil
}

type mockIndex struct {
	entries map[string]string
}

func newMockIndex() *mockIndex {
	return &mockIndex{entries: make(map[string]string)}
}

func (m *mockIndex) Get(ctx context.Context, contractAddress string) (string, error) {
	return m.entries[strings.ToLower(contractAddress)], nil
}

func (m *mockIndex) Set(ctx context.Context, contractAddress, protocolID string) error {
	m.entries[strings.ToLower(contractAddress)] = protocolID
	return nil
}

type mockTimeline struct {
	appended []struct {
		protocolID string
		riskScore  int
	}
}

func (m *mockTimeline) Append(ctx context.Context, protocolID string, riskScore int, timestamp time.Time) error {
	m.appended = append(m.appended, struct {
		protocolID string
		riskScore  int
	}{protocolID, riskScore})
	return nil
}

type mockScorer struct {
	score int
}

func (m *mockScorer) AnalyzeProtocolRisk(ctx context.Context, req ai.ProtocolRiskRequest) *ai.RiskAnalysis {
	return &ai.RiskAnalysis{
		RiskScore:  m.score,
		RiskLevel:  types.RiskLevelForScore(m.score),
		Confidence: 75,
		TrustIndex: 100 - m.score,
	}
}

func (m *mockScorer) AnalyzeUserPositions(ctx context.Context, walletAddress string, positions []ai.PositionSummary) *ai.PositionInsight {
	return &ai.PositionInsight{}
}

func (m *mockScorer) ExplainRiskDecision(ctx context.Context, req ai.ExplainRequest) *ai.RiskExplanation {
	return &ai.RiskExplanation{}
}

func (m *mockScorer) GenerateRiskExplanation(ctx context.Context, riskScore int, protocolName string) string {
	return ""
}

type mockHub struct {
	updates []map[string]interface{}
	alerts  []string
}

func (m *mockHub) NotifyProtocolUpdate(protocolID string, data map[string]interface{}) {
	m.updates = append(m.updates, data)
}

func (m *mockHub) NotifyRiskAlert(protocolID string, riskScore int, message string) {
	m.alerts = append(m.alerts, message)
}

func testPool(pair, sym0, sym1 string) chain.LiquidityPool {
	return chain.LiquidityPool{
		PairAddress: pair,
		Token0:      chain.TokenInfo{Address: "0xt0", Name: "Token " + sym0, Symbol: sym0, Decimals: 18, TotalSupply: big.NewInt(1)},
		Token1:      chain.TokenInfo{Address: "0xt1", Name: "Token " + sym1, Symbol: sym1, Decimals: 18, TotalSupply: big.NewInt(1)},
		Reserve0:    big.NewInt(1),
		Reserve1:    big.NewInt(1),
		TVL:         "1000.00",
		APY:         "0",
	}
}

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelError, logging.FormatText)
}

func newTestScanner(reader *mockReader, store *mockProtocolStore, index *mockIndex, timeline *mockTimeline, scorer *mockScorer, hub *mockHub) *Scanner {
	return New(reader, store, index, timeline, scorer, hub, time.Minute, testLogger())
}

func TestScanner_RegistersNewProtocol(t *testing.T) {
	reader := &mockReader{pools: []chain.LiquidityPool{testPool("0xPAIR1", "AAA", "BBB")}, block: 100}
	store := newMockProtocolStore()
	index := newMockIndex()
	timeline := &mockTimeline{}
	hub := &mockHub{}
	s := newTestScanner(reader, store, index, timeline, &mockScorer{score: 30}, hub)

	s.RunCycle(context.Background())

	if len(store.created) != 1 {
		t.Fatalf("Expected 1 protocol created, got %d", len(store.created))
	}
	created := store.created[0]
	if created.Symbol != "AAA-BBB" {
		t.Errorf("Expected symbol AAA-BBB, got %s", created.Symbol)
	}
	if created.Name != "Token AAA/Token BBB Pool" {
		t.Errorf("Unexpected name: %s", created.Name)
	}
	if created.RiskScore != 30 || created.RiskLevel != "low" {
		t.Errorf("Expected score 30/low, got %d/%s", created.RiskScore, created.RiskLevel)
	}

	if got := index.entries[strings.ToLower("0xPAIR1")]; got != created.ID.String() {
		t.Errorf("Expected contract indexed to %s, got %s", created.ID, got)
	}
	if len(timeline.appended) != 1 || timeline.appended[0].riskScore != 30 {
		t.Errorf("Expected 1 timeline entry with score 30, got %v", timeline.appended)
	}
	if len(hub.updates) != 1 || hub.updates[0]["isNew"] != true {
		t.Errorf("Expected isNew protocol update, got %v", hub.updates)
	}
	if len(hub.alerts) != 0 {
		t.Errorf("Expected no alert for low risk, got %v", hub.alerts)
	}
}

func TestScanner_AlertsOnHighRiskRegistration(t *testing.T) {
	reader := &mockReader{pools: []chain.LiquidityPool{testPool("0xPAIR1", "RSK", "ETH")}}
	store := newMockProtocolStore()
	hub := &mockHub{}
	s := newTestScanner(reader, store, newMockIndex(), &mockTimeline{}, &mockScorer{score: 90}, hub)

	s.RunCycle(context.Background())

	if len(hub.alerts) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(hub.alerts))
	}
	want := "New high-risk protocol detected: RSK-ETH (Risk: 90/100)"
	if hub.alerts[0] != want {
		t.Errorf("Expected alert %q, got %q", want, hub.alerts[0])
	}
}

func TestScanner_RefreshesExistingProtocol(t *testing.T) {
	existing := &storage.Protocol{
		ID:              uuid.New(),
		Name:            "Token AAA/Token BBB Pool",
		Symbol:          "AAA-BBB",
		TVL:             "500.00",
		RiskScore:       45,
		RiskLevel:       "medium",
		ContractAddress: "0xPAIR1",
	}
	store := newMockProtocolStore()
	store.add(existing)
	index := newMockIndex()
	index.entries[strings.ToLower("0xPAIR1")] = existing.ID.String()

	pool := testPool("0xPAIR1", "AAA", "BBB")
	pool.TVL = "2000.00"
	reader := &mockReader{pools: []chain.LiquidityPool{pool}}
	timeline := &mockTimeline{}
	hub := &mockHub{}
	s := newTestScanner(reader, store, index, timeline, &mockScorer{score: 30}, hub)

	s.RunCycle(context.Background())

	if len(store.created) != 0 {
		t.Errorf("Expected no new protocol, got %d", len(store.created))
	}
	if existing.TVL != "2000.00" {
		t.Errorf("Expected TVL refreshed to 2000.00, got %s", existing.TVL)
	}
	// Timeline records the score as it stood before the refresh
	if len(timeline.appended) != 1 || timeline.appended[0].riskScore != 45 {
		t.Errorf("Expected timeline entry with previous score 45, got %v", timeline.appended)
	}
	if len(hub.updates) != 1 || hub.updates[0]["tvl"] != "2000.00" {
		t.Errorf("Expected refresh update with new TVL, got %v", hub.updates)
	}
	if len(hub.alerts) != 0 {
		t.Errorf("Expected no alert when score unchanged, got %v", hub.alerts)
	}
}

func TestScanner_AlertsOnScoreIncrease(t *testing.T) {
	existing := &storage.Protocol{
		ID:              uuid.New(),
		Symbol:          "AAA-BBB",
		TVL:             "500.00",
		RiskScore:       45,
		RiskLevel:       "medium",
		ContractAddress: "0xPAIR1",
	}
	store := newMockProtocolStore()
	store.add(existing)
	jumped := 60
	store.updateScore = &jumped
	index := newMockIndex()
	index.entries[strings.ToLower("0xPAIR1")] = existing.ID.String()

	reader := &mockReader{pools: []chain.LiquidityPool{testPool("0xPAIR1", "AAA", "BBB")}}
	hub := &mockHub{}
	s := newTestScanner(reader, store, index, &mockTimeline{}, &mockScorer{score: 30}, hub)

	s.RunCycle(context.Background())

	if len(hub.alerts) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(hub.alerts))
	}
	want := "AAA-BBB risk score increased from 45 to 60"
	if hub.alerts[0] != want {
		t.Errorf("Expected alert %q, got %q", want, hub.alerts[0])
	}
}

func TestScanner_FallsBackToContractLookup(t *testing.T) {
	existing := &storage.Protocol{
		ID:              uuid.New(),
		Symbol:          "AAA-BBB",
		TVL:             "500.00",
		RiskScore:       45,
		ContractAddress: "0xPAIR1",
	}
	store := newMockProtocolStore()
	store.add(existing)

	reader := &mockReader{pools: []chain.LiquidityPool{testPool("0xPAIR1", "AAA", "BBB")}}
	s := newTestScanner(reader, store, newMockIndex(), &mockTimeline{}, &mockScorer{score: 30}, &mockHub{})

	s.RunCycle(context.Background())

	if len(store.created) != 0 {
		t.Errorf("Expected existing protocol found via contract lookup, got %d created", len(store.created))
	}
}

func TestScanner_SkipsFailedCreation(t *testing.T) {
	reader := &mockReader{pools: []chain.LiquidityPool{
		testPool("0xPAIR1", "AAA", "BBB"),
		testPool("0xPAIR2", "CCC", "DDD"),
	}}
	store := newMockProtocolStore()
	store.createErr = fmt.Errorf("duplicate key value violates unique constraint")
	s := newTestScanner(reader, store, newMockIndex(), &mockTimeline{}, &mockScorer{score: 30}, &mockHub{})

	// Must not panic or abort the cycle
	s.RunCycle(context.Background())

	if len(store.created) != 0 {
		t.Errorf("Expected no protocols created, got %d", len(store.created))
	}
}

func TestScanner_StartStop(t *testing.T) {
	reader := &mockReader{}
	s := newTestScanner(reader, newMockProtocolStore(), newMockIndex(), &mockTimeline{}, &mockScorer{score: 30}, &mockHub{})

	s.Start(context.Background())
	s.Stop()
}
