// Package scanner runs the periodic on-chain protocol scan: it discovers
// liquidity pools, refreshes stored protocols, scores new ones, and pushes
// risk history and realtime notifications.
package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/risk-sentinel/internal/ai"
	"github.com/risk-sentinel/internal/chain"
	"github.com/risk-sentinel/internal/logging"
	"github.com/risk-sentinel/internal/storage"
)

// PoolScanner is the chain reader surface the scanner needs
type PoolScanner interface {
	ScanProtocols(ctx context.Context) []chain.LiquidityPool
	GetCurrentBlock(ctx context.Context) (uint64, error)
}

// ProtocolStore is the protocol repository surface the scanner needs
type ProtocolStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*storage.Protocol, error)
	GetByContract(ctx context.Context, contractAddress string) (*storage.Protocol, error)
	Create(ctx context.Context, insert storage.ProtocolInsert) (*storage.Protocol, error)
	Update(ctx context.Context, id uuid.UUID, update storage.ProtocolUpdate) (*storage.Protocol, error)
}

// ContractIndex maps contract addresses to protocol IDs for O(1) lookups
type ContractIndex interface {
	Get(ctx context.Context, contractAddress string) (string, error)
	Set(ctx context.Context, contractAddress, protocolID string) error
}

// TimelineAppender records risk score observations
type TimelineAppender interface {
	Append(ctx context.Context, protocolID string, riskScore int, timestamp time.Time) error
}

// Notifier is the realtime hub surface the scanner needs
type Notifier interface {
	NotifyProtocolUpdate(protocolID string, data map[string]interface{})
	NotifyRiskAlert(protocolID string, riskScore int, message string)
}

// alertThreshold is the risk score above which a newly scored protocol
// triggers a realtime alert.
const alertThreshold = 70

// scoreJumpThreshold is how far a stored score must move between reads of
// the same cycle before an existing protocol re-alerts.
const scoreJumpThreshold = 10

// Scanner periodically scans the chain and reconciles the protocol table
type Scanner struct {
	reader    PoolScanner
	protocols ProtocolStore
	index     ContractIndex
	timeline  TimelineAppender
	scorer    ai.Scorer
	hub       Notifier
	interval  time.Duration
	logger    *logging.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a scanner. It does not start scanning until Start is called.
func New(reader PoolScanner, protocols ProtocolStore, index ContractIndex, timeline TimelineAppender, scorer ai.Scorer, hub Notifier, interval time.Duration, logger *logging.Logger) *Scanner {
	return &Scanner{
		reader:    reader,
		protocols: protocols,
		index:     index,
		timeline:  timeline,
		scorer:    scorer,
		hub:       hub,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs one scan immediately, then one per interval, until Stop is
// called or the context is cancelled. Cycles never overlap.
func (s *Scanner) Start(ctx context.Context) {
	go func() {
		defer close(s.doneCh)

		s.logger.WithField("interval", s.interval.String()).Info("Protocol scanner started")
		s.RunCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunCycle(ctx)
			}
		}
	}()
}

// Stop halts the scan loop and waits for any in-flight cycle to finish
func (s *Scanner) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.logger.Info("Protocol scanner stopped")
}

// RunCycle executes one full scan. Failures are logged; a cycle never
// returns an error to its caller.
func (s *Scanner) RunCycle(ctx context.Context) {
	s.logger.Info("Starting protocol scan")

	if block, err := s.reader.GetCurrentBlock(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to read current block")
	} else {
		s.logger.WithField("block", block).Info("Scanning at block")
	}

	pools := s.reader.ScanProtocols(ctx)
	if len(pools) == 0 {
		s.logger.Info("No pools discovered in this cycle")
		return
	}

	for _, pool := range pools {
		if err := s.processPool(ctx, pool); err != nil {
			s.logger.WithError(err).WithField("pair", pool.PairAddress).Error("Failed to process pool")
		}
	}

	s.logger.WithField("pools", len(pools)).Info("Protocol scan complete")
}

func (s *Scanner) processPool(ctx context.Context, pool chain.LiquidityPool) error {
	symbol := pool.Token0.Symbol + "-" + pool.Token1.Symbol
	name := pool.Token0.Name + "/" + pool.Token1.Name + " Pool"

	existing, err := s.lookupProtocol(ctx, pool.PairAddress)
	if err != nil {
		return err
	}

	if existing != nil {
		return s.refreshProtocol(ctx, existing, symbol, pool)
	}
	return s.registerProtocol(ctx, name, symbol, pool)
}

// lookupProtocol resolves a pair address to a stored protocol, preferring
// the Redis contract index over a table lookup.
func (s *Scanner) lookupProtocol(ctx context.Context, contractAddress string) (*storage.Protocol, error) {
	if cached, err := s.index.Get(ctx, contractAddress); err != nil {
		s.logger.WithError(err).Warn("Contract index lookup failed, falling back to database")
	} else if cached != "" {
		id, err := uuid.Parse(cached)
		if err == nil {
			protocol, err := s.protocols.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if protocol != nil {
				return protocol, nil
			}
		}
	}

	return s.protocols.GetByContract(ctx, contractAddress)
}

func (s *Scanner) refreshProtocol(ctx context.Context, protocol *storage.Protocol, symbol string, pool chain.LiquidityPool) error {
	previousScore := protocol.RiskScore

	updated, err := s.protocols.Update(ctx, protocol.ID, storage.ProtocolUpdate{
		TVL: &pool.TVL,
		APY: &pool.APY,
	})
	if err != nil {
		return fmt.Errorf("failed to update protocol %s: %w", protocol.ID, err)
	}
	if updated == nil {
		return nil
	}

	if err := s.timeline.Append(ctx, protocol.ID.String(), previousScore, time.Now().UTC()); err != nil {
		s.logger.WithError(err).WithField("protocol", protocol.ID.String()).Warn("Failed to append timeline entry")
	}

	s.hub.NotifyProtocolUpdate(protocol.ID.String(), map[string]interface{}{
		"name": symbol,
		"tvl":  pool.TVL,
		"apy":  pool.APY,
	})

	if updated.RiskScore > previousScore+scoreJumpThreshold {
		s.hub.NotifyRiskAlert(protocol.ID.String(), updated.RiskScore,
			fmt.Sprintf("%s risk score increased from %d to %d", symbol, previousScore, updated.RiskScore))
	}

	return nil
}

func (s *Scanner) registerProtocol(ctx context.Context, name, symbol string, pool chain.LiquidityPool) error {
	analysis := s.scorer.AnalyzeProtocolRisk(ctx, ai.ProtocolRiskRequest{
		ProtocolName:    name,
		TVL:             pool.TVL,
		APY:             pool.APY,
		ContractAddress: pool.PairAddress,
	})

	apy := pool.APY
	created, err := s.protocols.Create(ctx, storage.ProtocolInsert{
		Name:            name,
		Symbol:          symbol,
		TVL:             pool.TVL,
		RiskScore:       analysis.RiskScore,
		RiskLevel:       string(analysis.RiskLevel),
		Confidence:      analysis.Confidence,
		TrustIndex:      analysis.TrustIndex,
		APY:             &apy,
		ContractAddress: pool.PairAddress,
	})
	if err != nil {
		// A concurrent cycle may have inserted the same contract; the
		// unique index makes this safe to skip.
		s.logger.WithError(err).WithField("pair", pool.PairAddress).Warn("Skipping protocol creation")
		return nil
	}

	if err := s.index.Set(ctx, created.ContractAddress, created.ID.String()); err != nil {
		s.logger.WithError(err).Warn("Failed to index new protocol contract")
	}

	if err := s.timeline.Append(ctx, created.ID.String(), analysis.RiskScore, time.Now().UTC()); err != nil {
		s.logger.WithError(err).WithField("protocol", created.ID.String()).Warn("Failed to append timeline entry")
	}

	s.hub.NotifyProtocolUpdate(created.ID.String(), map[string]interface{}{
		"name":      symbol,
		"isNew":     true,
		"riskScore": analysis.RiskScore,
		"riskLevel": string(analysis.RiskLevel),
	})

	if analysis.RiskScore > alertThreshold {
		s.hub.NotifyRiskAlert(created.ID.String(), analysis.RiskScore,
			fmt.Sprintf("New high-risk protocol detected: %s (Risk: %d/100)", symbol, analysis.RiskScore))
	}

	s.logger.WithFields(map[string]interface{}{
		"protocol":  created.ID.String(),
		"symbol":    symbol,
		"riskScore": analysis.RiskScore,
	}).Info("Registered new protocol")

	return nil
}
