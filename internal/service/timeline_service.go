package service

import (
	"context"
	"sort"
	"time"

	"github.com/risk-sentinel/internal/errors"
	"github.com/risk-sentinel/internal/storage"
)

// TimelineStore is the timeline repository surface services depend on
type TimelineStore interface {
	Append(ctx context.Context, protocolID string, riskScore int, timestamp time.Time) error
	List(ctx context.Context, protocolID string) ([]storage.RiskTimelineEntry, error)
}

// TimelinePoint is one chart row: a display timestamp, an ISO timestamp, and
// one risk score field per protocol symbol observed at that instant.
type TimelinePoint map[string]any

// TimelineService serves the risk score history as chart-ready points
type TimelineService struct {
	timeline  TimelineStore
	protocols ProtocolStore
}

// NewTimelineService creates a new timeline service
func NewTimelineService(timeline TimelineStore, protocols ProtocolStore) *TimelineService {
	return &TimelineService{timeline: timeline, protocols: protocols}
}

const timelineDisplayLayout = "Jan 2, 03:04 PM"

// Chart pivots the timeline into points keyed by protocol symbol. Entries
// referencing protocols that no longer exist are skipped.
func (s *TimelineService) Chart(ctx context.Context, protocolID string) ([]TimelinePoint, error) {
	entries, err := s.timeline.List(ctx, protocolID)
	if err != nil {
		return nil, errors.NewDatabaseError("list risk timeline", err)
	}

	protocols, err := s.protocols.List(ctx)
	if err != nil {
		return nil, errors.NewDatabaseError("list protocols", err)
	}
	symbols := make(map[string]string, len(protocols))
	for _, p := range protocols {
		symbols[p.ID.String()] = p.Symbol
	}

	grouped := make(map[string]TimelinePoint)
	keys := make([]string, 0)
	for _, e := range entries {
		symbol, ok := symbols[e.ProtocolID]
		if !ok {
			continue
		}
		iso := e.Timestamp.UTC().Format(time.RFC3339)
		point, ok := grouped[iso]
		if !ok {
			point = TimelinePoint{
				"timestamp": e.Timestamp.UTC().Format(timelineDisplayLayout),
				"isoTime":   iso,
			}
			grouped[iso] = point
			keys = append(keys, iso)
		}
		point[symbol] = int(e.RiskScore)
	}

	sort.Strings(keys)

	points := make([]TimelinePoint, 0, len(keys))
	for _, k := range keys {
		points = append(points, grouped[k])
	}
	return points, nil
}
