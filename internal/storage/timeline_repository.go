package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RiskTimelineEntry is one append-only risk score observation for a protocol
type RiskTimelineEntry struct {
	ID         uuid.UUID `json:"id"`
	ProtocolID string    `json:"protocolId"`
	RiskScore  int32     `json:"riskScore"`
	Timestamp  time.Time `json:"timestamp"`
}

// TimelineRepository handles risk timeline data access in ClickHouse. The
// timeline is append-only analytics data; it never updates rows.
type TimelineRepository struct {
	db *ClickHouseDB
}

// NewTimelineRepository creates a new timeline repository
func NewTimelineRepository(db *ClickHouseDB) *TimelineRepository {
	return &TimelineRepository{db: db}
}

// Append records one risk score observation
func (r *TimelineRepository) Append(ctx context.Context, protocolID string, riskScore int, timestamp time.Time) error {
	return r.AppendBatch(ctx, []RiskTimelineEntry{{
		ProtocolID: protocolID,
		RiskScore:  int32(riskScore),
		Timestamp:  timestamp,
	}})
}

// AppendBatch records multiple observations in one insert
func (r *TimelineRepository) AppendBatch(ctx context.Context, entries []RiskTimelineEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO risk_timeline (id, protocol_id, risk_score, timestamp)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, e := range entries {
		id := e.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if err := batch.Append(id, e.ProtocolID, e.RiskScore, e.Timestamp); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

// List retrieves timeline entries in time order, optionally restricted to
// one protocol. An empty protocolID returns the full timeline.
func (r *TimelineRepository) List(ctx context.Context, protocolID string) ([]RiskTimelineEntry, error) {
	query := `
		SELECT id, protocol_id, risk_score, timestamp
		FROM risk_timeline`
	args := []interface{}{}

	if protocolID != "" {
		query += ` WHERE protocol_id = ?`
		args = append(args, protocolID)
	}
	query += ` ORDER BY timestamp ASC`

	rows, err := r.db.Conn().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk timeline: %w", err)
	}
	defer rows.Close()

	entries := make([]RiskTimelineEntry, 0)
	for rows.Next() {
		var e RiskTimelineEntry
		if err := rows.Scan(&e.ID, &e.ProtocolID, &e.RiskScore, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan timeline entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
