package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/regulens/compliance-core/internal/monitor"
)

// MonitorStore implements internal/monitor.Store over the connection pool.
type MonitorStore struct {
	pool *Pool
}

// NewMonitorStore builds an internal/monitor.Store backed by Postgres.
func NewMonitorStore(pool *Pool) *MonitorStore {
	return &MonitorStore{pool: pool}
}

// UpsertChange inserts a newly-seen regulatory change, or bumps last_seen_at
// on a duplicate (spec.md §4.4 step 4: "INSERT ... ON CONFLICT (sourceId,
// contentHash) DO UPDATE SET lastSeenAt = now"). The RETURNING xmax trick
// reports whether the row was freshly inserted (xmax = 0) or updated.
func (s *MonitorStore) UpsertChange(ctx context.Context, sourceID, contentHash string, change monitor.CandidateChange) (bool, error) {
	var inserted bool
	err := s.pool.Raw().GetContext(ctx, &inserted, `
		INSERT INTO regulatory_changes (id, source_id, title, content_url, content_hash, severity, change_type, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (source_id, content_hash) DO UPDATE SET last_seen_at = now()
		RETURNING (xmax = 0)
	`, uuid.NewString(), sourceID, change.Title, change.URL, contentHash, change.ClassifiedSeverity, change.ChangeType)
	if err != nil {
		return false, wrapFailure("upsert regulatory change", err)
	}
	return inserted, nil
}
