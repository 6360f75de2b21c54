package database

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/regulens/compliance-core/internal/pattern"
)

// PatternStore implements internal/pattern.Store over the connection pool.
type PatternStore struct {
	pool *Pool
}

// NewPatternStore builds an internal/pattern.Store backed by Postgres.
func NewPatternStore(pool *Pool) *PatternStore {
	return &PatternStore{pool: pool}
}

// patternMetadata folds a Pattern's kind-specific payload and free-form
// Metadata into one JSON document for the detected_patterns.metadata column,
// since only one payload is ever populated per Kind (spec.md §3's tagged sum).
func patternMetadata(p pattern.Pattern) ([]byte, error) {
	doc := map[string]interface{}{}
	for k, v := range p.Metadata {
		doc[k] = v
	}
	switch p.Kind {
	case pattern.KindDecision:
		doc["payload"] = p.Decision
	case pattern.KindBehavior:
		doc["payload"] = p.Behavior
	case pattern.KindAnomaly:
		doc["payload"] = p.Anomaly
	case pattern.KindTrend:
		doc["payload"] = p.Trend
	case pattern.KindCorrelation:
		doc["payload"] = p.Correlation
	case pattern.KindSequence:
		doc["payload"] = p.Sequence
	}
	return json.Marshal(doc)
}

func (s *PatternStore) SavePattern(ctx context.Context, p pattern.Pattern) error {
	metadata, err := patternMetadata(p)
	if err != nil {
		return wrapFailure("marshal pattern metadata", err)
	}

	_, err = s.pool.Raw().ExecContext(ctx, `
		INSERT INTO detected_patterns
			(pattern_id, pattern_type, name, description, confidence, impact, strength,
			 occurrence_count, is_significant, metadata, discovered_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $10, $11)
		ON CONFLICT (pattern_id) DO UPDATE SET
			confidence = EXCLUDED.confidence,
			impact = EXCLUDED.impact,
			strength = EXCLUDED.strength,
			occurrence_count = EXCLUDED.occurrence_count,
			metadata = EXCLUDED.metadata,
			last_updated = EXCLUDED.last_updated
	`, p.ID, string(p.Kind), p.Name, p.Description, string(p.Confidence), string(p.Impact), p.Strength,
		p.Occurrences, metadata, p.DiscoveredAt, p.LastUpdated)
	if err != nil {
		return wrapFailure("upsert detected pattern", err)
	}
	return nil
}

func (s *PatternStore) SaveDataPoint(ctx context.Context, dp pattern.DataPoint) error {
	numerical, err := json.Marshal(dp.NumericalFeatures)
	if err != nil {
		return wrapFailure("marshal numerical features", err)
	}
	categorical, err := json.Marshal(dp.CategoricalFeatures)
	if err != nil {
		return wrapFailure("marshal categorical features", err)
	}
	raw := dp.RawData
	if raw == nil {
		raw = []byte("{}")
	}

	_, err = s.pool.Raw().ExecContext(ctx, `
		INSERT INTO pattern_data_points (id, entity_id, recorded_at, numerical_features, categorical_features, raw_data)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), dp.EntityID, dp.Timestamp, numerical, categorical, raw)
	if err != nil {
		return wrapFailure("insert pattern data point", err)
	}
	return nil
}
