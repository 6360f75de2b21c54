package database

import (
	"context"
	"encoding/json"

	"github.com/regulens/compliance-core/internal/feedback"
)

// FeedbackStore implements internal/feedback.Store over the connection pool.
type FeedbackStore struct {
	pool *Pool
}

// NewFeedbackStore builds an internal/feedback.Store backed by Postgres.
func NewFeedbackStore(pool *Pool) *FeedbackStore {
	return &FeedbackStore{pool: pool}
}

func (s *FeedbackStore) SaveFeedback(ctx context.Context, f feedback.FeedbackData) error {
	metadata, err := json.Marshal(f.Metadata)
	if err != nil {
		return wrapFailure("marshal feedback metadata", err)
	}

	var decisionID, context_ interface{}
	if f.DecisionID != "" {
		decisionID = f.DecisionID
	}
	if f.Context != "" {
		context_ = f.Context
	}

	_, err = s.pool.Raw().ExecContext(ctx, `
		INSERT INTO feedback_data
			(id, kind, source_entity, target_entity, decision_id, context, score, priority, body_text, metadata, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, f.ID, string(f.Kind), f.SourceEntity, f.TargetEntity, decisionID, context_, f.Score,
		string(f.Priority), f.Text, metadata, f.Timestamp)
	if err != nil {
		return wrapFailure("insert feedback data", err)
	}
	return nil
}

func (s *FeedbackStore) SaveModel(ctx context.Context, m feedback.LearningModel) error {
	parameters, err := json.Marshal(m.Parameters)
	if err != nil {
		return wrapFailure("marshal model parameters", err)
	}

	_, err = s.pool.Raw().ExecContext(ctx, `
		INSERT INTO learning_models (model_id, model_type, entity_id, strategy, parameters, accuracy, sample_count, last_trained_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (model_id) DO UPDATE SET
			parameters = EXCLUDED.parameters,
			accuracy = EXCLUDED.accuracy,
			sample_count = EXCLUDED.sample_count,
			last_trained_at = EXCLUDED.last_trained_at
	`, m.ID, string(m.ModelType), m.EntityID, string(m.Strategy), parameters, m.Accuracy, m.SampleCount, m.LastTrainedAt)
	if err != nil {
		return wrapFailure("upsert learning model", err)
	}
	return nil
}
