package feedback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regulens/compliance-core/internal/pattern"
	"github.com/regulens/compliance-core/pkg/logging"
)

// =============================================================================
// test doubles
// =============================================================================

type fakeSink struct {
	mu     sync.Mutex
	points []pattern.DataPoint
}

func (s *fakeSink) AddDataPoint(dp pattern.DataPoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, dp)
	return true
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}

type fakeFeedbackStore struct {
	mu       sync.Mutex
	feedback []FeedbackData
	models   []LearningModel
}

func (s *fakeFeedbackStore) SaveFeedback(_ context.Context, f FeedbackData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, f)
	return nil
}

func (s *fakeFeedbackStore) SaveModel(_ context.Context, m LearningModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = append(s.models, m)
	return nil
}

func newTestSystem(store Store, sink PatternSink) *System {
	cfg := Config{MaxPerEntity: 100, MinForLearning: 3, ConfidenceThreshold: 0.5, RealTimeLearning: true, WorkerInterval: time.Hour}
	return New(cfg, logging.NewDefault("feedback_test"), store, sink)
}

// =============================================================================
// Submit
// =============================================================================

func TestSubmitEmitsPatternDataPoint(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSystem(nil, sink)

	s.Submit(FeedbackData{TargetEntity: "entity-1", Score: 0.5, Priority: PriorityMedium})

	assert.Equal(t, 1, sink.count())
}

func TestSubmitPersistsWhenStoreConfigured(t *testing.T) {
	store := &fakeFeedbackStore{}
	s := newTestSystem(store, nil)

	s.Submit(FeedbackData{TargetEntity: "entity-1", Score: 0.5, Priority: PriorityMedium})

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.feedback, 1)
}

func TestSubmitTriggersLearningAtThreshold(t *testing.T) {
	store := &fakeFeedbackStore{}
	s := newTestSystem(store, nil)

	for i := 0; i < 3; i++ {
		s.Submit(FeedbackData{TargetEntity: "entity-1", Score: 0.6, Priority: PriorityHigh,
			Metadata: map[string]interface{}{"factor_0_weight": 1.0}})
	}

	_, ok := s.GetModel("entity-1", ModelDecision)
	assert.True(t, ok)
}

func TestSubmitAssignsIDAndTimestampWhenMissing(t *testing.T) {
	s := newTestSystem(nil, nil)
	f := s.Submit(FeedbackData{TargetEntity: "entity-1", Score: 0.1, Priority: PriorityLow})

	assert.NotEmpty(t, f.ID)
	assert.False(t, f.Timestamp.IsZero())
}

// =============================================================================
// ApplyLearning / GetModel
// =============================================================================

func TestApplyLearningAllEntities(t *testing.T) {
	s := newTestSystem(nil, nil)
	s.Submit(FeedbackData{TargetEntity: "entity-1", Score: 0.6, Priority: PriorityHigh})
	s.Submit(FeedbackData{TargetEntity: "entity-2", Score: 0.7, Priority: PriorityHigh})

	s.ApplyLearning("")

	_, ok1 := s.GetModel("entity-1", ModelRisk)
	_, ok2 := s.GetModel("entity-2", ModelRisk)
	assert.True(t, ok1)
	assert.True(t, ok2)
}

// =============================================================================
// AnalyzeFeedbackPatterns
// =============================================================================

func TestAnalyzeFeedbackPatternsRespectsWindow(t *testing.T) {
	s := newTestSystem(nil, nil)
	s.Submit(FeedbackData{TargetEntity: "entity-1", Score: 0.8, Priority: PriorityHigh, Timestamp: time.Now()})

	report := s.AnalyzeFeedbackPatterns("entity-1", 30)
	assert.Equal(t, 1, report.Count)
}

// =============================================================================
// CleanupOldData
// =============================================================================

func TestCleanupOldDataDropsStaleFeedback(t *testing.T) {
	s := newTestSystem(nil, nil)
	s.cfg.RetentionHours = 1
	s.Submit(FeedbackData{TargetEntity: "entity-1", Score: 0.2, Priority: PriorityLow, Timestamp: time.Now().Add(-2 * time.Hour)})

	removed := s.CleanupOldData()
	assert.Equal(t, 1, removed)
}

// =============================================================================
// Run / Wait
// =============================================================================

func TestRunExitsOnContextCancel(t *testing.T) {
	s := newTestSystem(nil, nil)
	s.cfg.WorkerInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("feedback system did not stop after context cancellation")
	}
	require.NotNil(t, s)
}
