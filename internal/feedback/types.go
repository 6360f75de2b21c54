// Package feedback implements the FeedbackSystem (spec C9): per-entity
// feedback queues, three learning strategies (supervised, reinforcement,
// batch), per-entity model lifecycle, and a bridge into internal/pattern.
// Grounded on original_source/shared/feedback_incorporation.{hpp,cpp}; the
// Go concurrency idiom mirrors internal/pattern's (mutex-guarded maps, one
// background goroutine gated by ctx.Done()). feedback imports pattern, never
// the reverse, per the design note's lock-order rule (feedback -> pattern).
package feedback

import "time"

// ModelType is which kind of per-entity model a LearningModel represents.
type ModelType string

const (
	ModelDecision ModelType = "decision"
	ModelBehavior ModelType = "behavior"
	ModelRisk     ModelType = "risk"
)

// Strategy is the learning algorithm a LearningModel is trained with.
type Strategy string

const (
	StrategySupervised   Strategy = "supervised"
	StrategyReinforcement Strategy = "reinforcement"
	StrategyBatch        Strategy = "batch"
)

// strategyFor returns the strategy prescribed for modelType (spec.md §4.6:
// decision models are supervised, behavior models are reinforcement, risk
// models are batch).
func strategyFor(modelType ModelType) Strategy {
	switch modelType {
	case ModelDecision:
		return StrategySupervised
	case ModelBehavior:
		return StrategyReinforcement
	default:
		return StrategyBatch
	}
}

// Priority is the feedback's importance band; ordinal comparisons use
// priorityRank below.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func priorityRank(p Priority) int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityCritical:
		return 3
	default:
		return 0
	}
}

// Kind is the provenance of a feedback signal.
type Kind string

const (
	KindHumanExplicit     Kind = "humanExplicit"
	KindHumanImplicit     Kind = "humanImplicit"
	KindSystemValidation  Kind = "systemValidation"
	KindPerformanceMetric Kind = "performanceMetric"
)

// FeedbackData is the FeedbackData type (spec.md §3).
type FeedbackData struct {
	ID            string
	Kind          Kind
	SourceEntity  string
	TargetEntity  string
	DecisionID    string // optional, "" when absent
	Context       string
	Score         float64 // in [-1, 1]
	Priority      Priority
	Text          string // optional, "" when absent
	Metadata      map[string]interface{}
	Timestamp     time.Time
}

// entityKey is the map key a FeedbackData is filed under: the entity whose
// model the feedback should shape. Falls back to SourceEntity when
// TargetEntity is unset (e.g. a self-reported performance metric).
func (f FeedbackData) entityKey() string {
	if f.TargetEntity != "" {
		return f.TargetEntity
	}
	return f.SourceEntity
}

// LearningModel is the LearningModel type (spec.md §3).
type LearningModel struct {
	ID            string
	ModelType     ModelType
	EntityID      string
	Strategy      Strategy
	Parameters    map[string]float64
	Accuracy      float64
	SampleCount   int
	LastTrainedAt time.Time
	FeedbackWindow []FeedbackData
}

func modelID(entityID string, modelType ModelType) string {
	return "model_" + entityID + "_" + string(modelType)
}

func newModel(entityID string, modelType ModelType) LearningModel {
	return LearningModel{
		ID:         modelID(entityID, modelType),
		ModelType:  modelType,
		EntityID:   entityID,
		Strategy:   strategyFor(modelType),
		Parameters: make(map[string]float64),
	}
}
