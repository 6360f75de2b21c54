package feedback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// applySupervised
// =============================================================================

func TestApplySupervisedNudgesFactorWeights(t *testing.T) {
	model := newModel("entity-1", ModelDecision)
	recent := []FeedbackData{
		{Score: 0.9, Priority: PriorityHigh, Timestamp: time.Now(), Metadata: map[string]interface{}{"factor_0_weight": 1.0}},
		{Score: 0.8, Priority: PriorityHigh, Timestamp: time.Now(), Metadata: map[string]interface{}{"factor_0_weight": 1.0}},
	}

	updated := applyLearning(model, recent)

	require.Contains(t, updated.Parameters, "factor_0_weight")
	assert.Greater(t, updated.Parameters["factor_0_weight"], 0.0)
	assert.LessOrEqual(t, updated.Parameters["factor_0_weight"], 1.0)
	assert.InDelta(t, 0.85, updated.Accuracy, 0.05)
}

func TestApplySupervisedIgnoresUnrelatedMetadata(t *testing.T) {
	model := newModel("entity-1", ModelDecision)
	recent := []FeedbackData{
		{Score: 0.5, Priority: PriorityMedium, Timestamp: time.Now(), Metadata: map[string]interface{}{"note": "irrelevant"}},
	}

	updated := applyLearning(model, recent)
	assert.Empty(t, updated.Parameters)
}

// =============================================================================
// applyReinforcement
// =============================================================================

func TestApplyReinforcementShiftsBehaviorParameter(t *testing.T) {
	model := newModel("entity-1", ModelBehavior)
	recent := []FeedbackData{
		{Score: 0.6, Priority: PriorityMedium, Timestamp: time.Now(), Metadata: map[string]interface{}{"behavior_type": "login_frequency"}},
		{Score: 0.8, Priority: PriorityHigh, Timestamp: time.Now(), Metadata: map[string]interface{}{"behavior_type": "login_frequency"}},
	}

	updated := applyLearning(model, recent)

	require.Contains(t, updated.Parameters, "login_frequency")
	assert.Greater(t, updated.Parameters["login_frequency"], 0.5)
	assert.Greater(t, updated.Accuracy, 0.0)
}

func TestApplyReinforcementFallsBackToDefault(t *testing.T) {
	model := newModel("entity-1", ModelBehavior)
	recent := []FeedbackData{{Score: 0.5, Priority: PriorityMedium, Timestamp: time.Now()}}

	updated := applyLearning(model, recent)
	assert.Contains(t, updated.Parameters, "default")
}

// =============================================================================
// applyBatch
// =============================================================================

func TestApplyBatchGroupsByParamKeyWithMinimumSamples(t *testing.T) {
	model := newModel("entity-1", ModelRisk)
	recent := []FeedbackData{
		{Score: 0.4, Priority: PriorityMedium, Timestamp: time.Now(), Metadata: map[string]interface{}{"param_region": "us"}},
		{Score: 0.6, Priority: PriorityMedium, Timestamp: time.Now(), Metadata: map[string]interface{}{"param_region": "us"}},
		{Score: 0.5, Priority: PriorityMedium, Timestamp: time.Now(), Metadata: map[string]interface{}{"param_region": "us"}},
	}

	updated := applyLearning(model, recent)

	require.Contains(t, updated.Parameters, "param_region")
	assert.Greater(t, updated.Parameters["param_region"], 0.0)
}

func TestApplyBatchSkipsGroupsBelowThreeSamples(t *testing.T) {
	model := newModel("entity-1", ModelRisk)
	recent := []FeedbackData{
		{Score: 0.4, Priority: PriorityMedium, Timestamp: time.Now(), Metadata: map[string]interface{}{"param_region": "us"}},
	}

	updated := applyLearning(model, recent)
	assert.Empty(t, updated.Parameters)
}

// =============================================================================
// clamp / mean helpers
// =============================================================================

func TestClamp(t *testing.T) {
	assert.Equal(t, -1.0, clamp(-5, -1, 1))
	assert.Equal(t, 1.0, clamp(5, -1, 1))
	assert.Equal(t, 0.0, clamp(0, -1, 1))
}
