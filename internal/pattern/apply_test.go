package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Apply / relevance
// =============================================================================

func TestApplyScoresMatchingDecisionPattern(t *testing.T) {
	e := newTestEngine(nil)
	e.patterns["p1"] = Pattern{
		ID:   "p1",
		Kind: KindDecision,
		Decision: &DecisionPayload{
			DecisionType:  "approve_transaction",
			EntityID:      "entity-1",
			FactorWeights: map[string]float64{"factor_0_weight": 0.4},
		},
	}

	dp := DataPoint{
		EntityID:            "entity-1",
		CategoricalFeatures: map[string]string{"decision_type": "approve_transaction"},
		NumericalFeatures:   map[string]float64{"factor_0_weight": 0.5},
	}

	out := e.Apply(dp)

	require.Len(t, out, 1)
	assert.Equal(t, "p1", out[0].Pattern.ID)
	assert.Equal(t, 1.0, out[0].Relevance)
}

func TestApplySkipsPatternsForOtherEntities(t *testing.T) {
	e := newTestEngine(nil)
	e.patterns["p1"] = Pattern{
		ID:   "p1",
		Kind: KindBehavior,
		Behavior: &BehaviorPayload{
			BehaviorType: "login_frequency",
			EntityID:     "entity-1",
			Mean:         10,
			StdDev:       1,
		},
	}

	dp := DataPoint{
		EntityID:            "entity-2",
		CategoricalFeatures: map[string]string{"behavior_type": "login_frequency"},
		NumericalFeatures:   map[string]float64{"behavior_value": 10},
	}

	out := e.Apply(dp)
	assert.Empty(t, out)
}

func TestBehaviorRelevanceDecaysWithDistance(t *testing.T) {
	payload := &BehaviorPayload{BehaviorType: "login_frequency", EntityID: "entity-1", Mean: 10, StdDev: 2}
	dp := DataPoint{
		EntityID:            "entity-1",
		CategoricalFeatures: map[string]string{"behavior_type": "login_frequency"},
		NumericalFeatures:   map[string]float64{"behavior_value": 16},
	}
	assert.Equal(t, 0.0, behaviorRelevance(payload, dp))
}

func TestSequenceRelevanceMatchesLastTag(t *testing.T) {
	payload := &SequencePayload{EntityID: "entity-1", Sequence: []string{"flagged", "reviewed"}}
	dp := DataPoint{EntityID: "entity-1", CategoricalFeatures: map[string]string{"event_type": "reviewed"}}
	assert.Equal(t, 1.0, sequenceRelevance(payload, dp))
}

func TestCorrelationRelevanceRequiresBothFeatures(t *testing.T) {
	payload := &CorrelationPayload{FeatureA: "a", FeatureB: "b", Coefficient: 0.9}
	dp := DataPoint{NumericalFeatures: map[string]float64{"a": 1}}
	assert.Equal(t, 0.0, correlationRelevance(payload, dp))
}
