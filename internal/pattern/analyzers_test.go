package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseCfg = Config{MinOccurrences: 5, MinConfidence: 0.7}

// =============================================================================
// analyzeDecisionPatterns
// =============================================================================

func TestAnalyzeDecisionPatternsFindsRecurringFactors(t *testing.T) {
	var points []DataPoint
	for i := 0; i < 6; i++ {
		points = append(points, NewDataPointFromDecision("entity-1", time.Now(), "approve_transaction", 85, []float64{0.4, 0.6}, nil))
	}
	data := map[string][]DataPoint{"entity-1": points}

	out := analyzeDecisionPatterns(data, baseCfg)

	require.Len(t, out, 1)
	assert.Equal(t, KindDecision, out[0].Kind)
	require.NotNil(t, out[0].Decision)
	assert.Equal(t, "approve_transaction", out[0].Decision.DecisionType)
	assert.Len(t, out[0].Decision.FactorWeights, 2)
}

func TestAnalyzeDecisionPatternsBelowThresholdProducesNothing(t *testing.T) {
	points := []DataPoint{
		NewDataPointFromDecision("entity-1", time.Now(), "approve_transaction", 85, []float64{0.4}, nil),
	}
	data := map[string][]DataPoint{"entity-1": points}

	out := analyzeDecisionPatterns(data, baseCfg)
	assert.Empty(t, out)
}

// =============================================================================
// analyzeBehaviorPatterns
// =============================================================================

func TestAnalyzeBehaviorPatternsFindsStableBehavior(t *testing.T) {
	var points []DataPoint
	for i := 0; i < 12; i++ {
		points = append(points, NewDataPointFromActivity("entity-1", "login_frequency", 10.0, time.Now()))
	}
	data := map[string][]DataPoint{"entity-1": points}

	out := analyzeBehaviorPatterns(data, baseCfg)

	require.Len(t, out, 1)
	require.NotNil(t, out[0].Behavior)
	assert.Equal(t, "login_frequency", out[0].Behavior.BehaviorType)
	assert.InDelta(t, 0.0, out[0].Behavior.CoefOfVar, 0.0001)
}

func TestAnalyzeBehaviorPatternsHighVarianceExcluded(t *testing.T) {
	var points []DataPoint
	values := []float64{1, 50, 2, 48, 3, 47, 1, 49, 2, 46, 1, 50}
	for _, v := range values {
		points = append(points, NewDataPointFromActivity("entity-1", "volatile", v, time.Now()))
	}
	data := map[string][]DataPoint{"entity-1": points}

	out := analyzeBehaviorPatterns(data, baseCfg)
	assert.Empty(t, out)
}

// =============================================================================
// analyzeAnomalies
// =============================================================================

func TestAnalyzeAnomaliesFlagsOutlierTail(t *testing.T) {
	var points []DataPoint
	for i := 0; i < 20; i++ {
		points = append(points, DataPoint{
			EntityID:          "entity-1",
			Timestamp:         time.Now(),
			NumericalFeatures: map[string]float64{"amount": 100},
		})
	}
	points = append(points, DataPoint{
		EntityID:          "entity-1",
		Timestamp:         time.Now(),
		NumericalFeatures: map[string]float64{"amount": 100000},
	})
	data := map[string][]DataPoint{"entity-1": points}

	out := analyzeAnomalies(data, baseCfg)

	require.NotEmpty(t, out)
	assert.Equal(t, KindAnomaly, out[0].Kind)
	assert.Equal(t, ImpactCritical, out[0].Impact)
}

// =============================================================================
// analyzeTrends
// =============================================================================

func TestAnalyzeTrendsFindsIncreasingTrend(t *testing.T) {
	var points []DataPoint
	for i := 0; i < 10; i++ {
		points = append(points, DataPoint{
			EntityID:          "entity-1",
			Timestamp:         time.Now(),
			NumericalFeatures: map[string]float64{"risk_score": float64(i) * 2},
		})
	}
	data := map[string][]DataPoint{"entity-1": points}

	out := analyzeTrends(data, baseCfg)

	require.Len(t, out, 1)
	require.NotNil(t, out[0].Trend)
	assert.Equal(t, "increasing", out[0].Trend.Direction)
}

// =============================================================================
// analyzeCorrelations
// =============================================================================

func TestAnalyzeCorrelationsFindsLinkedFeatures(t *testing.T) {
	var points []DataPoint
	for i := 0; i < 15; i++ {
		points = append(points, DataPoint{
			EntityID:  "entity-1",
			Timestamp: time.Now(),
			NumericalFeatures: map[string]float64{
				"feature_a": float64(i),
				"feature_b": float64(i) * 2,
			},
		})
	}
	data := map[string][]DataPoint{"entity-1": points}

	out := analyzeCorrelations(data, baseCfg)

	require.Len(t, out, 1)
	require.NotNil(t, out[0].Correlation)
	assert.InDelta(t, 1.0, out[0].Correlation.Coefficient, 0.0001)
}

// =============================================================================
// analyzeSequences
// =============================================================================

func TestAnalyzeSequencesFindsRecurringBigram(t *testing.T) {
	var points []DataPoint
	for i := 0; i < 6; i++ {
		points = append(points,
			DataPoint{EntityID: "entity-1", Timestamp: time.Now(), CategoricalFeatures: map[string]string{"event_type": "flagged"}},
			DataPoint{EntityID: "entity-1", Timestamp: time.Now(), CategoricalFeatures: map[string]string{"event_type": "reviewed"}},
		)
	}
	data := map[string][]DataPoint{"entity-1": points}

	out := analyzeSequences(data, baseCfg)

	require.NotEmpty(t, out)
	var sequences [][]string
	for _, p := range out {
		sequences = append(sequences, p.Sequence.Sequence)
	}
	assert.Contains(t, sequences, []string{"flagged", "reviewed"})
}
