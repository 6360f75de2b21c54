package feedback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// priorityWeight / recencyWeight / weight
// =============================================================================

func TestPriorityWeight(t *testing.T) {
	assert.Equal(t, 0.5, priorityWeight(PriorityLow))
	assert.Equal(t, 1.0, priorityWeight(PriorityMedium))
	assert.Equal(t, 2.0, priorityWeight(PriorityHigh))
	assert.Equal(t, 3.0, priorityWeight(PriorityCritical))
}

func TestRecencyWeightFreshIsOne(t *testing.T) {
	w := recencyWeight(time.Now())
	assert.InDelta(t, 1.0, w, 0.01)
}

func TestRecencyWeightFloorsAtOneTenth(t *testing.T) {
	w := recencyWeight(time.Now().Add(-365 * 24 * time.Hour))
	assert.Equal(t, 0.1, w)
}

func TestWeightCombinesPriorityAndRecency(t *testing.T) {
	f := FeedbackData{Priority: PriorityHigh, Timestamp: time.Now()}
	w := weight(f)
	assert.InDelta(t, 2.0, w, 0.05)
}

// =============================================================================
// significant
// =============================================================================

func TestSignificantRequiresScoreAndPriority(t *testing.T) {
	high := FeedbackData{Score: 0.8, Priority: PriorityHigh}
	assert.True(t, significant(high, 0.7))

	lowPriority := FeedbackData{Score: 0.9, Priority: PriorityLow}
	assert.False(t, significant(lowPriority, 0.7))

	weakScore := FeedbackData{Score: 0.2, Priority: PriorityCritical}
	assert.False(t, significant(weakScore, 0.7))

	negative := FeedbackData{Score: -0.8, Priority: PriorityMedium}
	assert.True(t, significant(negative, 0.7))
}
