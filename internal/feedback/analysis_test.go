package feedback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// analyzeFeedbackPatterns
// =============================================================================

func TestAnalyzeFeedbackPatternsEmptyInput(t *testing.T) {
	report := analyzeFeedbackPatterns("entity-1", 30, nil)
	assert.Equal(t, 0, report.Count)
	assert.Empty(t, report.Insights)
}

func TestAnalyzeFeedbackPatternsPositiveInsight(t *testing.T) {
	feedback := []FeedbackData{
		{Kind: KindHumanExplicit, Score: 0.8, Priority: PriorityHigh, Timestamp: time.Now()},
		{Kind: KindHumanExplicit, Score: 0.7, Priority: PriorityHigh, Timestamp: time.Now()},
	}

	report := analyzeFeedbackPatterns("entity-1", 30, feedback)

	assert.Contains(t, report.Insights, "positive")
	assert.Equal(t, 2, report.Count)
}

func TestAnalyzeFeedbackPatternsNegativeInsight(t *testing.T) {
	feedback := []FeedbackData{
		{Kind: KindSystemValidation, Score: -0.6, Priority: PriorityMedium, Timestamp: time.Now()},
		{Kind: KindSystemValidation, Score: -0.5, Priority: PriorityMedium, Timestamp: time.Now()},
	}

	report := analyzeFeedbackPatterns("entity-1", 30, feedback)
	assert.Contains(t, report.Insights, "negative")
}

func TestAnalyzeFeedbackPatternsAutomationInsight(t *testing.T) {
	var feedback []FeedbackData
	for i := 0; i < 6; i++ {
		feedback = append(feedback, FeedbackData{Kind: KindHumanExplicit, Score: 0.1, Priority: PriorityMedium, Timestamp: time.Now()})
	}
	feedback = append(feedback, FeedbackData{Kind: KindSystemValidation, Score: 0.1, Priority: PriorityMedium, Timestamp: time.Now()})

	report := analyzeFeedbackPatterns("entity-1", 30, feedback)
	assert.Contains(t, report.Insights, "more automation suggested")
}

func TestAnalyzeFeedbackPatternsConfidenceBounds(t *testing.T) {
	feedback := []FeedbackData{
		{Kind: KindHumanExplicit, Score: 0.5, Priority: PriorityMedium, Timestamp: time.Now()},
	}
	report := analyzeFeedbackPatterns("entity-1", 30, feedback)
	assert.GreaterOrEqual(t, report.Confidence, 0.0)
	assert.LessOrEqual(t, report.Confidence, 1.0)
}
