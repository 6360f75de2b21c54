package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleMatchesComparisons(t *testing.T) {
	txn := transactionRow{Amount: 15000}

	assert.True(t, ruleMatches("amount > 10000", txn))
	assert.True(t, ruleMatches("amount >= 15000", txn))
	assert.False(t, ruleMatches("amount < 10000", txn))
	assert.True(t, ruleMatches("amount <= 15000", txn))
	assert.False(t, ruleMatches("amount == 10000", txn))
}

func TestRuleMatchesRejectsMalformedExpressions(t *testing.T) {
	txn := transactionRow{Amount: 100}

	assert.False(t, ruleMatches("amount >", txn))
	assert.False(t, ruleMatches("amount > not-a-number", txn))
	assert.False(t, ruleMatches("unknown_field > 1", txn))
	assert.False(t, ruleMatches("amount ~= 1", txn))
}

func TestSeverityFromCount(t *testing.T) {
	assert.Equal(t, "low", severityFromCount(0))
	assert.Equal(t, "medium", severityFromCount(1))
	assert.Equal(t, "high", severityFromCount(2))
	assert.Equal(t, "critical", severityFromCount(3))
	assert.Equal(t, "critical", severityFromCount(10))
}

func TestMaxInt(t *testing.T) {
	assert.Equal(t, 5, maxInt(5, 3))
	assert.Equal(t, 5, maxInt(3, 5))
	assert.Equal(t, 5, maxInt(5, 5))
}
