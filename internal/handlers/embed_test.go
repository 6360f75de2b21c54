package handlers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbedIsDeterministicAndNormalized(t *testing.T) {
	a := embed("regulatory change notice")
	b := embed("regulatory change notice")
	assert.Equal(t, a, b)

	var sumSq float64
	for _, v := range a {
		sumSq += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-9)
}

func TestEmbedEmptyTextIsZeroVector(t *testing.T) {
	vec := embed("")
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestTokenizeLowercasesAndSplitsOnNonAlphanumeric(t *testing.T) {
	assert.Equal(t, []string{"block", "payment", "123"}, tokenize("Block-Payment_123!"))
}

func TestCosineSimilarityIdenticalVectorsIsOne(t *testing.T) {
	v := embed("suspicious wire transfer")
	assert.InDelta(t, 1.0, cosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarityMismatchedLengthsIsZero(t *testing.T) {
	assert.Zero(t, cosineSimilarity([]float64{1, 2}, []float64{1, 2, 3}))
}

func TestTokenOverlapScore(t *testing.T) {
	query := []string{"fraud", "alert", "fraud"}
	doc := []string{"fraud", "review"}
	assert.InDelta(t, 0.5, tokenOverlapScore(query, doc), 1e-9)
}

func TestTokenOverlapScoreEmptyInputsIsZero(t *testing.T) {
	assert.Zero(t, tokenOverlapScore(nil, []string{"a"}))
	assert.Zero(t, tokenOverlapScore([]string{"a"}, nil))
}
