package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractListingPageParsesArticles(t *testing.T) {
	items, err := extractListingPage([]byte(listingPage))

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "SEC Adopts New Disclosure Rule", items[0].Title)
	assert.Equal(t, "/a1", items[0].URL)
	assert.Equal(t, "rule_change", items[0].ChangeType)
	assert.Equal(t, "Enforcement Action Against Broker", items[1].Title)
	assert.Equal(t, "high", items[1].ClassifiedSeverity)
	assert.Equal(t, "enforcement_action", items[1].ChangeType)
}

func TestExtractListingPageNoMatchingSelector(t *testing.T) {
	items, err := extractListingPage([]byte(`<html><body><p>no listing markup here</p></body></html>`))

	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestClassifySeverityDefaultsLow(t *testing.T) {
	assert.Equal(t, "low", classifySeverity("Quarterly Newsletter", "Routine update."))
}

func TestRegisterExtractorOverridesRegistry(t *testing.T) {
	called := false
	RegisterExtractor("custom_source", func(body []byte) ([]CandidateChange, error) {
		called = true
		return nil, nil
	})
	defer delete(extractors, "custom_source")

	fn, ok := extractorFor("custom_source")
	require.True(t, ok)
	_, _ = fn(nil)
	assert.True(t, called)
}
