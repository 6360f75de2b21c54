package pattern

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regulens/compliance-core/pkg/logging"
)

// =============================================================================
// test doubles
// =============================================================================

type fakeStore struct {
	mu       sync.Mutex
	patterns []Pattern
	points   []DataPoint
}

func (s *fakeStore) SavePattern(_ context.Context, p Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = append(s.patterns, p)
	return nil
}

func (s *fakeStore) SaveDataPoint(_ context.Context, dp DataPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, dp)
	return nil
}

func newTestEngine(store Store) *Engine {
	cfg := Config{MinOccurrences: 5, MinConfidence: 0.5, PerEntityCap: 100, CleanupInterval: time.Hour}
	return New(cfg, logging.NewDefault("pattern_test"), store)
}

// =============================================================================
// AddDataPoint / Stats
// =============================================================================

func TestAddDataPointIncrementsStats(t *testing.T) {
	e := newTestEngine(nil)

	for i := 0; i < 3; i++ {
		ok := e.AddDataPoint(NewDataPointFromActivity("entity-1", "login_frequency", 10, time.Now()))
		require.True(t, ok)
	}

	stats := e.Stats()
	assert.EqualValues(t, 3, stats.TotalDataPoints)
	assert.Equal(t, 1, stats.Entities)
}

// =============================================================================
// Analyze
// =============================================================================

func TestAnalyzeDiscoversAndPersistsSignificantPatterns(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(store)

	for i := 0; i < 12; i++ {
		e.AddDataPoint(NewDataPointFromActivity("entity-1", "login_frequency", 10, time.Now()))
	}

	discovered := e.Analyze("entity-1")

	require.NotEmpty(t, discovered)
	assert.NotEmpty(t, store.patterns)

	_, ok := e.GetPattern(discovered[0].ID)
	assert.True(t, ok)
}

func TestAnalyzeIsResilientToAnalyzerPanic(t *testing.T) {
	e := newTestEngine(nil)
	out := e.safeRun("boom", func() []Pattern { panic("analyzer exploded") })
	assert.Nil(t, out)
}

// =============================================================================
// GetPatterns
// =============================================================================

func TestGetPatternsFiltersAndSortsByStrength(t *testing.T) {
	e := newTestEngine(nil)
	e.patterns["p1"] = Pattern{ID: "p1", Kind: KindBehavior, Strength: 0.6}
	e.patterns["p2"] = Pattern{ID: "p2", Kind: KindBehavior, Strength: 0.9}
	e.patterns["p3"] = Pattern{ID: "p3", Kind: KindAnomaly, Strength: 0.95}

	out := e.GetPatterns(KindBehavior, 0.5)

	require.Len(t, out, 2)
	assert.Equal(t, "p2", out[0].ID)
	assert.Equal(t, "p1", out[1].ID)
}

// =============================================================================
// CleanupOldData
// =============================================================================

func TestCleanupOldDataDropsStaleEntries(t *testing.T) {
	e := newTestEngine(nil)
	e.cfg.RetentionHours = 1

	e.dataMu.Lock()
	buf := newBoundedDeque(10)
	buf.Push(DataPoint{EntityID: "entity-1", Timestamp: time.Now().Add(-2 * time.Hour)})
	e.entities["entity-1"] = buf
	e.dataMu.Unlock()

	e.patternsMu.Lock()
	e.patterns["stale"] = Pattern{ID: "stale", LastUpdated: time.Now().Add(-2 * time.Hour)}
	e.patternsMu.Unlock()

	removed := e.CleanupOldData()

	assert.Equal(t, 2, removed)
	_, ok := e.GetPattern("stale")
	assert.False(t, ok)
}

// =============================================================================
// Run / Wait
// =============================================================================

func TestRunExitsOnContextCancel(t *testing.T) {
	e := newTestEngine(nil)
	e.cfg.CleanupInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		e.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after context cancellation")
	}
}

// =============================================================================
// ExportPatterns
// =============================================================================

func TestExportPatternsJSON(t *testing.T) {
	e := newTestEngine(nil)
	e.patterns["p1"] = Pattern{ID: "p1", Kind: KindBehavior, Strength: 0.8, DiscoveredAt: time.Now(), LastUpdated: time.Now()}

	out, err := e.ExportPatterns(KindBehavior, "json")

	require.NoError(t, err)
	assert.Contains(t, string(out), "p1")
}

func TestExportPatternsCSV(t *testing.T) {
	e := newTestEngine(nil)
	e.patterns["p1"] = Pattern{ID: "p1", Kind: KindBehavior, Strength: 0.8, DiscoveredAt: time.Now(), LastUpdated: time.Now()}

	out, err := e.ExportPatterns("", "csv")

	require.NoError(t, err)
	assert.Contains(t, string(out), "p1")
}
