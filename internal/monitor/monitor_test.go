package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regulens/compliance-core/internal/httpclient"
	"github.com/regulens/compliance-core/internal/pattern"
	"github.com/regulens/compliance-core/pkg/logging"
)

// =============================================================================
// test doubles
// =============================================================================

type fakeStore struct {
	mu    sync.Mutex
	seen  map[string]bool
	calls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{seen: make(map[string]bool)}
}

func (s *fakeStore) UpsertChange(_ context.Context, sourceID, contentHash string, _ CandidateChange) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	key := sourceID + "|" + contentHash
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

type fakeSink struct {
	mu     sync.Mutex
	points []pattern.DataPoint
}

func (s *fakeSink) AddDataPoint(dp pattern.DataPoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, dp)
	return true
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}

const listingPage = `<html><body>
<article><h2>SEC Adopts New Disclosure Rule</h2><a href="/a1">read</a><p>The Commission adopted a final rule on disclosure.</p></article>
<article><h2>Enforcement Action Against Broker</h2><a href="/a2">read</a><p>Penalty issued for violation of reporting requirements.</p></article>
</body></html>`

func newTestMonitor(t *testing.T, store Store, sink PatternSink, serverURL string) *Monitor {
	t.Helper()
	cfg := Config{ScrapeTimeout: 5 * time.Second, FailureThreshold: 2, MinBackoff: 50 * time.Millisecond, MaxBackoff: time.Second}
	sources := []Source{{
		ID: "sec_edgar", Name: "SEC EDGAR", BaseURL: serverURL, SourceType: "sec_edgar",
		CheckIntervalMinutes: 60, Active: true,
	}}
	return New(cfg, logging.NewDefault("monitor_test"), store, httpclient.New(5*time.Second), sink, sources)
}

// =============================================================================
// runCycle / ForceCheck
// =============================================================================

func TestForceCheckInsertsNewCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(listingPage))
	}))
	defer server.Close()

	store := newFakeStore()
	sink := &fakeSink{}
	m := newTestMonitor(t, store, sink, server.URL)

	result := m.ForceCheck(context.Background(), "sec_edgar")

	require.NoError(t, result.Err)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 0, result.Duplicated)
	assert.Equal(t, 1, sink.count())
}

func TestForceCheckDedupesOnSecondPass(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(listingPage))
	}))
	defer server.Close()

	store := newFakeStore()
	m := newTestMonitor(t, store, nil, server.URL)

	_ = m.ForceCheck(context.Background(), "sec_edgar")
	second := m.ForceCheck(context.Background(), "sec_edgar")

	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Duplicated)
}

func TestForceCheckUnknownSource(t *testing.T) {
	m := newTestMonitor(t, newFakeStore(), nil, "http://example.invalid")

	result := m.ForceCheck(context.Background(), "does_not_exist")

	assert.Error(t, result.Err)
}

func TestRunCycleQuarantinesAfterFailureThreshold(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	m := newTestMonitor(t, newFakeStore(), nil, server.URL)

	_ = m.ForceCheck(context.Background(), "sec_edgar")
	_ = m.ForceCheck(context.Background(), "sec_edgar")

	sources := m.Sources()
	require.Len(t, sources, 1)
	assert.True(t, sources[0].Quarantined)
	assert.True(t, sources[0].BackoffUntil.After(time.Now()))
}

// TestForceCheckStillAttemptsWhileQuarantined covers spec.md §7: "On a
// quarantined source ... force still attempts, and success un-quarantines."
// Unlike a scheduled cycle, ForceCheck must not short-circuit on the backoff
// window — it always calls through to the HTTP client.
func TestForceCheckStillAttemptsWhileQuarantined(t *testing.T) {
	failing := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(listingPage))
	}))
	defer server.Close()

	m := newTestMonitor(t, newFakeStore(), nil, server.URL)
	_ = m.ForceCheck(context.Background(), "sec_edgar")
	_ = m.ForceCheck(context.Background(), "sec_edgar")

	sources := m.Sources()
	require.Len(t, sources, 1)
	require.True(t, sources[0].Quarantined)

	failing = false
	result := m.ForceCheck(context.Background(), "sec_edgar")
	assert.NoError(t, result.Err)

	sources = m.Sources()
	require.Len(t, sources, 1)
	assert.Equal(t, 0, sources[0].ConsecutiveFailures)
	assert.False(t, sources[0].Quarantined)
}

// TestScheduledCycleStillHonorsBackoffWindow covers the other half of
// spec.md §7: only a forced check bypasses the quarantine gate, not a
// cron-scheduled one.
func TestScheduledCycleStillHonorsBackoffWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	m := newTestMonitor(t, newFakeStore(), nil, server.URL)
	_ = m.ForceCheck(context.Background(), "sec_edgar")
	_ = m.ForceCheck(context.Background(), "sec_edgar")

	result := m.runCycle(context.Background(), "sec_edgar", false)
	assert.Error(t, result.Err)
}

func TestRunCycleResetsFailuresOnSuccess(t *testing.T) {
	failing := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(listingPage))
	}))
	defer server.Close()

	m := newTestMonitor(t, newFakeStore(), nil, server.URL)
	_ = m.ForceCheck(context.Background(), "sec_edgar")

	failing = false
	result := m.ForceCheck(context.Background(), "sec_edgar")

	require.NoError(t, result.Err)
	sources := m.Sources()
	assert.Equal(t, 0, sources[0].ConsecutiveFailures)
	assert.False(t, sources[0].Quarantined)
}

// =============================================================================
// Start / Stop
// =============================================================================

func TestStartStopLifecycle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(listingPage))
	}))
	defer server.Close()

	m := newTestMonitor(t, newFakeStore(), nil, server.URL)
	require.NoError(t, m.Start(context.Background()))
	m.Stop()
}
