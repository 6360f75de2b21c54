package monitor

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/regulens/compliance-core/internal/httpclient"
	"github.com/regulens/compliance-core/internal/pattern"
	"github.com/regulens/compliance-core/pkg/logging"
	"github.com/regulens/compliance-core/pkg/metrics"
)

// Config parameterizes scrape timeouts and the quarantine/backoff policy
// (spec.md §4.4).
type Config struct {
	ScrapeTimeout    time.Duration
	FailureThreshold int
	MinBackoff       time.Duration
	MaxBackoff       time.Duration
}

// PatternSink is the one-way bridge into C8 (spec.md §2's data-flow note:
// "C7 writes regulatory changes into C2 and emits corresponding data points
// into C8").
type PatternSink interface {
	AddDataPoint(dp pattern.DataPoint) bool
}

// Store is the persistence seam for deduplicated regulatory changes.
// Inserted reports false when the row already existed (spec.md §4.4 step 4:
// "INSERT ... ON CONFLICT (sourceId, contentHash) DO UPDATE SET
// lastSeenAt = now").
type Store interface {
	UpsertChange(ctx context.Context, sourceID, contentHash string, change CandidateChange) (inserted bool, err error)
}

// Monitor is the RegulatoryMonitor (spec C7).
type Monitor struct {
	cfg    Config
	log    *logging.Logger
	store  Store
	http   *httpclient.Client
	sink   PatternSink

	mu      sync.Mutex
	sources map[string]*Source

	cron *cron.Cron
}

// New builds a RegulatoryMonitor seeded with sources.
func New(cfg Config, log *logging.Logger, store Store, client *httpclient.Client, sink PatternSink, sources []Source) *Monitor {
	if cfg.ScrapeTimeout <= 0 {
		cfg.ScrapeTimeout = 30 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 15 * time.Minute
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 24 * time.Hour
	}

	m := &Monitor{
		cfg:     cfg,
		log:     log,
		store:   store,
		http:    client,
		sink:    sink,
		sources: make(map[string]*Source),
		cron:    cron.New(),
	}
	for _, s := range sources {
		src := s
		m.sources[src.ID] = &src
	}
	return m
}

// Sources returns a snapshot of every configured source's runtime state.
func (m *Monitor) Sources() []Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Source, 0, len(m.sources))
	for _, s := range m.sources {
		out = append(out, *s)
	}
	return out
}

// Start schedules one cron job per active source at its configured cadence
// (spec.md §5: "one scraping worker per regulatory source, independent of
// each other") and begins accepting scheduled ticks.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sources {
		if !s.Active {
			continue
		}
		sourceID := id
		spec := fmt.Sprintf("@every %dm", max1(s.CheckIntervalMinutes))
		if _, err := m.cron.AddFunc(spec, func() {
			m.runCycle(ctx, sourceID, false)
		}); err != nil {
			return fmt.Errorf("schedule source %s: %w", sourceID, err)
		}
	}
	m.cron.Start()
	return nil
}

// Stop halts the cron scheduler and waits for in-flight jobs to finish,
// within cron's own bounded join (spec.md §5: "shutdown ... joins them
// within a bounded deadline").
func (m *Monitor) Stop() {
	stopCtx := m.cron.Stop()
	<-stopCtx.Done()
}

// ForceCheck runs one off-cycle scrape for sourceID outside its schedule;
// results merge into the same counters a scheduled cycle would update
// (spec.md §4.4: "forceCheck(sourceId) runs one off-cycle"). Per spec.md §7,
// a forced check always attempts the fetch even on a quarantined source —
// success un-quarantines it — unlike a scheduled cycle, which still honors
// the backoff window.
func (m *Monitor) ForceCheck(ctx context.Context, sourceID string) CycleResult {
	return m.runCycle(ctx, sourceID, true)
}

func (m *Monitor) runCycle(ctx context.Context, sourceID string, forced bool) CycleResult {
	m.mu.Lock()
	src, ok := m.sources[sourceID]
	if !ok {
		m.mu.Unlock()
		return CycleResult{SourceID: sourceID, Err: fmt.Errorf("unknown source %q", sourceID)}
	}
	if !forced && src.Quarantined && time.Now().Before(src.BackoffUntil) {
		m.mu.Unlock()
		return CycleResult{SourceID: sourceID, Err: fmt.Errorf("source %q is quarantined until %s", sourceID, src.BackoffUntil)}
	}
	baseURL := src.BaseURL
	extractorType := src.SourceType
	m.mu.Unlock()

	result := CycleResult{SourceID: sourceID}

	cycleCtx, cancel := context.WithTimeout(ctx, m.cfg.ScrapeTimeout)
	defer cancel()

	if host := hostOf(baseURL); host != "" {
		_ = m.http.LimiterFor(host).Wait(cycleCtx)
	}

	envelope := m.http.Get(cycleCtx, baseURL, nil)
	if !envelope.Success {
		m.recordFailure(sourceID)
		result.Err = fmt.Errorf("fetch %s: %s", baseURL, envelope.Error)
		metrics.ScrapeCyclesTotal.WithLabelValues(sourceID, "failure").Inc()
		m.log.Component("monitor").WithError(result.Err).WithField("source_id", sourceID).Warn("scrape cycle failed")
		return result
	}

	extractor, ok := extractorFor(extractorType)
	if !ok {
		result.Err = fmt.Errorf("no extractor registered for source type %q", extractorType)
		metrics.ScrapeCyclesTotal.WithLabelValues(sourceID, "failure").Inc()
		return result
	}

	candidates, err := extractor(envelope.Body)
	if err != nil {
		m.recordFailure(sourceID)
		result.Err = fmt.Errorf("extract %s: %w", sourceID, err)
		metrics.ScrapeCyclesTotal.WithLabelValues(sourceID, "failure").Inc()
		m.log.Component("monitor").WithError(result.Err).WithField("source_id", sourceID).Warn("scrape cycle failed")
		return result
	}

	for _, candidate := range candidates {
		hash := contentHash(candidate.Title, candidate.Body)
		inserted, err := m.store.UpsertChange(cycleCtx, sourceID, hash, candidate)
		switch {
		case err != nil:
			result.Failed++
		case inserted:
			result.Inserted++
		default:
			result.Duplicated++
		}
	}

	m.recordSuccess(sourceID)
	metrics.ScrapeCyclesTotal.WithLabelValues(sourceID, "success").Inc()
	m.log.Component("monitor").WithField("source_id", sourceID).
		WithField("inserted", result.Inserted).WithField("duplicated", result.Duplicated).
		Debug("scrape cycle complete")

	if m.sink != nil {
		dp := pattern.NewDataPointFromEvent(sourceID, "reg_scrape_ok", "info", time.Now().UTC(),
			map[string]float64{"new_changes": float64(result.Inserted)}, nil)
		m.sink.AddDataPoint(dp)
	}

	return result
}

// recordFailure increments the consecutive-failure counter and, once it
// crosses FailureThreshold, quarantines the source with exponential backoff
// (spec.md §4.4 step 1: "min 15 min, max 24 h, doubled on repeat").
func (m *Monitor) recordFailure(sourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[sourceID]
	if !ok {
		return
	}
	src.ConsecutiveFailures++
	src.LastCheckedAt = time.Now().UTC()
	if src.ConsecutiveFailures < m.cfg.FailureThreshold {
		return
	}

	backoff := m.cfg.MinBackoff
	if src.Quarantined && src.LastBackoff > 0 {
		backoff = src.LastBackoff * 2
	}
	if backoff > m.cfg.MaxBackoff {
		backoff = m.cfg.MaxBackoff
	}
	if backoff < m.cfg.MinBackoff {
		backoff = m.cfg.MinBackoff
	}

	src.Quarantined = true
	src.LastBackoff = backoff
	src.BackoffUntil = time.Now().UTC().Add(backoff)
	metrics.SourceQuarantined.WithLabelValues(sourceID).Set(1)
	m.log.Component("monitor").WithField("source_id", sourceID).WithField("backoff", backoff).
		Warn("source quarantined after consecutive scrape failures")
}

func (m *Monitor) recordSuccess(sourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[sourceID]
	if !ok {
		return
	}
	src.ConsecutiveFailures = 0
	src.Quarantined = false
	src.BackoffUntil = time.Time{}
	src.LastBackoff = 0
	src.LastCheckedAt = time.Now().UTC()
	metrics.SourceQuarantined.WithLabelValues(sourceID).Set(0)
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
