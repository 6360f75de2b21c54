package pattern

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/regulens/compliance-core/pkg/logging"
	"github.com/regulens/compliance-core/pkg/metrics"
)

// Config parameterizes significance thresholds and retention.
type Config struct {
	MinOccurrences  int
	MinConfidence   float64
	RetentionHours  int
	PerEntityCap    int
	CleanupInterval time.Duration
}

// Store is the optional persistence seam; when non-nil, significant patterns
// and data points are written back per spec.md §2's data-flow note
// ("writes them back to C2 when persistence is enabled"). internal/handlers
// supplies the concrete Postgres-backed implementation; pattern stays free
// of a database import.
type Store interface {
	SavePattern(ctx context.Context, p Pattern) error
	SaveDataPoint(ctx context.Context, dp DataPoint) error
}

// Engine is the PatternEngine (spec C8).
type Engine struct {
	cfg Config
	log *logging.Logger
	store Store

	dataMu   sync.Mutex
	entities map[string]*boundedDeque

	patternsMu sync.RWMutex
	patterns   map[string]Pattern

	totalPoints    int64
	totalPatterns  int64

	running  chan struct{}
	wake     chan struct{}
	stopped  chan struct{}
}

// New builds a PatternEngine.
func New(cfg Config, log *logging.Logger, store Store) *Engine {
	if cfg.PerEntityCap <= 0 {
		cfg.PerEntityCap = 10000
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 30 * time.Minute
	}
	return &Engine{
		cfg:      cfg,
		log:      log,
		store:    store,
		entities: make(map[string]*boundedDeque),
		patterns: make(map[string]Pattern),
		running:  make(chan struct{}),
		wake:     make(chan struct{}, 1),
		stopped:  make(chan struct{}),
	}
}

// AddDataPoint appends dp to its entity's buffer in O(1), evicting the
// oldest entry if over cap. Non-blocking: only the data mutex is taken, never
// the patterns mutex (spec.md §5 lock-order: feedback -> pattern, never the
// reverse, and ingest never waits on analysis).
func (e *Engine) AddDataPoint(dp DataPoint) bool {
	e.dataMu.Lock()
	buf, ok := e.entities[dp.EntityID]
	if !ok {
		buf = newBoundedDeque(e.cfg.PerEntityCap)
		e.entities[dp.EntityID] = buf
	}
	buf.Push(dp)
	e.dataMu.Unlock()

	metrics.PatternDataPoints.Inc()
	e.totalPoints++

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return true
}

// snapshot returns a defensive copy of one entity's buffer, or every
// entity's buffer when entityID is "".
func (e *Engine) snapshot(entityID string) map[string][]DataPoint {
	e.dataMu.Lock()
	defer e.dataMu.Unlock()

	out := make(map[string][]DataPoint)
	if entityID != "" {
		if buf, ok := e.entities[entityID]; ok {
			out[entityID] = buf.Snapshot()
		}
		return out
	}
	for id, buf := range e.entities {
		out[id] = buf.Snapshot()
	}
	return out
}

// Analyze runs all six analyzers over the current snapshot (all entities, or
// just entityID), merges any newly-significant or strengthened pattern into
// the store, and returns the patterns touched this pass.
func (e *Engine) Analyze(entityID string) []Pattern {
	data := e.snapshot(entityID)

	var discovered []Pattern
	discovered = append(discovered, e.safeRun("decision", func() []Pattern { return analyzeDecisionPatterns(data, e.cfg) })...)
	discovered = append(discovered, e.safeRun("behavior", func() []Pattern { return analyzeBehaviorPatterns(data, e.cfg) })...)
	discovered = append(discovered, e.safeRun("anomaly", func() []Pattern { return analyzeAnomalies(data, e.cfg) })...)
	discovered = append(discovered, e.safeRun("trend", func() []Pattern { return analyzeTrends(data, e.cfg) })...)
	discovered = append(discovered, e.safeRun("correlation", func() []Pattern { return analyzeCorrelations(data, e.cfg) })...)
	discovered = append(discovered, e.safeRun("sequence", func() []Pattern { return analyzeSequences(data, e.cfg) })...)

	var significant []Pattern
	e.patternsMu.Lock()
	for _, p := range discovered {
		if existing, ok := e.patterns[p.ID]; ok {
			p.Occurrences = existing.Occurrences + p.Occurrences
			p.DiscoveredAt = existing.DiscoveredAt
		} else {
			e.totalPatterns++
		}
		if !isSignificant(p, e.cfg) {
			continue
		}
		p.LastUpdated = time.Now().UTC()
		e.patterns[p.ID] = p
		significant = append(significant, p)
		metrics.PatternsDiscovered.WithLabelValues(string(p.Kind)).Inc()
	}
	e.patternsMu.Unlock()

	if e.store != nil {
		ctx := context.Background()
		for _, p := range significant {
			if err := e.store.SavePattern(ctx, p); err != nil {
				e.log.Component("pattern").WithError(err).Warn("persist pattern failed")
			}
		}
	}

	return significant
}

// safeRun traps a panicking analyzer so one broken analyzer never kills the
// others or the background worker (spec.md §4.9: "log; skip that analyzer").
func (e *Engine) safeRun(name string, fn func() []Pattern) (out []Pattern) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Component("pattern").WithField("analyzer", name).Errorf("analyzer panic: %v", r)
			out = nil
		}
	}()
	return fn()
}

func isSignificant(p Pattern, cfg Config) bool {
	minOcc := cfg.MinOccurrences
	if minOcc <= 0 {
		minOcc = 5
	}
	minConf := cfg.MinConfidence
	if minConf <= 0 {
		minConf = 0.7
	}
	return p.Strength >= minConf && p.Occurrences >= minOcc
}

// GetPatterns returns significant patterns of kind with strength >= minConfidence,
// sorted by strength descending (spec.md §4.5, tested by §8 property 3).
func (e *Engine) GetPatterns(kind Kind, minConfidence float64) []Pattern {
	e.patternsMu.RLock()
	defer e.patternsMu.RUnlock()

	var out []Pattern
	for _, p := range e.patterns {
		if kind != "" && p.Kind != kind {
			continue
		}
		if p.Strength < minConfidence {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	return out
}

// GetPattern is an O(1) lookup by id.
func (e *Engine) GetPattern(id string) (Pattern, bool) {
	e.patternsMu.RLock()
	defer e.patternsMu.RUnlock()
	p, ok := e.patterns[id]
	return p, ok
}

// Stats reports ingest/discovery counters for introspection endpoints.
type Stats struct {
	TotalDataPoints int64
	TotalPatterns   int64
	SignificantNow  int
	Entities        int
}

func (e *Engine) Stats() Stats {
	e.patternsMu.RLock()
	sig := len(e.patterns)
	e.patternsMu.RUnlock()

	e.dataMu.Lock()
	entities := len(e.entities)
	e.dataMu.Unlock()

	return Stats{
		TotalDataPoints: e.totalPoints,
		TotalPatterns:   e.totalPatterns,
		SignificantNow:  sig,
		Entities:        entities,
	}
}

// CleanupOldData drops data points and patterns past retention per spec.md
// §3's lifecycle rules, returning the number of items removed.
func (e *Engine) CleanupOldData() int {
	retention := time.Duration(e.cfg.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = 168 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-retention)

	removed := 0
	e.dataMu.Lock()
	for _, buf := range e.entities {
		removed += buf.DropBefore(cutoff.UnixNano())
	}
	e.dataMu.Unlock()

	e.patternsMu.Lock()
	for id, p := range e.patterns {
		if p.LastUpdated.Before(cutoff) {
			delete(e.patterns, id)
			removed++
		}
	}
	e.patternsMu.Unlock()

	return removed
}

// Run starts the background analysis+cleanup worker. Each CleanupInterval
// tick runs Analyze over every entity and then CleanupOldData; AddDataPoint
// notifications are drained but start no analysis. It exits promptly on ctx
// cancellation (spec.md §5: "observes a running flag and a
// wake signal; shutdown flips the flag and wakes all workers").
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.CleanupInterval)
	defer ticker.Stop()
	defer close(e.stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Analyze("")
			removed := e.CleanupOldData()
			if removed > 0 {
				e.log.Component("pattern").WithField("removed", removed).Debug("cleanup pass")
			}
		case <-e.wake:
			// real-time analysis hook; coalesced by the buffered wake channel.
		}
	}
}

// Wait blocks until the background worker has exited, for bounded-deadline
// shutdown joins.
func (e *Engine) Wait() { <-e.stopped }

// ExportPatterns renders patterns of kind (or all kinds if "") as json or csv,
// mirroring original_source/shared/pattern_recognition.hpp's export_patterns.
func (e *Engine) ExportPatterns(kind Kind, format string) ([]byte, error) {
	e.patternsMu.RLock()
	var items []Pattern
	for _, p := range e.patterns {
		if kind == "" || p.Kind == kind {
			items = append(items, p)
		}
	}
	e.patternsMu.RUnlock()
	sort.Slice(items, func(i, j int) bool { return items[i].Strength > items[j].Strength })

	if format == "csv" {
		return exportCSV(items), nil
	}
	return exportJSON(items)
}
