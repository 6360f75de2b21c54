package feedback

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/regulens/compliance-core/internal/pattern"
	"github.com/regulens/compliance-core/pkg/logging"
	"github.com/regulens/compliance-core/pkg/metrics"
)

// Config parameterizes the feedback queue caps and learning cadence.
type Config struct {
	MaxPerEntity        int
	RetentionHours      int
	MinForLearning      int
	ConfidenceThreshold float64
	RealTimeLearning    bool
	BatchInterval       int
	WorkerInterval       time.Duration
}

// PatternSink is the one-way bridge into C8: Submit emits a parallel
// PatternDataPoint so the analytic engine observes feedback as data
// (spec.md §4.6). feedback depends on pattern, never the reverse.
type PatternSink interface {
	AddDataPoint(dp pattern.DataPoint) bool
}

// Store is the optional persistence seam for feedback and model snapshots.
type Store interface {
	SaveFeedback(ctx context.Context, f FeedbackData) error
	SaveModel(ctx context.Context, m LearningModel) error
}

// System is the FeedbackSystem (spec C9).
type System struct {
	cfg     Config
	log     *logging.Logger
	store   Store
	sink    PatternSink

	feedbackMu     sync.Mutex
	entityFeedback map[string]*boundedFeedbackDeque
	sinceLearning  map[string]int

	modelsMu sync.RWMutex
	models   map[string]LearningModel

	wake    chan struct{}
	stopped chan struct{}
}

// New builds a FeedbackSystem. sink may be nil, in which case feedback
// ingestion skips the parallel data-point emission (useful for isolated
// unit tests).
func New(cfg Config, log *logging.Logger, store Store, sink PatternSink) *System {
	if cfg.MaxPerEntity <= 0 {
		cfg.MaxPerEntity = 10000
	}
	if cfg.WorkerInterval <= 0 {
		cfg.WorkerInterval = 15 * time.Minute
	}
	if cfg.MinForLearning <= 0 {
		cfg.MinForLearning = 10
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.7
	}
	return &System{
		cfg:            cfg,
		log:            log,
		store:          store,
		sink:           sink,
		entityFeedback: make(map[string]*boundedFeedbackDeque),
		sinceLearning:  make(map[string]int),
		models:         make(map[string]LearningModel),
		wake:           make(chan struct{}, 1),
		stopped:        make(chan struct{}),
	}
}

// Submit pushes feedback into its entity's queue and emits a parallel
// PatternDataPoint into C8, per spec.md §4.6's submit(feedback) operation.
// If RealTimeLearning is enabled and the entity has reached MinForLearning
// new points since its last training pass, learning runs inline.
func (s *System) Submit(f FeedbackData) FeedbackData {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now().UTC()
	}
	key := f.entityKey()

	s.feedbackMu.Lock()
	buf, ok := s.entityFeedback[key]
	if !ok {
		buf = newBoundedFeedbackDeque(s.cfg.MaxPerEntity)
		s.entityFeedback[key] = buf
	}
	buf.Push(f)
	s.sinceLearning[key]++
	readyToLearn := s.cfg.RealTimeLearning && s.sinceLearning[key] >= s.cfg.MinForLearning
	if readyToLearn {
		s.sinceLearning[key] = 0
	}
	s.feedbackMu.Unlock()

	metrics.FeedbackSubmitted.WithLabelValues(string(f.Kind)).Inc()

	if s.store != nil {
		if err := s.store.SaveFeedback(context.Background(), f); err != nil {
			s.log.Component("feedback").WithError(err).Warn("persist feedback failed")
		}
	}
	if s.sink != nil {
		s.sink.AddDataPoint(feedbackDataPoint(f))
	}

	if readyToLearn {
		s.applyLearningForEntity(key)
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return f
}

func feedbackDataPoint(f FeedbackData) pattern.DataPoint {
	metaNumeric := map[string]float64{"score": f.Score, "weight": weight(f)}
	metaCategorical := map[string]string{"kind": string(f.Kind)}
	return pattern.NewDataPointFromEvent(f.entityKey(), "feedback", string(f.Priority), f.Timestamp, metaNumeric, metaCategorical)
}

// ApplyLearning runs the learning pass for entityID, or for every entity
// with buffered feedback when entityID is "" (spec.md §4.6's
// applyLearning(entity?) operation).
func (s *System) ApplyLearning(entityID string) {
	if entityID != "" {
		s.applyLearningForEntity(entityID)
		return
	}
	s.feedbackMu.Lock()
	var entities []string
	for id := range s.entityFeedback {
		entities = append(entities, id)
	}
	s.feedbackMu.Unlock()

	for _, id := range entities {
		s.applyLearningForEntity(id)
	}
}

func (s *System) applyLearningForEntity(entityID string) {
	s.feedbackMu.Lock()
	buf, ok := s.entityFeedback[entityID]
	var recent []FeedbackData
	if ok {
		recent = buf.Snapshot()
	}
	s.feedbackMu.Unlock()
	if len(recent) == 0 {
		return
	}

	for _, modelType := range []ModelType{ModelDecision, ModelBehavior, ModelRisk} {
		id := modelID(entityID, modelType)

		s.modelsMu.Lock()
		model, ok := s.models[id]
		if !ok {
			model = newModel(entityID, modelType)
		}
		s.modelsMu.Unlock()

		model = applyLearning(model, recent)
		model.LastTrainedAt = time.Now().UTC()
		for _, f := range recent {
			if significant(f, s.cfg.ConfidenceThreshold) {
				model.FeedbackWindow = append(model.FeedbackWindow, f)
			}
		}

		s.modelsMu.Lock()
		s.models[id] = model
		s.modelsMu.Unlock()

		metrics.ModelsUpdated.Inc()

		if s.store != nil {
			if err := s.store.SaveModel(context.Background(), model); err != nil {
				s.log.Component("feedback").WithError(err).Warn("persist model failed")
			}
		}
	}
}

// GetModel looks up a per-entity model by type.
func (s *System) GetModel(entityID string, modelType ModelType) (LearningModel, bool) {
	s.modelsMu.RLock()
	defer s.modelsMu.RUnlock()
	m, ok := s.models[modelID(entityID, modelType)]
	return m, ok
}

// AnalyzeFeedbackPatterns produces a FeedbackAnalysis for entityID over the
// last daysBack days (spec.md §4.6's analyzeFeedbackPatterns operation).
func (s *System) AnalyzeFeedbackPatterns(entityID string, daysBack int) FeedbackAnalysis {
	s.feedbackMu.Lock()
	buf, ok := s.entityFeedback[entityID]
	var all []FeedbackData
	if ok {
		all = buf.Snapshot()
	}
	s.feedbackMu.Unlock()

	cutoff := windowCutoff(daysBack)
	var windowed []FeedbackData
	for _, f := range all {
		if f.Timestamp.After(cutoff) {
			windowed = append(windowed, f)
		}
	}
	return analyzeFeedbackPatterns(entityID, daysBack, windowed)
}

// CleanupOldData drops feedback past retention (spec.md §4.6/§3 lifecycle).
func (s *System) CleanupOldData() int {
	retention := time.Duration(s.cfg.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = 168 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-retention)

	s.feedbackMu.Lock()
	defer s.feedbackMu.Unlock()
	removed := 0
	for _, buf := range s.entityFeedback {
		removed += buf.DropBefore(cutoff.UnixNano())
	}
	return removed
}

// Run starts the background learning+cleanup worker: every
// WorkerInterval, apply learning across all entities, then prune (spec.md
// §4.6: "every 15 min apply learning across entities, then prune feedback
// older than retention").
func (s *System) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.WorkerInterval)
	defer ticker.Stop()
	defer close(s.stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ApplyLearning("")
			removed := s.CleanupOldData()
			if removed > 0 {
				s.log.Component("feedback").WithField("removed", removed).Debug("cleanup pass")
			}
		case <-s.wake:
			// coalesced real-time-learning notification; actual learning for
			// the triggering entity already ran inline in Submit.
		}
	}
}

// Wait blocks until the background worker has exited.
func (s *System) Wait() { <-s.stopped }
