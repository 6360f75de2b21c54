// Package pattern implements the PatternEngine (spec C8): time-indexed
// per-entity data buffers, six pattern-discovery algorithms, a significant-
// pattern store, and applicability scoring. Algorithm shapes are grounded on
// original_source/shared/pattern_recognition.{hpp,cpp}; the Go concurrency
// idiom (mutex-guarded maps plus one background goroutine gated by a
// `running` flag and a wakeable sleep) replaces that file's
// std::thread+condition_variable worker per spec.md §9's design note.
package pattern

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Kind is the pattern-kind discriminator (spec.md §3's tagged sum type).
type Kind string

const (
	KindDecision    Kind = "decision"
	KindBehavior    Kind = "behavior"
	KindAnomaly     Kind = "anomaly"
	KindTrend       Kind = "trend"
	KindCorrelation Kind = "correlation"
	KindSequence    Kind = "sequence"
)

// Confidence is the qualitative confidence band.
type Confidence string

const (
	ConfidenceLow      Confidence = "low"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceHigh     Confidence = "high"
	ConfidenceVeryHigh Confidence = "veryHigh"
)

// Impact is the qualitative impact band.
type Impact string

const (
	ImpactLow      Impact = "low"
	ImpactMedium   Impact = "medium"
	ImpactHigh     Impact = "high"
	ImpactCritical Impact = "critical"
)

// DataPoint is the PatternDataPoint (spec.md §3): immutable once buffered.
type DataPoint struct {
	EntityID            string
	Timestamp           time.Time
	NumericalFeatures   map[string]float64
	CategoricalFeatures  map[string]string
	RawData             []byte // opaque JSON document, queried via tidwall/gjson
}

// NewDataPointFromDecision builds a DataPoint the way
// original_source/shared/pattern_recognition.hpp's
// create_data_point_from_decision convenience function does: decision type
// and confidence as features, reasoning factors as factor_N_weight features.
func NewDataPointFromDecision(entityID string, ts time.Time, decisionType string, confidencePct float64, factorWeights []float64, rawData []byte) DataPoint {
	dp := DataPoint{
		EntityID:            entityID,
		Timestamp:           ts,
		NumericalFeatures:   map[string]float64{"confidence": confidencePct / 100.0},
		CategoricalFeatures: map[string]string{"decision_type": decisionType},
		RawData:             rawData,
	}
	for i, w := range factorWeights {
		dp.NumericalFeatures[factorKey(i)] = w
	}
	return dp
}

// NewDataPointFromActivity builds a DataPoint from a behavioral activity
// signal (original_source's create_data_point_from_activity).
func NewDataPointFromActivity(entityID, activityType string, value float64, ts time.Time) DataPoint {
	return DataPoint{
		EntityID:            entityID,
		Timestamp:           ts,
		NumericalFeatures:   map[string]float64{"behavior_value": value},
		CategoricalFeatures: map[string]string{"behavior_type": activityType},
	}
}

// NewDataPointFromEvent builds a DataPoint from a generic system/compliance
// event (original_source's create_data_point_from_event).
func NewDataPointFromEvent(entityID, eventType, severity string, ts time.Time, metaNumeric map[string]float64, metaCategorical map[string]string) DataPoint {
	dp := DataPoint{
		EntityID:            entityID,
		Timestamp:           ts,
		NumericalFeatures:   map[string]float64{},
		CategoricalFeatures: map[string]string{"event_type": eventType, "severity": severity},
	}
	for k, v := range metaNumeric {
		dp.NumericalFeatures["meta_"+k] = v
	}
	for k, v := range metaCategorical {
		dp.CategoricalFeatures["meta_"+k] = v
	}
	return dp
}

func factorKey(i int) string {
	return "factor_" + strconv.Itoa(i) + "_weight"
}

// Pattern is the common envelope for all six pattern kinds (spec.md §3).
type Pattern struct {
	ID            string
	Name          string
	Description   string
	Kind          Kind
	Confidence    Confidence
	Impact        Impact
	Strength      float64
	Occurrences   int
	DiscoveredAt  time.Time
	LastUpdated   time.Time
	Metadata      map[string]interface{}

	// Kind-specific payloads; exactly one is populated, selected by Kind.
	Decision    *DecisionPayload
	Behavior    *BehaviorPayload
	Anomaly     *AnomalyPayload
	Trend       *TrendPayload
	Correlation *CorrelationPayload
	Sequence    *SequencePayload
}

// DecisionPayload is the decision-pattern-specific payload.
type DecisionPayload struct {
	DecisionType   string
	EntityID       string
	FactorWeights  map[string]float64
}

// BehaviorPayload is the behavior-pattern-specific payload.
type BehaviorPayload struct {
	BehaviorType string
	EntityID     string
	Mean         float64
	StdDev       float64
	CoefOfVar    float64
}

// AnomalyPayload is the anomaly-pattern-specific payload.
type AnomalyPayload struct {
	EntityID string
	Feature  string
	Value    float64
	ZScore   float64
}

// TrendPayload is the trend-pattern-specific payload.
type TrendPayload struct {
	Metric    string
	Direction string // "increasing" | "decreasing"
	Slope     float64
	RSquared  float64
}

// CorrelationPayload is the correlation-pattern-specific payload.
type CorrelationPayload struct {
	FeatureA    string
	FeatureB    string
	Coefficient float64
	SampleSize  int
}

// SequencePayload is the sequence-pattern-specific payload.
type SequencePayload struct {
	EntityID  string
	Sequence  []string // ordered bigram, e.g. ["review_requested", "review_approved"]
	Count     int
}

func newPatternID(kind Kind) string {
	return string(kind) + "_" + uuid.NewString()
}
