package pattern

import "sort"

// Applied pairs a previously-discovered pattern with how relevant it is to a
// freshly observed data point, per spec.md §4.5's apply(dp) operation
// ("score how well a new observation matches already-discovered patterns,
// without re-running full analysis").
type Applied struct {
	Pattern   Pattern
	Relevance float64
}

// Apply scores dp against every currently significant pattern and returns
// the ones with relevance > 0.3, sorted by relevance descending (spec.md
// §4.5: "Only pairs with relevance > 0.3 are returned, sorted descending").
func (e *Engine) Apply(dp DataPoint) []Applied {
	e.patternsMu.RLock()
	defer e.patternsMu.RUnlock()

	var out []Applied
	for _, p := range e.patterns {
		if r := relevance(p, dp); r > 0.3 {
			out = append(out, Applied{Pattern: p, Relevance: r})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	return out
}

func relevance(p Pattern, dp DataPoint) float64 {
	switch p.Kind {
	case KindDecision:
		return decisionRelevance(p.Decision, dp)
	case KindBehavior:
		return behaviorRelevance(p.Behavior, dp)
	case KindAnomaly:
		return anomalyRelevance(p.Anomaly, dp)
	case KindTrend:
		return trendRelevance(p.Trend, dp)
	case KindCorrelation:
		return correlationRelevance(p.Correlation, dp)
	case KindSequence:
		return sequenceRelevance(p.Sequence, dp)
	default:
		return 0
	}
}

func decisionRelevance(payload *DecisionPayload, dp DataPoint) float64 {
	if payload == nil || dp.EntityID != payload.EntityID {
		return 0
	}
	if dp.CategoricalFeatures["decision_type"] != payload.DecisionType {
		return 0
	}
	if len(payload.FactorWeights) == 0 {
		return 0.5
	}
	matched := 0
	for key := range payload.FactorWeights {
		if _, ok := dp.NumericalFeatures[key]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(payload.FactorWeights))
}

func behaviorRelevance(payload *BehaviorPayload, dp DataPoint) float64 {
	if payload == nil || dp.EntityID != payload.EntityID {
		return 0
	}
	if dp.CategoricalFeatures["behavior_type"] != payload.BehaviorType {
		return 0
	}
	value, ok := dp.NumericalFeatures["behavior_value"]
	if !ok {
		return 0
	}
	if payload.StdDev == 0 {
		if value == payload.Mean {
			return 1
		}
		return 0
	}
	z := zscore(value, payload.Mean, payload.StdDev)
	if z < 0 {
		z = -z
	}
	relevance := 1 - z/3.0
	if relevance < 0 {
		return 0
	}
	return relevance
}

func anomalyRelevance(payload *AnomalyPayload, dp DataPoint) float64 {
	if payload == nil || dp.EntityID != payload.EntityID {
		return 0
	}
	value, ok := dp.NumericalFeatures[payload.Feature]
	if !ok {
		return 0
	}
	if payload.Value == 0 {
		if value == 0 {
			return 1
		}
		return 0
	}
	diff := value - payload.Value
	if diff < 0 {
		diff = -diff
	}
	magnitude := payload.Value
	if magnitude < 0 {
		magnitude = -magnitude
	}
	relevance := 1 - diff/magnitude
	if relevance < 0 {
		return 0
	}
	return relevance
}

func trendRelevance(payload *TrendPayload, dp DataPoint) float64 {
	if payload == nil {
		return 0
	}
	if _, ok := dp.NumericalFeatures[payload.Metric]; !ok {
		return 0
	}
	return payload.RSquared
}

func correlationRelevance(payload *CorrelationPayload, dp DataPoint) float64 {
	if payload == nil {
		return 0
	}
	_, hasA := dp.NumericalFeatures[payload.FeatureA]
	_, hasB := dp.NumericalFeatures[payload.FeatureB]
	if !hasA || !hasB {
		return 0
	}
	coeff := payload.Coefficient
	if coeff < 0 {
		coeff = -coeff
	}
	return coeff
}

func sequenceRelevance(payload *SequencePayload, dp DataPoint) float64 {
	if payload == nil || dp.EntityID != payload.EntityID || len(payload.Sequence) == 0 {
		return 0
	}
	last := payload.Sequence[len(payload.Sequence)-1]
	for _, key := range []string{"event_type", "decision_type", "behavior_type"} {
		if v, ok := dp.CategoricalFeatures[key]; ok && v == last {
			return 1
		}
	}
	return 0
}
