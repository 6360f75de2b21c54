package feedback

import "strings"

const supervisedLearningRate = 0.01

// applyLearning runs model's prescribed strategy over recent feedback and
// returns the updated model, per spec.md §4.6 step 2. Parameter naming for
// reinforcement/batch models is an Open Question the spec leaves implicit;
// DESIGN.md records the resolution used here (reinforcement keys parameters
// by the feedback's behavior_type metadata, batch keys them by any
// "param_*" metadata key present).
func applyLearning(model LearningModel, recent []FeedbackData) LearningModel {
	if model.Parameters == nil {
		model.Parameters = make(map[string]float64)
	}

	switch model.Strategy {
	case StrategySupervised:
		applySupervised(&model, recent)
	case StrategyReinforcement:
		applyReinforcement(&model, recent)
	case StrategyBatch:
		applyBatch(&model, recent)
	}

	model.SampleCount += len(recent)
	return model
}

// applySupervised implements spec.md §4.6's decision-model strategy: every
// factor_*_weight metadata key nudges its parameter by weight(f)*score*eta.
func applySupervised(model *LearningModel, recent []FeedbackData) {
	var scores []float64
	for _, f := range recent {
		scores = append(scores, f.Score)
		for key, raw := range f.Metadata {
			if !isFactorWeightKey(key) {
				continue
			}
			if _, ok := toFloat(raw); !ok {
				continue
			}
			delta := weight(f) * f.Score * supervisedLearningRate
			model.Parameters[key] = clamp(model.Parameters[key]+delta, -1, 1)
		}
	}
	model.Accuracy = clamp(meanAbs(scores), 0, 1)
}

// applyReinforcement implements spec.md §4.6's behavior-model strategy:
// reward is the weighted mean score; each behavior_type parameter shifts by
// reward*0.001, and accuracy drifts by +0.1*reward.
func applyReinforcement(model *LearningModel, recent []FeedbackData) {
	if len(recent) == 0 {
		return
	}
	var weightedSum float64
	for _, f := range recent {
		weightedSum += weight(f) * f.Score
	}
	reward := weightedSum / float64(len(recent))

	types := distinctBehaviorTypes(recent)
	if len(types) == 0 {
		types = []string{"default"}
	}
	for _, behaviorType := range types {
		current, ok := model.Parameters[behaviorType]
		if !ok {
			current = 0.5
		}
		model.Parameters[behaviorType] = clamp(current+reward*0.001, 0, 1)
	}

	model.Accuracy = clamp(model.Accuracy+0.1*reward, 0, 1)
}

// applyBatch implements spec.md §4.6's risk-model strategy: scores are
// grouped by any "param_*" metadata key; groups with >= 3 samples nudge
// their parameter by mean(scores)*0.05.
func applyBatch(model *LearningModel, recent []FeedbackData) {
	groups := make(map[string][]float64)
	var allScores []float64
	for _, f := range recent {
		allScores = append(allScores, f.Score)
		for key := range f.Metadata {
			if strings.HasPrefix(key, "param_") {
				groups[key] = append(groups[key], f.Score)
			}
		}
	}

	for key, scores := range groups {
		if len(scores) < 3 {
			continue
		}
		delta := meanOf(scores) * 0.05
		model.Parameters[key] = clamp(model.Parameters[key]+delta, 0, 1)
	}

	improvement := clamp(meanOf(allScores), -1, 1) * 0.5
	model.Accuracy = clamp(0.5+improvement, 0, 1)
}

func isFactorWeightKey(key string) bool {
	return strings.HasPrefix(key, "factor_") && strings.HasSuffix(key, "_weight")
}

func distinctBehaviorTypes(recent []FeedbackData) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range recent {
		v, ok := f.Metadata["behavior_type"]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func meanAbs(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		if v < 0 {
			sum += -v
		} else {
			sum += v
		}
	}
	return sum / float64(len(values))
}
