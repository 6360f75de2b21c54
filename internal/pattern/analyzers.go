package pattern

import (
	"fmt"
	"sort"
	"time"

	"github.com/tidwall/gjson"
)

// rawDataRationale opportunistically pulls a "rationale" field out of a data
// point's opaque RawData document without committing to its full schema —
// the one place this engine reaches into RawData rather than the indexed
// numerical/categorical features, so a single targeted gjson.GetBytes lookup
// fits better than an encoding/json struct we'd otherwise have to define and
// keep in lockstep with every caller of NewDataPointFromDecision.
func rawDataRationale(points []DataPoint) string {
	for _, dp := range points {
		if len(dp.RawData) == 0 {
			continue
		}
		if v := gjson.GetBytes(dp.RawData, "rationale"); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// analyzeDecisionPatterns groups data points by categorical.decision_type
// and looks for factor_* features present in at least MinOccurrences
// decisions of that type, per spec.md §4.5's decision analyzer.
func analyzeDecisionPatterns(data map[string][]DataPoint, cfg Config) []Pattern {
	var out []Pattern
	for entityID, points := range data {
		byType := make(map[string][]DataPoint)
		for _, dp := range points {
			dt, ok := dp.CategoricalFeatures["decision_type"]
			if !ok {
				continue
			}
			byType[dt] = append(byType[dt], dp)
		}

		for decisionType, group := range byType {
			factorCounts := make(map[string]int)
			factorSum := make(map[string]float64)
			for _, dp := range group {
				for key, val := range dp.NumericalFeatures {
					if len(key) > 7 && key[:7] == "factor_" {
						factorCounts[key]++
						factorSum[key] += val
					}
				}
			}
			minOcc := cfg.MinOccurrences
			if minOcc <= 0 {
				minOcc = 5
			}
			weights := make(map[string]float64)
			for key, count := range factorCounts {
				if count < minOcc {
					continue
				}
				weights[key] = factorSum[key] / float64(count)
			}
			if len(weights) == 0 {
				continue
			}

			strength := minFloat(1.0, float64(len(group))/100.0)
			description := fmt.Sprintf("Recurring factor weights observed across %d %q decisions", len(group), decisionType)
			if rationale := rawDataRationale(group); rationale != "" {
				description = fmt.Sprintf("%s (e.g. %q)", description, rationale)
			}
			out = append(out, Pattern{
				ID:          newPatternID(KindDecision) + "_" + entityID + "_" + decisionType,
				Name:        fmt.Sprintf("%s decision pattern for %s", decisionType, entityID),
				Description: description,
				Kind:        KindDecision,
				Confidence:  confidenceFor(strength),
				Impact:      ImpactMedium,
				Strength:    strength,
				Occurrences: len(group),
				DiscoveredAt: time.Now().UTC(),
				LastUpdated:  time.Now().UTC(),
				Decision: &DecisionPayload{
					DecisionType:  decisionType,
					EntityID:      entityID,
					FactorWeights: weights,
				},
			})
		}
	}
	return out
}

// analyzeBehaviorPatterns looks for stable (low coefficient-of-variation)
// behavior_value series per behavior_type, per spec.md §4.5's behavior
// analyzer.
func analyzeBehaviorPatterns(data map[string][]DataPoint, cfg Config) []Pattern {
	var out []Pattern
	for entityID, points := range data {
		byType := make(map[string][]float64)
		for _, dp := range points {
			bt, ok := dp.CategoricalFeatures["behavior_type"]
			if !ok {
				continue
			}
			val, ok := dp.NumericalFeatures["behavior_value"]
			if !ok {
				continue
			}
			byType[bt] = append(byType[bt], val)
		}

		for behaviorType, values := range byType {
			if len(values) < 10 {
				continue
			}
			m := mean(values)
			sd := stddev(values, m)
			cov := 0.0
			if m != 0 {
				cov = sd / m
			}
			if cov < 0 {
				cov = -cov
			}
			if cov >= 0.2 {
				continue
			}

			strength := minFloat(1.0, 1.0-cov)
			out = append(out, Pattern{
				ID:          newPatternID(KindBehavior) + "_" + entityID + "_" + behaviorType,
				Name:        fmt.Sprintf("Stable %s behavior for %s", behaviorType, entityID),
				Description: fmt.Sprintf("%s shows low variance (cv=%.3f) across %d samples", behaviorType, cov, len(values)),
				Kind:        KindBehavior,
				Confidence:  confidenceFor(strength),
				Impact:      ImpactLow,
				Strength:    strength,
				Occurrences: len(values),
				DiscoveredAt: time.Now().UTC(),
				LastUpdated:  time.Now().UTC(),
				Behavior: &BehaviorPayload{
					BehaviorType: behaviorType,
					EntityID:     entityID,
					Mean:         m,
					StdDev:       sd,
					CoefOfVar:    cov,
				},
			})
		}
	}
	return out
}

// analyzeAnomalies uses the first 80% of each numerical feature's series as
// a baseline and flags |z|>3 in the last 20%, per spec.md §4.5/§8 property 4.
func analyzeAnomalies(data map[string][]DataPoint, cfg Config) []Pattern {
	var out []Pattern
	for entityID, points := range data {
		series := collectSeries(points)
		for feature, values := range series {
			if len(values) < 5 {
				continue
			}
			splitAt := int(float64(len(values)) * 0.8)
			if splitAt < 1 {
				splitAt = 1
			}
			baseline := values[:splitAt]
			tail := values[splitAt:]
			if len(tail) == 0 {
				continue
			}

			m := mean(baseline)
			sd := stddev(baseline, m)
			if sd == 0 {
				// A constant baseline has no spread: any departure from it
				// scores far past the critical threshold instead of z = 0.
				sd = 1e-9
			}

			for i, v := range tail {
				z := zscore(v, m, sd)
				absZ := z
				if absZ < 0 {
					absZ = -absZ
				}
				if absZ <= 3 {
					continue
				}
				impact := ImpactHigh
				if absZ > 5 {
					impact = ImpactCritical
				}
				out = append(out, Pattern{
					ID:          newPatternID(KindAnomaly) + "_" + entityID + "_" + feature + "_" + fmt.Sprint(splitAt+i),
					Name:        fmt.Sprintf("Anomalous %s for %s", feature, entityID),
					Description: fmt.Sprintf("%s deviates %.2f standard deviations from baseline", feature, z),
					Kind:        KindAnomaly,
					Confidence:  confidenceFor(minFloat(1.0, absZ/5.0)),
					Impact:      impact,
					Strength:    minFloat(1.0, absZ/5.0),
					Occurrences: 1,
					DiscoveredAt: time.Now().UTC(),
					LastUpdated:  time.Now().UTC(),
					Anomaly: &AnomalyPayload{
						EntityID: entityID,
						Feature:  feature,
						Value:    v,
						ZScore:   z,
					},
				})
			}
		}
	}
	return out
}

// analyzeTrends fits a linear regression over each numerical metric's time
// series, emitting increasing/decreasing trends per spec.md §4.5.
func analyzeTrends(data map[string][]DataPoint, cfg Config) []Pattern {
	var out []Pattern
	for entityID, points := range data {
		series := collectSeries(points)
		for metric, values := range series {
			if len(values) < 5 {
				continue
			}
			slope, rSquared := linearRegression(values)
			absSlope := slope
			if absSlope < 0 {
				absSlope = -absSlope
			}
			if absSlope <= 0.01 || rSquared <= 0.5 {
				continue
			}
			direction := "increasing"
			if slope < 0 {
				direction = "decreasing"
			}
			out = append(out, Pattern{
				ID:          newPatternID(KindTrend) + "_" + entityID + "_" + metric,
				Name:        fmt.Sprintf("%s trend in %s for %s", direction, metric, entityID),
				Description: fmt.Sprintf("%s is %s with slope %.4f (R^2=%.3f)", metric, direction, slope, rSquared),
				Kind:        KindTrend,
				Confidence:  confidenceFor(rSquared),
				Impact:      ImpactMedium,
				Strength:    rSquared,
				Occurrences: len(values),
				DiscoveredAt: time.Now().UTC(),
				LastUpdated:  time.Now().UTC(),
				Trend: &TrendPayload{
					Metric:    metric,
					Direction: direction,
					Slope:     slope,
					RSquared:  rSquared,
				},
			})
		}
	}
	return out
}

// analyzeCorrelations computes Pearson r over every pair of numerical
// features with >= 10 joint samples, per spec.md §4.5/§8 property 5
// (symmetry: (a,b) and (b,a) are never both emitted).
func analyzeCorrelations(data map[string][]DataPoint, cfg Config) []Pattern {
	var out []Pattern
	for entityID, points := range data {
		series := collectSeries(points)

		var names []string
		for name := range series {
			names = append(names, name)
		}
		sort.Strings(names)

		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				a, b := names[i], names[j]
				x, y := alignedSeries(points, a, b)
				if len(x) < 10 {
					continue
				}
				r := pearson(x, y)
				absR := r
				if absR < 0 {
					absR = -absR
				}
				if absR <= 0.5 {
					continue
				}
				out = append(out, Pattern{
					ID:          newPatternID(KindCorrelation) + "_" + entityID + "_" + a + "_" + b,
					Name:        fmt.Sprintf("%s <-> %s correlation for %s", a, b, entityID),
					Description: fmt.Sprintf("Pearson r=%.3f over %d joint samples", r, len(x)),
					Kind:        KindCorrelation,
					Confidence:  confidenceFor(absR),
					Impact:      ImpactLow,
					Strength:    absR,
					Occurrences: len(x),
					DiscoveredAt: time.Now().UTC(),
					LastUpdated:  time.Now().UTC(),
					Correlation: &CorrelationPayload{
						FeatureA:    a,
						FeatureB:    b,
						Coefficient: r,
						SampleSize:  len(x),
					},
				})
			}
		}
	}
	return out
}

// analyzeSequences finds adjacent category-tag bigrams occurring at least
// MinOccurrences times, per spec.md §4.5's sequence analyzer.
func analyzeSequences(data map[string][]DataPoint, cfg Config) []Pattern {
	var out []Pattern
	minOcc := cfg.MinOccurrences
	if minOcc <= 0 {
		minOcc = 5
	}

	for entityID, points := range data {
		events := eventTags(points)
		if len(events) < 2 {
			continue
		}

		bigramCounts := make(map[[2]string]int)
		for i := 0; i < len(events)-1; i++ {
			bigramCounts[[2]string{events[i], events[i+1]}]++
		}

		for bigram, count := range bigramCounts {
			if count < minOcc {
				continue
			}
			strength := minFloat(1.0, float64(count)/float64(len(events)))
			out = append(out, Pattern{
				ID:          newPatternID(KindSequence) + "_" + entityID + "_" + bigram[0] + "_" + bigram[1],
				Name:        fmt.Sprintf("%s -> %s sequence for %s", bigram[0], bigram[1], entityID),
				Description: fmt.Sprintf("Observed %d times across %d events", count, len(events)),
				Kind:        KindSequence,
				Confidence:  confidenceFor(strength),
				Impact:      ImpactLow,
				Strength:    strength,
				Occurrences: count,
				DiscoveredAt: time.Now().UTC(),
				LastUpdated:  time.Now().UTC(),
				Sequence: &SequencePayload{
					EntityID: entityID,
					Sequence: []string{bigram[0], bigram[1]},
					Count:    count,
				},
			})
		}
	}
	return out
}

// --- shared helpers ---

func collectSeries(points []DataPoint) map[string][]float64 {
	out := make(map[string][]float64)
	for _, dp := range points {
		for feature, v := range dp.NumericalFeatures {
			out[feature] = append(out[feature], v)
		}
	}
	return out
}

// alignedSeries returns the values of featureA/featureB only from data points
// where both are present, preserving relative order.
func alignedSeries(points []DataPoint, featureA, featureB string) ([]float64, []float64) {
	var x, y []float64
	for _, dp := range points {
		va, ok1 := dp.NumericalFeatures[featureA]
		vb, ok2 := dp.NumericalFeatures[featureB]
		if ok1 && ok2 {
			x = append(x, va)
			y = append(y, vb)
		}
	}
	return x, y
}

// eventTags builds the categorical event stream an entity's data points form,
// preferring the most specific tag present on each point.
func eventTags(points []DataPoint) []string {
	var tags []string
	for _, dp := range points {
		for _, key := range []string{"event_type", "decision_type", "behavior_type"} {
			if v, ok := dp.CategoricalFeatures[key]; ok {
				tags = append(tags, v)
				break
			}
		}
	}
	return tags
}

func confidenceFor(strength float64) Confidence {
	switch {
	case strength >= 0.9:
		return ConfidenceVeryHigh
	case strength >= 0.75:
		return ConfidenceHigh
	case strength >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func minInt(a, b int) int {
	if a <= 0 {
		return b
	}
	if a < b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
