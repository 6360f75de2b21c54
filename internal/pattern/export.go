package pattern

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
)

// exportJSON renders patterns as a JSON array, mirroring
// original_source/shared/pattern_recognition.hpp's export_patterns_json.
func exportJSON(items []Pattern) ([]byte, error) {
	type wire struct {
		ID           string                 `json:"id"`
		Name         string                 `json:"name"`
		Description  string                 `json:"description"`
		Kind         Kind                   `json:"kind"`
		Confidence   Confidence             `json:"confidence"`
		Impact       Impact                 `json:"impact"`
		Strength     float64                `json:"strength"`
		Occurrences  int                    `json:"occurrences"`
		DiscoveredAt string                 `json:"discoveredAt"`
		LastUpdated  string                 `json:"lastUpdated"`
		Decision     *DecisionPayload       `json:"decision,omitempty"`
		Behavior     *BehaviorPayload       `json:"behavior,omitempty"`
		Anomaly      *AnomalyPayload        `json:"anomaly,omitempty"`
		Trend        *TrendPayload          `json:"trend,omitempty"`
		Correlation  *CorrelationPayload    `json:"correlation,omitempty"`
		Sequence     *SequencePayload       `json:"sequence,omitempty"`
	}

	out := make([]wire, 0, len(items))
	for _, p := range items {
		out = append(out, wire{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			Kind:         p.Kind,
			Confidence:   p.Confidence,
			Impact:       p.Impact,
			Strength:     p.Strength,
			Occurrences:  p.Occurrences,
			DiscoveredAt: p.DiscoveredAt.Format("2006-01-02T15:04:05Z07:00"),
			LastUpdated:  p.LastUpdated.Format("2006-01-02T15:04:05Z07:00"),
			Decision:     p.Decision,
			Behavior:     p.Behavior,
			Anomaly:      p.Anomaly,
			Trend:        p.Trend,
			Correlation:  p.Correlation,
			Sequence:     p.Sequence,
		})
	}
	return json.Marshal(out)
}

// exportCSV renders patterns as a flat CSV, one row per pattern, with the
// kind-specific payload collapsed into the description field since CSV has
// no native support for the tagged-union shape.
func exportCSV(items []Pattern) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	_ = w.Write([]string{"id", "name", "kind", "confidence", "impact", "strength", "occurrences", "discovered_at", "last_updated", "description"})
	for _, p := range items {
		_ = w.Write([]string{
			p.ID,
			p.Name,
			string(p.Kind),
			string(p.Confidence),
			string(p.Impact),
			fmt.Sprintf("%.4f", p.Strength),
			fmt.Sprintf("%d", p.Occurrences),
			p.DiscoveredAt.Format("2006-01-02T15:04:05Z07:00"),
			p.LastUpdated.Format("2006-01-02T15:04:05Z07:00"),
			p.Description,
		})
	}
	w.Flush()
	return buf.Bytes()
}
