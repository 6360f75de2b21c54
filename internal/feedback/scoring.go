package feedback

import "time"

// priorityWeight maps a priority band to its scoring multiplier (spec.md
// §4.6: low=0.5, medium=1, high=2, critical=3).
func priorityWeight(p Priority) float64 {
	switch p {
	case PriorityLow:
		return 0.5
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityCritical:
		return 3
	default:
		return 0.5
	}
}

// recencyWeight decays with age, floored at 0.1 so old-but-real feedback
// never drops to zero influence (spec.md §4.6: max(0.1, 1/(1+ageDays))).
func recencyWeight(ts time.Time) float64 {
	ageDays := time.Since(ts).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	w := 1 / (1 + ageDays)
	if w < 0.1 {
		return 0.1
	}
	return w
}

// weight combines priority and recency into a single scalar applied to a
// feedback's score during learning.
func weight(f FeedbackData) float64 {
	return priorityWeight(f.Priority) * recencyWeight(f.Timestamp)
}

// significant reports whether f clears the confidence threshold and is at
// least medium priority (spec.md §4.6).
func significant(f FeedbackData, confidenceThreshold float64) bool {
	absScore := f.Score
	if absScore < 0 {
		absScore = -absScore
	}
	return absScore >= confidenceThreshold && priorityRank(f.Priority) >= priorityRank(PriorityMedium)
}
