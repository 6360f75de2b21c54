// Package monitor implements the RegulatoryMonitor (spec C7): a scheduled
// multi-source scraper that fetches each active source's index page,
// extracts candidate regulatory changes, de-duplicates them against a
// content hash, and tracks per-source failure/quarantine/backoff state.
// Grounded on spec.md §4.4 and original_source's
// regulatory_monitor/complete_regulatory_demo.cpp (SEC/FCA source set,
// "force check" CLI command); the concrete scraper/extractor split is a
// generalization of that demo's hard-coded SEC+FCA logic to an
// extractor-per-sourceType registry so the source catalogue can grow
// without touching the cycle runner.
package monitor

import "time"

// CandidateChange is one regulatory change surfaced by a source-specific
// extractor, before deduplication (spec.md §4.4 step 2).
type CandidateChange struct {
	Title              string
	URL                string
	Body               string
	ClassifiedSeverity string
	ChangeType         string
}

// Source is the runtime state RegulatoryMonitor tracks for one configured
// regulatory source, layered on top of its static configuration.
type Source struct {
	ID                   string
	Name                 string
	BaseURL              string
	SourceType           string
	CheckIntervalMinutes int
	Active               bool

	ConsecutiveFailures int
	Quarantined         bool
	BackoffUntil        time.Time
	LastBackoff         time.Duration
	LastCheckedAt       time.Time
}

// CycleResult is the outcome of one scrape cycle, whether scheduled or
// forced (spec.md §4.4: "results merge into the same counters").
type CycleResult struct {
	SourceID   string
	Inserted   int
	Duplicated int
	Failed     int
	Err        error
}
