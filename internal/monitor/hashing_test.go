package monitor

import "testing"

func TestContentHashStableAcrossBoilerplate(t *testing.T) {
	a := contentHash("New Rule", "Skip to main content The agency adopted a new rule.")
	b := contentHash("New Rule", "The agency adopted a new rule.")

	if a != b {
		t.Fatalf("expected boilerplate-stripped hashes to match, got %q != %q", a, b)
	}
}

func TestContentHashDiffersOnSubstance(t *testing.T) {
	a := contentHash("New Rule", "The agency adopted a new rule.")
	b := contentHash("New Rule", "The agency withdrew the proposed rule.")

	if a == b {
		t.Fatal("expected differing body text to produce differing hashes")
	}
}

func TestContentHashCaseInsensitive(t *testing.T) {
	a := contentHash("New Rule", "Body Text")
	b := contentHash("new rule", "body text")

	if a != b {
		t.Fatalf("expected case-insensitive hashing, got %q != %q", a, b)
	}
}
