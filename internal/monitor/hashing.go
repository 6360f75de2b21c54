package monitor

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// boilerplateTokens are stripped during normalization so cosmetic page
// chrome (nav labels, cookie banners) never changes a content hash
// (spec.md §4.4 step 3).
var boilerplateTokens = []string{
	"skip to main content",
	"subscribe to updates",
	"all rights reserved",
	"cookie policy",
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// normalize lowercases, collapses whitespace, and strips common boilerplate
// tokens, per spec.md §4.4 step 3.
func normalize(s string) string {
	out := strings.ToLower(s)
	for _, tok := range boilerplateTokens {
		out = strings.ReplaceAll(out, tok, "")
	}
	out = whitespaceRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// contentHash computes H(normalize(title) ++ "\n" ++ normalize(body)) as a
// hex-encoded sha256 digest, the at-most-once duplicate barrier's key
// (spec.md §4.4 step 3/4). sha256 is the same digest the teacher uses for
// its batch-attestation hashing in infrastructure/datafeed/service.go.
func contentHash(title, body string) string {
	h := sha256.Sum256([]byte(normalize(title) + "\n" + normalize(body)))
	return hex.EncodeToString(h[:])
}
