package service

import (
	"regexp"
	"strings"
)

// Sentinel is the token the model emits when the document context cannot
// answer the question.
const Sentinel = "[EXTERNAL_SEARCH_NEEDED]"

// FallbackAnswer replaces an answer that is empty once cleaned.
const FallbackAnswer = "I don't have sufficient information to answer this query."

// sentinelPattern matches the exact token and its damaged variants: any
// case, spaces or dashes for underscores, or one bracket missing. Markdown
// emphasis, code ticks and doubled brackets around the token go with it.
var sentinelPattern = regexp.MustCompile(`(?i)` + markupOpen + `(?:` +
	`\[\s*external[\s_-]*search[\s_-]*needed\s*\]?` +
	`|external_search_needed\s*\]?` +
	`|external[\s_-]*search[\s_-]*needed\s*\]` +
	`)` + markupClose)

const (
	markupOpen  = "[*_`\\[]*"
	markupClose = "[*_`\\]]*"
)

func hasSentinel(s string) bool {
	return sentinelPattern.MatchString(s)
}

// finalize removes every sentinel form, trims each line and drops blank ones.
func finalize(answer string) string {
	stripped := sentinelPattern.ReplaceAllString(answer, "")
	lines := strings.Split(stripped, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		return FallbackAnswer
	}
	return strings.Join(kept, "\n")
}
