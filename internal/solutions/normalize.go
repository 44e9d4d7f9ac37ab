// Package solutions matches reported errors against stored solutions.
// Raw error messages are normalized into stable patterns by stripping
// volatile substrings; the pattern is the join key between new reports and
// recorded fixes.
package solutions

import (
	"regexp"
	"strings"
)

// Placeholder tokens substituted for volatile substrings. Replacements run
// in order: more specific shapes (UUIDs, timestamps) before the generic ones
// (hex runs, bare ports) that could swallow them.
var normalizers = []struct {
	re          *regexp.Regexp
	placeholder string
}{
	// UUIDs before generic hex
	{regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`), "<UUID>"},
	// ISO dates and clock times
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?`), "<DATE>"},
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), "<DATE>"},
	{regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?(?:\.\d+)?\b`), "<TIME>"},
	// Semantic versions
	{regexp.MustCompile(`\bv?\d+\.\d+\.\d+(?:-[\w.]+)?\b`), "<VERSION>"},
	// Hex hashes (commit hashes, memory addresses)
	{regexp.MustCompile(`\b(?:0x)?[0-9a-fA-F]{7,40}\b`), "<HASH>"},
	// line 42 / :42:7 position suffixes
	{regexp.MustCompile(`(?i)\bline[ :]\d+\b`), "line <LINE>"},
	{regexp.MustCompile(`:\d+(?::\d+)?\b`), ":<LINE>"},
	// port 8080 / localhost:8080
	{regexp.MustCompile(`(?i)\bport[ :]\d{2,5}\b`), "port <PORT>"},
	// Absolute paths (unix style), after :line suffixes are gone
	{regexp.MustCompile(`(?:/[\w.@-]+){2,}/?`), "<PATH>"},
	// Remaining standalone numbers of 4+ digits (ports, pids)
	{regexp.MustCompile(`\b\d{4,5}\b`), "<PORT>"},
}

var whitespace = regexp.MustCompile(`\s+`)

// Normalize derives the stable matching pattern for a raw error message.
// The transform is deterministic: messages differing only in line numbers,
// paths, hashes, timestamps, versions, or ports normalize identically.
func Normalize(raw string) string {
	s := raw
	for _, n := range normalizers {
		s = n.re.ReplaceAllString(s, n.placeholder)
	}
	s = whitespace.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}
