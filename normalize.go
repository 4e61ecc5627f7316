package main

import (
	"regexp"
	"strings"
)

// normalizePattern is one rewrite step of normalizeQuery
type normalizePattern struct {
	re   *regexp.Regexp
	subs string
}

func (p *normalizePattern) normalize(q string) string {
	return p.re.ReplaceAllString(q, p.subs)
}

// normalizePatterns are applied in order. Escaped quotes must be gone
// before quoted literals are collapsed, otherwise `'it\'s'` would be
// split in the wrong place.
var normalizePatterns = []normalizePattern{
	{regexp.MustCompile(`\s+`), " "},
	{regexp.MustCompile(`[+\-]?\b\d+\b`), "N"},
	{regexp.MustCompile(`\b0x[0-9A-Fa-f]+\b`), "0xN"},
	{regexp.MustCompile(`\\'`), ""},
	{regexp.MustCompile(`\\"`), ""},
	{regexp.MustCompile(`'[^']+'`), "S"},
	{regexp.MustCompile(`"[^"]+"`), "S"},
	// 4 or more "N," / "S," items: a 5 element list is the shortest that collapses
	{regexp.MustCompile(`([NS]\s*,\s*){4,}`), "..."},
}

// normalizeQuery collapses a raw query into its shape so that queries
// differing only in literal values count as the same query
func normalizeQuery(query string) string {
	for i := range normalizePatterns {
		query = normalizePatterns[i].normalize(query)
	}
	return strings.TrimSpace(query)
}
