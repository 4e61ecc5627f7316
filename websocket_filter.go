package main

import (
	"github.com/gobwas/glob"
)

// ClientSubscription defines which query shapes a client wants to receive
type ClientSubscription struct {
	// Glob patterns over normalized queries, e.g. ["SELECT*", "*FROM orders*"].
	// Empty means every query.
	Patterns []string `json:"patterns"`
	Excludes []string `json:"excludes"`

	// Rows per summary, 0 = everything the server ranked
	TopN int `json:"top_n"`

	// Cumulative ranking instead of the window
	Total bool `json:"total"`

	// Rate limiting
	MaxMessagesPerSecond int `json:"max_rate"` // 0 = unlimited
}

// SummaryFilter selects rows of a ranking using compiled patterns
type SummaryFilter struct {
	subscription *ClientSubscription
	include      []glob.Glob
	exclude      []glob.Glob
}

// NewSummaryFilter creates a filter with compiled patterns
func NewSummaryFilter(sub *ClientSubscription) (*SummaryFilter, error) {
	include, err := compileGlobs(sub.Patterns)
	if err != nil {
		return nil, err
	}
	exclude, err := compileGlobs(sub.Excludes)
	if err != nil {
		return nil, err
	}
	return &SummaryFilter{subscription: sub, include: include, exclude: exclude}, nil
}

// Matches checks if a normalized query passes the subscription patterns
func (f *SummaryFilter) Matches(query string) bool {
	if len(f.include) > 0 && !matchAny(f.include, query) {
		return false
	}
	return !matchAny(f.exclude, query)
}

// Apply keeps the matching rows, in rank order, up to TopN
func (f *SummaryFilter) Apply(rows []QueryCount) []QueryCount {
	selected := make([]QueryCount, 0, len(rows))
	for _, qc := range rows {
		if !f.Matches(qc.Query) {
			continue
		}
		selected = append(selected, qc)
		if f.subscription.TopN > 0 && len(selected) == f.subscription.TopN {
			break
		}
	}
	return selected
}

// GetDefaultSubscription returns the default subscription: the whole window ranking
func GetDefaultSubscription() *ClientSubscription {
	return &ClientSubscription{}
}
