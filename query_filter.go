package main

import (
	"fmt"

	"github.com/gobwas/glob"
)

// QueryFilter drops raw queries matching any of the --ignore patterns,
// e.g. "*information_schema*" or "SELECT @@*"
type QueryFilter struct {
	patterns []string
	ignore   []glob.Glob
}

// NewQueryFilter compiles the glob patterns
func NewQueryFilter(patterns []string) (*QueryFilter, error) {
	globs, err := compileGlobs(patterns)
	if err != nil {
		return nil, err
	}
	return &QueryFilter{patterns: patterns, ignore: globs}, nil
}

// Ignored reports whether query matches one of the patterns.
// A nil filter ignores nothing.
func (f *QueryFilter) Ignored(query string) bool {
	if f == nil {
		return false
	}
	return matchAny(f.ignore, query)
}

// Patterns returns the source patterns
func (f *QueryFilter) Patterns() []string {
	if f == nil {
		return nil
	}
	return f.patterns
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchAny(globs []glob.Glob, s string) bool {
	for _, g := range globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}
