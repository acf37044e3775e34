package syncer

import (
	"path"
	"path/filepath"
	"strings"
)

// DefaultIgnorePatterns excludes version-control metadata, editor and OS
// droppings, and build caches from both sides of every pair.
var DefaultIgnorePatterns = []string{
	".git",
	".gitignore",
	"__pycache__",
	".obsidian",
	"node_modules",
	"*.tmp",
	"*.temp",
	".DS_Store",
	"Thumbs.db",
}

// IgnoreMatcher decides whether a path participates in sync at all.
// A path is ignored when any pattern matches anywhere in its string form:
// plain patterns match as substrings, glob patterns match against the
// path's base name. Applied uniformly to both sides so ignored files never
// appear in either file set.
type IgnoreMatcher struct {
	patterns []string
}

// NewIgnoreMatcher builds a matcher from the default pattern set plus any
// additional configured patterns.
func NewIgnoreMatcher(extra ...string) *IgnoreMatcher {
	patterns := make([]string, 0, len(DefaultIgnorePatterns)+len(extra))
	patterns = append(patterns, DefaultIgnorePatterns...)
	for _, p := range extra {
		p = strings.TrimSpace(p)
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return &IgnoreMatcher{patterns: patterns}
}

// ShouldIgnore reports whether the given path is excluded from sync.
func (m *IgnoreMatcher) ShouldIgnore(p string) bool {
	base := filepath.Base(p)
	for _, pattern := range m.patterns {
		if strings.ContainsAny(pattern, "*?[") {
			if ok, err := path.Match(pattern, base); err == nil && ok {
				return true
			}
			continue
		}
		if strings.Contains(p, pattern) {
			return true
		}
	}
	return false
}

// Patterns returns the active pattern set.
func (m *IgnoreMatcher) Patterns() []string {
	return m.patterns
}
