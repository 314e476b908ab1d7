package instrument

import (
	"strings"
)

// ExactMatcher matches "Type::Name" patterns exactly, or a bare "Name"
// on any type.
type ExactMatcher struct {
	patterns map[string]bool
}

// NewExactMatcher creates a matcher from a list of patterns.
func NewExactMatcher(patterns []string) *ExactMatcher {
	m := &ExactMatcher{patterns: make(map[string]bool)}
	for _, p := range patterns {
		m.patterns[p] = true
	}
	return m
}

// MatchMethod returns true if the method matches any pattern.
func (m *ExactMatcher) MatchMethod(name string) bool {
	if m.patterns[name] {
		return true
	}
	_, member, ok := splitMethod(name)
	return ok && m.patterns[member]
}

// WildcardMatcher matches method patterns with wildcard support.
//
// Supports patterns like:
//   - "Type::Name" - exact match
//   - "Name" - matches the member on any type
//   - "Type::*" - matches every member of a type
//   - "Namespace.*" - matches every member of every type under a namespace
//   - "*" - matches everything
type WildcardMatcher struct {
	exact    map[string]bool // "Type::Name"
	names    map[string]bool // unqualified "Name"
	types    map[string]bool // "Type::*"
	prefixes []string        // "Namespace.*" kept as "Namespace."
	matchAll bool
}

// NewWildcardMatcher creates a matcher with wildcard support.
func NewWildcardMatcher(patterns []string) *WildcardMatcher {
	m := &WildcardMatcher{
		exact: make(map[string]bool),
		names: make(map[string]bool),
		types: make(map[string]bool),
	}
	for _, p := range patterns {
		switch {
		case p == "*":
			m.matchAll = true
		case strings.HasSuffix(p, "::*"):
			m.types[strings.TrimSuffix(p, "::*")] = true
		case strings.HasSuffix(p, ".*"):
			m.prefixes = append(m.prefixes, strings.TrimSuffix(p, "*"))
		case strings.Contains(p, "::"):
			m.exact[p] = true
		default:
			m.names[p] = true
		}
	}
	return m
}

// MatchMethod returns true if the method matches any pattern.
func (m *WildcardMatcher) MatchMethod(name string) bool {
	if m.matchAll || m.exact[name] {
		return true
	}
	typ, member, ok := splitMethod(name)
	if !ok {
		return false
	}
	if m.types[typ] || m.names[member] {
		return true
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(typ, p) {
			return true
		}
	}
	return false
}

// PrefixMatcher matches methods whose "Type::Name" form starts with any
// prefix.
type PrefixMatcher struct {
	prefixes []string
}

// NewPrefixMatcher creates a matcher from a list of prefixes.
func NewPrefixMatcher(prefixes []string) *PrefixMatcher {
	return &PrefixMatcher{prefixes: prefixes}
}

// MatchMethod returns true if the method starts with any prefix.
func (m *PrefixMatcher) MatchMethod(name string) bool {
	for _, p := range m.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// CompositeMatcher combines multiple matchers.
type CompositeMatcher struct {
	matchers []MethodMatcher
}

// NewCompositeMatcher creates a matcher that matches if any sub-matcher matches.
func NewCompositeMatcher(matchers ...MethodMatcher) *CompositeMatcher {
	return &CompositeMatcher{matchers: matchers}
}

// MatchMethod returns true if any sub-matcher matches.
func (m *CompositeMatcher) MatchMethod(name string) bool {
	for _, matcher := range m.matchers {
		if matcher != nil && matcher.MatchMethod(name) {
			return true
		}
	}
	return false
}

// splitMethod splits "Type::Name" at the last separator.
func splitMethod(name string) (typ, member string, ok bool) {
	i := strings.LastIndex(name, "::")
	if i < 0 {
		return "", "", false
	}
	return name[:i], name[i+2:], true
}
