// internal/retention/pattern.go - Metric name pattern compilation and matching
package retention

import (
    "regexp"
    "strings"
)

// Matcher is a compiled metric-name pattern. Matching is unanchored: the
// pattern "up" matches any metric name containing "up" unless the operator
// anchors it with ^/$ explicitly. Glob wildcards translate to regex (* -> .*,
// ? -> .) while every other regex metacharacter passes through uninterpreted,
// so "cpu.load" also matches "cpuXload". Both behaviors are documented to
// operators rather than papered over.
type Matcher struct {
    raw   string
    regex string
    re    *regexp.Regexp
}

// Compile translates a raw pattern (literal, glob or regex) into a Matcher.
// Returns *InvalidPatternError when the translated pattern is not a valid
// regular expression.
func Compile(pattern string) (*Matcher, error) {
    translated := translateGlob(pattern)

    re, err := regexp.Compile(translated)
    if err != nil {
        return nil, &InvalidPatternError{Pattern: pattern, Err: err}
    }

    return &Matcher{
        raw:   pattern,
        regex: translated,
        re:    re,
    }, nil
}

// translateGlob rewrites glob wildcards into their regex equivalents. Patterns
// without wildcards are used as regular expressions as-is.
func translateGlob(pattern string) string {
    if !strings.ContainsAny(pattern, "*?") {
        return pattern
    }

    translated := strings.ReplaceAll(pattern, "*", ".*")
    translated = strings.ReplaceAll(translated, "?", ".")
    return translated
}

// Pattern returns the original pattern text.
func (m *Matcher) Pattern() string {
    return m.raw
}

// Regex returns the canonical regex text for display.
func (m *Matcher) Regex() string {
    return m.regex
}

// MatchString reports whether the metric name matches the pattern.
func (m *Matcher) MatchString(name string) bool {
    return m.re.MatchString(name)
}

// MatchAll returns the distinct catalog entries matching the pattern,
// preserving catalog order. Pure function: no side effects, no I/O.
func (m *Matcher) MatchAll(catalog []string) []string {
    matched := make([]string, 0)
    seen := make(map[string]bool, len(catalog))

    for _, name := range catalog {
        if seen[name] {
            continue
        }
        seen[name] = true

        if m.re.MatchString(name) {
            matched = append(matched, name)
        }
    }

    return matched
}
