// internal/retention/pattern_test.go
package retention

import (
    "errors"
    "reflect"
    "testing"
)

func TestCompileGlobTranslation(t *testing.T) {
    tests := []struct {
        name    string
        pattern string
        regex   string
    }{
        {"star wildcard", "node_*", "node_.*"},
        {"question mark", "up?", "up."},
        {"mixed wildcards", "http_*_total?", "http_.*_total."},
        {"no wildcards passes through", "node_cpu_seconds_total", "node_cpu_seconds_total"},
        {"regex untouched without wildcards", "^go_(gc|mem)_.+$", "^go_(gc|mem)_.+$"},
        {"dots are not escaped", "cpu.load", "cpu.load"},
    }

    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            m, err := Compile(tt.pattern)
            if err != nil {
                t.Fatalf("Compile(%q) failed: %v", tt.pattern, err)
            }
            if m.Regex() != tt.regex {
                t.Errorf("Compile(%q).Regex() = %q, want %q", tt.pattern, m.Regex(), tt.regex)
            }
            if m.Pattern() != tt.pattern {
                t.Errorf("Compile(%q).Pattern() = %q, want original pattern", tt.pattern, m.Pattern())
            }
        })
    }
}

func TestCompileInvalidPattern(t *testing.T) {
    _, err := Compile("metric[")
    if err == nil {
        t.Fatal("Compile of unterminated character class should fail")
    }

    var patternErr *InvalidPatternError
    if !errors.As(err, &patternErr) {
        t.Fatalf("expected *InvalidPatternError, got %T: %v", err, err)
    }
    if patternErr.Pattern != "metric[" {
        t.Errorf("InvalidPatternError.Pattern = %q, want %q", patternErr.Pattern, "metric[")
    }
    if patternErr.Unwrap() == nil {
        t.Error("InvalidPatternError should wrap the regexp error")
    }
}

func TestMatchStringUnanchored(t *testing.T) {
    tests := []struct {
        pattern string
        name    string
        want    bool
    }{
        // Literal patterns match as substrings unless explicitly anchored
        {"up", "up", true},
        {"up", "node_cpu_up_total", true},
        {"^up$", "node_cpu_up_total", false},
        {"^up$", "up", true},
        {"probe_*", "probe_success", true},
        {"probe_*", "my_probe_duration", true},
        {"^probe_.*", "my_probe_duration", false},
        {"node_?load", "node_1load", true},
        {"node_?load", "node_load", false},
    }

    for _, tt := range tests {
        m, err := Compile(tt.pattern)
        if err != nil {
            t.Fatalf("Compile(%q) failed: %v", tt.pattern, err)
        }
        if got := m.MatchString(tt.name); got != tt.want {
            t.Errorf("Compile(%q).MatchString(%q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
        }
    }
}

func TestMatchAll(t *testing.T) {
    catalog := []string{
        "probe_success",
        "node_load1",
        "probe_duration_seconds",
        "up",
        "probe_success", // duplicate catalog entry
    }

    m, err := Compile("probe_*")
    if err != nil {
        t.Fatalf("Compile failed: %v", err)
    }

    got := m.MatchAll(catalog)
    want := []string{"probe_success", "probe_duration_seconds"}
    if !reflect.DeepEqual(got, want) {
        t.Errorf("MatchAll = %v, want %v (catalog order, deduplicated)", got, want)
    }
}

func TestMatchAllEmptyCatalog(t *testing.T) {
    m, err := Compile("anything_*")
    if err != nil {
        t.Fatalf("Compile failed: %v", err)
    }

    got := m.MatchAll(nil)
    if len(got) != 0 {
        t.Errorf("MatchAll(nil) = %v, want empty", got)
    }
}
