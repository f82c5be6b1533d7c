// internal/retention/errors.go - Error taxonomy for policy execution
package retention

import (
    "errors"
    "fmt"
    "sort"
    "strings"
)

var (
    // ErrPolicyDisabled rejects manual execution of a disabled policy.
    ErrPolicyDisabled = errors.New("policy is disabled")

    // ErrPolicyBusy rejects a second concurrent execution attempt against
    // a policy that is already executing.
    ErrPolicyBusy = errors.New("policy execution already in progress")

    // ErrCatalogUnavailable marks a failed or timed-out metric catalog fetch.
    ErrCatalogUnavailable = errors.New("metric catalog unavailable")

    // ErrDeletionUnavailable marks a failed or timed-out deletion call.
    ErrDeletionUnavailable = errors.New("deletion store unavailable")
)

// InvalidPatternError reports a pattern that does not compile to a valid
// regular expression after glob translation.
type InvalidPatternError struct {
    Pattern string
    Err     error
}

func (e *InvalidPatternError) Error() string {
    return fmt.Sprintf("invalid metric name pattern %q: %v", e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error {
    return e.Err
}

// PartialDeletionError aggregates per-metric deletion failures within one
// policy execution. The remaining metrics were still processed.
type PartialDeletionError struct {
    Matched int
    Failed  map[string]error
}

func (e *PartialDeletionError) Error() string {
    names := make([]string, 0, len(e.Failed))
    for name := range e.Failed {
        names = append(names, name)
    }
    sort.Strings(names)

    parts := make([]string, 0, len(names))
    for _, name := range names {
        parts = append(parts, fmt.Sprintf("%s: %v", name, e.Failed[name]))
    }

    return fmt.Sprintf("deletion failed for %d of %d matched metrics: %s",
        len(e.Failed), e.Matched, strings.Join(parts, "; "))
}
