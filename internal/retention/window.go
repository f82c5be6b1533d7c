// internal/retention/window.go - Retention window computation
package retention

import (
    "fmt"
    "time"
)

const secondsPerDay = 86400

// Cutoff returns the instant before which data is eligible for deletion under
// a retention window of retentionDays (fractional days supported). Callers
// validate the retention value upstream; a non-positive value here means a
// broken caller, so Cutoff panics rather than guessing.
func Cutoff(retentionDays float64, now time.Time) time.Time {
    if retentionDays <= 0 {
        panic(fmt.Sprintf("retention: non-positive retention days: %v", retentionDays))
    }

    window := time.Duration(retentionDays * secondsPerDay * float64(time.Second))
    return now.Add(-window)
}
