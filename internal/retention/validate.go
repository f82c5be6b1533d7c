// internal/retention/validate.go - Policy input validation
package retention

import (
    "fmt"
    "strings"

    "promkeeper/internal/database"
)

const (
    // MinRetentionDays is one minute expressed in days.
    MinRetentionDays = 1.0 / 1440
    // MaxRetentionDays caps retention at roughly ten years.
    MaxRetentionDays = 3650
)

// ValidatePolicy checks a policy before it is created or updated. The pattern
// is trimmed in place so the stored form matches what was validated.
func ValidatePolicy(policy *database.RetentionPolicy) error {
    policy.MetricNamePattern = strings.TrimSpace(policy.MetricNamePattern)

    if policy.MetricNamePattern == "" {
        return fmt.Errorf("metric name pattern cannot be empty")
    }

    if _, err := Compile(policy.MetricNamePattern); err != nil {
        return err
    }

    if policy.RetentionDays < MinRetentionDays {
        return fmt.Errorf("retention days must be at least %.4f (1 minute)", MinRetentionDays)
    }
    if policy.RetentionDays > MaxRetentionDays {
        return fmt.Errorf("retention days cannot exceed %d (10 years)", MaxRetentionDays)
    }

    return nil
}
