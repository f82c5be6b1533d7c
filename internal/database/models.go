// internal/database/models.go
package database

import (
    "time"
)

// RetentionPolicy binds a metric-name pattern to a retention window.
// Patterns support glob wildcards (* and ?) and raw regular expressions.
type RetentionPolicy struct {
    ID                string     `json:"id"`
    MetricNamePattern string     `json:"metric_name_pattern"`
    RetentionDays     float64    `json:"retention_days"`
    Description       string     `json:"description,omitempty"`
    Enabled           bool       `json:"enabled"`
    CreatedAt         time.Time  `json:"created_at"`
    UpdatedAt         time.Time  `json:"updated_at"`
    LastExecuted      *time.Time `json:"last_executed,omitempty"`
}

// ExecutionRecord is the audit entry written for every execution attempt,
// dry-run or real, manual or scheduled. The pattern is a snapshot taken at
// execution time since the policy may change afterwards.
type ExecutionRecord struct {
    ID                string    `json:"id"`
    PolicyID          string    `json:"policy_id"`
    MetricNamePattern string    `json:"metric_name_pattern"`
    MetricsFound      int       `json:"metrics_found"`
    SeriesDeleted     int       `json:"series_deleted"`
    ExecutionTime     time.Time `json:"execution_time"`
    Duration          float64   `json:"duration_ms"`
    Success           bool      `json:"success"`
    DryRun            bool      `json:"dry_run"`
    ErrorMessage      string    `json:"error_message,omitempty"`
}

type PolicyFilters struct {
    Enabled *bool
}

type ExecutionFilters struct {
    PolicyID string
    Limit    int
}
