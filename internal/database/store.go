// internal/database/store.go
package database

import (
    "context"
    "errors"
    "time"
)

// ErrNotFound is returned when a policy id does not exist.
var ErrNotFound = errors.New("policy not found")

// ErrDuplicatePattern is returned when another policy already uses the same pattern.
var ErrDuplicatePattern = errors.New("policy with this pattern already exists")

// Store defines the interface for database operations
type Store interface {
    // Policy operations
    GetPolicies(ctx context.Context, filters PolicyFilters) ([]RetentionPolicy, error)
    GetPolicy(ctx context.Context, id string) (*RetentionPolicy, error)
    CreatePolicy(ctx context.Context, policy *RetentionPolicy) error
    UpdatePolicy(ctx context.Context, policy *RetentionPolicy) error
    DeletePolicy(ctx context.Context, id string) error

    // SetLastExecuted stamps the most recent execution attempt. A missing
    // policy is not an error: the policy may have been deleted while an
    // execution against its loaded copy was still in flight.
    SetLastExecuted(ctx context.Context, id string, t time.Time) error

    // Execution history operations
    AppendExecution(ctx context.Context, record *ExecutionRecord) error
    GetExecutions(ctx context.Context, filters ExecutionFilters) ([]ExecutionRecord, error)
    PruneExecutions(ctx context.Context, cutoffTime time.Time) (int, error)

    // Stats for the health/stats endpoints
    GetStats(ctx context.Context) (*StoreStats, error)

    // Close the database connection
    Close() error
}

// StoreStats provides information about database size and contents
type StoreStats struct {
    TotalPolicies   int   `json:"total_policies"`
    EnabledPolicies int   `json:"enabled_policies"`
    TotalExecutions int   `json:"total_executions"`
    DatabaseSize    int64 `json:"database_size_bytes"`
}
