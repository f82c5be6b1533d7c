// internal/retention/executor.go - Single-policy execution in apply or dry-run mode
package retention

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/sirupsen/logrus"
    "promkeeper/internal/database"
    "promkeeper/internal/metrics"
)

// Catalog exposes the full list of metric names known to the monitoring store.
type Catalog interface {
    ListMetricNames(ctx context.Context) ([]string, error)
}

// Deleter instructs the monitoring store to delete series data for one metric
// up to the given cutoff, reporting how many series were affected.
type Deleter interface {
    DeleteSeries(ctx context.Context, metric string, end time.Time) (int, error)
}

// Mode selects between real execution and side-effect-free simulation.
type Mode string

const (
    ModeApply  Mode = "apply"
    ModeDryRun Mode = "dry_run"
)

// matchSampleLimit bounds the metric name sample in a PatternMatchReport.
const matchSampleLimit = 50

// PatternMatchReport describes what a pattern matched, for dry runs and the
// test-pattern endpoint. Never persisted.
type PatternMatchReport struct {
    InputPattern    string     `json:"input_pattern"`
    RegexPattern    string     `json:"regex_pattern"`
    MatchesCount    int        `json:"matches_count"`
    MatchingMetrics []string   `json:"matching_metrics"`
    Cutoff          *time.Time `json:"cutoff,omitempty"`
}

// ExecutionOutcome bundles the record produced by one execution attempt with
// the dry-run report when applicable.
type ExecutionOutcome struct {
    Record *database.ExecutionRecord `json:"record"`
    Report *PatternMatchReport       `json:"report,omitempty"`
}

type Executor struct {
    store   database.Store
    catalog Catalog
    deleter Deleter
    metrics *metrics.Collector
    timeout time.Duration

    // onComplete is invoked after every execution attempt, dry-run or real.
    onComplete func(*database.ExecutionRecord)

    now func() time.Time
}

func NewExecutor(store database.Store, catalog Catalog, deleter Deleter, collector *metrics.Collector, timeout time.Duration) *Executor {
    return &Executor{
        store:   store,
        catalog: catalog,
        deleter: deleter,
        metrics: collector,
        timeout: timeout,
        now:     time.Now,
    }
}

// Execute runs one policy. Every attempt yields exactly one ExecutionRecord;
// apply-mode records are persisted to the execution history and stamp the
// policy's last_executed regardless of success. Dry runs never invoke the
// deleter, never persist, and never touch last_executed.
//
// The returned error classifies the failure (see errors.go); when a record
// exists it is returned alongside the error so callers can inspect counts.
func (e *Executor) Execute(ctx context.Context, policy *database.RetentionPolicy, mode Mode, force bool) (*ExecutionOutcome, error) {
    if !policy.Enabled && !force {
        return nil, ErrPolicyDisabled
    }

    start := e.now()

    logrus.WithFields(logrus.Fields{
        "policy":  policy.ID,
        "pattern": policy.MetricNamePattern,
        "days":    policy.RetentionDays,
        "mode":    mode,
    }).Info("Executing retention policy")

    // Compile before any catalog access so invalid patterns never cost a fetch
    matcher, err := Compile(policy.MetricNamePattern)
    if err != nil {
        return e.finish(ctx, policy, mode, start, 0, 0, err)
    }

    fetchCtx, cancel := context.WithTimeout(ctx, e.timeout)
    catalog, err := e.catalog.ListMetricNames(fetchCtx)
    cancel()
    if err != nil {
        return e.finish(ctx, policy, mode, start, 0, 0, err)
    }

    matched := matcher.MatchAll(catalog)
    cutoff := Cutoff(policy.RetentionDays, start)

    if mode == ModeDryRun {
        outcome, _ := e.finish(ctx, policy, mode, start, len(matched), 0, nil)
        outcome.Report = buildReport(matcher, matched, &cutoff)
        return outcome, nil
    }

    // A policy matching nothing is a legitimate, non-failing outcome
    deleted := 0
    failed := make(map[string]error)

    for _, metric := range matched {
        deleteCtx, cancel := context.WithTimeout(ctx, e.timeout)
        n, err := e.deleter.DeleteSeries(deleteCtx, metric, cutoff)
        cancel()

        if err != nil {
            // Keep going: one metric's failure must not abort the rest
            failed[metric] = err
            logrus.WithError(err).WithFields(logrus.Fields{
                "policy": policy.ID,
                "metric": metric,
            }).Error("Failed to delete metric data")
            continue
        }

        deleted += n
    }

    var execErr error
    if len(failed) > 0 {
        partial := &PartialDeletionError{Matched: len(matched), Failed: failed}
        if len(failed) == len(matched) && allUnavailable(failed) {
            // Every call failed to reach the store: whole-store outage, not partial
            execErr = fmt.Errorf("%w: %s", ErrDeletionUnavailable, partial.Error())
        } else {
            execErr = partial
        }
    }

    return e.finish(ctx, policy, mode, start, len(matched), deleted, execErr)
}

// finish builds the ExecutionRecord, persists it (apply mode), stamps
// last_executed (apply mode), records metrics and fires the completion hook.
func (e *Executor) finish(ctx context.Context, policy *database.RetentionPolicy, mode Mode, start time.Time, found, deleted int, execErr error) (*ExecutionOutcome, error) {
    completed := e.now()

    record := &database.ExecutionRecord{
        PolicyID:          policy.ID,
        MetricNamePattern: policy.MetricNamePattern,
        MetricsFound:      found,
        SeriesDeleted:     deleted,
        ExecutionTime:     completed,
        Duration:          float64(completed.Sub(start)) / float64(time.Millisecond),
        Success:           execErr == nil,
        DryRun:            mode == ModeDryRun,
    }
    if execErr != nil {
        record.ErrorMessage = execErr.Error()
    }

    if mode == ModeApply {
        if err := e.store.AppendExecution(ctx, record); err != nil {
            logrus.WithError(err).WithField("policy", policy.ID).Error("Failed to record execution")
        }

        // A failed attempt is still the last attempt made
        if err := e.store.SetLastExecuted(ctx, policy.ID, completed); err != nil {
            logrus.WithError(err).WithField("policy", policy.ID).Error("Failed to update last_executed")
        }
    }

    if e.metrics != nil {
        e.metrics.RecordExecution(string(mode), record.Success, completed.Sub(start), found, deleted)
    }

    if e.onComplete != nil {
        e.onComplete(record)
    }

    logFields := logrus.Fields{
        "policy":         policy.ID,
        "mode":           mode,
        "metrics_found":  found,
        "series_deleted": deleted,
        "success":        record.Success,
    }
    if execErr != nil {
        logrus.WithFields(logFields).WithError(execErr).Warn("Retention policy execution failed")
    } else {
        logrus.WithFields(logFields).Info("Retention policy execution completed")
    }

    return &ExecutionOutcome{Record: record}, execErr
}

func buildReport(matcher *Matcher, matched []string, cutoff *time.Time) *PatternMatchReport {
    sample := matched
    if len(sample) > matchSampleLimit {
        sample = sample[:matchSampleLimit]
    }

    return &PatternMatchReport{
        InputPattern:    matcher.Pattern(),
        RegexPattern:    matcher.Regex(),
        MatchesCount:    len(matched),
        MatchingMetrics: sample,
        Cutoff:          cutoff,
    }
}

func allUnavailable(failed map[string]error) bool {
    for _, err := range failed {
        if !errors.Is(err, ErrDeletionUnavailable) {
            return false
        }
    }
    return true
}
