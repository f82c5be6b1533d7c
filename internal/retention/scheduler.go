// internal/retention/scheduler.go - Background batch execution with per-policy reentrancy guard
package retention

import (
    "context"
    "errors"
    "fmt"
    "sort"
    "sync"
    "time"

    "github.com/robfig/cron/v3"
    "github.com/sirupsen/logrus"
    "promkeeper/internal/config"
    "promkeeper/internal/database"
    "promkeeper/internal/metrics"
)

// TickSummary aggregates one batch run for observability. Per-policy detail
// is already persisted in the execution history by the time it is built.
type TickSummary struct {
    StartedAt     time.Time `json:"started_at"`
    FinishedAt    time.Time `json:"finished_at"`
    Total         int       `json:"total"`
    Succeeded     int       `json:"succeeded"`
    Failed        int       `json:"failed"`
    Skipped       int       `json:"skipped"`
    SeriesDeleted int       `json:"series_deleted"`
}

// SchedulerStatus is a point-in-time snapshot for the status endpoint.
type SchedulerStatus struct {
    Running     bool         `json:"running"`
    Interval    string       `json:"interval"`
    Cron        string       `json:"cron,omitempty"`
    NextRun     *time.Time   `json:"next_run,omitempty"`
    LastRun     *time.Time   `json:"last_run,omitempty"`
    LastSummary *TickSummary `json:"last_summary,omitempty"`
    InFlight    []string     `json:"in_flight"`
}

// Scheduler drives periodic, unattended execution of all enabled policies.
// It owns the one piece of shared state in the core: the in-flight policy
// set serializing concurrent attempts against the same policy id. Scheduled
// ticks, manual runs and dry runs all go through the same guard and the
// same Executor entry point.
type Scheduler struct {
    store    database.Store
    executor *Executor
    cfg      config.SchedulerConfig
    schedule cron.Schedule
    metrics  *metrics.Collector

    mu          sync.Mutex
    inflight    map[string]bool
    running     bool
    lastRun     *time.Time
    nextRun     *time.Time
    lastSummary *TickSummary
}

func NewScheduler(store database.Store, executor *Executor, cfg config.SchedulerConfig, collector *metrics.Collector) (*Scheduler, error) {
    var schedule cron.Schedule
    if cfg.Cron != "" {
        parsed, err := cron.ParseStandard(cfg.Cron)
        if err != nil {
            return nil, fmt.Errorf("invalid cron expression %q: %w", cfg.Cron, err)
        }
        schedule = parsed
    }

    return &Scheduler{
        store:    store,
        executor: executor,
        cfg:      cfg,
        schedule: schedule,
        metrics:  collector,
        inflight: make(map[string]bool),
    }, nil
}

// Start launches the timer loop. The scheduler runs for the lifetime of the
// process; cancelling ctx is the only way to tear it down.
func (s *Scheduler) Start(ctx context.Context) error {
    s.mu.Lock()
    if s.running {
        s.mu.Unlock()
        return nil
    }
    s.running = true
    s.mu.Unlock()

    fields := logrus.Fields{"interval": s.cfg.Interval}
    if s.cfg.Cron != "" {
        fields["cron"] = s.cfg.Cron
    }
    logrus.WithFields(fields).Info("Starting retention scheduler")

    go s.run(ctx)
    return nil
}

func (s *Scheduler) run(ctx context.Context) {
    defer func() {
        s.mu.Lock()
        s.running = false
        s.mu.Unlock()
    }()

    if s.cfg.RunOnStart == nil || *s.cfg.RunOnStart {
        s.tick(ctx)
    }

    for {
        next := s.nextAfter(time.Now())
        s.mu.Lock()
        s.nextRun = &next
        s.mu.Unlock()

        timer := time.NewTimer(time.Until(next))
        select {
        case <-ctx.Done():
            timer.Stop()
            logrus.Info("Retention scheduler stopped")
            return
        case <-timer.C:
            s.tick(ctx)
        }
    }
}

func (s *Scheduler) nextAfter(t time.Time) time.Time {
    if s.schedule != nil {
        return s.schedule.Next(t)
    }
    return t.Add(s.cfg.Interval)
}

// tick runs one scheduled batch. Nothing escaping a tick may kill the loop,
// so the whole batch sits behind a recover barrier.
func (s *Scheduler) tick(ctx context.Context) {
    defer func() {
        if r := recover(); r != nil {
            logrus.WithField("panic", r).Error("Retention tick panicked")
        }
    }()

    if s.metrics != nil {
        s.metrics.RecordSchedulerTick()
    }

    if _, err := s.ExecuteAll(ctx); err != nil {
        logrus.WithError(err).Error("Scheduled retention run failed")
    }
}

// ExecuteAll runs every enabled policy in apply mode. Disabled policies are
// never visited. One policy's failure is contained in its own record and the
// batch proceeds to the next policy.
func (s *Scheduler) ExecuteAll(ctx context.Context) ([]database.ExecutionRecord, error) {
    enabled := true
    policies, err := s.store.GetPolicies(ctx, database.PolicyFilters{Enabled: &enabled})
    if err != nil {
        return nil, fmt.Errorf("failed to list enabled policies: %w", err)
    }

    summary := &TickSummary{
        StartedAt: time.Now(),
        Total:     len(policies),
    }

    records := make([]database.ExecutionRecord, 0, len(policies))

    for i := range policies {
        policy := policies[i]

        outcome, err := s.executeGuarded(ctx, &policy, ModeApply, false)
        if errors.Is(err, ErrPolicyBusy) {
            logrus.WithField("policy", policy.ID).Warn("Policy already executing, skipping in this batch")
            summary.Skipped++
            continue
        }

        if outcome != nil && outcome.Record != nil {
            records = append(records, *outcome.Record)
            summary.SeriesDeleted += outcome.Record.SeriesDeleted
        }

        if err != nil {
            summary.Failed++
        } else {
            summary.Succeeded++
        }
    }

    summary.FinishedAt = time.Now()

    s.mu.Lock()
    s.lastRun = &summary.FinishedAt
    s.lastSummary = summary
    s.mu.Unlock()

    logrus.WithFields(logrus.Fields{
        "policies":       summary.Total,
        "succeeded":      summary.Succeeded,
        "failed":         summary.Failed,
        "skipped":        summary.Skipped,
        "series_deleted": summary.SeriesDeleted,
    }).Info("Retention batch completed")

    return records, nil
}

// ExecutePolicy runs a single policy by id through the shared guard, in
// either mode. Used by the manual execute and dry-run paths.
func (s *Scheduler) ExecutePolicy(ctx context.Context, id string, mode Mode, force bool) (*ExecutionOutcome, error) {
    policy, err := s.store.GetPolicy(ctx, id)
    if err != nil {
        return nil, err
    }

    return s.executeGuarded(ctx, policy, mode, force)
}

func (s *Scheduler) executeGuarded(ctx context.Context, policy *database.RetentionPolicy, mode Mode, force bool) (*ExecutionOutcome, error) {
    if !s.acquire(policy.ID) {
        return nil, ErrPolicyBusy
    }
    defer s.release(policy.ID)

    return s.executor.Execute(ctx, policy, mode, force)
}

// acquire marks a policy as in flight. Returns false when it already is.
func (s *Scheduler) acquire(id string) bool {
    s.mu.Lock()
    defer s.mu.Unlock()

    if s.inflight[id] {
        return false
    }
    s.inflight[id] = true
    return true
}

func (s *Scheduler) release(id string) {
    s.mu.Lock()
    defer s.mu.Unlock()
    delete(s.inflight, id)
}

func (s *Scheduler) Status() SchedulerStatus {
    s.mu.Lock()
    defer s.mu.Unlock()

    inFlight := make([]string, 0, len(s.inflight))
    for id := range s.inflight {
        inFlight = append(inFlight, id)
    }
    sort.Strings(inFlight)

    return SchedulerStatus{
        Running:     s.running,
        Interval:    s.cfg.Interval.String(),
        Cron:        s.cfg.Cron,
        NextRun:     s.nextRun,
        LastRun:     s.lastRun,
        LastSummary: s.lastSummary,
        InFlight:    inFlight,
    }
}
