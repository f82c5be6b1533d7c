// internal/retention/engine.go - Long-lived owner of executor, scheduler and history pruning
package retention

import (
    "context"
    "sync"
    "time"

    "github.com/sirupsen/logrus"
    "promkeeper/internal/config"
    "promkeeper/internal/database"
    "promkeeper/internal/metrics"
)

// EventSink receives every completed execution attempt, e.g. for pushing
// live updates to dashboard clients.
type EventSink interface {
    ExecutionCompleted(record *database.ExecutionRecord)
}

// Notifier is told about failed real executions so operators hear about
// them without watching the history.
type Notifier interface {
    NotifyExecutionFailure(ctx context.Context, record *database.ExecutionRecord) error
}

// Engine is the single long-lived object hosting the retention core. It is
// constructed once at process start and torn down via context cancellation
// on shutdown; there is no global mutable state behind it.
type Engine struct {
    config    *config.Config
    store     database.Store
    catalog   Catalog
    executor  *Executor
    scheduler *Scheduler
    metrics   *metrics.Collector

    mu       sync.RWMutex
    sink     EventSink
    notifier Notifier
    running  bool
}

func NewEngine(cfg *config.Config, store database.Store, catalog Catalog, deleter Deleter, collector *metrics.Collector) (*Engine, error) {
    executor := NewExecutor(store, catalog, deleter, collector, cfg.Scheduler.ExecutionTimeout)

    scheduler, err := NewScheduler(store, executor, cfg.Scheduler, collector)
    if err != nil {
        return nil, err
    }

    engine := &Engine{
        config:    cfg,
        store:     store,
        catalog:   catalog,
        executor:  executor,
        scheduler: scheduler,
        metrics:   collector,
    }

    executor.onComplete = engine.handleCompleted

    return engine, nil
}

// SetEventSink registers the live-event receiver. Must be called before Start.
func (e *Engine) SetEventSink(sink EventSink) {
    e.mu.Lock()
    defer e.mu.Unlock()
    e.sink = sink
}

// SetNotifier registers the failure notifier. Must be called before Start.
func (e *Engine) SetNotifier(notifier Notifier) {
    e.mu.Lock()
    defer e.mu.Unlock()
    e.notifier = notifier
}

func (e *Engine) Start(ctx context.Context) error {
    e.mu.Lock()
    if e.running {
        e.mu.Unlock()
        return nil
    }
    e.running = true
    e.mu.Unlock()

    logrus.Info("Starting retention engine")

    go e.runHistoryCleanup(ctx)

    return e.scheduler.Start(ctx)
}

func (e *Engine) Stop() {
    e.mu.Lock()
    defer e.mu.Unlock()

    if !e.running {
        return
    }

    logrus.Info("Stopping retention engine")
    e.running = false
}

// ExecutePolicy runs one policy by id, manual trigger path. Shares the
// scheduler's reentrancy guard so manual and scheduled runs cannot overlap
// on the same policy.
func (e *Engine) ExecutePolicy(ctx context.Context, id string, mode Mode, force bool) (*ExecutionOutcome, error) {
    return e.scheduler.ExecutePolicy(ctx, id, mode, force)
}

// ExecuteAll runs every enabled policy in apply mode, manual trigger path.
func (e *Engine) ExecuteAll(ctx context.Context) ([]database.ExecutionRecord, error) {
    return e.scheduler.ExecuteAll(ctx)
}

// TestPattern compiles a pattern and reports what it matches against the
// live catalog without touching any policy or stored data.
func (e *Engine) TestPattern(ctx context.Context, pattern string) (*PatternMatchReport, error) {
    matcher, err := Compile(pattern)
    if err != nil {
        return nil, err
    }

    fetchCtx, cancel := context.WithTimeout(ctx, e.config.Scheduler.ExecutionTimeout)
    defer cancel()

    catalog, err := e.catalog.ListMetricNames(fetchCtx)
    if err != nil {
        return nil, err
    }

    matched := matcher.MatchAll(catalog)
    return buildReport(matcher, matched, nil), nil
}

func (e *Engine) SchedulerStatus() SchedulerStatus {
    return e.scheduler.Status()
}

// handleCompleted fans out every finished execution attempt to the event
// sink and, for failed real executions, the notifier.
func (e *Engine) handleCompleted(record *database.ExecutionRecord) {
    e.mu.RLock()
    sink := e.sink
    notifier := e.notifier
    e.mu.RUnlock()

    if sink != nil {
        sink.ExecutionCompleted(record)
    }

    if notifier != nil && !record.Success && !record.DryRun {
        go func() {
            ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
            defer cancel()

            if err := notifier.NotifyExecutionFailure(ctx, record); err != nil {
                logrus.WithError(err).WithField("policy", record.PolicyID).Error("Failed to send failure notification")
            }
        }()
    }
}

// runHistoryCleanup periodically prunes execution records older than the
// configured history retention.
func (e *Engine) runHistoryCleanup(ctx context.Context) {
    ticker := time.NewTicker(e.config.Database.CleanupInterval)
    defer ticker.Stop()

    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            cutoff := time.Now().Add(-e.config.Database.HistoryRetention)
            deleted, err := e.store.PruneExecutions(ctx, cutoff)
            if err != nil {
                logrus.WithError(err).Error("Failed to prune execution history")
                continue
            }
            if deleted > 0 {
                logrus.WithField("deleted", deleted).Debug("Execution history cleanup completed")
            }
        }
    }
}
