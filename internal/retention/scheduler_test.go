// internal/retention/scheduler_test.go
package retention

import (
    "context"
    "errors"
    "testing"
    "time"

    "promkeeper/internal/config"
    "promkeeper/internal/database"
)

func testSchedulerConfig() config.SchedulerConfig {
    runOnStart := false
    return config.SchedulerConfig{
        Interval:         time.Hour,
        RunOnStart:       &runOnStart,
        ExecutionTimeout: 5 * time.Second,
    }
}

func newTestScheduler(t *testing.T, store *fakeStore, catalog *fakeCatalog, deleter *fakeDeleter) *Scheduler {
    t.Helper()

    executor := NewExecutor(store, catalog, deleter, nil, 5*time.Second)
    scheduler, err := NewScheduler(store, executor, testSchedulerConfig(), nil)
    if err != nil {
        t.Fatalf("NewScheduler failed: %v", err)
    }
    return scheduler
}

func TestExecuteAllIsolatesFailures(t *testing.T) {
    store := newFakeStore()
    store.addPolicy(&database.RetentionPolicy{
        ID: "a", MetricNamePattern: "probe_a", RetentionDays: 7, Enabled: true,
    })
    store.addPolicy(&database.RetentionPolicy{
        ID: "b", MetricNamePattern: "metric[", RetentionDays: 7, Enabled: true,
    })
    store.addPolicy(&database.RetentionPolicy{
        ID: "c", MetricNamePattern: "probe_c", RetentionDays: 7, Enabled: true,
    })

    catalog := &fakeCatalog{names: []string{"probe_a", "probe_c"}}
    deleter := &fakeDeleter{}
    scheduler := newTestScheduler(t, store, catalog, deleter)

    records, err := scheduler.ExecuteAll(context.Background())
    if err != nil {
        t.Fatalf("ExecuteAll failed: %v", err)
    }

    // One record per policy, including the one that failed to compile
    if len(records) != 3 {
        t.Fatalf("got %d records, want 3", len(records))
    }
    if deleter.deleteCount() != 2 {
        t.Errorf("deleted %d metrics, want 2 (the two valid policies)", deleter.deleteCount())
    }

    failed := 0
    for _, r := range records {
        if !r.Success {
            failed++
            if r.PolicyID != "b" {
                t.Errorf("unexpected failed policy %s", r.PolicyID)
            }
        }
    }
    if failed != 1 {
        t.Errorf("got %d failed records, want 1", failed)
    }

    status := scheduler.Status()
    if status.LastSummary == nil {
        t.Fatal("batch should record a summary")
    }
    if status.LastSummary.Total != 3 || status.LastSummary.Succeeded != 2 || status.LastSummary.Failed != 1 {
        t.Errorf("summary = %+v, want total 3 succeeded 2 failed 1", status.LastSummary)
    }
}

func TestExecuteAllSkipsDisabled(t *testing.T) {
    store := newFakeStore()
    store.addPolicy(&database.RetentionPolicy{
        ID: "on", MetricNamePattern: "probe_a", RetentionDays: 7, Enabled: true,
    })
    store.addPolicy(&database.RetentionPolicy{
        ID: "off", MetricNamePattern: "probe_c", RetentionDays: 7, Enabled: false,
    })

    catalog := &fakeCatalog{names: []string{"probe_a", "probe_c"}}
    scheduler := newTestScheduler(t, store, catalog, &fakeDeleter{})

    records, err := scheduler.ExecuteAll(context.Background())
    if err != nil {
        t.Fatalf("ExecuteAll failed: %v", err)
    }

    if len(records) != 1 {
        t.Fatalf("got %d records, want 1 (disabled policy never visited)", len(records))
    }
    if records[0].PolicyID != "on" {
        t.Errorf("executed policy %s, want %q", records[0].PolicyID, "on")
    }
}

func TestExecutePolicyBusyGuard(t *testing.T) {
    store := newFakeStore()
    store.addPolicy(testPolicy("p1"))

    catalog := &fakeCatalog{names: []string{"probe_success"}}
    scheduler := newTestScheduler(t, store, catalog, &fakeDeleter{})

    if !scheduler.acquire("p1") {
        t.Fatal("first acquire should succeed")
    }

    _, err := scheduler.ExecutePolicy(context.Background(), "p1", ModeApply, false)
    if !errors.Is(err, ErrPolicyBusy) {
        t.Fatalf("expected ErrPolicyBusy while in flight, got %v", err)
    }

    status := scheduler.Status()
    if len(status.InFlight) != 1 || status.InFlight[0] != "p1" {
        t.Errorf("InFlight = %v, want [p1]", status.InFlight)
    }

    scheduler.release("p1")

    if _, err := scheduler.ExecutePolicy(context.Background(), "p1", ModeApply, false); err != nil {
        t.Fatalf("execution after release failed: %v", err)
    }
}

func TestExecutePolicyUnknownID(t *testing.T) {
    store := newFakeStore()
    scheduler := newTestScheduler(t, store, &fakeCatalog{}, &fakeDeleter{})

    _, err := scheduler.ExecutePolicy(context.Background(), "missing", ModeApply, false)
    if !errors.Is(err, database.ErrNotFound) {
        t.Fatalf("expected ErrNotFound, got %v", err)
    }
}

func TestSchedulerRunOnStart(t *testing.T) {
    store := newFakeStore()
    store.addPolicy(testPolicy("p1"))

    catalog := &fakeCatalog{names: []string{"probe_success"}}
    deleter := &fakeDeleter{}
    executor := NewExecutor(store, catalog, deleter, nil, 5*time.Second)

    runOnStart := true
    cfg := config.SchedulerConfig{
        Interval:         time.Hour,
        RunOnStart:       &runOnStart,
        ExecutionTimeout: 5 * time.Second,
    }

    scheduler, err := NewScheduler(store, executor, cfg, nil)
    if err != nil {
        t.Fatalf("NewScheduler failed: %v", err)
    }

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    if err := scheduler.Start(ctx); err != nil {
        t.Fatalf("Start failed: %v", err)
    }

    deadline := time.After(2 * time.Second)
    for deleter.deleteCount() == 0 {
        select {
        case <-deadline:
            t.Fatal("run-on-start batch never executed")
        case <-time.After(10 * time.Millisecond):
        }
    }
}

func TestNewSchedulerRejectsBadCron(t *testing.T) {
    store := newFakeStore()
    executor := NewExecutor(store, &fakeCatalog{}, &fakeDeleter{}, nil, time.Second)

    cfg := testSchedulerConfig()
    cfg.Cron = "not a cron expression"

    if _, err := NewScheduler(store, executor, cfg, nil); err == nil {
        t.Fatal("invalid cron expression should fail scheduler construction")
    }
}
