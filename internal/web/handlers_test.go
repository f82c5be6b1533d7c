// internal/web/handlers_test.go
package web

import (
    "bytes"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "path/filepath"
    "sync/atomic"
    "testing"
    "time"

    "promkeeper/internal/config"
    "promkeeper/internal/database"
    "promkeeper/internal/metrics"
    "promkeeper/internal/promapi"
    "promkeeper/internal/retention"
)

// testEnv wires a real store and retention engine against a stub Prometheus.
type testEnv struct {
    server  *Server
    store   database.Store
    deletes *int64
}

func newTestEnv(t *testing.T) *testEnv {
    t.Helper()

    var deletes int64
    prom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        switch r.URL.Path {
        case "/api/v1/label/__name__/values":
            w.Write([]byte(`{"status":"success","data":["probe_success","probe_duration_seconds","node_load1","up"]}`))
        case "/api/v1/admin/tsdb/delete_series":
            atomic.AddInt64(&deletes, 1)
            w.WriteHeader(http.StatusNoContent)
        case "/api/v1/query":
            w.Write([]byte(`{"status":"success"}`))
        default:
            w.WriteHeader(http.StatusNotFound)
        }
    }))
    t.Cleanup(prom.Close)

    store, err := database.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
    if err != nil {
        t.Fatalf("NewBoltStore failed: %v", err)
    }
    t.Cleanup(func() { store.Close() })

    runOnStart := false
    cfg := &config.Config{
        Prometheus: config.PrometheusConfig{URL: prom.URL, Timeout: 5 * time.Second},
        Scheduler: config.SchedulerConfig{
            Interval:         time.Hour,
            RunOnStart:       &runOnStart,
            ExecutionTimeout: 5 * time.Second,
        },
        Logging: config.LoggingConfig{Level: "error"},
    }

    collector := metrics.NewCollector(store)
    client := promapi.NewClient(cfg.Prometheus)

    engine, err := retention.NewEngine(cfg, store, client, client, collector)
    if err != nil {
        t.Fatalf("NewEngine failed: %v", err)
    }

    return &testEnv{
        server:  NewServer(cfg, store, engine, collector, client),
        store:   store,
        deletes: &deletes,
    }
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
    t.Helper()

    var reader *bytes.Reader
    if body != nil {
        data, err := json.Marshal(body)
        if err != nil {
            t.Fatalf("failed to marshal body: %v", err)
        }
        reader = bytes.NewReader(data)
    } else {
        reader = bytes.NewReader(nil)
    }

    req := httptest.NewRequest(method, path, reader)
    req.Header.Set("Content-Type", "application/json")

    w := httptest.NewRecorder()
    e.server.router.ServeHTTP(w, req)
    return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
    t.Helper()

    var envelope struct {
        Data json.RawMessage `json:"data"`
    }
    if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
        t.Fatalf("failed to decode envelope: %v (body: %s)", err, w.Body.String())
    }
    if err := json.Unmarshal(envelope.Data, out); err != nil {
        t.Fatalf("failed to decode data: %v", err)
    }
}

func TestPolicyLifecycle(t *testing.T) {
    env := newTestEnv(t)

    w := env.request(t, http.MethodPost, "/api/policies", map[string]interface{}{
        "metric_name_pattern": "probe_*",
        "retention_days":      7,
        "description":         "blackbox probes",
    })
    if w.Code != http.StatusCreated {
        t.Fatalf("create = %d, want 201: %s", w.Code, w.Body.String())
    }

    var created database.RetentionPolicy
    decodeData(t, w, &created)
    if created.ID == "" || !created.Enabled {
        t.Fatalf("created = %+v, want id assigned and enabled by default", created)
    }

    w = env.request(t, http.MethodGet, "/api/policies/"+created.ID, nil)
    if w.Code != http.StatusOK {
        t.Fatalf("get = %d, want 200", w.Code)
    }

    w = env.request(t, http.MethodPut, "/api/policies/"+created.ID, map[string]interface{}{
        "retention_days": 14,
    })
    if w.Code != http.StatusOK {
        t.Fatalf("update = %d, want 200: %s", w.Code, w.Body.String())
    }

    var updated database.RetentionPolicy
    decodeData(t, w, &updated)
    if updated.RetentionDays != 14 || updated.MetricNamePattern != "probe_*" {
        t.Errorf("partial update produced %+v", updated)
    }

    w = env.request(t, http.MethodDelete, "/api/policies/"+created.ID, nil)
    if w.Code != http.StatusOK {
        t.Fatalf("delete = %d, want 200", w.Code)
    }

    w = env.request(t, http.MethodGet, "/api/policies/"+created.ID, nil)
    if w.Code != http.StatusNotFound {
        t.Errorf("get after delete = %d, want 404", w.Code)
    }
}

func TestCreatePolicyValidation(t *testing.T) {
    env := newTestEnv(t)

    tests := []struct {
        name string
        body map[string]interface{}
        code int
    }{
        {"empty pattern", map[string]interface{}{"metric_name_pattern": "", "retention_days": 7}, http.StatusBadRequest},
        {"invalid regex", map[string]interface{}{"metric_name_pattern": "metric[", "retention_days": 7}, http.StatusBadRequest},
        {"retention too short", map[string]interface{}{"metric_name_pattern": "up", "retention_days": 0.0001}, http.StatusBadRequest},
        {"retention too long", map[string]interface{}{"metric_name_pattern": "up", "retention_days": 4000}, http.StatusBadRequest},
    }

    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            w := env.request(t, http.MethodPost, "/api/policies", tt.body)
            if w.Code != tt.code {
                t.Errorf("code = %d, want %d: %s", w.Code, tt.code, w.Body.String())
            }
        })
    }
}

func TestCreateDuplicatePattern(t *testing.T) {
    env := newTestEnv(t)

    body := map[string]interface{}{"metric_name_pattern": "node_*", "retention_days": 30}
    if w := env.request(t, http.MethodPost, "/api/policies", body); w.Code != http.StatusCreated {
        t.Fatalf("first create = %d", w.Code)
    }
    if w := env.request(t, http.MethodPost, "/api/policies", body); w.Code != http.StatusConflict {
        t.Errorf("duplicate create = %d, want 409", w.Code)
    }
}

func TestExecutePolicyDryRun(t *testing.T) {
    env := newTestEnv(t)

    w := env.request(t, http.MethodPost, "/api/policies", map[string]interface{}{
        "metric_name_pattern": "probe_*",
        "retention_days":      7,
    })
    var policy database.RetentionPolicy
    decodeData(t, w, &policy)

    w = env.request(t, http.MethodPost, "/api/policies/"+policy.ID+"/execute",
        map[string]interface{}{"dry_run": true})
    if w.Code != http.StatusOK {
        t.Fatalf("dry run = %d: %s", w.Code, w.Body.String())
    }

    var outcome retention.ExecutionOutcome
    decodeData(t, w, &outcome)
    if !outcome.Record.DryRun || outcome.Record.MetricsFound != 2 {
        t.Errorf("outcome record = %+v, want dry run with 2 matches", outcome.Record)
    }
    if outcome.Report == nil || outcome.Report.MatchesCount != 2 {
        t.Errorf("outcome report = %+v, want 2 matches", outcome.Report)
    }

    if n := atomic.LoadInt64(env.deletes); n != 0 {
        t.Errorf("dry run issued %d delete calls, want 0", n)
    }

    // No history entry for a dry run
    w = env.request(t, http.MethodGet, "/api/policies/"+policy.ID+"/history", nil)
    var body struct {
        Count int `json:"count"`
    }
    if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
        t.Fatalf("failed to decode history: %v", err)
    }
    if body.Count != 0 {
        t.Errorf("history count = %d after dry run, want 0", body.Count)
    }
}

func TestExecutePolicyApply(t *testing.T) {
    env := newTestEnv(t)

    w := env.request(t, http.MethodPost, "/api/policies", map[string]interface{}{
        "metric_name_pattern": "probe_*",
        "retention_days":      7,
    })
    var policy database.RetentionPolicy
    decodeData(t, w, &policy)

    w = env.request(t, http.MethodPost, "/api/policies/"+policy.ID+"/execute", nil)
    if w.Code != http.StatusOK {
        t.Fatalf("execute = %d: %s", w.Code, w.Body.String())
    }

    var outcome retention.ExecutionOutcome
    decodeData(t, w, &outcome)
    if outcome.Record.SeriesDeleted != 2 {
        t.Errorf("SeriesDeleted = %d, want 2", outcome.Record.SeriesDeleted)
    }
    if n := atomic.LoadInt64(env.deletes); n != 2 {
        t.Errorf("delete calls = %d, want 2", n)
    }

    w = env.request(t, http.MethodGet, "/api/policies/"+policy.ID+"/history", nil)
    var body struct {
        Count int `json:"count"`
    }
    if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
        t.Fatalf("failed to decode history: %v", err)
    }
    if body.Count != 1 {
        t.Errorf("history count = %d, want 1", body.Count)
    }
}

func TestExecuteDisabledPolicyConflicts(t *testing.T) {
    env := newTestEnv(t)

    w := env.request(t, http.MethodPost, "/api/policies", map[string]interface{}{
        "metric_name_pattern": "up",
        "retention_days":      7,
        "enabled":             false,
    })
    var policy database.RetentionPolicy
    decodeData(t, w, &policy)

    w = env.request(t, http.MethodPost, "/api/policies/"+policy.ID+"/execute", nil)
    if w.Code != http.StatusConflict {
        t.Errorf("disabled execute = %d, want 409", w.Code)
    }

    // force executes it anyway
    w = env.request(t, http.MethodPost, "/api/policies/"+policy.ID+"/execute",
        map[string]interface{}{"force": true})
    if w.Code != http.StatusOK {
        t.Errorf("forced execute = %d, want 200: %s", w.Code, w.Body.String())
    }
}

func TestExecuteUnknownPolicy(t *testing.T) {
    env := newTestEnv(t)

    w := env.request(t, http.MethodPost, "/api/policies/no-such-id/execute", nil)
    if w.Code != http.StatusNotFound {
        t.Errorf("execute unknown = %d, want 404", w.Code)
    }
}

func TestTestPatternEndpoint(t *testing.T) {
    env := newTestEnv(t)

    w := env.request(t, http.MethodPost, "/api/patterns/test",
        map[string]interface{}{"pattern": "probe_*"})
    if w.Code != http.StatusOK {
        t.Fatalf("test pattern = %d: %s", w.Code, w.Body.String())
    }

    var report retention.PatternMatchReport
    decodeData(t, w, &report)
    if report.MatchesCount != 2 || report.RegexPattern != "probe_.*" {
        t.Errorf("report = %+v, want 2 matches for probe_.*", report)
    }

    w = env.request(t, http.MethodPost, "/api/patterns/test",
        map[string]interface{}{"pattern": "metric["})
    if w.Code != http.StatusBadRequest {
        t.Errorf("invalid pattern = %d, want 400", w.Code)
    }
}

func TestHealthEndpoint(t *testing.T) {
    env := newTestEnv(t)

    w := env.request(t, http.MethodGet, "/api/health", nil)
    if w.Code != http.StatusOK {
        t.Fatalf("health = %d", w.Code)
    }

    var body map[string]interface{}
    if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
        t.Fatalf("failed to decode health: %v", err)
    }
    if body["status"] != "healthy" {
        t.Errorf("status = %v", body["status"])
    }
    if body["prometheus"] != "connected" {
        t.Errorf("prometheus = %v, want connected", body["prometheus"])
    }
}

func TestSchedulerStatusEndpoint(t *testing.T) {
    env := newTestEnv(t)

    w := env.request(t, http.MethodGet, "/api/scheduler/status", nil)
    if w.Code != http.StatusOK {
        t.Fatalf("status = %d", w.Code)
    }

    var status retention.SchedulerStatus
    decodeData(t, w, &status)
    if status.Interval != "1h0m0s" {
        t.Errorf("Interval = %q", status.Interval)
    }
}

func TestExecuteAllEndpoint(t *testing.T) {
    env := newTestEnv(t)

    for i, pattern := range []string{"probe_*", "node_*"} {
        w := env.request(t, http.MethodPost, "/api/policies", map[string]interface{}{
            "metric_name_pattern": pattern,
            "retention_days":      7,
        })
        if w.Code != http.StatusCreated {
            t.Fatalf("create %d = %d", i, w.Code)
        }
    }

    w := env.request(t, http.MethodPost, "/api/policies/execute-all", nil)
    if w.Code != http.StatusOK {
        t.Fatalf("execute-all = %d: %s", w.Code, w.Body.String())
    }

    var body struct {
        Count int `json:"count"`
    }
    if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
        t.Fatalf("failed to decode: %v", err)
    }
    if body.Count != 2 {
        t.Errorf("count = %d, want 2", body.Count)
    }
    if n := atomic.LoadInt64(env.deletes); n != 3 {
        t.Errorf("delete calls = %d, want 3 (2 probes + 1 node metric)", n)
    }
}
