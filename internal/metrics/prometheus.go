// internal/metrics/prometheus.go
package metrics

import (
    "context"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
    "promkeeper/internal/database"
)

// Prometheus metrics
var (
    ExecutionDuration = promauto.NewHistogramVec(
        prometheus.HistogramOpts{
            Name:    "promkeeper_execution_duration_seconds",
            Help:    "Time spent executing retention policies",
            Buckets: prometheus.DefBuckets,
        },
        []string{"mode", "status"},
    )

    ExecutionsTotal = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Name: "promkeeper_policy_executions_total",
            Help: "Total number of retention policy executions",
        },
        []string{"mode", "status"},
    )

    SeriesDeletedTotal = promauto.NewCounter(
        prometheus.CounterOpts{
            Name: "promkeeper_series_deleted_total",
            Help: "Total number of series deletions requested from the store",
        },
    )

    MetricsMatched = promauto.NewHistogram(
        prometheus.HistogramOpts{
            Name:    "promkeeper_metrics_matched",
            Help:    "Number of catalog metrics matched per policy execution",
            Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
        },
    )

    ActivePolicies = promauto.NewGauge(
        prometheus.GaugeOpts{
            Name: "promkeeper_active_policies_total",
            Help: "Number of enabled retention policies",
        },
    )

    TotalPolicies = promauto.NewGauge(
        prometheus.GaugeOpts{
            Name: "promkeeper_policies_total",
            Help: "Number of retention policies configured",
        },
    )

    SchedulerTicks = promauto.NewCounter(
        prometheus.CounterOpts{
            Name: "promkeeper_scheduler_ticks_total",
            Help: "Total number of scheduled retention batch runs",
        },
    )

    DatabaseOperations = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Name: "promkeeper_database_operations_total",
            Help: "Total database operations performed",
        },
        []string{"operation", "status"},
    )

    WebSocketConnections = promauto.NewGauge(
        prometheus.GaugeOpts{
            Name: "promkeeper_websocket_connections_active",
            Help: "Number of active WebSocket connections",
        },
    )
)

type Collector struct {
    store database.Store
}

func NewCollector(store database.Store) *Collector {
    return &Collector{store: store}
}

func (c *Collector) RecordExecution(mode string, success bool, duration time.Duration, metricsFound, seriesDeleted int) {
    status := "success"
    if !success {
        status = "failure"
    }

    ExecutionDuration.WithLabelValues(mode, status).Observe(duration.Seconds())
    ExecutionsTotal.WithLabelValues(mode, status).Inc()
    MetricsMatched.Observe(float64(metricsFound))

    if seriesDeleted > 0 {
        SeriesDeletedTotal.Add(float64(seriesDeleted))
    }
}

func (c *Collector) RecordSchedulerTick() {
    SchedulerTicks.Inc()
}

func (c *Collector) UpdateSystemMetrics(ctx context.Context) error {
    stats, err := c.store.GetStats(ctx)
    if err != nil {
        DatabaseOperations.WithLabelValues("get_stats", "error").Inc()
        return err
    }
    DatabaseOperations.WithLabelValues("get_stats", "success").Inc()

    TotalPolicies.Set(float64(stats.TotalPolicies))
    ActivePolicies.Set(float64(stats.EnabledPolicies))

    return nil
}

func (c *Collector) RecordWebSocketConnection(delta int) {
    WebSocketConnections.Add(float64(delta))
}
