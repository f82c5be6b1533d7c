package main

import (
    "context"
    "flag"
    "fmt"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/sirupsen/logrus"
    "promkeeper/internal/config"
    "promkeeper/internal/database"
    "promkeeper/internal/metrics"
    "promkeeper/internal/notifications"
    "promkeeper/internal/promapi"
    "promkeeper/internal/retention"
    "promkeeper/internal/web"
)

func main() {
    configFile := flag.String("config", "config.yaml", "Configuration file path")
    version := flag.Bool("version", false, "Show version information")
    flag.Parse()

    if *version {
        fmt.Printf("Promkeeper Retention Policy Engine %s\n", web.Version)
        os.Exit(0)
    }

    // Load configuration
    cfg, err := config.Load(*configFile)
    if err != nil {
        logrus.Fatalf("Failed to load config: %v", err)
    }

    // Setup logging
    setupLogging(cfg.Logging)

    logrus.WithFields(logrus.Fields{
        "config_file": *configFile,
        "port":        cfg.Server.Port,
        "prometheus":  cfg.Prometheus.URL,
    }).Info("Starting promkeeper retention engine")

    // Initialize database
    store, err := database.NewBoltStore(cfg.Database.Path)
    if err != nil {
        logrus.Fatalf("Failed to initialize database: %v", err)
    }
    defer store.Close()

    // Initialize metrics
    metricsCollector := metrics.NewCollector(store)

    // Prometheus API client serves both the metric catalog and deletion
    promClient := promapi.NewClient(cfg.Prometheus)

    // Initialize retention engine
    engine, err := retention.NewEngine(cfg, store, promClient, promClient, metricsCollector)
    if err != nil {
        logrus.Fatalf("Failed to initialize retention engine: %v", err)
    }

    // Initialize web server
    webServer := web.NewServer(cfg, store, engine, metricsCollector, promClient)

    // Dashboard clients get live execution updates
    engine.SetEventSink(webServer)

    if cfg.Notifications.Enabled && cfg.Notifications.Pushover.Enabled {
        engine.SetNotifier(notifications.NewPushoverClient(&cfg.Notifications.Pushover))
    }

    // Start services
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // Start retention engine
    go engine.Start(ctx)

    // Start web server
    go webServer.Start(ctx)

    // Wait for shutdown signal
    sigChan := make(chan os.Signal, 1)
    signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

    sig := <-sigChan
    logrus.WithField("signal", sig).Info("Received shutdown signal")

    // Graceful shutdown
    cancel()
    engine.Stop()

    shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer shutdownCancel()
    if err := webServer.Stop(shutdownCtx); err != nil {
        logrus.WithError(err).Error("Web server shutdown failed")
    }

    logrus.Info("Shutdown complete")
}

func setupLogging(cfg config.LoggingConfig) {
    level, err := logrus.ParseLevel(cfg.Level)
    if err != nil {
        level = logrus.InfoLevel
    }
    logrus.SetLevel(level)

    if cfg.Format == "json" {
        logrus.SetFormatter(&logrus.JSONFormatter{})
    } else {
        logrus.SetFormatter(&logrus.TextFormatter{
            FullTimestamp: true,
        })
    }
}
