// internal/config/config.go
package config

import (
    "fmt"
    "os"
    "strings"
    "time"

    "github.com/robfig/cron/v3"
    "gopkg.in/yaml.v3"
)

type Config struct {
    Server        ServerConfig       `yaml:"server"`
    Database      DatabaseConfig     `yaml:"database"`
    Prometheus    PrometheusConfig   `yaml:"prometheus"`
    Scheduler     SchedulerConfig    `yaml:"scheduler"`
    Metrics       MetricsConfig      `yaml:"metrics"`
    Logging       LoggingConfig      `yaml:"logging"`
    Notifications NotificationConfig `yaml:"notifications"`
}

type ServerConfig struct {
    Port         string        `yaml:"port"`
    ReadTimeout  time.Duration `yaml:"read_timeout"`
    WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
    Path             string        `yaml:"path"`
    CleanupInterval  time.Duration `yaml:"cleanup_interval"`
    HistoryRetention time.Duration `yaml:"history_retention"`
}

// PrometheusConfig points at the monitoring store whose data we manage.
// The admin API (--web.enable-admin-api) must be enabled on that server
// for deletions to work.
type PrometheusConfig struct {
    URL     string        `yaml:"url"`
    Timeout time.Duration `yaml:"timeout"`
}

type SchedulerConfig struct {
    // Interval between automatic execution batches. Ignored when Cron is set.
    Interval time.Duration `yaml:"interval"`
    // Cron optionally replaces the fixed interval with a standard 5-field
    // cron expression (e.g. "0 */6 * * *").
    Cron string `yaml:"cron"`
    // RunOnStart executes the batch once immediately at startup (default true).
    RunOnStart *bool `yaml:"run_on_start"`
    // ExecutionTimeout bounds each catalog fetch and each deletion call.
    ExecutionTimeout time.Duration `yaml:"execution_timeout"`
}

// MetricsConfig controls promkeeper's own /metrics endpoint.
type MetricsConfig struct {
    Enabled     bool   `yaml:"enabled"`
    MetricsPath string `yaml:"metrics_path"`
}

type LoggingConfig struct {
    Level  string `yaml:"level"`
    Format string `yaml:"format"`
}

type NotificationConfig struct {
    Enabled  bool           `yaml:"enabled"`
    Pushover PushoverConfig `yaml:"pushover"`
}

type PushoverConfig struct {
    Enabled  bool          `yaml:"enabled"`
    APIToken string        `yaml:"api_token"`
    UserKey  string        `yaml:"user_key"`
    Priority int           `yaml:"priority"`
    Sound    string        `yaml:"sound"`
    Device   string        `yaml:"device"`
    Title    string        `yaml:"title"`
    // Throttle suppresses repeat notifications for the same policy within
    // the window.
    Throttle time.Duration `yaml:"throttle"`
}

func Load(filename string) (*Config, error) {
    data, err := os.ReadFile(filename)
    if err != nil {
        return nil, fmt.Errorf("failed to read config file: %w", err)
    }

    var config Config
    if err := yaml.Unmarshal(data, &config); err != nil {
        return nil, fmt.Errorf("failed to parse YAML: %w", err)
    }

    setDefaults(&config)

    if err := validate(&config); err != nil {
        return nil, fmt.Errorf("invalid configuration: %w", err)
    }

    return &config, nil
}

func setDefaults(config *Config) {
    if config.Server.Port == "" {
        config.Server.Port = ":8080"
    }
    if config.Server.ReadTimeout == 0 {
        config.Server.ReadTimeout = 15 * time.Second
    }
    if config.Server.WriteTimeout == 0 {
        config.Server.WriteTimeout = 15 * time.Second
    }

    if config.Database.Path == "" {
        config.Database.Path = "data/promkeeper.db"
    }
    if config.Database.CleanupInterval == 0 {
        config.Database.CleanupInterval = 24 * time.Hour
    }
    if config.Database.HistoryRetention == 0 {
        config.Database.HistoryRetention = 30 * 24 * time.Hour
    }

    if config.Prometheus.URL == "" {
        config.Prometheus.URL = "http://localhost:9090"
    }
    config.Prometheus.URL = normalizeURL(config.Prometheus.URL)
    if config.Prometheus.Timeout == 0 {
        config.Prometheus.Timeout = 30 * time.Second
    }

    if config.Scheduler.Interval == 0 {
        config.Scheduler.Interval = 6 * time.Hour
    }
    if config.Scheduler.RunOnStart == nil {
        runOnStart := true
        config.Scheduler.RunOnStart = &runOnStart
    }
    if config.Scheduler.ExecutionTimeout == 0 {
        config.Scheduler.ExecutionTimeout = 30 * time.Second
    }

    if config.Metrics.MetricsPath == "" {
        config.Metrics.MetricsPath = "/metrics"
    }

    if config.Logging.Level == "" {
        config.Logging.Level = "info"
    }
    if config.Logging.Format == "" {
        config.Logging.Format = "text"
    }

    if config.Notifications.Pushover.Throttle == 0 {
        config.Notifications.Pushover.Throttle = 1 * time.Hour
    }
    if config.Notifications.Pushover.Title == "" {
        config.Notifications.Pushover.Title = "promkeeper: retention policy failed"
    }
}

// normalizeURL ensures a scheme and strips any trailing slash so path joins
// stay predictable.
func normalizeURL(url string) string {
    if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
        url = "http://" + url
    }
    return strings.TrimRight(url, "/")
}

func validate(config *Config) error {
    if config.Prometheus.URL == "" {
        return fmt.Errorf("prometheus.url is required")
    }
    if config.Prometheus.Timeout < time.Second {
        return fmt.Errorf("prometheus.timeout must be at least 1s")
    }

    if config.Scheduler.Interval < time.Minute {
        return fmt.Errorf("scheduler.interval must be at least 1m")
    }
    if config.Scheduler.Cron != "" {
        if _, err := cron.ParseStandard(config.Scheduler.Cron); err != nil {
            return fmt.Errorf("scheduler.cron is not a valid cron expression: %w", err)
        }
    }
    if config.Scheduler.ExecutionTimeout < time.Second {
        return fmt.Errorf("scheduler.execution_timeout must be at least 1s")
    }

    if config.Notifications.Enabled && config.Notifications.Pushover.Enabled {
        if config.Notifications.Pushover.APIToken == "" || config.Notifications.Pushover.UserKey == "" {
            return fmt.Errorf("pushover notifications require api_token and user_key")
        }
    }

    return nil
}
