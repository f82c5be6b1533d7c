// internal/notifications/pushover.go - Pushover alerts for failed policy executions
package notifications

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "sync"
    "time"

    "github.com/sirupsen/logrus"
    "promkeeper/internal/config"
    "promkeeper/internal/database"
)

const (
    PushoverAPIURL = "https://api.pushover.net/1/messages.json"
    UserAgent      = "promkeeper/1.0"
)

// PushoverMessage represents a message sent to the Pushover API
type PushoverMessage struct {
    Token     string `json:"token"`
    User      string `json:"user"`
    Message   string `json:"message"`
    Title     string `json:"title,omitempty"`
    Priority  int    `json:"priority,omitempty"`
    Sound     string `json:"sound,omitempty"`
    Device    string `json:"device,omitempty"`
    Timestamp int64  `json:"timestamp,omitempty"`
}

// PushoverResponse represents the API response
type PushoverResponse struct {
    Status int      `json:"status"`
    Errors []string `json:"errors,omitempty"`
}

// PushoverClient notifies operators when a retention policy execution fails.
// Repeat failures for the same policy are throttled so a flapping upstream
// does not flood the operator.
type PushoverClient struct {
    config     *config.PushoverConfig
    httpClient *http.Client

    mu       sync.Mutex
    lastSent map[string]time.Time
}

func NewPushoverClient(cfg *config.PushoverConfig) *PushoverClient {
    logrus.WithFields(logrus.Fields{
        "priority": cfg.Priority,
        "throttle": cfg.Throttle,
    }).Info("Pushover notifications enabled")

    return &PushoverClient{
        config: cfg,
        httpClient: &http.Client{
            Timeout: 30 * time.Second,
        },
        lastSent: make(map[string]time.Time),
    }
}

// NotifyExecutionFailure sends one alert per failed execution, subject to
// per-policy throttling.
func (p *PushoverClient) NotifyExecutionFailure(ctx context.Context, record *database.ExecutionRecord) error {
    if !p.shouldSend(record.PolicyID) {
        logrus.WithField("policy", record.PolicyID).Debug("Notification throttled")
        return nil
    }

    message := fmt.Sprintf("Retention policy for pattern %q failed at %s\n%s",
        record.MetricNamePattern,
        record.ExecutionTime.Format(time.RFC3339),
        truncate(record.ErrorMessage, 512))

    msg := &PushoverMessage{
        Token:     p.config.APIToken,
        User:      p.config.UserKey,
        Message:   message,
        Title:     p.config.Title,
        Priority:  p.config.Priority,
        Sound:     p.config.Sound,
        Device:    p.config.Device,
        Timestamp: record.ExecutionTime.Unix(),
    }

    return p.send(ctx, msg)
}

func (p *PushoverClient) send(ctx context.Context, msg *PushoverMessage) error {
    payload, err := json.Marshal(msg)
    if err != nil {
        return fmt.Errorf("failed to marshal pushover message: %w", err)
    }

    req, err := http.NewRequestWithContext(ctx, http.MethodPost, PushoverAPIURL, bytes.NewReader(payload))
    if err != nil {
        return fmt.Errorf("failed to create pushover request: %w", err)
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("User-Agent", UserAgent)

    resp, err := p.httpClient.Do(req)
    if err != nil {
        return fmt.Errorf("failed to send pushover notification: %w", err)
    }
    defer resp.Body.Close()

    var result PushoverResponse
    if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
        return fmt.Errorf("failed to decode pushover response: %w", err)
    }

    if result.Status != 1 {
        return fmt.Errorf("pushover API error: %s", strings.Join(result.Errors, "; "))
    }

    logrus.Debug("Pushover notification sent")
    return nil
}

// shouldSend applies the per-policy throttle window and records the send.
func (p *PushoverClient) shouldSend(policyID string) bool {
    p.mu.Lock()
    defer p.mu.Unlock()

    now := time.Now()
    if last, ok := p.lastSent[policyID]; ok && now.Sub(last) < p.config.Throttle {
        return false
    }

    p.lastSent[policyID] = now
    return true
}

func truncate(s string, max int) string {
    if len(s) <= max {
        return s
    }
    return s[:max-3] + "..."
}
