// internal/promapi/client.go - Prometheus HTTP API client for catalog reads and admin deletion
package promapi

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strconv"
    "time"

    "promkeeper/internal/config"
    "promkeeper/internal/retention"
)

// Client talks to the Prometheus server whose data retention we manage.
// Deletion requires the admin API (--web.enable-admin-api) on that server.
type Client struct {
    baseURL    string
    httpClient *http.Client
}

func NewClient(cfg config.PrometheusConfig) *Client {
    return &Client{
        baseURL: cfg.URL,
        httpClient: &http.Client{
            Timeout: cfg.Timeout,
        },
    }
}

type apiResponse struct {
    Status string   `json:"status"`
    Data   []string `json:"data"`
    Error  string   `json:"error"`
}

// ListMetricNames returns the full metric catalog via the label values API.
// Any transport failure, timeout or non-success response is reported as
// retention.ErrCatalogUnavailable.
func (c *Client) ListMetricNames(ctx context.Context) ([]string, error) {
    endpoint := c.baseURL + "/api/v1/label/__name__/values"

    req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
    if err != nil {
        return nil, fmt.Errorf("%w: %v", retention.ErrCatalogUnavailable, err)
    }

    resp, err := c.httpClient.Do(req)
    if err != nil {
        return nil, fmt.Errorf("%w: %v", retention.ErrCatalogUnavailable, err)
    }
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusOK {
        return nil, fmt.Errorf("%w: label values query returned HTTP %d", retention.ErrCatalogUnavailable, resp.StatusCode)
    }

    var body apiResponse
    if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
        return nil, fmt.Errorf("%w: failed to decode label values response: %v", retention.ErrCatalogUnavailable, err)
    }

    if body.Status != "success" {
        return nil, fmt.Errorf("%w: prometheus reported %q: %s", retention.ErrCatalogUnavailable, body.Status, body.Error)
    }

    return body.Data, nil
}

// DeleteSeries asks the admin API to drop all data for one metric from the
// beginning of time up to end. The API reports no per-series count, so a
// successful call counts as one affected metric. Transport failures and
// server errors are retention.ErrDeletionUnavailable; a 400 means the
// selector was rejected and retrying will not help.
func (c *Client) DeleteSeries(ctx context.Context, metric string, end time.Time) (int, error) {
    params := url.Values{}
    params.Set("match[]", fmt.Sprintf("{__name__=%q}", metric))
    params.Set("start", "0")
    params.Set("end", strconv.FormatInt(end.Unix(), 10))

    endpoint := c.baseURL + "/api/v1/admin/tsdb/delete_series?" + params.Encode()

    req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
    if err != nil {
        return 0, fmt.Errorf("%w: %v", retention.ErrDeletionUnavailable, err)
    }

    resp, err := c.httpClient.Do(req)
    if err != nil {
        return 0, fmt.Errorf("%w: %v", retention.ErrDeletionUnavailable, err)
    }
    defer resp.Body.Close()

    switch resp.StatusCode {
    case http.StatusNoContent, http.StatusOK:
        return 1, nil
    case http.StatusBadRequest:
        detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
        return 0, fmt.Errorf("delete_series rejected selector for %q: %s", metric, detail)
    default:
        return 0, fmt.Errorf("%w: delete_series returned HTTP %d", retention.ErrDeletionUnavailable, resp.StatusCode)
    }
}

// Ping checks that the Prometheus server answers queries, for the health
// endpoint.
func (c *Client) Ping(ctx context.Context) error {
    endpoint := c.baseURL + "/api/v1/query?query=up"

    req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
    if err != nil {
        return err
    }

    resp, err := c.httpClient.Do(req)
    if err != nil {
        return fmt.Errorf("prometheus unreachable: %w", err)
    }
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusOK {
        return fmt.Errorf("prometheus returned HTTP %d", resp.StatusCode)
    }

    return nil
}
