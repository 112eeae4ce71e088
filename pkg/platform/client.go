package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cluster-drift-monitor/pkg/models"
)

// ErrNotFound is returned when the platform reports a missing resource
var ErrNotFound = errors.New("platform: not found")

const (
	statusOK    = "OK"
	statusError = "ERROR"

	// error bodies are truncated to this many bytes in messages
	maxErrorBody = 512
)

// envelope is the common response wrapper of the platform API
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Payload json.RawMessage `json:"payload"`
}

type regionPayload struct {
	ID       int64  `json:"id"`
	Provider string `json:"provider"`
	Code     string `json:"regionCode"`
	Name     string `json:"name"`
}

type runPayload struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// Config holds platform client settings
type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// Client talks to the upstream platform REST API. It serves as the region
// source, the job loader and a stats source.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, fmt.Errorf("platform API URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid platform API URL: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		token:      cfg.Token,
	}, nil
}

// ListRegions returns every cloud region configured on the platform
func (c *Client) ListRegions(ctx context.Context) ([]models.CloudRegion, error) {
	var payload []regionPayload
	if err := c.get(ctx, "/cloud/region", &payload); err != nil {
		return nil, fmt.Errorf("listing regions: %w", err)
	}

	regions := make([]models.CloudRegion, 0, len(payload))
	for _, r := range payload {
		regions = append(regions, models.CloudRegion{
			ID:       r.ID,
			Provider: models.ParseProvider(r.Provider),
			Code:     r.Code,
			Name:     r.Name,
		})
	}
	return regions, nil
}

// LoadJob returns the pipeline run with the given id, or ErrNotFound
func (c *Client) LoadJob(ctx context.Context, id int64) (*models.ComputeJob, error) {
	var payload runPayload
	if err := c.get(ctx, "/run/"+strconv.FormatInt(id, 10), &payload); err != nil {
		return nil, fmt.Errorf("loading run %d: %w", id, err)
	}
	return &models.ComputeJob{ID: payload.ID, Status: models.ParseJobStatus(payload.Status)}, nil
}

// Load returns the latest cluster statistics as raw string values.
// Numbers keep their exact textual form.
func (c *Client) Load(ctx context.Context) (map[string]string, error) {
	var payload map[string]json.RawMessage
	if err := c.get(ctx, "/cluster/stats", &payload); err != nil {
		return nil, fmt.Errorf("loading cluster stats: %w", err)
	}

	stats := make(map[string]string, len(payload))
	for key, raw := range payload {
		stats[key] = rawValue(raw)
	}
	return stats, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decoding envelope: %w", err)
	}
	switch strings.ToUpper(env.Status) {
	case statusOK:
	case statusError:
		return fmt.Errorf("platform error: %s", env.Message)
	default:
		return fmt.Errorf("unexpected envelope status %q", env.Status)
	}

	if len(env.Payload) == 0 || bytes.Equal(env.Payload, []byte("null")) {
		return ErrNotFound
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}

// rawValue unquotes JSON strings and keeps any other literal verbatim
func rawValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
