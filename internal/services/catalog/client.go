package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vintner/internal/services"
)

const defaultTimeout = 60 * time.Second

// Config captures the runtime settings for the catalog backend.
type Config struct {
	BaseURL        string
	AccessToken    string
	TimeoutSeconds int
}

// Client wraps the catalog publish and cache-refresh endpoints.
type Client struct {
	cfg        Config
	httpClient *http.Client
	timeout    time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a catalog client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			AccessToken: strings.TrimSpace(cfg.AccessToken),
		},
		httpClient: &http.Client{},
		timeout:    timeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Selection is the catalog projection of a publish selection.
type Selection struct {
	Image        string `json:"image"`
	SelectedName string `json:"selected_name"`
	Gid          string `json:"gid,omitempty"`
}

// UploadBatch publishes the selections to the catalog. The backend returns
// either a count object or a result array; only the aggregate count is used.
func (c *Client) UploadBatch(ctx context.Context, selections []Selection) (int, error) {
	if len(selections) == 0 {
		return 0, services.Wrap(services.ErrValidation, "publish-catalog", "upload", "no selections", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	encoded, err := json.Marshal(selections)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "publish-catalog", "encode body", "", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/upload-to-shopify-batch", bytes.NewReader(encoded))
	if err != nil {
		return 0, services.Wrap(services.ErrNetwork, "publish-catalog", "new request", "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, services.Wrap(services.ErrNetwork, "publish-catalog", "request", "", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, services.Wrap(services.ErrNetwork, "publish-catalog", "read body", "", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return 0, services.Wrap(services.ErrNetwork, "publish-catalog", "request", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	return countFromBody(body, len(selections)), nil
}

// countFromBody tolerates the count-object, bare-number, and array response
// shapes, defaulting to the submitted size when nothing is recognizable.
func countFromBody(body []byte, submitted int) int {
	var counted struct {
		Count *int `json:"count"`
	}
	if err := json.Unmarshal(body, &counted); err == nil && counted.Count != nil {
		return *counted.Count
	}
	var number int
	if err := json.Unmarshal(body, &number); err == nil {
		return number
	}
	var arr []any
	if err := json.Unmarshal(body, &arr); err == nil {
		return len(arr)
	}
	return submitted
}

// RefreshCache rebuilds the backend's catalog cache and returns its
// free-form status message.
func (c *Client) RefreshCache(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/refresh-shopify-cache", nil)
	if err != nil {
		return "", services.Wrap(services.ErrNetwork, "refresh-cache", "new request", "", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrNetwork, "refresh-cache", "request", "", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrNetwork, "refresh-cache", "read body", "", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", services.Wrap(services.ErrNetwork, "refresh-cache", "request", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	var decoded struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Message != "" {
		return decoded.Message, nil
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		trimmed = "cache refreshed"
	}
	return trimmed, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	}
}
