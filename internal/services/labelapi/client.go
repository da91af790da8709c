package labelapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vintner/internal/services"
)

const (
	defaultUploadTimeout  = 120 * time.Second
	defaultOcrTimeout     = 300 * time.Second
	defaultCompareTimeout = 180 * time.Second
	defaultHealthTimeout  = 15 * time.Second
)

// Config captures the runtime settings required to talk to the backend.
type Config struct {
	BaseURL               string
	AccessToken           string
	UploadTimeoutSeconds  int
	OcrTimeoutSeconds     int
	CompareTimeoutSeconds int
	HealthTimeoutSeconds  int
}

// Client wraps the upload/OCR/compare/health endpoints of the
// label-processing backend. Every call carries its own timeout; a timeout
// fails exactly like any other network failure.
type Client struct {
	cfg        Config
	httpClient *http.Client

	uploadTimeout  time.Duration
	ocrTimeout     time.Duration
	compareTimeout time.Duration
	healthTimeout  time.Duration
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

// NewClient constructs a backend client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			BaseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			AccessToken: strings.TrimSpace(cfg.AccessToken),
		},
		httpClient:     &http.Client{},
		uploadTimeout:  secondsOr(cfg.UploadTimeoutSeconds, defaultUploadTimeout),
		ocrTimeout:     secondsOr(cfg.OcrTimeoutSeconds, defaultOcrTimeout),
		compareTimeout: secondsOr(cfg.CompareTimeoutSeconds, defaultCompareTimeout),
		healthTimeout:  secondsOr(cfg.HealthTimeoutSeconds, defaultHealthTimeout),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func secondsOr(value int, fallback time.Duration) time.Duration {
	if value > 0 {
		return time.Duration(value) * time.Second
	}
	return fallback
}

// UploadItem is the normalized per-file record produced by the upload stage.
type UploadItem struct {
	ID       string
	Filename string
	// Synthesized marks ids invented locally because the response listed
	// fewer items than were submitted.
	Synthesized bool
}

// OcrResult is one per-item entry of the OCR stage response.
type OcrResult struct {
	OriginalFilename string `json:"original_filename"`
	NewFilename      string `json:"new_filename"`
	FormattedName    string `json:"formatted_name"`
	// Error carries a remote-reported per-item failure; the stage itself
	// still succeeds.
	Error string `json:"error,omitempty"`
}

type ocrResponse struct {
	Results []OcrResult `json:"results"`
}

// Candidate is one match proposed by the compare stage.
type Candidate struct {
	Gid    string  `json:"gid,omitempty"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// CompareMatches is the match block of a compare result.
type CompareMatches struct {
	Orig            string      `json:"orig"`
	Final           string      `json:"final"`
	Candidates      []Candidate `json:"candidates"`
	ValidatedGid    string      `json:"validated_gid,omitempty"`
	NeedHumanReview *bool       `json:"need_human_review,omitempty"`
	// NHR is a legacy alias for NeedHumanReview used by older backends.
	NHR *bool `json:"nhr,omitempty"`
}

// NeedsReview folds the two review flags the backend may send.
func (m CompareMatches) NeedsReview() bool {
	if m.NeedHumanReview != nil && *m.NeedHumanReview {
		return true
	}
	return m.NHR != nil && *m.NHR
}

// CompareResult is one per-item entry of the compare stage response.
type CompareResult struct {
	Image   string         `json:"image"`
	Matches CompareMatches `json:"matches"`
}

type compareResponse struct {
	Results []CompareResult `json:"results"`
}

// Upload submits the given local files to the upload stage and returns the
// normalized item list. Short responses are padded with synthesized ids so
// the caller always gets one entry per submitted file.
func (c *Client) Upload(ctx context.Context, paths []string) ([]UploadItem, error) {
	if len(paths) == 0 {
		return nil, services.Wrap(services.ErrValidation, "upload", "submit", "no files to upload", nil)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	names := make([]string, 0, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		names = append(names, name)
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "upload", "encode form", name, err)
		}
		file, err := os.Open(path)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "upload", "open file", path, err)
		}
		_, copyErr := io.Copy(part, file)
		file.Close()
		if copyErr != nil {
			return nil, services.Wrap(services.ErrValidation, "upload", "read file", path, copyErr)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "upload", "finalize form", "", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/upload-images", body)
	if err != nil {
		return nil, services.Wrap(services.ErrNetwork, "upload", "new request", "", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	raw, err := c.doJSON(req, "upload")
	if err != nil {
		return nil, err
	}

	items := normalizeUploadItems(raw, names)
	items = padUploadItems(items, names)
	if len(items) == 0 {
		return nil, services.Wrap(services.ErrMalformedResponse, "upload", "decode response", "no recognizable items", nil)
	}
	return items, nil
}

// ProcessOcr runs the OCR stage over the given item ids. An empty result set
// is a failure per the stage contract.
func (c *Client) ProcessOcr(ctx context.Context, ids []string) ([]OcrResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.ocrTimeout)
	defer cancel()

	var decoded ocrResponse
	if err := c.postJSON(ctx, "/process-ocr", map[string]any{"ids": ids}, "ocr", &decoded); err != nil {
		return nil, err
	}
	if len(decoded.Results) == 0 {
		return nil, services.Wrap(services.ErrMalformedResponse, "ocr", "decode response", "no results returned", nil)
	}
	return decoded.Results, nil
}

// CompareBatch runs the compare stage over the given item ids.
func (c *Client) CompareBatch(ctx context.Context, ids []string) ([]CompareResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.compareTimeout)
	defer cancel()

	var decoded compareResponse
	if err := c.postJSON(ctx, "/compare-batch", map[string]any{"ids": ids}, "compare", &decoded); err != nil {
		return nil, err
	}
	if decoded.Results == nil {
		return nil, services.Wrap(services.ErrMalformedResponse, "compare", "decode response", "missing results array", nil)
	}
	return decoded.Results, nil
}

// Health pings the backend, falling back from /health to the service root.
// The returned string is advisory only.
func (c *Client) Health(ctx context.Context) (string, error) {
	status, err := c.healthOnce(ctx, "/health")
	if err == nil {
		return status, nil
	}
	return c.healthOnce(ctx, "/")
}

func (c *Client) healthOnce(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return "", services.Wrap(services.ErrNetwork, "health", "new request", "", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrNetwork, "health", "request", "", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrNetwork, "health", "read body", "", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", services.Wrap(services.ErrNetwork, "health", "request", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	var decoded struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Status != "" {
		return decoded.Status, nil
	}
	trimmed := strings.TrimSpace(strings.Trim(strings.TrimSpace(string(body)), `"`))
	if trimmed == "" {
		trimmed = "ok"
	}
	return trimmed, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, stage string, target any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return services.Wrap(services.ErrValidation, stage, "encode body", "", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return services.Wrap(services.ErrNetwork, stage, "new request", "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	raw, err := c.doJSON(req, stage)
	if err != nil {
		return err
	}
	reencoded, err := json.Marshal(raw)
	if err != nil {
		return services.Wrap(services.ErrMalformedResponse, stage, "decode response", "", err)
	}
	if err := json.Unmarshal(reencoded, target); err != nil {
		return services.Wrap(services.ErrMalformedResponse, stage, "decode response", "", err)
	}
	return nil
}

func (c *Client) doJSON(req *http.Request, stage string) (any, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrNetwork, stage, "request", "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrNetwork, stage, "read body", "", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrNetwork, stage, "request", httpErrorDetail(resp.StatusCode, body), nil)
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, services.Wrap(services.ErrMalformedResponse, stage, "decode response", "", err)
	}
	return raw, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	}
}

// httpErrorDetail prefers the backend's detail/message field over the bare
// status code.
func httpErrorDetail(status int, body []byte) string {
	var decoded struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil {
		if decoded.Detail != "" {
			return decoded.Detail
		}
		if decoded.Message != "" {
			return decoded.Message
		}
	}
	return fmt.Sprintf("http %d", status)
}
