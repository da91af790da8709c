package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vintner/internal/services"
)

const defaultTimeout = 60 * time.Second

// Targets for a publish selection.
const (
	TargetInput  = "input"
	TargetOutput = "output"
	TargetNHR    = "nhr"
)

// NHRReasons are the rejection reasons the storage backend accepts for
// needs-review selections.
var NHRReasons = map[string]struct{}{
	"search_failed":    {},
	"ocr_failed":       {},
	"manual_rejection": {},
	"others":           {},
}

// Config captures the runtime settings for the storage backend.
type Config struct {
	BaseURL        string
	AccessToken    string
	TimeoutSeconds int
}

// Client wraps the storage (Drive) capability and publish endpoints.
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

// NewClient constructs a storage client.
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

// Structure describes the remote folder layout reported by the capability
// endpoint. Advisory; the pipeline never derives behavior from it.
type Structure struct {
	Root   string `json:"root"`
	Input  string `json:"input"`
	Output string `json:"output"`
	Upload string `json:"upload"`
}

// Capability reports whether the storage account is linked for a user.
type Capability struct {
	Linked    bool
	Structure *Structure
}

type statusResponse struct {
	Authenticated bool       `json:"authenticated"`
	Structure     *Structure `json:"structure"`
}

// Status checks whether the given user has the storage account linked. The
// primary endpoint is /auth/status; older deployments expose /drive-status.
func (c *Client) Status(ctx context.Context, userID string) (Capability, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Capability{}, services.Wrap(services.ErrValidation, "capability", "status", "user id required", nil)
	}

	cap, err := c.statusOnce(ctx, "/auth/status", userID)
	if err == nil {
		return cap, nil
	}
	return c.statusOnce(ctx, "/drive-status", userID)
}

func (c *Client) statusOnce(ctx context.Context, path, userID string) (Capability, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s%s?user_id=%s", c.cfg.BaseURL, path, url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Capability{}, services.Wrap(services.ErrNetwork, "capability", "new request", "", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Capability{}, services.Wrap(services.ErrNetwork, "capability", "request", "", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Capability{}, services.Wrap(services.ErrNetwork, "capability", "read body", "", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return Capability{}, services.Wrap(services.ErrNetwork, "capability", "request", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	var decoded statusResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Capability{}, services.Wrap(services.ErrMalformedResponse, "capability", "decode response", "", err)
	}
	return Capability{Linked: decoded.Authenticated, Structure: decoded.Structure}, nil
}

// Selection is one item of a storage publish request.
type Selection struct {
	Image        string `json:"image"`
	SelectedName string `json:"selected_name"`
	Target       string `json:"target"`
	NHRReason    string `json:"nhr_reason,omitempty"`
	Gid          string `json:"gid,omitempty"`
}

type uploadRequest struct {
	UserID     string      `json:"user_id"`
	Selections []Selection `json:"selections"`
}

// OrganizedFile maps a published file back to its source filenames.
type OrganizedFile struct {
	Filename    string `json:"filename"`
	OcrFilename string `json:"ocr_filename"`
	DriveID     string `json:"drive_id"`
	WebViewLink string `json:"web_view_link"`
}

// UploadResult carries the aggregate ids of a publish call. The backend's
// shape is best effort; absence of any field is tolerated.
type UploadResult struct {
	DriveFileID string `json:"drive_file_id"`
	WebViewLink string `json:"webViewLink"`
}

// UploadResponse is the tolerant union of the shapes the storage publish
// endpoint has returned.
type UploadResponse struct {
	Message        string          `json:"message"`
	FilesOrganized []OrganizedFile `json:"files_organized"`
	UploadResult   *UploadResult   `json:"upload_result"`
	SuccessCount   int             `json:"success_count"`
	Errors         []string        `json:"errors"`
}

// Upload publishes the given selections to the storage folders for userID.
func (c *Client) Upload(ctx context.Context, userID string, selections []Selection) (UploadResponse, error) {
	var empty UploadResponse
	if len(selections) == 0 {
		return empty, services.Wrap(services.ErrValidation, "publish-storage", "upload", "no selections", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	encoded, err := json.Marshal(uploadRequest{UserID: userID, Selections: selections})
	if err != nil {
		return empty, services.Wrap(services.ErrValidation, "publish-storage", "encode body", "", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/upload-to-drive", bytes.NewReader(encoded))
	if err != nil {
		return empty, services.Wrap(services.ErrNetwork, "publish-storage", "new request", "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrNetwork, "publish-storage", "request", "", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrNetwork, "publish-storage", "read body", "", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, services.Wrap(services.ErrNetwork, "publish-storage", "request", errorDetail(resp.StatusCode, body), nil)
	}

	var decoded UploadResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, services.Wrap(services.ErrMalformedResponse, "publish-storage", "decode response", "", err)
	}
	return decoded, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	}
}

func errorDetail(status int, body []byte) string {
	var decoded struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil {
		if decoded.Error != "" {
			return decoded.Error
		}
		if decoded.Detail != "" {
			return decoded.Detail
		}
	}
	return fmt.Sprintf("http %d", status)
}
