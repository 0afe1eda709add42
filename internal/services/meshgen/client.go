package meshgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"placeforge/internal/services"
)

const defaultHTTPTimeout = 120 * time.Second

// Config captures the runtime settings for the asynchronous 3D provider.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// Client wraps the provider's submit/status/download surface. Jobs run
// asynchronously and in parallel on the provider side; this client never
// waits, it only issues single calls.
type Client struct {
	cfg        Config
	httpClient *http.Client
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

// NewClient constructs a meshgen client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// State is the provider-reported lifecycle phase of a job.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// JobStatus is one poll's view of a job.
type JobStatus struct {
	State State
	// QueuePosition is the provider's coarse distance-from-execution hint;
	// nil when the provider did not supply one.
	QueuePosition *int
	ResultURL     string
	ResultExt     string
	Message       string
}

type submitRequest struct {
	ImageURL string `json:"image_url"`
	Topology string `json:"topology"`
}

type submitResponse struct {
	Result string `json:"result"`
}

type statusResponse struct {
	Status        string `json:"status"`
	QueuePosition *int   `json:"queue_position"`
	ModelURLs     struct {
		GLB string `json:"glb"`
	} `json:"model_urls"`
	TaskError *struct {
		Message string `json:"message"`
	} `json:"task_error"`
}

// Submit enqueues a generation job for the uploaded sprite and returns the
// provider's opaque request id.
func (c *Client) Submit(ctx context.Context, imageURL string) (string, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return "", services.Wrap(services.ErrValidation, "meshgen", "submit", "image url required", nil)
	}
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "meshgen", "submit", "api key required", nil)
	}

	encoded, err := json.Marshal(submitRequest{ImageURL: imageURL, Topology: "quad"})
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "meshgen", "submit", "encode body", err)
	}
	body, err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/image-to-3d", bytes.NewReader(encoded))
	if err != nil {
		return "", err
	}

	var decoded submitResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", services.Wrap(services.ErrValidation, "meshgen", "submit", "decode response", err)
	}
	if strings.TrimSpace(decoded.Result) == "" {
		return "", services.Wrap(services.ErrValidation, "meshgen", "submit", "response missing request id", nil)
	}
	return decoded.Result, nil
}

// Status queries the job state exactly once.
func (c *Client) Status(ctx context.Context, requestID string) (JobStatus, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return JobStatus{}, services.Wrap(services.ErrValidation, "meshgen", "status", "request id required", nil)
	}

	body, err := c.do(ctx, http.MethodGet, c.cfg.BaseURL+"/image-to-3d/"+requestID, nil)
	if err != nil {
		return JobStatus{}, err
	}

	var decoded statusResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return JobStatus{}, services.Wrap(services.ErrValidation, "meshgen", "status", "decode response", err)
	}

	status := JobStatus{QueuePosition: decoded.QueuePosition}
	switch strings.ToUpper(strings.TrimSpace(decoded.Status)) {
	case "PENDING", "QUEUED":
		status.State = StatePending
	case "IN_PROGRESS", "RUNNING":
		status.State = StateInProgress
	case "SUCCEEDED", "COMPLETED":
		status.State = StateSucceeded
		status.ResultURL = decoded.ModelURLs.GLB
		status.ResultExt = "glb"
		if strings.TrimSpace(status.ResultURL) == "" {
			return JobStatus{}, services.Wrap(services.ErrValidation, "meshgen", "status", "succeeded without result url", nil)
		}
	case "FAILED", "CANCELED", "EXPIRED":
		status.State = StateFailed
		if decoded.TaskError != nil {
			status.Message = strings.TrimSpace(decoded.TaskError.Message)
		}
	default:
		return JobStatus{}, services.Wrap(services.ErrValidation, "meshgen", "status",
			fmt.Sprintf("unknown state %q", decoded.Status), nil)
	}
	return status, nil
}

// Download fetches the finished model binary.
func (c *Client) Download(ctx context.Context, resultURL string) ([]byte, error) {
	resultURL = strings.TrimSpace(resultURL)
	if resultURL == "" {
		return nil, services.Wrap(services.ErrValidation, "meshgen", "download", "result url required", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "meshgen", "download", "new request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "meshgen", "download", "http error", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrTransient, "meshgen", "download",
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "meshgen", "download", "read body", err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrValidation, "meshgen", "download", "empty model payload", nil)
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "meshgen", "request", "new request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "meshgen", "request", "http error", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "meshgen", "request", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrTransient, "meshgen", "request",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))), nil)
	}
	return payload, nil
}
