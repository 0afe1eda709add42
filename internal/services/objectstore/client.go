package objectstore

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

	"placeforge/internal/services"
)

const defaultHTTPTimeout = 120 * time.Second

// Config captures the runtime settings for the upload service.
type Config struct {
	APIKey         string
	BaseURL        string
	Bucket         string
	TimeoutSeconds int
}

// Client uploads binary artifacts and returns their public URLs.
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

// NewClient constructs an object store client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Bucket:         strings.TrimSpace(cfg.Bucket),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload stores data under name and returns the public URL the generation
// provider can fetch it from.
func (c *Client) Upload(ctx context.Context, name string, data []byte) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", services.Wrap(services.ErrValidation, "upload", "request", "object name required", nil)
	}
	if len(data) == 0 {
		return "", services.Wrap(services.ErrValidation, "upload", "request", "payload required", nil)
	}
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "upload", "request", "api key required", nil)
	}

	endpoint := c.cfg.BaseURL + "/objects/" + url.PathEscape(name)
	if c.cfg.Bucket != "" {
		endpoint += "?bucket=" + url.QueryEscape(c.cfg.Bucket)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "upload", "request", "new request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "upload", "request", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "upload", "request", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", services.Wrap(services.ErrTransient, "upload", "request",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var decoded uploadResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", services.Wrap(services.ErrValidation, "upload", "request", "decode response", err)
	}
	if strings.TrimSpace(decoded.URL) == "" {
		return "", services.Wrap(services.ErrValidation, "upload", "request", "response missing url", nil)
	}
	return decoded.URL, nil
}
