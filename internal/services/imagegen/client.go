package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"placeforge/internal/services"
)

const defaultHTTPTimeout = 120 * time.Second

// Config captures the runtime settings for the sprite synthesis model.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client wraps an image-output chat endpoint.
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

// NewClient constructs an image synthesis client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Modalities []string      `json:"modalities"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Images  []struct {
				ImageURL imageRef `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Synthesize sends the captured view plus a style prompt to the model and
// returns the synthesized image bytes. A response without an image payload is
// an error.
func (c *Client) Synthesize(ctx context.Context, view []byte, prompt string) ([]byte, error) {
	if len(view) == 0 {
		return nil, services.Wrap(services.ErrValidation, "synthesize", "request", "view image required", nil)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, services.Wrap(services.ErrValidation, "synthesize", "request", "prompt required", nil)
	}
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "synthesize", "request", "api key required", nil)
	}

	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageRef{URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(view)}},
			}},
		},
		Modalities: []string{"image", "text"},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "synthesize", "request", "encode body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "synthesize", "request", "new request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "synthesize", "request", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "synthesize", "request", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrTransient, "synthesize", "request",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrValidation, "synthesize", "request", "decode response", err)
	}
	if decoded.Error != nil {
		return nil, services.Wrap(services.ErrTransient, "synthesize", "request", strings.TrimSpace(decoded.Error.Message), nil)
	}

	for _, choice := range decoded.Choices {
		for _, image := range choice.Message.Images {
			data, err := decodeDataURI(image.ImageURL.URL)
			if err != nil {
				return nil, services.Wrap(services.ErrValidation, "synthesize", "decode image", "", err)
			}
			if len(data) > 0 {
				return data, nil
			}
		}
	}
	return nil, services.Wrap(services.ErrValidation, "synthesize", "request", "no image payload returned", nil)
}

func decodeDataURI(uri string) ([]byte, error) {
	idx := strings.Index(uri, "base64,")
	if idx < 0 {
		return nil, fmt.Errorf("image url is not a base64 data uri")
	}
	return base64.StdEncoding.DecodeString(uri[idx+len("base64,"):])
}
