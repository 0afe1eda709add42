package inference

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

	"placeforge/internal/registry"
	"placeforge/internal/services"
)

const defaultHTTPTimeout = 60 * time.Second

// Config captures the runtime settings required to talk to the inference model.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client wraps a chat-completion endpoint that accepts image input and is
// asked to answer with a single JSON object.
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

// NewClient constructs an inference client using the supplied configuration.
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

// Metadata is the structured answer the model must produce for a place.
type Metadata struct {
	Name      string             `json:"name"`
	Category  registry.Category  `json:"category"`
	Footprint registry.Footprint `json:"footprint"`
	Icon      string             `json:"icon"`
}

const systemPrompt = `You classify real-world places from a single rendered view.
Respond with JSON only: {"name": display name, "category": one of %s,
"footprint": {"w": 1-8, "h": 1-8} relative building size in grid cells,
"icon": exactly one emoji glyph}.`

// Infer sends the captured view plus contextual text to the model and parses
// the structured metadata out of its answer. A malformed or incomplete answer
// is a validation error; the caller's retry policy decides whether another
// attempt is spent re-asking.
func (c *Client) Infer(ctx context.Context, view []byte, placeName string, tags []string) (Metadata, error) {
	var empty Metadata
	if len(view) == 0 {
		return empty, services.Wrap(services.ErrValidation, "infer", "request", "view image required", nil)
	}
	if c.cfg.APIKey == "" {
		return empty, services.Wrap(services.ErrConfiguration, "infer", "request", "api key required", nil)
	}

	categories := make([]string, 0, len(registry.Categories()))
	for _, category := range registry.Categories() {
		categories = append(categories, string(category))
	}
	userText := fmt.Sprintf("Place: %s", strings.TrimSpace(placeName))
	if len(tags) > 0 {
		userText += fmt.Sprintf("\nKnown tags: %s", strings.Join(tags, ", "))
	}

	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: []contentPart{{Type: "text", Text: fmt.Sprintf(systemPrompt, strings.Join(categories, "|"))}}},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: userText},
				{Type: "image_url", ImageURL: &imageRef{URL: dataURI(view)}},
			}},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	content, err := c.completionContent(ctx, payload)
	if err != nil {
		return empty, err
	}

	var parsed Metadata
	if err := DecodeModelJSON(content, &parsed); err != nil {
		return empty, services.Wrap(services.ErrValidation, "infer", "parse payload", "", err)
	}
	if err := validateMetadata(&parsed); err != nil {
		return empty, services.Wrap(services.ErrValidation, "infer", "validate payload", "", err)
	}
	return parsed, nil
}

func validateMetadata(meta *Metadata) error {
	meta.Name = strings.TrimSpace(meta.Name)
	if meta.Name == "" {
		return fmt.Errorf("missing name")
	}
	category, err := registry.ParseCategory(string(meta.Category))
	if err != nil {
		return err
	}
	meta.Category = category
	if !meta.Footprint.Valid() {
		return fmt.Errorf("footprint %dx%d outside 1..8", meta.Footprint.W, meta.Footprint.H)
	}
	meta.Icon = strings.TrimSpace(meta.Icon)
	if meta.Icon == "" {
		return fmt.Errorf("missing icon")
	}
	if record := (registry.Record{ID: "probe", Icon: meta.Icon}); record.Validate() != nil {
		return fmt.Errorf("icon %q must be a single glyph", meta.Icon)
	}
	return nil
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
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
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) completionContent(ctx context.Context, payload chatRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "infer", "request", "encode body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "infer", "request", "new request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "infer", "request", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "infer", "request", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", services.Wrap(services.ErrTransient, "infer", "request",
			fmt.Sprintf("http %d: %s", resp.StatusCode, summarizeSnippet(string(body))), nil)
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", services.Wrap(services.ErrValidation, "infer", "request", "decode response", err)
	}
	if decoded.Error != nil {
		return "", services.Wrap(services.ErrTransient, "infer", "request", strings.TrimSpace(decoded.Error.Message), nil)
	}
	for _, choice := range decoded.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", services.Wrap(services.ErrValidation, "infer", "request", "empty completion content", nil)
}

func dataURI(image []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
}
