package capture

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

const (
	defaultHTTPTimeout  = 60 * time.Second
	defaultReadyTimeout = 15 * time.Second
	defaultPollInterval = 500 * time.Millisecond
)

// Config captures the runtime settings for the headless render surface.
type Config struct {
	BaseURL        string
	Width          int
	Height         int
	ReadyTimeout   time.Duration
	PollInterval   time.Duration
	TimeoutSeconds int
}

// Surface drives a transient headless rendering session: create a render,
// poll until the surface reports the content settled, fetch exactly one
// image, tear the session down. The readiness poll replaces a fixed settle
// delay, so slow tiles are waited for and fast ones are not.
type Surface struct {
	cfg        Config
	httpClient *http.Client
	sleeper    func(context.Context, time.Duration) error
}

// Option customizes the surface.
type Option func(*Surface)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Surface) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithSleeper overrides how poll pauses are performed (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(s *Surface) {
		if sleeper != nil {
			s.sleeper = sleeper
		}
	}
}

// NewSurface constructs a capture surface using the supplied configuration.
func NewSurface(cfg Config, opts ...Option) *Surface {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	surface := &Surface{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		sleeper:    defaultSleep,
	}
	for _, opt := range opts {
		opt(surface)
	}
	return surface
}

// Target identifies the view to render.
type Target struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name,omitempty"`
}

type createResponse struct {
	RenderID string `json:"render_id"`
}

type statusResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Capture renders the target and returns one image. One capture per call.
func (s *Surface) Capture(ctx context.Context, target Target) ([]byte, error) {
	renderID, err := s.createRender(ctx, target)
	if err != nil {
		return nil, err
	}
	defer s.release(renderID)

	if err := s.awaitReady(ctx, renderID); err != nil {
		return nil, err
	}
	return s.fetchImage(ctx, renderID)
}

func (s *Surface) createRender(ctx context.Context, target Target) (string, error) {
	payload, err := json.Marshal(struct {
		Target
		Width  int `json:"width"`
		Height int `json:"height"`
	}{Target: target, Width: s.cfg.Width, Height: s.cfg.Height})
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "capture", "create", "encode target", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/render", bytes.NewReader(payload))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "capture", "create", "new request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "capture", "create", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "capture", "create", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", services.Wrap(services.ErrTransient, "capture", "create",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var decoded createResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", services.Wrap(services.ErrValidation, "capture", "create", "decode response", err)
	}
	if strings.TrimSpace(decoded.RenderID) == "" {
		return "", services.Wrap(services.ErrValidation, "capture", "create", "response missing render id", nil)
	}
	return decoded.RenderID, nil
}

// awaitReady polls the render status until the surface reports the content
// settled or the readiness window elapses.
func (s *Surface) awaitReady(ctx context.Context, renderID string) error {
	deadline := time.Now().Add(s.cfg.ReadyTimeout)
	for {
		status, err := s.fetchStatus(ctx, renderID)
		if err != nil {
			return err
		}
		if status.Error != "" {
			return services.Wrap(services.ErrTransient, "capture", "await", status.Error, nil)
		}
		if status.Ready {
			return nil
		}
		if time.Now().After(deadline) {
			return services.Wrap(services.ErrTransient, "capture", "await",
				fmt.Sprintf("render not ready after %s", s.cfg.ReadyTimeout), nil)
		}
		if err := s.sleeper(ctx, s.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func (s *Surface) fetchStatus(ctx context.Context, renderID string) (statusResponse, error) {
	var decoded statusResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"/render/"+renderID+"/status", nil)
	if err != nil {
		return decoded, services.Wrap(services.ErrTransient, "capture", "status", "new request", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return decoded, services.Wrap(services.ErrTransient, "capture", "status", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decoded, services.Wrap(services.ErrTransient, "capture", "status", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return decoded, services.Wrap(services.ErrTransient, "capture", "status",
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return decoded, services.Wrap(services.ErrValidation, "capture", "status", "decode response", err)
	}
	return decoded, nil
}

func (s *Surface) fetchImage(ctx context.Context, renderID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"/render/"+renderID+"/image", nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "capture", "image", "new request", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "capture", "image", "http error", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrTransient, "capture", "image",
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "capture", "image", "read body", err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrValidation, "capture", "image", "empty image payload", nil)
	}
	return data, nil
}

// release tears the render session down. Best effort; the surface garbage
// collects abandoned sessions anyway.
func (s *Surface) release(renderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.cfg.BaseURL+"/render/"+renderID, nil)
	if err != nil {
		return
	}
	if resp, err := s.httpClient.Do(req); err == nil {
		_ = resp.Body.Close()
	}
}

func defaultSleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
