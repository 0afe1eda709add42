package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"placeforge/internal/services"
)

const defaultHTTPTimeout = 60 * time.Second

// Config captures the runtime settings for the location services.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// Client wraps the geocoding and place-detail endpoints.
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

// NewClient constructs a places client using the supplied configuration.
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

// Location is a resolved canonical place.
type Location struct {
	PlaceRef string
	Lat      float64
	Lng      float64
}

// Details describes a resolved place.
type Details struct {
	DisplayName string
	Tags        []string
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID  string `json:"place_id"`
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

// Resolve maps a free-text identifier to a canonical location. A miss is
// tagged ErrNotFound so the pipeline fails the item without retrying.
func (c *Client) Resolve(ctx context.Context, query string) (Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Location{}, services.Wrap(services.ErrValidation, "places", "resolve", "query required", nil)
	}
	if c.cfg.APIKey == "" {
		return Location{}, services.Wrap(services.ErrConfiguration, "places", "resolve", "api key required", nil)
	}

	endpoint := fmt.Sprintf("%s/geocode?address=%s", c.cfg.BaseURL, url.QueryEscape(query))
	var decoded geocodeResponse
	if err := c.getJSON(ctx, endpoint, &decoded); err != nil {
		return Location{}, err
	}

	switch decoded.Status {
	case "OK":
	case "ZERO_RESULTS":
		return Location{}, services.Wrap(services.ErrNotFound, "places", "resolve", query, nil)
	default:
		return Location{}, services.Wrap(services.ErrTransient, "places", "resolve",
			fmt.Sprintf("status %s: %s", decoded.Status, decoded.ErrorMessage), nil)
	}
	if len(decoded.Results) == 0 {
		return Location{}, services.Wrap(services.ErrNotFound, "places", "resolve", query, nil)
	}
	first := decoded.Results[0]
	if strings.TrimSpace(first.PlaceID) == "" {
		return Location{}, services.Wrap(services.ErrValidation, "places", "resolve", "response missing place id", nil)
	}
	return Location{
		PlaceRef: first.PlaceID,
		Lat:      first.Geometry.Location.Lat,
		Lng:      first.Geometry.Location.Lng,
	}, nil
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		Name  string   `json:"name"`
		Types []string `json:"types"`
	} `json:"result"`
	ErrorMessage string `json:"error_message"`
}

// Details fetches the descriptive name and type tags for a canonical
// reference. The caller decides whether a missing name is fatal.
func (c *Client) Details(ctx context.Context, placeRef string) (Details, error) {
	placeRef = strings.TrimSpace(placeRef)
	if placeRef == "" {
		return Details{}, services.Wrap(services.ErrValidation, "places", "details", "place ref required", nil)
	}
	if c.cfg.APIKey == "" {
		return Details{}, services.Wrap(services.ErrConfiguration, "places", "details", "api key required", nil)
	}

	endpoint := fmt.Sprintf("%s/details?place_id=%s", c.cfg.BaseURL, url.QueryEscape(placeRef))
	var decoded detailsResponse
	if err := c.getJSON(ctx, endpoint, &decoded); err != nil {
		return Details{}, err
	}

	switch decoded.Status {
	case "OK":
	case "NOT_FOUND", "ZERO_RESULTS":
		return Details{}, services.Wrap(services.ErrNotFound, "places", "details", placeRef, nil)
	default:
		return Details{}, services.Wrap(services.ErrTransient, "places", "details",
			fmt.Sprintf("status %s: %s", decoded.Status, decoded.ErrorMessage), nil)
	}
	return Details{
		DisplayName: strings.TrimSpace(decoded.Result.Name),
		Tags:        decoded.Result.Types,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrTransient, "places", "request", "new request", err)
	}
	req.Header.Set("X-Goog-Api-Key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return services.Wrap(services.ErrTransient, "places", "request", "http error", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "places", "request", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		marker := services.ErrTransient
		if resp.StatusCode == http.StatusNotFound {
			marker = services.ErrNotFound
		}
		return services.Wrap(marker, "places", "request",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return services.Wrap(services.ErrValidation, "places", "request", "decode response", err)
	}
	return nil
}
