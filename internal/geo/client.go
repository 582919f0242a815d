// Package geo resolves excavation addresses and coordinates against the
// GIS lookup service. Results only enrich a ticket; failures are never fatal.
package geo

import (
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

	"github.com/spec-kit/dig-ticket-service/internal/config"
	"github.com/spec-kit/dig-ticket-service/internal/domain"
)

// ErrUnavailable marks any failure to obtain a location.
var ErrUnavailable = errors.New("enrichment unavailable")

// Query is either a street address, a coordinate pair, or both.
type Query struct {
	Address   string
	Latitude  *float64
	Longitude *float64
}

// QueryFromFields builds the lookup for a ticket's current field set.
// ok is false when there is nothing to resolve.
func QueryFromFields(f domain.Fields) (Query, bool) {
	var parts []string
	for _, p := range []*string{f.StreetAddress, f.City, f.County} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	q := Query{Address: strings.Join(parts, ", ")}
	if f.Latitude != nil && f.Longitude != nil {
		q.Latitude, q.Longitude = f.Latitude, f.Longitude
	}
	if f.StreetAddress == nil && q.Latitude == nil {
		return Query{}, false
	}
	if q.Address != "" {
		q.Address += ", TX"
	}
	return q, true
}

// Location is a resolved point with optional parcel attributes.
type Location struct {
	Latitude   float64           `json:"latitude"`
	Longitude  float64           `json:"longitude"`
	Confidence float64           `json:"confidence"`
	Parcel     map[string]string `json:"parcel,omitempty"`
}

// Resolver looks up a location.
type Resolver interface {
	ResolveLocation(ctx context.Context, q Query) (Location, error)
}

// Client talks to the GIS HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
}

// NewClient builds a client from config. It returns nil when no base URL
// is configured.
func NewClient(cfg config.GeoConfig) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		backoff:    200 * time.Millisecond,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type resolveResponse struct {
	Data *Location `json:"data"`
}

// ResolveLocation calls GET /v1/locations/resolve. Network errors and 5xx
// responses are retried with linear backoff; every failure wraps ErrUnavailable.
func (c *Client) ResolveLocation(ctx context.Context, q Query) (Location, error) {
	u, err := url.Parse(c.baseURL + "/v1/locations/resolve")
	if err != nil {
		return Location{}, fmt.Errorf("%w: invalid base url: %v", ErrUnavailable, err)
	}
	params := u.Query()
	if q.Address != "" {
		params.Set("address", q.Address)
	}
	if q.Latitude != nil && q.Longitude != nil {
		params.Set("lat", strconv.FormatFloat(*q.Latitude, 'f', 6, 64))
		params.Set("lng", strconv.FormatFloat(*q.Longitude, 'f', 6, 64))
	}
	u.RawQuery = params.Encode()

	attempts := c.maxRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Location{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}
		loc, retry, err := c.do(ctx, u.String())
		if err == nil {
			return loc, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return Location{}, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) do(ctx context.Context, target string) (Location, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Location{}, false, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Location{}, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Location{}, true, fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode >= 500:
		return Location{}, true, fmt.Errorf("geo service returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return Location{}, false, fmt.Errorf("geo service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed resolveResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Location{}, false, fmt.Errorf("parse response: %w", err)
	}
	if parsed.Data == nil {
		return Location{}, false, errors.New("geo service returned no location")
	}
	return *parsed.Data, false, nil
}
