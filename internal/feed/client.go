// Package feed fetches snapshots of vehicle positions from a transit agency.
//
// The client is an I/O boundary only. It returns typed observations or a
// FeedUnavailableError and never a partially parsed snapshot.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ledmap.transitboard.org/internal/logging"
)

// Format selects the wire format of the vehicle feed.
type Format string

const (
	FormatJSONAPI      Format = "jsonapi"
	FormatGTFSRealtime Format = "gtfsrt"
)

const (
	DefaultTimeout      = 5 * time.Second
	DefaultAPIKeyHeader = "X-API-Key"

	maxBodyBytes = 16 << 20
)

// Observation is one vehicle seen in a snapshot.
type Observation struct {
	VehicleID string
	RouteID   string
	StopID    string
}

// Config describes where and how to fetch the feed.
type Config struct {
	URL          string
	Format       Format
	APIKey       string
	APIKeyHeader string
	Timeout      time.Duration
	// RouteIDs, when set on a JSON:API feed, are sent as filter[route] so the
	// agency only returns tracked vehicles.
	RouteIDs []string
}

// Client fetches vehicle snapshots.
type Client struct {
	config     Config
	httpClient *http.Client
	parse      func([]byte) ([]Observation, error)
	requestURL string
}

// NewClient validates config and returns a client. A nil httpClient uses a
// fresh client with the configured timeout.
func NewClient(config Config, httpClient *http.Client) (*Client, error) {
	if config.URL == "" {
		return nil, errors.New("feed url is required")
	}
	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed url: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.APIKeyHeader == "" {
		config.APIKeyHeader = DefaultAPIKeyHeader
	}
	if config.Format == "" {
		config.Format = FormatJSONAPI
	}

	c := &Client{config: config, httpClient: httpClient}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: config.Timeout}
	}

	switch config.Format {
	case FormatJSONAPI:
		c.parse = ParseJSONAPI
		if len(config.RouteIDs) > 0 {
			q := u.Query()
			q.Set("filter[route]", strings.Join(config.RouteIDs, ","))
			u.RawQuery = q.Encode()
		}
	case FormatGTFSRealtime:
		c.parse = ParseGTFSRealtime
	default:
		return nil, fmt.Errorf("unknown feed format %q", config.Format)
	}
	c.requestURL = u.String()

	return c, nil
}

// URL returns the request URL including any route filter.
func (c *Client) URL() string {
	return c.requestURL
}

// FetchSnapshot performs one request bounded by the configured timeout.
func (c *Client) FetchSnapshot(ctx context.Context) ([]Observation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := c.get(ctx)
	if err != nil {
		return nil, err
	}

	observations, err := c.parse(body)
	if err != nil {
		return nil, &FeedUnavailableError{URL: c.config.URL, Err: err}
	}
	return observations, nil
}

func (c *Client) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL, nil)
	if err != nil {
		return nil, &FeedUnavailableError{URL: c.config.URL, Err: err}
	}
	if c.config.APIKey != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}
	if c.config.Format == FormatJSONAPI {
		req.Header.Set("Accept", "application/vnd.api+json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FeedUnavailableError{URL: c.config.URL, Err: err}
	}
	defer logging.SafeCloseWithLogging(resp.Body,
		logging.FromContext(ctx).With(slog.String("component", "vehicle_feed")),
		"http_response_body")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FeedUnavailableError{
			URL:        c.config.URL,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &FeedUnavailableError{URL: c.config.URL, StatusCode: resp.StatusCode, Err: err}
	}
	if len(b) > maxBodyBytes {
		return nil, &FeedUnavailableError{
			URL:        c.config.URL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedFeed, maxBodyBytes),
		}
	}
	return b, nil
}
