package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"ledmap.transitboard.org/internal/logging"
)

const (
	// DefaultTransitlandURL is the Transitland v2 REST root.
	DefaultTransitlandURL = "https://transit.land/api/v2/rest/"

	defaultTimeout      = 5 * time.Second
	defaultRetryBackoff = 500 * time.Millisecond
	maxResponseBytes    = 8 << 20
)

// TransitlandConfig configures the Transitland client.
type TransitlandConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	// Retries is the number of extra attempts after a transient failure.
	Retries int
	// RetryBackoff is the first wait between attempts; it doubles after each.
	RetryBackoff time.Duration
}

// HTTPStatusError is a non-2xx Transitland response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("transitland: HTTP %d from %s", e.StatusCode, e.URL)
}

// temporary reports whether a retry may succeed.
func (e *HTTPStatusError) temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// TransitlandClient resolves routes by Onestop id against the Transitland API.
type TransitlandClient struct {
	config     TransitlandConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTransitlandClient applies defaults to config. A nil httpClient uses
// http.DefaultClient and a nil logger uses slog.Default.
func NewTransitlandClient(config TransitlandConfig, httpClient *http.Client, logger *slog.Logger) *TransitlandClient {
	if config.URL == "" {
		config.URL = DefaultTransitlandURL
	}
	if !strings.HasSuffix(config.URL, "/") {
		config.URL += "/"
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.Retries < 0 {
		config.Retries = 0
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaultRetryBackoff
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TransitlandClient{
		config:     config,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "transitland")),
	}
}

type routesResponse struct {
	Routes []struct {
		OnestopID  string `json:"onestop_id"`
		RouteStops []struct {
			Stop struct {
				StopID   string `json:"stop_id"`
				StopName string `json:"stop_name"`
			} `json:"stop"`
		} `json:"route_stops"`
	} `json:"routes"`
}

// RouteStops fetches the stops of the route with the given Onestop id.
// Transport errors, 5xx and 429 responses are retried with exponential
// backoff; other 4xx responses fail at once.
func (c *TransitlandClient) RouteStops(ctx context.Context, routeKey string) ([]Stop, error) {
	endpoint := c.config.URL + "routes/" + url.PathEscape(routeKey)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.config.Retries)), ctx)

	body, err := backoff.RetryNotifyWithData(
		func() (routesResponse, error) {
			return c.fetch(ctx, endpoint)
		},
		policy,
		func(err error, wait time.Duration) {
			c.logger.Warn("transitland request failed, retrying",
				slog.String("route", routeKey),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()))
		},
	)
	if err != nil {
		return nil, err
	}

	if len(body.Routes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoute, routeKey)
	}
	route := body.Routes[0]
	stops := make([]Stop, 0, len(route.RouteStops))
	for _, rs := range route.RouteStops {
		stops = append(stops, Stop{ID: rs.Stop.StopID, Name: rs.Stop.StopName})
	}
	return stops, nil
}

func (c *TransitlandClient) fetch(ctx context.Context, endpoint string) (routesResponse, error) {
	var body routesResponse

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return body, backoff.Permanent(err)
	}
	if c.config.APIKey != "" {
		req.Header.Set("apikey", c.config.APIKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return body, backoff.Permanent(err)
		}
		return body, err
	}
	defer logging.SafeCloseWithLogging(resp.Body, c.logger, "transitland_response_body")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &HTTPStatusError{URL: endpoint, StatusCode: resp.StatusCode}
		if resp.StatusCode == http.StatusNotFound {
			return body, backoff.Permanent(fmt.Errorf("%w: %w", ErrUnknownRoute, statusErr))
		}
		if !statusErr.temporary() {
			return body, backoff.Permanent(statusErr)
		}
		return body, statusErr
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return body, backoff.Permanent(fmt.Errorf("decode transitland response: %w", err))
	}
	return body, nil
}
