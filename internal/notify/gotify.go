package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"ledmap.transitboard.org/internal/logging"
)

// Gotify posts events to a Gotify server.
type Gotify struct {
	url        string
	token      string
	priority   int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGotify creates a notifier for the server at baseURL.
func NewGotify(baseURL, token string, priority int, httpClient *http.Client, logger *slog.Logger) *Gotify {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gotify{
		url:        strings.TrimRight(baseURL, "/") + "/message",
		token:      token,
		priority:   priority,
		httpClient: httpClient,
		logger:     logger,
	}
}

type gotifyMessage struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

func (g *Gotify) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(gotifyMessage{
		Title:    event.Title,
		Message:  event.Message,
		Priority: g.priority,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gotify-Key", g.token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gotify: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body, g.logger, "gotify_response_body")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gotify: HTTP %d from %s", resp.StatusCode, g.url)
	}
	return nil
}
