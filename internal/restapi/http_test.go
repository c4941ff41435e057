package restapi

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"ledmap.transitboard.org/internal/app"
	"ledmap.transitboard.org/internal/appconf"
	"ledmap.transitboard.org/internal/ledtable"
	"ledmap.transitboard.org/internal/logging"
	"ledmap.transitboard.org/internal/models"
	"ledmap.transitboard.org/internal/refresh"
)

type staticStatus refresh.TickStatus

func (s staticStatus) Status() refresh.TickStatus {
	return refresh.TickStatus(s)
}

// createTestApi builds a RestAPI over a fixed tick status and a small table.
func createTestApi(t *testing.T, status refresh.TickStatus, logs *bytes.Buffer) *RestAPI {
	t.Helper()
	table, err := ledtable.Build([]ledtable.Row{
		{StopID: "place-alfcl", StopName: "Alewife", Channel: 1},
		{StopID: "place-davis", StopName: "Davis", Channel: 2},
		{StopID: "place-portr", StopName: "Porter", Channel: ledtable.Unassigned},
		{StopID: "place-sstat", StopName: "South Station", Channel: ledtable.Placeholder},
	})
	require.NoError(t, err)

	if logs == nil {
		logs = &bytes.Buffer{}
	}
	api := NewRestAPI(&app.Application{
		Config: appconf.Config{
			Env:    appconf.Test,
			Notify: appconf.NotifyConfig{DegradedAfter: 3},
		},
		Logger:  logging.NewStructuredLogger(logs, slog.LevelInfo),
		Status:  staticStatus(status),
		Stops:   table,
		Started: time.Now().Add(-time.Hour),
	})
	t.Cleanup(api.Stop)
	return api
}

// serveApiAndRetrieveEndpoint serves the API's routes and decodes the envelope
// returned for endpoint.
func serveApiAndRetrieveEndpoint(t *testing.T, api *RestAPI, endpoint string) (*http.Response, models.ResponseModel) {
	t.Helper()
	server := httptest.NewServer(api.Routes())
	defer server.Close()

	resp, err := http.Get(server.URL + endpoint)
	require.NoError(t, err)
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "test")),
		"http_response_body")

	var response models.ResponseModel
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	return resp, response
}

func httptestServer(t *testing.T, api *RestAPI) string {
	t.Helper()
	server := httptest.NewServer(api.Routes())
	t.Cleanup(server.Close)
	return server.URL
}
