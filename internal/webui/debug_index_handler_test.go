package webui

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ledmap.transitboard.org/internal/app"
	"ledmap.transitboard.org/internal/appconf"
	"ledmap.transitboard.org/internal/ledtable"
	"ledmap.transitboard.org/internal/refresh"
)

type staticStatus refresh.TickStatus

func (s staticStatus) Status() refresh.TickStatus {
	return refresh.TickStatus(s)
}

func TestDebugIndexHandler(t *testing.T) {
	table, err := ledtable.Build([]ledtable.Row{
		{StopID: "place-alfcl", StopName: "Alewife", Channel: 1},
		{StopID: "place-davis", StopName: "Davis", Channel: 2},
	})
	require.NoError(t, err)

	ui := New(&app.Application{
		Status: staticStatus(refresh.TickStatus{Lit: []int{2}}),
		Stops:  table,
	})

	tests := []struct {
		name     string
		dataType string
		title    string
		contains string
	}{
		{"status", "status", "Refresh - Last Tick", "Lit"},
		{"table", "table", "LED Table - Rows", "place-alfcl"},
		{"channels", "channels", "LED Table - Wired Channels", "ledtable.Channel"},
		{"unknown", "bogus", "Choose a data type", "Please use one of the following"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ui.DebugIndexHandler(rec, httptest.NewRequest(http.MethodGet, "/debug/state?dataType="+tt.dataType, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
			body := rec.Body.String()
			assert.Contains(t, body, "<h1>"+tt.title+"</h1>")
			assert.Contains(t, body, tt.contains)
		})
	}
}

func TestDebugIndexHandlerWithoutLoop(t *testing.T) {
	ui := New(&app.Application{})
	rec := httptest.NewRecorder()
	ui.DebugIndexHandler(rec, httptest.NewRequest(http.MethodGet, "/debug/state?dataType=status", nil))

	assert.Contains(t, rec.Body.String(), "no refresh loop attached")
}

func TestDebugIndexHandlerMasksCredentials(t *testing.T) {
	var cfg appconf.Config
	cfg.Feed.APIKey = "feed-secret"
	cfg.Notify.Gotify.Token = "gotify-secret"
	cfg.Notify.MQTT.Password = "mqtt-secret"
	cfg.Transitland.APIKey = "transitland-secret"
	cfg.Feed.URL = "https://api-v3.mbta.com/vehicles"

	ui := New(&app.Application{Config: cfg})
	rec := httptest.NewRecorder()
	ui.DebugIndexHandler(rec, httptest.NewRequest(http.MethodGet, "/debug/state?dataType=config", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "api-v3.mbta.com")
	assert.Contains(t, body, "[redacted]")
	for _, secret := range []string{"feed-secret", "gotify-secret", "mqtt-secret", "transitland-secret"} {
		assert.NotContains(t, body, secret)
	}
}
