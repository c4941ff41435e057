// Package webui renders development-only debug pages.
package webui

import (
	"html/template"
	"net/http"

	"github.com/davecgh/go-spew/spew"
	"ledmap.transitboard.org/internal/app"
)

var debugTemplate = template.Must(template.New("debug").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<pre>{{.Pre}}</pre>
</body>
</html>
`))

type debugData struct {
	Title string
	Pre   string
}

// WebUI dumps live application state for inspection on the bench.
type WebUI struct {
	*app.Application
}

func New(application *app.Application) *WebUI {
	return &WebUI{Application: application}
}

func writeDebugData(w http.ResponseWriter, title string, data interface{}) {
	content := spew.Sdump(data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	err := debugTemplate.Execute(w, debugData{
		Title: title,
		Pre:   content,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// DebugIndexHandler serves /debug/state?dataType=...
func (webUI *WebUI) DebugIndexHandler(w http.ResponseWriter, r *http.Request) {
	dataType := r.URL.Query().Get("dataType")

	var data interface{}
	var title string

	switch dataType {
	case "status":
		if webUI.Status == nil {
			data = map[string]string{"error": "no refresh loop attached"}
		} else {
			data = webUI.Status.Status()
		}
		title = "Refresh - Last Tick"
	case "table":
		if webUI.Stops != nil {
			data = webUI.Stops.Rows()
		}
		title = "LED Table - Rows"
	case "channels":
		if webUI.Stops != nil {
			data = webUI.Stops.Channels()
		}
		title = "LED Table - Wired Channels"
	case "config":
		data = webUI.Config.Redacted()
		title = "Configuration"
	default:
		data = map[string]string{
			"error": "Please use one of the following: status, table, channels, config.",
		}
		title = "Choose a data type"
	}

	writeDebugData(w, title, data)
}
