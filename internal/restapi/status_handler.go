package restapi

import (
	"errors"
	"net/http"

	"ledmap.transitboard.org/internal/models"
)

var errNoStatusSource = errors.New("no status source configured")

func (api *RestAPI) statusHandler(w http.ResponseWriter, r *http.Request) {
	if api.Status == nil {
		api.serverErrorResponse(w, r, errNoStatusSource)
		return
	}

	status := api.Status.Status()

	var stops models.StopInfo
	if api.Stops != nil {
		stops.Wired, stops.Unassigned, stops.Placeholder = api.Stops.Counts()
	}

	entry := models.NewDisplayStatus(status, api.Healthy(status), stops, api.Uptime())
	api.sendResponse(w, r, models.NewEntryResponse(entry))
}

func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	if api.Status == nil {
		api.serverErrorResponse(w, r, errNoStatusSource)
		return
	}

	status := api.Status.Status()
	if !api.Healthy(status) {
		api.sendResponse(w, r, models.NewErrorResponse(http.StatusServiceUnavailable, "display degraded: "+status.Error))
		return
	}
	api.sendResponse(w, r, models.NewOKResponse(nil))
}
