package restapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"ledmap.transitboard.org/internal/logging"
	"ledmap.transitboard.org/internal/models"
)

func writeJSON(w http.ResponseWriter, response models.ResponseModel) error {
	setJSONResponseType(&w)
	if response.Code != http.StatusOK {
		w.WriteHeader(response.Code)
	}
	return json.NewEncoder(w).Encode(response)
}

func (api *RestAPI) sendResponse(w http.ResponseWriter, r *http.Request, response models.ResponseModel) {
	if err := writeJSON(w, response); err != nil {
		logging.LogError(api.Logger, "failed to encode response", err,
			slog.String("path", r.URL.Path))
	}
}

func (api *RestAPI) sendNotFound(w http.ResponseWriter, r *http.Request) {
	api.sendResponse(w, r, models.NewErrorResponse(http.StatusNotFound, "resource not found"))
}

func (api *RestAPI) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	api.sendResponse(w, r, models.NewErrorResponse(http.StatusMethodNotAllowed, "method not allowed"))
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(api.Logger, "status request failed", err,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))
	api.sendResponse(w, r, models.NewErrorResponse(http.StatusInternalServerError, "internal server error"))
}

func (api *RestAPI) panicResponse(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	api.serverErrorResponse(w, r, fmt.Errorf("panic: %v", recovered))
}

func setJSONResponseType(w *http.ResponseWriter) {
	(*w).Header().Set("Content-Type", "application/json")
}
