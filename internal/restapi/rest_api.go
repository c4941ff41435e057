// Package restapi serves the read-only status surface of the LED map.
package restapi

import (
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/julienschmidt/httprouter"
	"ledmap.transitboard.org/internal/app"
	"ledmap.transitboard.org/internal/appconf"
	"ledmap.transitboard.org/internal/webui"
)

type RestAPI struct {
	*app.Application
	rateLimiter *RateLimitMiddleware
}

// NewRestAPI creates a new RestAPI instance with initialized rate limiter
func NewRestAPI(app *app.Application) *RestAPI {
	return &RestAPI{
		Application: app,
		rateLimiter: NewRateLimitMiddleware(app.Config.Status.RateLimit, time.Second),
	}
}

// Stop releases the rate limiter.
func (api *RestAPI) Stop() {
	api.rateLimiter.Stop()
}

// Routes returns the status handler wrapped in logging, security headers,
// compression and rate limiting, outermost first.
func (api *RestAPI) Routes() http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(api.sendNotFound)
	router.MethodNotAllowed = http.HandlerFunc(api.methodNotAllowedResponse)
	router.PanicHandler = api.panicResponse

	router.HandlerFunc(http.MethodGet, "/status", api.statusHandler)
	router.HandlerFunc(http.MethodGet, "/healthz", api.healthHandler)

	if api.Config.Env == appconf.Development {
		registerPprofHandlers(router)
		router.HandlerFunc(http.MethodGet, "/debug/state", webui.New(api.Application).DebugIndexHandler)
	}

	var handler http.Handler = router
	handler = api.rateLimiter.Handler(handler)
	handler = CompressionMiddleware(handler)
	handler = securityHeaders(handler)
	return NewRequestLoggingMiddleware(api.Logger)(handler)
}

func registerPprofHandlers(router *httprouter.Router) {
	router.HandlerFunc(http.MethodGet, "/debug/pprof/", pprof.Index)
	router.HandlerFunc(http.MethodGet, "/debug/pprof/cmdline", pprof.Cmdline)
	router.HandlerFunc(http.MethodGet, "/debug/pprof/profile", pprof.Profile)
	router.HandlerFunc(http.MethodGet, "/debug/pprof/symbol", pprof.Symbol)
	router.HandlerFunc(http.MethodGet, "/debug/pprof/trace", pprof.Trace)
}
