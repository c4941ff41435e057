package app

import (
	"log/slog"
	"time"

	"ledmap.transitboard.org/internal/appconf"
	"ledmap.transitboard.org/internal/ledtable"
	"ledmap.transitboard.org/internal/refresh"
)

// StatusSource publishes the latest tick. *refresh.Loop satisfies it.
type StatusSource interface {
	Status() refresh.TickStatus
}

// Application holds the dependencies for our HTTP handlers, helpers,
// and middleware.
type Application struct {
	Config  appconf.Config
	Logger  *slog.Logger
	Status  StatusSource
	Stops   *ledtable.Table
	Started time.Time
}

// Healthy reports whether the display is following the feed. It turns false
// once consecutive degraded ticks reach the alert threshold.
func (app *Application) Healthy(status refresh.TickStatus) bool {
	threshold := app.Config.Notify.DegradedAfter
	if threshold <= 0 {
		threshold = 1
	}
	return status.ConsecutiveDegraded < threshold
}

// Uptime is the time since the application started.
func (app *Application) Uptime() time.Duration {
	if app.Started.IsZero() {
		return 0
	}
	return time.Since(app.Started)
}
