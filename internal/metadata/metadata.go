// Package metadata builds the stop table skeleton from route metadata.
//
// A Source lists the stops served by a route. Resolve walks the configured
// lines, collects their stops once each and records a diagnostic for every
// route that could not be resolved, so one bad id never sinks the batch.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledmap.transitboard.org/internal/ledtable"
	"ledmap.transitboard.org/internal/logging"
	"ledmap.transitboard.org/internal/routes"
)

// ErrUnknownRoute is returned when a source has no route for a key.
var ErrUnknownRoute = errors.New("unknown route")

// Stop is one stop served by a route, in route order.
type Stop struct {
	ID   string
	Name string
}

// Source lists the stops of a route.
type Source interface {
	RouteStops(ctx context.Context, routeKey string) ([]Stop, error)
}

// RouteDiagnostic records a route that produced no stops.
type RouteDiagnostic struct {
	Key      string
	RouteKey string
	Err      error
}

func (d RouteDiagnostic) Error() string {
	return fmt.Sprintf("line %s (route %s): %v", d.Key, d.RouteKey, d.Err)
}

func (d RouteDiagnostic) Unwrap() error {
	return d.Err
}

// Result is the outcome of a resolution run.
type Result struct {
	Rows        []ledtable.Row
	Diagnostics []RouteDiagnostic
}

// Resolve queries source for every line and returns one unassigned row per
// distinct stop, in first-seen order. It only fails when ctx is cancelled.
func Resolve(ctx context.Context, source Source, lines []routes.Line, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var result Result
	seen := make(map[string]struct{})

	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		stops, err := source.RouteStops(ctx, line.MetadataID)
		if err == nil && len(stops) == 0 {
			err = ErrUnknownRoute
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			d := RouteDiagnostic{Key: line.Key, RouteKey: line.MetadataID, Err: err}
			result.Diagnostics = append(result.Diagnostics, d)
			logging.LogError(logger, "failed to resolve route", err,
				slog.String("line", line.Key),
				slog.String("route", line.MetadataID))
			continue
		}

		added := 0
		for _, stop := range stops {
			if stop.ID == "" {
				continue
			}
			if _, dup := seen[stop.ID]; dup {
				continue
			}
			seen[stop.ID] = struct{}{}
			result.Rows = append(result.Rows, ledtable.Row{
				StopID:   stop.ID,
				StopName: stop.Name,
				Channel:  ledtable.Unassigned,
			})
			added++
		}
		logger.Info("route resolved",
			slog.String("line", line.Key),
			slog.String("route", line.MetadataID),
			slog.Int("stops", len(stops)),
			slog.Int("new_stops", added))
	}
	return result, nil
}

// MergeReport summarises MergeAssignments.
type MergeReport struct {
	// Carried counts rows whose channel came from the existing table.
	Carried int
	// Dropped lists stops of the existing table that no route serves any more.
	Dropped []string
}

// MergeAssignments copies channel assignments from an existing table onto
// freshly resolved rows. Stops unknown to existing keep their channel.
func MergeAssignments(rows []ledtable.Row, existing *ledtable.Table) ([]ledtable.Row, MergeReport) {
	var report MergeReport
	out := make([]ledtable.Row, len(rows))
	present := make(map[string]struct{}, len(rows))

	for i, row := range rows {
		present[row.StopID] = struct{}{}
		if prev, ok := existing.Lookup(row.StopID); ok && prev.Channel != ledtable.Unassigned {
			row.Channel = prev.Channel
			report.Carried++
		}
		out[i] = row
	}
	for _, prev := range existing.Rows() {
		if _, ok := present[prev.StopID]; !ok {
			report.Dropped = append(report.Dropped, prev.StopID)
		}
	}
	return out, report
}
