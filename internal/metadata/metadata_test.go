package metadata

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ledmap.transitboard.org/internal/ledtable"
	"ledmap.transitboard.org/internal/logging"
	"ledmap.transitboard.org/internal/routes"
)

type fakeSource map[string][]Stop

func (f fakeSource) RouteStops(_ context.Context, routeKey string) ([]Stop, error) {
	stops, ok := f[routeKey]
	if !ok {
		return nil, errors.New("boom")
	}
	return stops, nil
}

func TestResolve(t *testing.T) {
	source := fakeSource{
		"r-drt-red":    {{ID: "place-alfcl", Name: "Alewife"}, {ID: "place-dwnxg", Name: "Downtown Crossing"}},
		"r-drt-orange": {{ID: "place-ogmnl", Name: "Oak Grove"}, {ID: "place-dwnxg", Name: "Downtown Crossing"}},
		"r-empty":      {},
	}
	lines := []routes.Line{
		{Key: "red", RouteID: "Red", MetadataID: "r-drt-red"},
		{Key: "orange", RouteID: "Orange", MetadataID: "r-drt-orange"},
		{Key: "silver", RouteID: "741", MetadataID: "r-empty"},
		{Key: "typo", RouteID: "Blu", MetadataID: "r-missing"},
	}

	var logs bytes.Buffer
	result, err := Resolve(context.Background(), source, lines, logging.NewStructuredLogger(&logs, slog.LevelInfo))
	require.NoError(t, err)

	assert.Equal(t, []ledtable.Row{
		{StopID: "place-alfcl", StopName: "Alewife", Channel: ledtable.Unassigned},
		{StopID: "place-dwnxg", StopName: "Downtown Crossing", Channel: ledtable.Unassigned},
		{StopID: "place-ogmnl", StopName: "Oak Grove", Channel: ledtable.Unassigned},
	}, result.Rows)

	require.Len(t, result.Diagnostics, 2)
	assert.Equal(t, "silver", result.Diagnostics[0].Key)
	assert.ErrorIs(t, result.Diagnostics[0], ErrUnknownRoute)
	assert.Equal(t, "r-missing", result.Diagnostics[1].RouteKey)
	assert.EqualError(t, result.Diagnostics[1], "line typo (route r-missing): boom")
	assert.Contains(t, logs.String(), "failed to resolve route")

	_, err = ledtable.Build(result.Rows)
	assert.NoError(t, err, "resolved rows always form a valid table")
}

func TestResolveStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Resolve(ctx, fakeSource{}, []routes.Line{{Key: "red", MetadataID: "x"}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMergeAssignments(t *testing.T) {
	existing, err := ledtable.Build([]ledtable.Row{
		{StopID: "place-alfcl", StopName: "Alewife", Channel: 12},
		{StopID: "place-dwnxg", StopName: "Downtown Crossing", Channel: ledtable.Placeholder},
		{StopID: "place-ogmnl", StopName: "Oak Grove", Channel: ledtable.Unassigned},
		{StopID: "place-closed", StopName: "Closed", Channel: 40},
	})
	require.NoError(t, err)

	rows := []ledtable.Row{
		{StopID: "place-alfcl", StopName: "Alewife"},
		{StopID: "place-dwnxg", StopName: "Downtown Crossing"},
		{StopID: "place-ogmnl", StopName: "Oak Grove"},
		{StopID: "place-new", StopName: "New Station"},
	}

	merged, report := MergeAssignments(rows, existing)

	assert.Equal(t, []ledtable.Channel{12, ledtable.Placeholder, ledtable.Unassigned, ledtable.Unassigned},
		[]ledtable.Channel{merged[0].Channel, merged[1].Channel, merged[2].Channel, merged[3].Channel})
	assert.Equal(t, 2, report.Carried)
	assert.Equal(t, []string{"place-closed"}, report.Dropped)
	assert.Equal(t, ledtable.Unassigned, rows[0].Channel, "input rows are not modified")
}
