package metadata

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildGTFS(t *testing.T) []byte {
	t.Helper()
	files := map[string]string{
		"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n" +
			"MBTA,MBTA,https://www.mbta.com,America/New_York\n",
		"routes.txt": "route_id,agency_id,route_short_name,route_long_name,route_type\n" +
			"Red,MBTA,,Red Line,1\n" +
			"Blue,MBTA,,Blue Line,1\n",
		"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n" +
			"alfcl,Alewife,42.3954,-71.1425\n" +
			"davis,Davis,42.3967,-71.1223\n" +
			"portr,Porter,42.3884,-71.1191\n" +
			"asmnl,Ashmont,42.2847,-71.0637\n",
		"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
			"weekday,1,1,1,1,1,0,0,20250101,20351231\n",
		"trips.txt": "route_id,service_id,trip_id\n" +
			"Red,weekday,red-1\n" +
			"Red,weekday,red-2\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
			"red-1,08:04:00,08:04:00,portr,3\n" +
			"red-1,08:00:00,08:00:00,alfcl,1\n" +
			"red-1,08:02:00,08:02:00,davis,2\n" +
			"red-2,09:00:00,09:00:00,davis,1\n" +
			"red-2,09:30:00,09:30:00,asmnl,2\n",
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestStaticSourceRouteStops(t *testing.T) {
	source, err := ParseStaticSource(buildGTFS(t))
	require.NoError(t, err)

	stops, err := source.RouteStops(context.Background(), "Red")
	require.NoError(t, err)
	assert.Equal(t, []Stop{
		{ID: "alfcl", Name: "Alewife"},
		{ID: "davis", Name: "Davis"},
		{ID: "portr", Name: "Porter"},
		{ID: "asmnl", Name: "Ashmont"},
	}, stops)
	assert.Equal(t, []string{"Red"}, source.Routes())

	_, err = source.RouteStops(context.Background(), "Blue")
	assert.ErrorIs(t, err, ErrUnknownRoute, "a route without trips has no stops")
}

func TestLoadStaticSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gtfs.zip")
	require.NoError(t, os.WriteFile(path, buildGTFS(t), 0o644))

	source, err := LoadStaticSource(path)
	require.NoError(t, err)
	assert.Len(t, source.Routes(), 1)

	_, err = LoadStaticSource(filepath.Join(t.TempDir(), "missing.zip"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = ParseStaticSource([]byte("not a zip"))
	assert.ErrorContains(t, err, "parse GTFS archive")
}
