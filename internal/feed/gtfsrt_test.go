package feed

import (
	"context"
	"net/http"
	"testing"
	"time"

	gtfsrtpb "github.com/jamespfennell/gtfs/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func vehicleEntity(id, routeID, stopID string) *gtfsrtpb.FeedEntity {
	position := &gtfsrtpb.VehiclePosition{
		Vehicle: &gtfsrtpb.VehicleDescriptor{Id: proto.String(id)},
	}
	if routeID != "" {
		position.Trip = &gtfsrtpb.TripDescriptor{
			TripId:  proto.String("trip-" + id),
			RouteId: proto.String(routeID),
		}
	}
	if stopID != "" {
		position.StopId = proto.String(stopID)
	}
	return &gtfsrtpb.FeedEntity{Id: proto.String(id), Vehicle: position}
}

func vehiclePositionsFeed(t *testing.T, entities ...*gtfsrtpb.FeedEntity) []byte {
	t.Helper()
	msg := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfsrtpb.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC).Unix())),
		},
		Entity: entities,
	}
	b, err := proto.Marshal(msg)
	require.NoError(t, err)
	return b
}

func TestParseGTFSRealtime(t *testing.T) {
	t.Run("extracts route and stop per vehicle", func(t *testing.T) {
		body := vehiclePositionsFeed(t,
			vehicleEntity("R-1", "Red", "70061"),
			vehicleEntity("O-1", "Orange", "70001"),
			vehicleEntity("B-1", "", "70038"),
			vehicleEntity("G-1", "Green-B", ""),
		)

		observations, err := ParseGTFSRealtime(body)
		require.NoError(t, err)
		assert.ElementsMatch(t, []Observation{
			{VehicleID: "R-1", RouteID: "Red", StopID: "70061"},
			{VehicleID: "O-1", RouteID: "Orange", StopID: "70001"},
		}, observations)
	})

	t.Run("undecodable bytes are malformed", func(t *testing.T) {
		_, err := ParseGTFSRealtime([]byte("garbage"))
		assert.ErrorIs(t, err, ErrMalformedFeed)
	})
}

func TestFetchSnapshotGTFSRealtime(t *testing.T) {
	body := vehiclePositionsFeed(t, vehicleEntity("R-1", "Red", "70061"))
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-protobuf")
		_, _ = w.Write(body)
	})

	client, err := NewClient(Config{URL: server.URL, Format: FormatGTFSRealtime}, nil)
	require.NoError(t, err)

	observations, err := client.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Observation{{VehicleID: "R-1", RouteID: "Red", StopID: "70061"}}, observations)
}
