package feed

import (
	"fmt"

	"github.com/jamespfennell/gtfs"
)

// ParseGTFSRealtime decodes a GTFS-realtime VehiclePositions message. The
// route comes from the vehicle's trip descriptor; vehicles without a route
// id or a stop id are skipped.
func ParseGTFSRealtime(body []byte) ([]Observation, error) {
	realtime, err := gtfs.ParseRealtime(body, &gtfs.ParseRealtimeOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}

	observations := make([]Observation, 0, len(realtime.Vehicles))
	for _, vehicle := range realtime.Vehicles {
		if vehicle.Trip == nil || vehicle.Trip.ID.RouteID == "" {
			continue
		}
		if vehicle.StopID == nil || *vehicle.StopID == "" {
			continue
		}
		var vehicleID string
		if vehicle.ID != nil {
			vehicleID = vehicle.ID.ID
		}
		observations = append(observations, Observation{
			VehicleID: vehicleID,
			RouteID:   vehicle.Trip.ID.RouteID,
			StopID:    *vehicle.StopID,
		})
	}
	return observations, nil
}
