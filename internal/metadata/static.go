package metadata

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/jamespfennell/gtfs"
)

// StaticSource answers route queries from a static GTFS archive. A route's
// stops are the stops of its trips, ordered by stop sequence and then by
// first appearance across trips.
type StaticSource struct {
	routes map[string][]Stop
}

// LoadStaticSource parses the GTFS zip at path.
func LoadStaticSource(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read GTFS archive: %w", err)
	}
	return ParseStaticSource(data)
}

// ParseStaticSource parses a GTFS zip held in memory.
func ParseStaticSource(data []byte) (*StaticSource, error) {
	static, err := gtfs.ParseStatic(data, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("parse GTFS archive: %w", err)
	}

	src := &StaticSource{
		routes: make(map[string][]Stop),
	}

	seen := make(map[string]map[string]struct{})
	for _, trip := range static.Trips {
		if trip.Route == nil {
			continue
		}
		routeID := trip.Route.Id
		if seen[routeID] == nil {
			seen[routeID] = make(map[string]struct{})
		}

		stopTimes := make([]gtfs.ScheduledStopTime, len(trip.StopTimes))
		copy(stopTimes, trip.StopTimes)
		sort.SliceStable(stopTimes, func(i, j int) bool {
			return stopTimes[i].StopSequence < stopTimes[j].StopSequence
		})

		for _, st := range stopTimes {
			if st.Stop == nil {
				continue
			}
			if _, ok := seen[routeID][st.Stop.Id]; ok {
				continue
			}
			seen[routeID][st.Stop.Id] = struct{}{}
			src.routes[routeID] = append(src.routes[routeID], Stop{ID: st.Stop.Id, Name: st.Stop.Name})
		}
	}
	return src, nil
}

// RouteStops returns the stops of routeKey, a GTFS route_id.
func (s *StaticSource) RouteStops(_ context.Context, routeKey string) ([]Stop, error) {
	stops, ok := s.routes[routeKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoute, routeKey)
	}
	out := make([]Stop, len(stops))
	copy(out, stops)
	return out, nil
}

// Routes returns the ids of all routes with at least one stop, sorted.
func (s *StaticSource) Routes() []string {
	ids := make([]string, 0, len(s.routes))
	for id := range s.routes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
