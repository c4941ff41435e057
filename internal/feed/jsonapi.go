package feed

import (
	"encoding/json"
	"errors"
	"fmt"
)

// The JSON:API vehicle document, restricted to the fields the display uses.
type vehicleDocument struct {
	Data *[]vehicleResource `json:"data"`
}

type vehicleResource struct {
	ID            string                `json:"id"`
	Relationships *vehicleRelationships `json:"relationships"`
}

type vehicleRelationships struct {
	Route *relationship `json:"route"`
	Stop  *relationship `json:"stop"`
}

type relationship struct {
	Data *resourceIdentifier `json:"data"`
}

type resourceIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (r *relationship) id() string {
	if r == nil || r.Data == nil {
		return ""
	}
	return r.Data.ID
}

// ParseJSONAPI decodes an MBTA v3 style /vehicles document. The whole
// document must decode before any observation is returned. Vehicles without
// a route or a stop relationship are skipped.
func ParseJSONAPI(body []byte) ([]Observation, error) {
	var doc vehicleDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}
	if doc.Data == nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, errors.New(`missing "data" array`))
	}

	observations := make([]Observation, 0, len(*doc.Data))
	for _, v := range *doc.Data {
		if v.Relationships == nil {
			continue
		}
		routeID := v.Relationships.Route.id()
		stopID := v.Relationships.Stop.id()
		if routeID == "" || stopID == "" {
			continue
		}
		observations = append(observations, Observation{
			VehicleID: v.ID,
			RouteID:   routeID,
			StopID:    stopID,
		})
	}
	return observations, nil
}
