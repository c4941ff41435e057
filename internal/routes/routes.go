// Package routes holds the fixed set of transit routes a run tracks.
package routes

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Line is one entry of the route list file. Key is the human label and is
// never used for matching.
type Line struct {
	Key string
	// RouteID is the agency route identifier reported by the vehicle feed.
	RouteID string
	// MetadataID is the identifier used against the stop metadata API.
	// It equals RouteID unless the file gives a separate value.
	MetadataID string
}

type lineValue struct {
	Route       string `yaml:"route"`
	Transitland string `yaml:"transitland"`
}

// LoadLines reads the route list file at path.
func LoadLines(path string) ([]Line, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route list: %w", err)
	}
	lines, err := ParseLines(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lines, nil
}

// ParseLines decodes a route list. Each value is either a scalar route id or
// a mapping with "route" and optional "transitland" keys:
//
//	Red: Red
//	Orange:
//	  route: Orange
//	  transitland: r-drt-orange~line
func ParseLines(data []byte) ([]Line, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, errors.New("route list is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: route list must be a mapping of names to route ids", root.Line)
	}

	lines := make([]Line, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valueNode := root.Content[i], root.Content[i+1]
		line := Line{Key: keyNode.Value}

		switch valueNode.Kind {
		case yaml.ScalarNode:
			line.RouteID = strings.TrimSpace(valueNode.Value)
		case yaml.MappingNode:
			var v lineValue
			if err := valueNode.Decode(&v); err != nil {
				return nil, fmt.Errorf("line %d: %w", valueNode.Line, err)
			}
			line.RouteID = strings.TrimSpace(v.Route)
			line.MetadataID = strings.TrimSpace(v.Transitland)
		default:
			return nil, fmt.Errorf("line %d: route %q must be a string or a mapping", valueNode.Line, line.Key)
		}

		if line.RouteID == "" {
			return nil, fmt.Errorf("line %d: route %q has an empty route id", valueNode.Line, line.Key)
		}
		if line.MetadataID == "" {
			line.MetadataID = line.RouteID
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return nil, errors.New("route list is empty")
	}
	return lines, nil
}

// Filter is a membership test over tracked route ids. Matching is exact.
type Filter struct {
	ids map[string]struct{}
}

// NewFilter builds a filter from route ids. Duplicates collapse.
func NewFilter(routeIDs []string) *Filter {
	f := &Filter{ids: make(map[string]struct{}, len(routeIDs))}
	for _, id := range routeIDs {
		f.ids[id] = struct{}{}
	}
	return f
}

// FilterFromLines builds a filter over the agency route ids of lines.
func FilterFromLines(lines []Line) *Filter {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.RouteID)
	}
	return NewFilter(ids)
}

// IsTracked reports whether routeID is in the tracked set.
func (f *Filter) IsTracked(routeID string) bool {
	_, ok := f.ids[routeID]
	return ok
}

// IDs returns the tracked route ids sorted.
func (f *Filter) IDs() []string {
	out := make([]string, 0, len(f.ids))
	for id := range f.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of tracked routes.
func (f *Filter) Len() int {
	return len(f.ids)
}
