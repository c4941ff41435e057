package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONAPI(t *testing.T) {
	t.Run("skips vehicles with missing relationships", func(t *testing.T) {
		body := `{"data": [
			{"id": "a", "relationships": {"route": {"data": {"id": "Red"}}, "stop": {"data": null}}},
			{"id": "b", "relationships": {"route": {"data": {"id": "Red"}}}},
			{"id": "c", "relationships": {"stop": {"data": {"id": "70061"}}}},
			{"id": "d"},
			{"id": "e", "relationships": {"route": {"data": {"id": ""}}, "stop": {"data": {"id": "70061"}}}},
			{"id": "f", "relationships": {"route": {"data": {"id": "Red"}}, "stop": {"data": {"id": "70063"}}}}
		]}`

		observations, err := ParseJSONAPI([]byte(body))
		require.NoError(t, err)
		assert.Equal(t, []Observation{{VehicleID: "f", RouteID: "Red", StopID: "70063"}}, observations)
	})

	t.Run("empty data is a valid empty snapshot", func(t *testing.T) {
		observations, err := ParseJSONAPI([]byte(`{"data": []}`))
		require.NoError(t, err)
		assert.Empty(t, observations)
	})

	t.Run("schema violations fail the whole document", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"not json", `<html>maintenance</html>`},
			{"truncated", `{"data": [{"id": "a"`},
			{"missing data", `{"errors": [{"status": "500"}]}`},
			{"null data", `{"data": null}`},
			{"data is an object", `{"data": {"id": "a"}}`},
			{"vehicle is not an object", `{"data": [{"id": "a"}, 42]}`},
			{"stop id is not a string", `{"data": [{"id": "a", "relationships": {"route": {"data": {"id": "Red"}}, "stop": {"data": {"id": 70061}}}}]}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				observations, err := ParseJSONAPI([]byte(tt.body))
				assert.ErrorIs(t, err, ErrMalformedFeed)
				assert.Nil(t, observations)
			})
		}
	})
}
