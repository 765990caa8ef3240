package feature

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

func init() {
	// Replace global logger with a no-op to avoid nil pointer panics in tests.
	zap.ReplaceGlobals(zap.NewNop())
}

func squareAt(x, y float64) geom.T {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{x, y}, {x, y + 0.1}, {x + 0.1, y + 0.1}, {x + 0.1, y}, {x, y},
	}})
}

type decodedCollection struct {
	Type     string `json:"type"`
	Features []struct {
		Type       string          `json:"type"`
		Properties map[string]any  `json:"properties"`
		Geometry   json.RawMessage `json:"geometry"`
	} `json:"features"`
}

func decode(t *testing.T, data []byte) decodedCollection {
	t.Helper()
	var out decodedCollection
	require.NoError(t, json.Unmarshal(data, &out), "output must be valid JSON")
	return out
}

func TestEncodeGeoJSON(t *testing.T) {
	feats := []Feature{
		{
			GEOID: "24003750100",
			Geom:  squareAt(-76.6, 39.2),
			Props: map[string]any{"geoid": "24003750100", "mobility_pct": 35.0, "is_desert": true},
		},
		{
			GEOID: "24003750200",
			Props: map[string]any{"geoid": "24003750200", "mobility_pct": nil, "is_desert": false},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeGeoJSON(&buf, feats, 6))

	out := decode(t, buf.Bytes())
	assert.Equal(t, "FeatureCollection", out.Type)
	require.Len(t, out.Features, 2)

	first := out.Features[0]
	assert.Equal(t, "Feature", first.Type)
	assert.Equal(t, "24003750100", first.Properties["geoid"])
	assert.Equal(t, 35.0, first.Properties["mobility_pct"])
	assert.Equal(t, true, first.Properties["is_desert"])
	assert.Contains(t, string(first.Geometry), "Polygon")

	// Absent metric is null, not missing.
	second := out.Features[1]
	require.Contains(t, second.Properties, "mobility_pct")
	assert.Nil(t, second.Properties["mobility_pct"])
	assert.Equal(t, "null", string(second.Geometry))
}

func TestEncodeGeoJSONSortsByGEOID(t *testing.T) {
	feats := []Feature{
		{GEOID: "24003750200", Props: map[string]any{"geoid": "24003750200"}},
		{GEOID: "06037123456", Props: map[string]any{"geoid": "06037123456"}},
		{GEOID: "24003750100", Props: map[string]any{"geoid": "24003750100"}},
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeGeoJSON(&buf, feats, 6))

	out := decode(t, buf.Bytes())
	require.Len(t, out.Features, 3)
	assert.Equal(t, "06037123456", out.Features[0].Properties["geoid"])
	assert.Equal(t, "24003750100", out.Features[1].Properties["geoid"])
	assert.Equal(t, "24003750200", out.Features[2].Properties["geoid"])
}

func TestEncodeGeoJSONDeterministic(t *testing.T) {
	a := Feature{GEOID: "24003750100", Geom: squareAt(-76.6, 39.2), Props: map[string]any{"b": 1.0, "a": "x", "c": nil}}
	b := Feature{GEOID: "24003750200", Geom: squareAt(-76.5, 39.1), Props: map[string]any{"a": "y", "c": 2.0, "b": nil}}

	var first, second bytes.Buffer
	require.NoError(t, EncodeGeoJSON(&first, []Feature{a, b}, 6))
	require.NoError(t, EncodeGeoJSON(&second, []Feature{b, a}, 6))

	// Input order must not leak into the output bytes.
	assert.Equal(t, first.String(), second.String())
}

func TestEncodeGeoJSONPrecision(t *testing.T) {
	feats := []Feature{{
		GEOID: "24003750100",
		Geom:  squareAt(-76.123456789, 39.2),
		Props: map[string]any{"geoid": "24003750100"},
	}}

	var buf bytes.Buffer
	require.NoError(t, EncodeGeoJSON(&buf, feats, 2))

	s := buf.String()
	assert.Contains(t, s, "-76.12")
	assert.NotContains(t, s, "-76.123")
}

func TestEncodeGeoJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeGeoJSON(&buf, nil, 6))

	assert.Equal(t, "{\"type\":\"FeatureCollection\",\"features\":[]}\n", buf.String())
}

func TestWriteGeoJSONCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "tracts.geojson")
	feats := []Feature{{GEOID: "24003750100", Props: map[string]any{"geoid": "24003750100"}}}

	require.NoError(t, WriteGeoJSON(path, feats, 6))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := decode(t, data)
	assert.Len(t, out.Features, 1)
	assert.True(t, strings.HasSuffix(string(data), "\n"))
}
