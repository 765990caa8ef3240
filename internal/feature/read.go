package feature

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// ReadGeoJSON loads a previously written FeatureCollection back into
// features, keeping the full property map intact. The geoid property is
// the identifier; a feature without one is an error since every writer
// in this tool emits it.
func ReadGeoJSON(path string) ([]Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "feature: read %s", path)
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any  `json:"properties"`
			Geometry   json.RawMessage `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "feature: decode %s", path)
	}
	if fc.Type != "FeatureCollection" {
		return nil, eris.Errorf("feature: %s: expected FeatureCollection, got %q", path, fc.Type)
	}

	out := make([]Feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		id, _ := f.Properties["geoid"].(string)
		if id == "" {
			return nil, eris.Errorf("feature: %s: feature %d has no geoid property", path, i)
		}

		var g geom.T
		if len(f.Geometry) > 0 && string(f.Geometry) != "null" {
			if err := geojson.Unmarshal(f.Geometry, &g); err != nil {
				return nil, eris.Wrapf(err, "feature: %s: feature %s geometry", path, id)
			}
		}

		out = append(out, Feature{GEOID: id, Geom: g, Props: f.Properties})
	}
	return out, nil
}
