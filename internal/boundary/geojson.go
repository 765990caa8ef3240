package boundary

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/spark-map/atlas-cli/internal/geoid"
)

// geoFeature is the subset of a GeoJSON Feature the reader cares about.
// Geometry is kept raw so null geometries survive decoding.
type geoFeature struct {
	ID         any             `json:"id"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// ReadGeoJSON loads tracts from a GeoJSON FeatureCollection. The GEOID is
// taken from the geoid/geoid20/geoid10 property when present, otherwise
// assembled from statefp+countyfp+tractce, otherwise the feature id.
func ReadGeoJSON(path string, opts Options) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: read %s", path)
	}

	var fc struct {
		Type     string       `json:"type"`
		Features []geoFeature `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "boundary: decode %s", path)
	}
	if fc.Type != "FeatureCollection" {
		return nil, eris.Errorf("boundary: %s: expected FeatureCollection, got %q", path, fc.Type)
	}

	tbl := newTable()
	for _, f := range fc.Features {
		tbl.Report.RowsRead++

		tr := Tract{
			Name:   propString(f.Properties, "name", "tract_name", "namelsad"),
			ALand:  propInt64(f.Properties, "aland"),
			AWater: propInt64(f.Properties, "awater"),
			Geom:   decodeGeometry(f.Geometry),
		}
		if err := tbl.keep(featureGEOID(f), tr, tbl.Report.RowsRead, opts); err != nil {
			return nil, err
		}
	}
	tbl.finish()

	zap.L().With(zap.String("component", "boundary")).Info("geojson loaded",
		zap.String("path", path),
		zap.Int("rows_read", tbl.Report.RowsRead),
		zap.Int("tracts", tbl.Report.Tracts),
		zap.Int("malformed", tbl.Report.Malformed),
		zap.Int("no_geometry", tbl.Report.NoGeometry),
	)
	return tbl, nil
}

// featureGEOID finds the raw tract identifier for a feature.
func featureGEOID(f geoFeature) string {
	if id := propString(f.Properties, "geoid", "geoid20", "geoid10"); id != "" {
		return id
	}

	state := propString(f.Properties, "statefp")
	county := propString(f.Properties, "countyfp")
	tract := propString(f.Properties, "tractce")
	if state != "" && county != "" && tract != "" {
		if assembled, err := geoid.FromParts(state, county, tract); err == nil {
			return assembled
		}
	}

	return anyString(f.ID)
}

// decodeGeometry parses a raw geometry into a MultiPolygon. Null,
// absent, unparseable, and non-areal geometries all read as nil.
func decodeGeometry(raw json.RawMessage) geom.T {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		zap.L().Debug("boundary: skipping unparseable geometry", zap.Error(err))
		return nil
	}
	return toMultiPolygon(g)
}

// toMultiPolygon promotes a Polygon to a single-part MultiPolygon so every
// tract carries the same geometry type.
func toMultiPolygon(g geom.T) geom.T {
	switch gg := g.(type) {
	case *geom.MultiPolygon:
		return gg.SetSRID(4326)
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
		if err := mp.Push(gg); err != nil {
			return nil
		}
		return mp
	default:
		return nil
	}
}

// propString looks up the first present property among names,
// case-insensitively, and renders it as a string.
func propString(props map[string]any, names ...string) string {
	for _, name := range names {
		for k, v := range props {
			if strings.EqualFold(k, name) {
				if s := anyString(v); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

// propInt64 looks up a numeric property, tolerating the float64 form
// JSON decoding produces.
func propInt64(props map[string]any, name string) int64 {
	for k, v := range props {
		if !strings.EqualFold(k, name) {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int64(n)
		case string:
			if parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
				return parsed
			}
		}
	}
	return 0
}

func anyString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}
