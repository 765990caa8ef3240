// Package feature serializes joined tract features to GeoJSON and writes
// the accompanying data dictionary.
//
// Output is deterministic: features are ordered by GEOID, property keys are
// emitted in sorted order, and coordinates are rounded to a fixed number of
// decimal digits, so re-running a join on identical inputs produces
// byte-identical files.
package feature

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// DefaultPrecision is the number of coordinate decimal digits kept in
// output. Six digits is roughly 10cm at the equator, plenty for tract
// boundaries.
const DefaultPrecision = 6

// Feature is one output row: a tract identifier, its boundary geometry,
// and the merged property map. A property whose value is nil serializes
// as JSON null; absent metrics must be present-but-null, never missing.
type Feature struct {
	GEOID string
	Geom  geom.T
	Props map[string]any
}

// WriteGeoJSON writes features to path as an RFC 7946 FeatureCollection.
func WriteGeoJSON(path string, feats []Feature, precision int) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "feature: create output dir")
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "feature: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := bufio.NewWriter(f)
	if err := EncodeGeoJSON(w, feats, precision); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return eris.Wrapf(err, "feature: write %s", path)
	}
	return nil
}

// EncodeGeoJSON writes features to w as a FeatureCollection, one feature
// per line, ordered by GEOID.
func EncodeGeoJSON(w io.Writer, feats []Feature, precision int) error {
	if precision <= 0 {
		precision = DefaultPrecision
	}

	sorted := make([]Feature, len(feats))
	copy(sorted, feats)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].GEOID < sorted[j].GEOID })

	if _, err := io.WriteString(w, `{"type":"FeatureCollection","features":[`); err != nil {
		return eris.Wrap(err, "feature: encode")
	}
	for i, ft := range sorted {
		sep := "\n"
		if i > 0 {
			sep = ",\n"
		}
		if _, err := io.WriteString(w, sep); err != nil {
			return eris.Wrap(err, "feature: encode")
		}
		if err := encodeFeature(w, ft, precision); err != nil {
			return eris.Wrapf(err, "feature: encode %s", ft.GEOID)
		}
	}
	tail := "]}\n"
	if len(sorted) > 0 {
		tail = "\n]}\n"
	}
	if _, err := io.WriteString(w, tail); err != nil {
		return eris.Wrap(err, "feature: encode")
	}
	return nil
}

// encodeFeature writes a single Feature object. encoding/json sorts map
// keys, which keeps the property order stable across runs.
func encodeFeature(w io.Writer, ft Feature, precision int) error {
	props, err := json.Marshal(ft.Props)
	if err != nil {
		return eris.Wrap(err, "marshal properties")
	}

	geomJSON := []byte("null")
	if ft.Geom != nil {
		geomJSON, err = geojson.Marshal(ft.Geom, geojson.EncodeGeometryWithMaxDecimalDigits(precision))
		if err != nil {
			return eris.Wrap(err, "marshal geometry")
		}
	}

	_, err = fmt.Fprintf(w, `{"type":"Feature","properties":%s,"geometry":%s}`, props, geomJSON)
	return err
}
