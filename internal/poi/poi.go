// Package poi annotates point-of-interest feature files with the county of
// the census tract containing each point.
//
// Containment runs against the joined tract collection: a bounding box
// check first, then a ring test that honors interior holes. Tracts are
// scanned in GEOID order so the first containing tract is stable across
// runs. Points outside every tract get null county properties and are
// counted rather than dropped.
package poi

import (
	"bufio"
	"encoding/json"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/spark-map/atlas-cli/internal/config"
	"github.com/spark-map/atlas-cli/internal/feature"
	"github.com/spark-map/atlas-cli/internal/geoid"
)

// FileReport counts annotation results for one point-of-interest file.
type FileReport struct {
	Path      string `json:"path"`
	Points    int    `json:"points"`
	Matched   int    `json:"matched"`
	Unmatched int    `json:"unmatched"`
}

// Report summarizes a poi run across all configured files.
type Report struct {
	Tracts  int          `json:"tracts"`
	Skipped int          `json:"skipped"`
	Files   []FileReport `json:"files"`
}

// Match identifies the tract containing a located point. CountyName is
// empty when the joined features never carried one.
type Match struct {
	GEOID      string
	CountyFIPS string
	CountyName string
}

// Index is a point-in-tract lookup built from joined features.
type Index struct {
	tracts []indexedTract
}

type indexedTract struct {
	geoid      string
	countyFIPS string
	countyName string
	geom       *geom.MultiPolygon
	bounds     *geom.Bounds
}

// NewIndex indexes every feature that carries usable geometry. Features
// without geometry cannot contain anything and are left out.
func NewIndex(feats []feature.Feature) *Index {
	idx := &Index{}
	for _, ft := range feats {
		mp, ok := ft.Geom.(*geom.MultiPolygon)
		if !ok || mp == nil || mp.NumPolygons() == 0 {
			continue
		}
		tr := indexedTract{
			geoid:      ft.GEOID,
			countyFIPS: geoid.CountyFIPS(ft.GEOID),
			geom:       mp,
			bounds:     mp.Bounds(),
		}
		if name, ok := ft.Props["county_name"].(string); ok {
			tr.countyName = name
		}
		idx.tracts = append(idx.tracts, tr)
	}
	sort.Slice(idx.tracts, func(i, j int) bool { return idx.tracts[i].geoid < idx.tracts[j].geoid })
	return idx
}

// Len reports how many tracts the index can match against.
func (idx *Index) Len() int { return len(idx.tracts) }

// Locate returns the first tract containing the point, in GEOID order.
func (idx *Index) Locate(x, y float64) (Match, bool) {
	c := geom.Coord{x, y}
	for i := range idx.tracts {
		tr := &idx.tracts[i]
		if x < tr.bounds.Min(0) || x > tr.bounds.Max(0) || y < tr.bounds.Min(1) || y > tr.bounds.Max(1) {
			continue
		}
		if multiPolygonContains(tr.geom, c) {
			return Match{GEOID: tr.geoid, CountyFIPS: tr.countyFIPS, CountyName: tr.countyName}, true
		}
	}
	return Match{}, false
}

// multiPolygonContains tests the point against each polygon's outer ring,
// then rejects points that fall inside an interior ring.
func multiPolygonContains(mp *geom.MultiPolygon, c geom.Coord) bool {
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		if p.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(geom.XY, c, p.LinearRing(0).FlatCoords()) {
			continue
		}
		hole := false
		for r := 1; r < p.NumLinearRings(); r++ {
			if xy.IsPointInRing(geom.XY, c, p.LinearRing(r).FlatCoords()) {
				hole = true
				break
			}
		}
		if !hole {
			return true
		}
	}
	return false
}

// Run annotates every configured file in place against the joined tract
// collection. Missing files are skipped with a count, matching the loose
// bundle of upstream extracts this tool is pointed at; unreadable ones
// abort the run.
func Run(cfg config.POIConfig) (*Report, error) {
	feats, err := feature.ReadGeoJSON(cfg.TractsPath)
	if err != nil {
		return nil, err
	}
	idx := NewIndex(feats)
	if idx.Len() == 0 {
		zap.L().Warn("poi: tract collection has no geometry to match against",
			zap.String("path", cfg.TractsPath))
	}

	rep := &Report{Tracts: idx.Len()}
	for _, path := range cfg.Files {
		if _, err := os.Stat(path); err != nil {
			zap.L().Warn("poi: skipping missing file", zap.String("path", path))
			rep.Skipped++
			continue
		}
		fr, err := annotateFile(path, idx)
		if err != nil {
			return nil, err
		}
		rep.Files = append(rep.Files, fr)
		zap.L().Info("poi: annotated file",
			zap.String("path", path),
			zap.Int("points", fr.Points),
			zap.Int("matched", fr.Matched),
			zap.Int("unmatched", fr.Unmatched))
	}
	return rep, nil
}

// poiFeature round-trips a feature while leaving its geometry bytes
// untouched. Only the county properties change on the way through.
type poiFeature struct {
	Type       string          `json:"type"`
	ID         any             `json:"id,omitempty"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// annotateFile rewrites one file with county_name and county_fips set on
// every feature. Both keys are overwritten unconditionally so reruns
// converge on the same bytes.
func annotateFile(path string, idx *Index) (FileReport, error) {
	rep := FileReport{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return rep, eris.Wrapf(err, "poi: read %s", path)
	}
	var fc struct {
		Type     string       `json:"type"`
		Features []poiFeature `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return rep, eris.Wrapf(err, "poi: parse %s", path)
	}
	if fc.Type != "FeatureCollection" {
		return rep, eris.Errorf("poi: %s is not a FeatureCollection", path)
	}

	for i := range fc.Features {
		ft := &fc.Features[i]
		if ft.Properties == nil {
			ft.Properties = map[string]any{}
		}
		rep.Points++

		var m Match
		matched := false
		if c, ok := representative(ft.Geometry); ok {
			m, matched = idx.Locate(c[0], c[1])
		}
		if matched {
			rep.Matched++
			ft.Properties["county_fips"] = m.CountyFIPS
			if m.CountyName != "" {
				ft.Properties["county_name"] = m.CountyName
			} else {
				ft.Properties["county_name"] = nil
			}
		} else {
			rep.Unmatched++
			ft.Properties["county_fips"] = nil
			ft.Properties["county_name"] = nil
		}
	}

	if err := writeFeatures(path, fc.Features); err != nil {
		return rep, err
	}
	return rep, nil
}

// representative picks the coordinate used for containment. Points locate
// themselves; areal features locate by their first vertex.
func representative(raw json.RawMessage) (geom.Coord, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil || g == nil {
		zap.L().Debug("poi: skipping undecodable geometry", zap.Error(err))
		return nil, false
	}
	flat := g.FlatCoords()
	if len(flat) < 2 {
		return nil, false
	}
	return geom.Coord{flat[0], flat[1]}, true
}

// writeFeatures rewrites the collection one feature per line, preserving
// input order. Property keys marshal sorted, so output is deterministic.
func writeFeatures(path string, feats []poiFeature) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "poi: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := bufio.NewWriter(f)
	w.WriteString(`{"type":"FeatureCollection","features":[`) //nolint:errcheck
	for i := range feats {
		sep := "\n"
		if i > 0 {
			sep = ",\n"
		}
		feats[i].Type = "Feature"
		b, err := json.Marshal(&feats[i])
		if err != nil {
			return eris.Wrapf(err, "poi: encode feature %d in %s", i, path)
		}
		w.WriteString(sep) //nolint:errcheck
		w.Write(b)         //nolint:errcheck
	}
	tail := "]}\n"
	if len(feats) > 0 {
		tail = "\n]}\n"
	}
	w.WriteString(tail) //nolint:errcheck
	if err := w.Flush(); err != nil {
		return eris.Wrapf(err, "poi: write %s", path)
	}
	return nil
}
