// Package boundary loads the authoritative tract table for a join: one
// geometry-bearing row per census tract, keyed by normalized GEOID.
//
// Two on-disk formats are supported, dispatched by file extension: TIGER/Line
// shapefiles (.shp) and GeoJSON feature collections (.geojson/.json). Both
// produce the same Table, sorted by GEOID so downstream output is
// deterministic regardless of source row order.
package boundary

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/spark-map/atlas-cli/internal/geoid"
)

var (
	// ErrMissingSource indicates no usable boundary file was supplied.
	// A join cannot proceed without one.
	ErrMissingSource = eris.New("boundary: no boundary source")

	// ErrUnsupportedFormat indicates the boundary path has an extension
	// the reader does not understand.
	ErrUnsupportedFormat = eris.New("boundary: unsupported format")
)

// Tract is one row of the boundary table.
type Tract struct {
	GEOID  string
	Name   string // human-readable tract name, e.g. "7501.02"
	ALand  int64  // land area in square meters
	AWater int64  // water area in square meters
	Geom   geom.T // MultiPolygon in EPSG:4326; nil when the source row had no usable geometry
}

// Report counts what happened while reading a boundary file.
type Report struct {
	RowsRead   int `json:"rows_read"`
	Tracts     int `json:"tracts"`
	Malformed  int `json:"malformed"`
	Duplicate  int `json:"duplicate"`
	Filtered   int `json:"filtered"`
	NoGeometry int `json:"no_geometry"`
}

// Table is the loaded boundary table. Tracts is sorted by GEOID.
type Table struct {
	Tracts []Tract
	Report Report

	index map[string]int
}

// Options control filtering and error handling while reading.
type Options struct {
	// Format overrides extension-based dispatch: "shapefile" or
	// "geojson". Empty means infer from the path.
	Format string

	// StateFIPS, when set, keeps only tracts whose GEOID starts with the
	// given two-digit state code.
	StateFIPS string

	// Strict aborts on the first malformed identifier instead of
	// skipping and counting it.
	Strict bool
}

// Read loads a boundary file, dispatching on the configured format or,
// absent one, the file extension.
func Read(path string, opts Options) (*Table, error) {
	if path == "" {
		return nil, ErrMissingSource
	}
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(ErrMissingSource, "stat %s", path)
	}

	format := strings.ToLower(opts.Format)
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".shp":
			format = "shapefile"
		case ".geojson", ".json":
			format = "geojson"
		}
	}

	switch format {
	case "shapefile":
		return ReadShapefile(path, opts)
	case "geojson":
		return ReadGeoJSON(path, opts)
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "%s", path)
	}
}

// Get returns the tract with the given GEOID, if present.
func (t *Table) Get(id string) (Tract, bool) {
	i, ok := t.index[id]
	if !ok {
		return Tract{}, false
	}
	return t.Tracts[i], true
}

func newTable() *Table {
	return &Table{index: make(map[string]int)}
}

// add keeps the first occurrence of each GEOID and counts later
// duplicates.
func (t *Table) add(tr Tract) {
	if _, dup := t.index[tr.GEOID]; dup {
		t.Report.Duplicate++
		return
	}
	t.index[tr.GEOID] = len(t.Tracts)
	t.Tracts = append(t.Tracts, tr)
}

// finish sorts the table by GEOID and rebuilds the lookup index.
func (t *Table) finish() {
	sort.Slice(t.Tracts, func(i, j int) bool { return t.Tracts[i].GEOID < t.Tracts[j].GEOID })
	for i, tr := range t.Tracts {
		t.index[tr.GEOID] = i
	}
	t.Report.Tracts = len(t.Tracts)
}

// keep normalizes a raw identifier and folds the row into the table,
// honoring the state filter and strict mode. It reports whether the
// caller should continue with the next record.
func (t *Table) keep(rawID string, tr Tract, record int, opts Options) error {
	norm, err := geoid.Normalize(rawID)
	if err != nil {
		if opts.Strict {
			return eris.Wrapf(err, "boundary: record %d", record)
		}
		t.Report.Malformed++
		return nil
	}
	if opts.StateFIPS != "" && !strings.HasPrefix(norm, opts.StateFIPS) {
		t.Report.Filtered++
		return nil
	}

	tr.GEOID = norm
	if tr.Name == "" {
		tr.Name = geoid.TractName(norm)
	}
	if tr.Geom == nil {
		t.Report.NoGeometry++
	}
	t.add(tr)
	return nil
}
