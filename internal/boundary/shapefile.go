package boundary

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/spark-map/atlas-cli/internal/geoid"
)

// ReadShapefile loads tracts from a TIGER/Line shapefile. The GEOID is
// taken from the GEOID attribute when present (GEOID20 and GEOID10 are
// accepted for vintage files), otherwise assembled from
// STATEFP+COUNTYFP+TRACTCE.
func ReadShapefile(path string, opts Options) (*Table, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map. Attribute names in DBF files are
	// NUL-padded.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	attr := func(name string) string {
		idx, ok := fieldIdx[name]
		if !ok {
			return ""
		}
		val := strings.TrimRight(reader.Attribute(idx), "\x00")
		return strings.TrimSpace(val)
	}

	tbl := newTable()
	for reader.Next() {
		_, shape := reader.Shape()
		tbl.Report.RowsRead++

		rawID := attr("geoid")
		if rawID == "" {
			rawID = attr("geoid20")
		}
		if rawID == "" {
			rawID = attr("geoid10")
		}
		if rawID == "" {
			if assembled, aErr := geoid.FromParts(attr("statefp"), attr("countyfp"), attr("tractce")); aErr == nil {
				rawID = assembled
			}
		}

		tr := Tract{
			Name:   attr("name"),
			ALand:  parseArea(attr("aland")),
			AWater: parseArea(attr("awater")),
			Geom:   shapeGeom(shape),
		}
		if err := tbl.keep(rawID, tr, tbl.Report.RowsRead, opts); err != nil {
			return nil, err
		}
	}
	tbl.finish()

	zap.L().With(zap.String("component", "boundary")).Info("shapefile loaded",
		zap.String("path", path),
		zap.Int("rows_read", tbl.Report.RowsRead),
		zap.Int("tracts", tbl.Report.Tracts),
		zap.Int("malformed", tbl.Report.Malformed),
		zap.Int("no_geometry", tbl.Report.NoGeometry),
	)
	return tbl, nil
}

// parseArea reads an ALAND/AWATER attribute. Unparseable values read as
// zero.
func parseArea(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// shapeGeom converts a shapefile shape to a MultiPolygon in EPSG:4326.
// Returns nil for nil, empty, or non-areal shapes.
func shapeGeom(shape shp.Shape) geom.T {
	p, ok := shape.(*shp.Polygon)
	if !ok {
		return nil
	}
	return polygonToMultiPolygon(p)
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		coords := make([]geom.Coord, 0, end-start)
		for j := start; j < end; j++ {
			coords = append(coords, geom.Coord{p.Points[j].X, p.Points[j].Y})
		}

		ring := geom.NewLinearRingFlat(geom.XY, flatCoords(coords))
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}

		if err := mp.Push(poly); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// flatCoords converts a slice of Coord to flat coordinate pairs for go-geom.
func flatCoords(coords []geom.Coord) []float64 {
	flat := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		flat = append(flat, c[0], c[1])
	}
	return flat
}
