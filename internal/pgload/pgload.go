// Package pgload upserts joined tract features into Postgres/PostGIS for
// ad-hoc analyst queries. The GeoJSON artifact stays the map's only
// input; this sink is an optional extra surface over the same data.
package pgload

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/spark-map/atlas-cli/internal/db"
	"github.com/spark-map/atlas-cli/internal/feature"
	"github.com/spark-map/atlas-cli/internal/geoid"
)

const defaultBatchSize = 5000

// columns in the sink table, in COPY order.
var columns = []string{"geoid", "state_fips", "county_fips", "properties", "geom"}

// Report summarizes a load.
type Report struct {
	Features int   `json:"features"`
	Rows     int64 `json:"rows"`
	NoGeom   int   `json:"no_geometry"`
}

// EnsureSchema creates the sink table and its spatial index when absent.
func EnsureSchema(ctx context.Context, pool db.Pool, table string) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS postgis",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	geoid       TEXT PRIMARY KEY,
	state_fips  TEXT NOT NULL,
	county_fips TEXT NOT NULL,
	properties  JSONB NOT NULL,
	geom        geometry(MultiPolygon, 4326)
)`, table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_geom_gix ON %s USING GIST (geom)", indexSafe(table), table),
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return eris.Wrapf(err, "pgload: ensure schema for %s", table)
		}
	}
	return nil
}

// Load bulk-upserts features into the sink table, batched so a statewide
// tract set never builds one giant COPY payload.
func Load(ctx context.Context, pool db.Pool, table string, feats []feature.Feature, batchSize int) (*Report, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	log := zap.L().With(
		zap.String("component", "pgload"),
		zap.String("table", table),
		zap.Int("features", len(feats)),
	)

	rep := &Report{Features: len(feats)}

	rows := make([][]any, 0, len(feats))
	for _, ft := range feats {
		row, err := encodeRow(ft)
		if err != nil {
			return nil, err
		}
		if row[4] == nil {
			rep.NoGeom++
		}
		rows = append(rows, row)
	}

	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}

		n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
			Table:        table,
			Columns:      columns,
			ConflictKeys: []string{"geoid"},
		}, rows[i:end])
		if err != nil {
			return nil, eris.Wrapf(err, "pgload: upsert batch %d-%d", i, end)
		}
		rep.Rows += n

		log.Debug("batch loaded",
			zap.Int("batch_start", i),
			zap.Int("batch_end", end),
			zap.Int64("batch_rows", n),
		)
	}

	log.Info("load complete",
		zap.Int64("rows", rep.Rows),
		zap.Int("no_geometry", rep.NoGeom),
	)
	return rep, nil
}

// encodeRow flattens one feature into COPY values: identifier columns,
// the full property map as JSONB, and EWKB geometry (nil for tracts that
// had no usable boundary geometry).
func encodeRow(ft feature.Feature) ([]any, error) {
	props, err := json.Marshal(ft.Props)
	if err != nil {
		return nil, eris.Wrapf(err, "pgload: marshal properties for %s", ft.GEOID)
	}

	var geomBytes any
	if ft.Geom != nil {
		g := ft.Geom
		// SetSRID lives on the concrete types; the boundary readers only
		// ever produce multipolygons (polygons are promoted on read).
		switch t := g.(type) {
		case *geom.MultiPolygon:
			g = t.SetSRID(4326)
		case *geom.Polygon:
			g = t.SetSRID(4326)
		default:
			return nil, eris.Errorf("pgload: unsupported geometry type %T for %s", g, ft.GEOID)
		}
		data, err := ewkb.Marshal(g, ewkb.NDR)
		if err != nil {
			return nil, eris.Wrapf(err, "pgload: encode geometry for %s", ft.GEOID)
		}
		geomBytes = data
	}

	return []any{
		ft.GEOID,
		geoid.StateFIPS(ft.GEOID),
		geoid.CountyFIPS(ft.GEOID),
		string(props),
		geomBytes,
	}, nil
}

// indexSafe turns a possibly schema-qualified table name into an
// identifier-safe index name prefix.
func indexSafe(table string) string {
	return strings.ReplaceAll(table, ".", "_")
}
