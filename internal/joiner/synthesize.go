package joiner

import (
	"context"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/spark-map/atlas-cli/internal/config"
	"github.com/spark-map/atlas-cli/internal/feature"
	"github.com/spark-map/atlas-cli/internal/source"
)

// SynthReport summarizes a synthesize run.
type SynthReport struct {
	Sources map[string]source.Report `json:"sources"`
	Tracts  int                      `json:"tracts"`
}

// SynthResult is the merged wide table: one row per tract seen in any
// source, no geometry involved.
type SynthResult struct {
	Header     []string
	Rows       [][]string
	Dictionary feature.Dictionary
	Report     SynthReport
}

// Synthesize extracts every configured metric table and merges them into
// one wide table keyed by GEOID. Unlike the join there is no boundary:
// the tract universe is the union of all source tables, which makes the
// output usable as a crosswalk donor for vintages the boundary lacks.
func Synthesize(ctx context.Context, cfg *config.Config) (*SynthResult, error) {
	reg, err := source.NewRegistry(cfg.Sources)
	if err != nil {
		return nil, err
	}

	stateFIPS, err := resolveState(cfg.Join.State)
	if err != nil {
		return nil, err
	}

	tables, err := extract(ctx, reg, source.Options{StateFIPS: stateFIPS, Strict: cfg.Join.Strict}, cfg.Join.MaxParallel)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]struct{})
	reports := make(map[string]source.Report, len(tables))
	for i, src := range reg.All() {
		reports[src.Name()] = tables[i].Report
		for id := range tables[i].Rows {
			ids[id] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	cols := reg.Columns()
	header := make([]string, 0, len(cols)+1)
	header = append(header, "GEOID")
	for _, col := range cols {
		header = append(header, col.Key)
	}

	rows := make([][]string, 0, len(sorted))
	for _, id := range sorted {
		row := make([]string, 0, len(header))
		row = append(row, id)
		for _, tbl := range tables {
			tractRow, covered := tbl.Rows[id]
			for _, col := range tbl.Columns {
				if !covered {
					row = append(row, "")
					continue
				}
				row = append(row, formatCell(tractRow, col))
			}
		}
		rows = append(rows, row)
	}

	res := &SynthResult{
		Header:     header,
		Rows:       rows,
		Dictionary: synthDictionary(reg),
		Report:     SynthReport{Sources: reports, Tracts: len(rows)},
	}

	zap.L().With(zap.String("component", "joiner")).Info("synthesize complete",
		zap.Int("tracts", res.Report.Tracts),
		zap.Int("columns", len(header)-1),
	)
	return res, nil
}

// formatCell renders one metric value for CSV. Shortest round-trip float
// form keeps re-runs byte-identical and re-parses to the same value.
func formatCell(row source.Row, col source.Column) string {
	if col.Text {
		return row.Attrs[col.Key]
	}
	v, has := row.Values[col.Key]
	if !has {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// synthDictionary documents the wide table's columns; no boundary or
// derived entries, since the table carries neither.
func synthDictionary(reg *source.Registry) feature.Dictionary {
	entries := []feature.Entry{
		{Key: "GEOID", Label: "Census tract GEOID", Type: feature.TypeText},
	}
	for _, src := range reg.All() {
		for _, col := range src.Columns() {
			kind := feature.TypeNumber
			if col.Text {
				kind = feature.TypeText
			}
			entries = append(entries, feature.Entry{
				Key:    col.Key,
				Label:  col.Label,
				Unit:   col.Unit,
				Type:   kind,
				Source: src.Name(),
			})
		}
	}
	return feature.Dictionary{IDProperty: "GEOID", Properties: entries}
}
