package source

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/spark-map/atlas-cli/internal/config"
	"github.com/spark-map/atlas-cli/internal/geoid"
)

// DefaultTravelTypes are the destination categories used when a
// travel_time source does not configure its own.
var DefaultTravelTypes = []string{"grocery", "pharmacy", "school", "park"}

// TravelTime reads a long-format walkability table (GEOID, type,
// travel_time) with block- or tract-level identifiers. Rows are pivoted
// wide, averaging travel times per tract per destination type.
type TravelTime struct {
	cfg   config.SourceConfig
	types []string
}

// NewTravelTime builds the extractor from its config block.
func NewTravelTime(cfg config.SourceConfig) *TravelTime {
	types := cfg.Types
	if len(types) == 0 {
		types = DefaultTravelTypes
	}
	lowered := make([]string, len(types))
	for i, t := range types {
		lowered[i] = strings.ToLower(strings.TrimSpace(t))
	}
	sort.Strings(lowered)
	return &TravelTime{cfg: cfg, types: lowered}
}

func (s *TravelTime) Name() string { return s.cfg.Name }
func (s *TravelTime) Type() string { return TypeTravelTime }

// WalkKey is the property key for a destination type.
func WalkKey(destType string) string {
	return "walk_" + destType + "_min"
}

func (s *TravelTime) Columns() []Column {
	cols := make([]Column, len(s.types))
	for i, t := range s.types {
		cols[i] = Column{Key: WalkKey(t), Label: "Walk time to nearest " + t, Unit: "minutes"}
	}
	return cols
}

func (s *TravelTime) Extract(ctx context.Context, opts Options) (*Table, error) {
	log := zap.L().With(zap.String("source", s.cfg.Name))

	reader, closer, colIdx, err := openCSV(s.cfg)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	if err := requireCols(colIdx, s.cfg.Name, "geoid", "type", "travel_time"); err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(s.types))
	for _, t := range s.types {
		known[t] = struct{}{}
	}
	sentinels := sentinelSet(s.cfg.Sentinels)
	tbl := newTable(s.cfg.Name, s.Columns())

	type agg struct {
		sum float64
		n   int
	}
	sums := make(map[string]map[string]*agg) // tract -> dest type -> accumulator
	unknownTypes := 0

	line := 1
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), s.cfg.Name+": cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		tbl.Report.RowsRead++
		if err != nil {
			if serr := tbl.skipOrFail(opts.Strict, eris.Wrap(err, "read row"), s.cfg.Name, line); serr != nil {
				return nil, serr
			}
			continue
		}

		g, err := geoid.FromBlock(trimQuotes(getCol(record, colIdx, "geoid")))
		if err != nil {
			if serr := tbl.skipOrFail(opts.Strict, err, s.cfg.Name, line); serr != nil {
				return nil, serr
			}
			continue
		}
		if opts.StateFIPS != "" && !strings.HasPrefix(g, opts.StateFIPS) {
			tbl.Report.Filtered++
			continue
		}

		destType := strings.ToLower(strings.TrimSpace(getCol(record, colIdx, "type")))
		if _, ok := known[destType]; !ok {
			unknownTypes++
			continue
		}
		v, ok := parseMetric(getCol(record, colIdx, "travel_time"), sentinels)
		if !ok {
			continue
		}

		byType, ok := sums[g]
		if !ok {
			byType = make(map[string]*agg, len(s.types))
			sums[g] = byType
		}
		a, ok := byType[destType]
		if !ok {
			a = &agg{}
			byType[destType] = a
		}
		a.sum += v
		a.n++
	}

	for g, byType := range sums {
		row := Row{GEOID: g, Values: make(map[string]float64, len(byType))}
		for destType, a := range byType {
			row.Values[WalkKey(destType)] = a.sum / float64(a.n)
		}
		tbl.Rows[g] = row
	}

	tbl.Report.RowsKept = len(tbl.Rows)
	log.Info("extracted travel times",
		zap.Int("rows_read", tbl.Report.RowsRead),
		zap.Int("tracts", tbl.Report.RowsKept),
		zap.Int("malformed", tbl.Report.Malformed),
		zap.Int("unknown_types", unknownTypes))
	return tbl, nil
}
