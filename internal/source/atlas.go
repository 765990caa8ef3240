package source

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/spark-map/atlas-cli/internal/config"
	"github.com/spark-map/atlas-cli/internal/geoid"
)

// atlasColumns maps Opportunity Atlas pooled outcome columns to stable
// property keys. The kfr ranks arrive as fractions; the configured scale
// (typically 100) converts them to percentiles.
var atlasColumns = []struct {
	src string
	col Column
}{
	{"kfr_pooled_pooled_mean", Column{Key: "mobility_pct", Label: "Income mobility", Unit: "percentile"}},
	{"kfr_pooled_pooled_p25", Column{Key: "mobility_p25_pct", Label: "Income mobility, parents at p25", Unit: "percentile"}},
	{"kfr_pooled_pooled_p75", Column{Key: "mobility_p75_pct", Label: "Income mobility, parents at p75", Unit: "percentile"}},
	{"working_pooled_pooled_mean", Column{Key: "working_pct", Label: "Working adults", Unit: "percent"}},
	{"jail_pooled_pooled_mean", Column{Key: "jail_pct", Label: "Incarceration rate", Unit: "percent"}},
	{"college_pooled_pooled_mean", Column{Key: "college_pct", Label: "College attendance", Unit: "percent"}},
	{"teenbrth_pooled_pooled_mean", Column{Key: "teenbirth_pct", Label: "Teen birth rate", Unit: "percent"}},
	{"stayhome_pooled_pooled_mean", Column{Key: "stayhome_pct", Label: "Stayed in home tract", Unit: "percent"}},
}

// OpportunityAtlas reads the Census tract outcomes table, which keys
// tracts by separate state, county and tract columns.
type OpportunityAtlas struct {
	cfg config.SourceConfig
}

// NewOpportunityAtlas builds the extractor from its config block.
func NewOpportunityAtlas(cfg config.SourceConfig) *OpportunityAtlas {
	return &OpportunityAtlas{cfg: cfg}
}

func (s *OpportunityAtlas) Name() string { return s.cfg.Name }
func (s *OpportunityAtlas) Type() string { return TypeOpportunityAtlas }

func (s *OpportunityAtlas) Columns() []Column {
	cols := make([]Column, len(atlasColumns))
	for i, m := range atlasColumns {
		cols[i] = m.col
	}
	return cols
}

func (s *OpportunityAtlas) Extract(ctx context.Context, opts Options) (*Table, error) {
	log := zap.L().With(zap.String("source", s.cfg.Name))

	reader, closer, colIdx, err := openCSV(s.cfg)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	if err := requireCols(colIdx, s.cfg.Name, "state", "county", "tract"); err != nil {
		return nil, err
	}

	scale := s.cfg.Scale
	if scale == 0 {
		scale = 1
	}
	sentinels := sentinelSet(s.cfg.Sentinels)
	tbl := newTable(s.cfg.Name, s.Columns())

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

		g, err := geoid.FromParts(
			trimQuotes(getCol(record, colIdx, "state")),
			trimQuotes(getCol(record, colIdx, "county")),
			trimQuotes(getCol(record, colIdx, "tract")),
		)
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

		row := Row{GEOID: g, Values: make(map[string]float64, len(atlasColumns))}
		for _, m := range atlasColumns {
			if v, ok := parseMetric(getCol(record, colIdx, m.src), sentinels); ok {
				row.Values[m.col.Key] = v * scale
			}
		}
		tbl.keepFirst(row)
	}

	tbl.Report.RowsKept = len(tbl.Rows)
	log.Info("extracted opportunity atlas",
		zap.Int("rows_read", tbl.Report.RowsRead),
		zap.Int("rows_kept", tbl.Report.RowsKept),
		zap.Int("malformed", tbl.Report.Malformed),
		zap.Int("filtered", tbl.Report.Filtered))
	return tbl, nil
}
