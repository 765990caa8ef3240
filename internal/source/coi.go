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

// coiColumns maps Child Opportunity Index composite columns to stable
// property keys. z-scores and national ranks pass through unscaled.
var coiColumns = []struct {
	src string
	col Column
}{
	{"z_COI_nat", Column{Key: "coi_z", Label: "Child Opportunity Index", Unit: "z-score"}},
	{"r_COI_nat", Column{Key: "coi_rank", Label: "Child Opportunity Index, national rank", Unit: "rank"}},
	{"z_ED_nat", Column{Key: "edu_z", Label: "Education domain", Unit: "z-score"}},
	{"r_ED_nat", Column{Key: "edu_rank", Label: "Education domain, national rank", Unit: "rank"}},
	{"z_HE_nat", Column{Key: "health_z", Label: "Health and environment domain", Unit: "z-score"}},
	{"r_HE_nat", Column{Key: "health_rank", Label: "Health and environment domain, national rank", Unit: "rank"}},
	{"z_SE_nat", Column{Key: "social_z", Label: "Social and economic domain", Unit: "z-score"}},
	{"r_SE_nat", Column{Key: "social_rank", Label: "Social and economic domain, national rank", Unit: "rank"}},
}

// coiTextColumns are attributes carried onto the output properties verbatim.
var coiTextColumns = []Column{
	{Key: "state_name", Label: "State name", Text: true},
	{Key: "county_name", Label: "County name", Text: true},
}

// ChildOpportunity reads the diversitydatakids.org COI table, keyed by a
// single geoid10 column with one row per tract per release year. The
// highest year wins per tract.
type ChildOpportunity struct {
	cfg config.SourceConfig
}

// NewChildOpportunity builds the extractor from its config block.
func NewChildOpportunity(cfg config.SourceConfig) *ChildOpportunity {
	return &ChildOpportunity{cfg: cfg}
}

func (s *ChildOpportunity) Name() string { return s.cfg.Name }
func (s *ChildOpportunity) Type() string { return TypeChildOpportunity }

func (s *ChildOpportunity) Columns() []Column {
	cols := make([]Column, 0, len(coiColumns)+len(coiTextColumns)+1)
	for _, m := range coiColumns {
		cols = append(cols, m.col)
	}
	cols = append(cols, Column{Key: "coi_year", Label: "COI release year", Unit: "year"})
	cols = append(cols, coiTextColumns...)
	return cols
}

func (s *ChildOpportunity) Extract(ctx context.Context, opts Options) (*Table, error) {
	log := zap.L().With(zap.String("source", s.cfg.Name))

	reader, closer, colIdx, err := openCSV(s.cfg)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	if err := requireCols(colIdx, s.cfg.Name, "geoid10"); err != nil {
		return nil, err
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

		g, err := geoid.Normalize(trimQuotes(getCol(record, colIdx, "geoid10")))
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

		row := Row{
			GEOID:  g,
			Year:   parseYear(getCol(record, colIdx, "year")),
			Values: make(map[string]float64, len(coiColumns)+1),
			Attrs:  make(map[string]string, len(coiTextColumns)),
		}
		for _, m := range coiColumns {
			if v, ok := parseMetric(getCol(record, colIdx, m.src), sentinels); ok {
				row.Values[m.col.Key] = v
			}
		}
		if row.Year > 0 {
			row.Values["coi_year"] = float64(row.Year)
		}
		for _, tc := range coiTextColumns {
			if v := trimQuotes(getCol(record, colIdx, tc.Key)); v != "" {
				row.Attrs[tc.Key] = v
			}
		}
		tbl.keepLatest(row)
	}

	tbl.Report.RowsKept = len(tbl.Rows)
	log.Info("extracted child opportunity index",
		zap.Int("rows_read", tbl.Report.RowsRead),
		zap.Int("rows_kept", tbl.Report.RowsKept),
		zap.Int("superseded", tbl.Report.Superseded),
		zap.Int("malformed", tbl.Report.Malformed))
	return tbl, nil
}
