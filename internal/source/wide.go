package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spark-map/atlas-cli/internal/config"
	"github.com/spark-map/atlas-cli/internal/fetcher"
	"github.com/spark-map/atlas-cli/internal/geoid"
)

// Dictionary maps a wide table's columns onto stable property keys.
type Dictionary struct {
	IDColumn string       `yaml:"id_column"` // default "GEOID"
	Columns  []DictColumn `yaml:"columns"`
}

// DictColumn binds one source column to an output property.
type DictColumn struct {
	Source string `yaml:"source"` // column name in the file; default Key
	Key    string `yaml:"key"`
	Label  string `yaml:"label"`
	Unit   string `yaml:"unit"`
	Text   bool   `yaml:"text"`
}

// LoadDictionary reads a column dictionary from a YAML file.
func LoadDictionary(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read dictionary %s", path)
	}

	var dict Dictionary
	if err := yaml.Unmarshal(data, &dict); err != nil {
		return nil, eris.Wrapf(err, "source: parse dictionary %s", path)
	}

	if dict.IDColumn == "" {
		dict.IDColumn = "GEOID"
	}
	for i, c := range dict.Columns {
		if c.Key == "" {
			return nil, eris.Errorf("source: dictionary %s: columns[%d] has no key", path, i)
		}
		if c.Source == "" {
			dict.Columns[i].Source = c.Key
		}
	}
	if len(dict.Columns) == 0 {
		return nil, eris.Errorf("source: dictionary %s declares no columns", path)
	}
	return &dict, nil
}

// Wide reads any one-row-per-tract table, CSV or XLSX, with a dictionary
// describing which columns become which properties. It also re-reads the
// synthesized output for crosswalk fills.
type Wide struct {
	cfg  config.SourceConfig
	dict *Dictionary
}

// NewWide builds the extractor, loading its column dictionary up front.
func NewWide(cfg config.SourceConfig) (*Wide, error) {
	if cfg.Dictionary == "" {
		return nil, eris.Errorf("source: wide source %q requires a dictionary", cfg.Name)
	}
	dict, err := LoadDictionary(cfg.Dictionary)
	if err != nil {
		return nil, err
	}
	return &Wide{cfg: cfg, dict: dict}, nil
}

func (s *Wide) Name() string { return s.cfg.Name }
func (s *Wide) Type() string { return TypeWide }

func (s *Wide) Columns() []Column {
	cols := make([]Column, len(s.dict.Columns))
	for i, c := range s.dict.Columns {
		cols[i] = Column{Key: c.Key, Label: c.Label, Unit: c.Unit, Text: c.Text}
	}
	return cols
}

func (s *Wide) Extract(ctx context.Context, opts Options) (*Table, error) {
	log := zap.L().With(zap.String("source", s.cfg.Name))

	var (
		records [][]string
		colIdx  map[string]int
		err     error
	)
	if strings.EqualFold(filepath.Ext(s.cfg.Path), ".xlsx") {
		records, colIdx, err = s.readXLSX()
	} else {
		records, colIdx, err = s.readCSV(ctx)
	}
	if err != nil {
		return nil, err
	}

	if err := requireCols(colIdx, s.cfg.Name, s.dict.IDColumn); err != nil {
		return nil, err
	}

	scale := s.cfg.Scale
	if scale == 0 {
		scale = 1
	}
	sentinels := sentinelSet(s.cfg.Sentinels)
	tbl := newTable(s.cfg.Name, s.Columns())

	for i, record := range records {
		line := i + 2 // header was line 1
		tbl.Report.RowsRead++

		g, err := geoid.Normalize(trimQuotes(getCol(record, colIdx, s.dict.IDColumn)))
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

		row := Row{GEOID: g, Values: make(map[string]float64), Attrs: make(map[string]string)}
		for _, c := range s.dict.Columns {
			cell := getCol(record, colIdx, c.Source)
			if c.Text {
				if v := trimQuotes(cell); v != "" {
					row.Attrs[c.Key] = v
				}
				continue
			}
			if v, ok := parseMetric(cell, sentinels); ok {
				row.Values[c.Key] = v * scale
			}
		}
		tbl.keepFirst(row)
	}

	tbl.Report.RowsKept = len(tbl.Rows)
	log.Info("extracted wide table",
		zap.Int("rows_read", tbl.Report.RowsRead),
		zap.Int("rows_kept", tbl.Report.RowsKept),
		zap.Int("malformed", tbl.Report.Malformed),
		zap.Int("superseded", tbl.Report.Superseded))
	return tbl, nil
}

func (s *Wide) readCSV(ctx context.Context) ([][]string, map[string]int, error) {
	reader, closer, colIdx, err := openCSV(s.cfg)
	if err != nil {
		return nil, nil, err
	}
	defer closer.Close()

	var records [][]string
	for {
		if ctx.Err() != nil {
			return nil, nil, eris.Wrap(ctx.Err(), s.cfg.Name+": cancelled")
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrapf(err, "source: %s: read", s.cfg.Name)
		}
		records = append(records, record)
	}
	return records, colIdx, nil
}

func (s *Wide) readXLSX() ([][]string, map[string]int, error) {
	rows, err := fetcher.ReadXLSX(s.cfg.Path, fetcher.XLSXOptions{SheetName: s.cfg.Sheet})
	if err != nil {
		return nil, nil, eris.Wrapf(err, "source: %s", s.cfg.Name)
	}
	if len(rows) == 0 {
		return nil, nil, eris.Errorf("source: %s: empty sheet", s.cfg.Name)
	}
	return rows[1:], mapColumns(rows[0]), nil
}
