// Package source extracts heterogeneous tract metric tables into a uniform
// shape keyed by canonical GEOID. Each table format is a Source
// implementation selected by the type tag in configuration.
package source

import (
	"context"

	"github.com/rotisserie/eris"
)

// Column describes one output property a source contributes.
type Column struct {
	Key   string // stable property key, e.g. "mobility_pct"
	Label string // human-readable name for the data dictionary
	Unit  string // e.g. "percentile", "minutes", "z-score"
	Text  bool   // string attribute rather than numeric metric
}

// Row is one tract's extracted record.
type Row struct {
	GEOID  string
	Year   int                // 0 when the source has no year dimension
	Values map[string]float64 // numeric metrics present in this row
	Attrs  map[string]string  // text attributes (county_name, ...)
}

// Report counts extraction outcomes for the end-of-run summary.
type Report struct {
	RowsRead   int `json:"rows_read"`
	RowsKept   int `json:"rows_kept"`
	Malformed  int `json:"malformed"`  // unparseable identifiers skipped
	Superseded int `json:"superseded"` // duplicate-tract rows displaced
	Filtered   int `json:"filtered"`   // outside the state filter
}

// Table holds one source's deduplicated rows keyed by GEOID.
type Table struct {
	Name    string
	Columns []Column
	Rows    map[string]Row
	Report  Report
}

// Options adjusts extraction behavior per run.
type Options struct {
	StateFIPS string // keep only tracts in this state; "" keeps all
	Strict    bool   // abort on the first malformed identifier
}

// Source extracts one metric table.
type Source interface {
	// Name returns the configured name for this source instance.
	Name() string

	// Type returns the format tag ("opportunity_atlas", "wide", ...).
	Type() string

	// Columns returns the stable property keys this source declares,
	// independent of which happen to appear in the file.
	Columns() []Column

	// Extract reads the whole table. In lenient mode malformed
	// identifiers are skipped and counted; in strict mode the first one
	// fails the run.
	Extract(ctx context.Context, opts Options) (*Table, error)
}

func newTable(name string, cols []Column) *Table {
	return &Table{Name: name, Columns: cols, Rows: make(map[string]Row)}
}

// keepFirst inserts a row unless the tract is already present. Later
// duplicates are counted, matching the original tables' file order.
func (t *Table) keepFirst(row Row) {
	if _, ok := t.Rows[row.GEOID]; ok {
		t.Report.Superseded++
		return
	}
	t.Rows[row.GEOID] = row
}

// keepLatest replaces an existing row only when the new row's year is
// strictly higher; ties keep the earlier row.
func (t *Table) keepLatest(row Row) {
	cur, ok := t.Rows[row.GEOID]
	if !ok {
		t.Rows[row.GEOID] = row
		return
	}
	if row.Year > cur.Year {
		t.Rows[row.GEOID] = row
	}
	t.Report.Superseded++
}

// skipOrFail records a malformed identifier, failing the run in strict mode.
func (t *Table) skipOrFail(strict bool, err error, name string, line int) error {
	if strict {
		return eris.Wrapf(err, "%s: line %d", name, line)
	}
	t.Report.Malformed++
	return nil
}
