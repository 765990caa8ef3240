// Package crosswalk fills metric gaps in 2020-vintage tracts from their
// 2010 parents, using the Census Bureau tract relationship file.
//
// A 2020 tract can descend from several 2010 tracts; the parent with the
// largest overlapping land area wins. Values are copied per column and
// only into nulls, so real 2020 measurements are never overwritten.
package crosswalk

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/spark-map/atlas-cli/internal/classify"
	"github.com/spark-map/atlas-cli/internal/feature"
	"github.com/spark-map/atlas-cli/internal/fetcher"
	"github.com/spark-map/atlas-cli/internal/geoid"
	"github.com/spark-map/atlas-cli/internal/source"
)

// Mapping picks the donor 2010 tract for each 2020 tract.
type Mapping map[string]string

// Report counts what a fill pass did.
type Report struct {
	Pairs         int `json:"pairs"`   // usable relationship rows
	Parents       int `json:"parents"` // 2020 tracts with a chosen parent
	Malformed     int `json:"malformed"`
	MissingBefore int `json:"missing_before"`
	Filled        int `json:"filled"`
	MissingAfter  int `json:"missing_after"`
}

// LoadMapping streams the pipe-delimited relationship file and keeps,
// for every 2020 tract, the 2010 parent with the largest AREALAND_PART.
// Ties break toward the lexicographically smaller parent so reruns pick
// the same donor.
func LoadMapping(ctx context.Context, path, stateFIPS string) (Mapping, *Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "crosswalk: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	headerCh := make(chan []string, 1)
	rows, errs := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
		Delimiter:  '|',
		HasHeader:  true,
		HeaderCh:   headerCh,
		LazyQuotes: true,
		TrimSpace:  true,
	})

	type best struct {
		parent string
		area   float64
	}
	bests := make(map[string]best)
	rep := &Report{}

	var colIdx map[string]int
	for row := range rows {
		if colIdx == nil {
			// The header lands in the buffered channel before the
			// first row is delivered.
			colIdx = mapColumns(<-headerCh)
			for _, col := range []string{"geoid_tract_20", "geoid_tract_10", "arealand_part"} {
				if _, ok := colIdx[col]; !ok {
					return nil, nil, eris.Errorf("crosswalk: %s: missing column %s", path, col)
				}
			}
		}

		child, err := geoid.Normalize(getCol(row, colIdx, "geoid_tract_20"))
		if err != nil {
			rep.Malformed++
			continue
		}
		if stateFIPS != "" && !strings.HasPrefix(child, stateFIPS) {
			continue
		}
		parent, err := geoid.Normalize(getCol(row, colIdx, "geoid_tract_10"))
		if err != nil {
			rep.Malformed++
			continue
		}

		area, err := strconv.ParseFloat(getCol(row, colIdx, "arealand_part"), 64)
		if err != nil {
			area = 0
		}

		rep.Pairs++
		cur, seen := bests[child]
		if !seen || area > cur.area || (area == cur.area && parent < cur.parent) {
			bests[child] = best{parent: parent, area: area}
		}
	}
	if err := <-errs; err != nil {
		return nil, nil, eris.Wrapf(err, "crosswalk: read %s", path)
	}

	mapping := make(Mapping, len(bests))
	for child, b := range bests {
		mapping[child] = b.parent
	}
	rep.Parents = len(mapping)

	log := zap.L().With(zap.String("component", "crosswalk"))
	if rep.Parents == 0 {
		log.Warn("relationship file yielded no parent mappings", zap.String("path", path))
	}
	log.Info("relationship file loaded",
		zap.String("path", path),
		zap.Int("pairs", rep.Pairs),
		zap.Int("parents", rep.Parents),
		zap.Int("malformed", rep.Malformed),
	)
	return mapping, rep, nil
}

// Fill copies donor values into features whose probe metric is null.
// Only declared-and-null properties are written; features that receive
// at least one value get their classification recomputed.
func Fill(feats []feature.Feature, mapping Mapping, donor *source.Table, probeKey string, rules classify.Rules) Report {
	rep := Report{Parents: len(mapping)}

	for i := range feats {
		props := feats[i].Props
		if props[probeKey] != nil {
			continue
		}
		rep.MissingBefore++

		parent, ok := mapping[feats[i].GEOID]
		if !ok {
			continue
		}
		row, ok := donor.Rows[parent]
		if !ok {
			continue
		}

		copied := false
		for _, col := range donor.Columns {
			cur, declared := props[col.Key]
			if !declared || cur != nil {
				continue
			}
			if col.Text {
				if v, has := row.Attrs[col.Key]; has {
					props[col.Key] = v
					copied = true
				}
			} else if v, has := row.Values[col.Key]; has {
				props[col.Key] = v
				copied = true
			}
		}
		if copied {
			rep.Filled++
			rules.Apply(props)
		}
	}

	for i := range feats {
		if feats[i].Props[probeKey] == nil {
			rep.MissingAfter++
		}
	}

	zap.L().With(zap.String("component", "crosswalk")).Info("fill complete",
		zap.Int("missing_before", rep.MissingBefore),
		zap.Int("filled", rep.Filled),
		zap.Int("missing_after", rep.MissingAfter),
	)
	return rep
}

// mapColumns builds a case-insensitive column name to index map.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

// getCol gets a column value by name, returning empty string if not found.
func getCol(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[strings.ToLower(name)]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}
