// Package joiner runs the core merge: the boundary table on the left,
// every configured metric table on the right, one output feature per
// boundary tract.
//
// Metric tables contribute values where their GEOID matches a boundary
// tract and null otherwise. A tract missing from a metric table is
// partial coverage, not an error; a boundary tract is never dropped for
// lack of metrics.
package joiner

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spark-map/atlas-cli/internal/boundary"
	"github.com/spark-map/atlas-cli/internal/classify"
	"github.com/spark-map/atlas-cli/internal/config"
	"github.com/spark-map/atlas-cli/internal/feature"
	"github.com/spark-map/atlas-cli/internal/geoid"
	"github.com/spark-map/atlas-cli/internal/source"
)

// reservedKeys are property keys owned by the boundary table and the
// classifier. Sources may not declare them.
var reservedKeys = []string{
	"geoid", "state_fips", "county_fips", "tract_ce", "tract_name",
	"aland", "awater", classify.DesertKey,
}

// SourceReport pairs extraction counts with join coverage for one table.
type SourceReport struct {
	source.Report
	Matched   int `json:"matched"`   // boundary tracts this table covered
	Unmatched int `json:"unmatched"` // table rows with no boundary tract
}

// Report summarizes a join run.
type Report struct {
	Boundary boundary.Report         `json:"boundary"`
	Sources  map[string]SourceReport `json:"sources"`
	Features int                     `json:"features"`
	Deserts  int                     `json:"deserts"`
}

// Result is the joined output, ready for serialization.
type Result struct {
	Features   []feature.Feature
	Dictionary feature.Dictionary
	Report     Report
}

// Run loads the boundary and all configured metric tables, joins them,
// and derives classifications.
func Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	reg, err := source.NewRegistry(cfg.Sources)
	if err != nil {
		return nil, err
	}
	if err := checkReserved(reg); err != nil {
		return nil, err
	}

	stateFIPS, err := resolveState(cfg.Join.State)
	if err != nil {
		return nil, err
	}

	rules := classify.Rules{
		DesertThreshold: cfg.Classify.DesertThreshold,
		MobilityKey:     cfg.Classify.MobilityKey,
	}
	if rules.MobilityKey == "" {
		rules.MobilityKey = classify.DefaultMobilityKey
	}
	warnMissingMobility(reg, rules.MobilityKey)

	bTbl, err := boundary.Read(cfg.Boundary.Path, boundary.Options{
		Format:    cfg.Boundary.Format,
		StateFIPS: stateFIPS,
		Strict:    cfg.Join.Strict,
	})
	if err != nil {
		return nil, err
	}

	tables, err := extract(ctx, reg, source.Options{StateFIPS: stateFIPS, Strict: cfg.Join.Strict}, cfg.Join.MaxParallel)
	if err != nil {
		return nil, err
	}

	res := merge(bTbl, reg, tables, rules)

	log := zap.L().With(zap.String("component", "joiner"))
	for _, src := range reg.All() {
		rep := res.Report.Sources[src.Name()]
		log.Info("source joined",
			zap.String("source", src.Name()),
			zap.Int("matched", rep.Matched),
			zap.Int("unmatched", rep.Unmatched),
			zap.Int("malformed", rep.Malformed),
		)
	}
	log.Info("join complete",
		zap.Int("features", res.Report.Features),
		zap.Int("deserts", res.Report.Deserts),
	)
	return res, nil
}

// extract runs every source concurrently, bounded by maxParallel.
func extract(ctx context.Context, reg *source.Registry, opts source.Options, maxParallel int) ([]*source.Table, error) {
	if maxParallel <= 0 {
		maxParallel = 1
	}

	srcs := reg.All()
	tables := make([]*source.Table, len(srcs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, src := range srcs {
		g.Go(func() error {
			tbl, err := src.Extract(gCtx, opts)
			if err != nil {
				return eris.Wrapf(err, "joiner: extract %s", src.Name())
			}
			tables[i] = tbl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

// merge assembles one feature per boundary tract, in GEOID order.
func merge(b *boundary.Table, reg *source.Registry, tables []*source.Table, rules classify.Rules) *Result {
	srcs := reg.All()

	reports := make(map[string]SourceReport, len(srcs))
	for i, src := range srcs {
		rep := SourceReport{Report: tables[i].Report}
		for id := range tables[i].Rows {
			if _, ok := b.Get(id); ok {
				rep.Matched++
			} else {
				rep.Unmatched++
			}
		}
		reports[src.Name()] = rep
	}

	feats := make([]feature.Feature, 0, len(b.Tracts))
	deserts := 0
	for _, tr := range b.Tracts {
		props := baseProps(tr)
		for i := range srcs {
			tbl := tables[i]
			row, covered := tbl.Rows[tr.GEOID]
			for _, col := range tbl.Columns {
				props[col.Key] = nil
				if !covered {
					continue
				}
				if col.Text {
					if v, has := row.Attrs[col.Key]; has {
						props[col.Key] = v
					}
				} else if v, has := row.Values[col.Key]; has {
					props[col.Key] = v
				}
			}
		}

		rules.Apply(props)
		if props[classify.DesertKey] == true {
			deserts++
		}
		feats = append(feats, feature.Feature{GEOID: tr.GEOID, Geom: tr.Geom, Props: props})
	}

	return &Result{
		Features:   feats,
		Dictionary: buildDictionary(reg, rules),
		Report: Report{
			Boundary: b.Report,
			Sources:  reports,
			Features: len(feats),
			Deserts:  deserts,
		},
	}
}

// baseProps seeds a property map with the boundary-owned attributes.
func baseProps(tr boundary.Tract) map[string]any {
	return map[string]any{
		"geoid":       tr.GEOID,
		"state_fips":  geoid.StateFIPS(tr.GEOID),
		"county_fips": geoid.CountyFIPS(tr.GEOID),
		"tract_ce":    geoid.TractCE(tr.GEOID),
		"tract_name":  tr.Name,
		"aland":       tr.ALand,
		"awater":      tr.AWater,
	}
}

// buildDictionary documents every output property in emission order.
func buildDictionary(reg *source.Registry, rules classify.Rules) feature.Dictionary {
	entries := []feature.Entry{
		{Key: "geoid", Label: "Census tract GEOID", Type: feature.TypeText, Source: "boundary"},
		{Key: "state_fips", Label: "State FIPS code", Type: feature.TypeText, Source: "boundary"},
		{Key: "county_fips", Label: "State+county FIPS code", Type: feature.TypeText, Source: "boundary"},
		{Key: "tract_ce", Label: "Tract code within county", Type: feature.TypeText, Source: "boundary"},
		{Key: "tract_name", Label: "Tract display name", Type: feature.TypeText, Source: "boundary"},
		{Key: "aland", Label: "Land area", Unit: "square meters", Type: feature.TypeNumber, Source: "boundary"},
		{Key: "awater", Label: "Water area", Unit: "square meters", Type: feature.TypeNumber, Source: "boundary"},
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

	entries = append(entries, feature.Entry{
		Key:    classify.DesertKey,
		Label:  fmt.Sprintf("True when %s is below %g", rules.MobilityKey, rules.DesertThreshold),
		Type:   feature.TypeBool,
		Source: "derived",
	})

	return feature.Dictionary{IDProperty: "geoid", Properties: entries}
}

// checkReserved rejects sources that declare boundary- or
// classifier-owned property keys.
func checkReserved(reg *source.Registry) error {
	owned := make(map[string]struct{}, len(reservedKeys))
	for _, k := range reservedKeys {
		owned[k] = struct{}{}
	}
	for _, src := range reg.All() {
		for _, col := range src.Columns() {
			if _, hit := owned[col.Key]; hit {
				return eris.Errorf("joiner: source %q declares reserved property %q", src.Name(), col.Key)
			}
		}
	}
	return nil
}

// resolveState turns a configured state (abbreviation or FIPS) into the
// two-digit FIPS filter, or "" when no filter is configured.
func resolveState(state string) (string, error) {
	if state == "" {
		return "", nil
	}
	fips, ok := geoid.StateFIPSFor(state)
	if !ok {
		return "", eris.Errorf("joiner: unknown state %q", state)
	}
	return fips, nil
}

// warnMissingMobility flags a configuration where the desert
// classification can never fire because no source supplies its metric.
func warnMissingMobility(reg *source.Registry, key string) {
	for _, col := range reg.Columns() {
		if col.Key == key {
			return
		}
	}
	zap.L().Warn("joiner: no source declares the mobility metric; desert classification will always be false",
		zap.String("mobility_key", key),
	)
}
