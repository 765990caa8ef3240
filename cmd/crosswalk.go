package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/spark-map/atlas-cli/internal/classify"
	"github.com/spark-map/atlas-cli/internal/config"
	"github.com/spark-map/atlas-cli/internal/crosswalk"
	"github.com/spark-map/atlas-cli/internal/feature"
	"github.com/spark-map/atlas-cli/internal/geoid"
	"github.com/spark-map/atlas-cli/internal/source"
)

var crosswalkCmd = &cobra.Command{
	Use:   "crosswalk",
	Short: "Fill 2020 tract metric gaps from their 2010 parents",
	Long: `Applies the Census 2020-to-2010 tract relationship file to an already
generated feature collection: tracts whose probe metric is null inherit
the null metrics of the 2010 parent with the largest land-area overlap,
then derived classifications are recomputed. Observed values are never
overwritten.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		featPath, _ := cmd.Flags().GetString("features")
		if featPath == "" {
			featPath = cfg.Output.Path
		}
		if err := cfg.Validate("crosswalk"); err != nil {
			return err
		}

		return withRun(ctx, "crosswalk", func(ctx context.Context) (any, string, error) {
			rep, err := runCrosswalk(ctx, featPath)
			if err != nil {
				return nil, "", err
			}
			fmt.Printf("Filled %d of %d missing tracts in %s (%d still missing)\n",
				rep.Filled, rep.MissingBefore, featPath, rep.MissingAfter)
			return rep, featPath, nil
		})
	},
}

func runCrosswalk(ctx context.Context, featPath string) (*crosswalk.Report, error) {
	feats, err := feature.ReadGeoJSON(featPath)
	if err != nil {
		return nil, err
	}

	stateFIPS := ""
	if cfg.Join.State != "" {
		fips, ok := geoid.StateFIPSFor(cfg.Join.State)
		if !ok {
			return nil, eris.Errorf("unknown state %q", cfg.Join.State)
		}
		stateFIPS = fips
	}

	mapping, mapRep, err := crosswalk.LoadMapping(ctx, cfg.Crosswalk.RelationshipPath, stateFIPS)
	if err != nil {
		return nil, err
	}

	donorSrc, err := source.New(config.SourceConfig{
		Name:       "donor",
		Type:       source.TypeWide,
		Path:       cfg.Crosswalk.DonorPath,
		Dictionary: cfg.Crosswalk.DonorDictionary,
	})
	if err != nil {
		return nil, err
	}
	// Donor rows are 2010-vintage, so the fill must see them regardless
	// of the state filter applied to the mapping above.
	donor, err := donorSrc.Extract(ctx, source.Options{Strict: cfg.Join.Strict})
	if err != nil {
		return nil, err
	}

	rules := classify.Rules{
		DesertThreshold: cfg.Classify.DesertThreshold,
		MobilityKey:     cfg.Classify.MobilityKey,
	}
	probeKey := cfg.Crosswalk.ProbeKey
	if probeKey == "" {
		probeKey = classify.DefaultMobilityKey
	}

	rep := crosswalk.Fill(feats, mapping, donor, probeKey, rules)
	rep.Pairs = mapRep.Pairs
	rep.Malformed = mapRep.Malformed

	if err := feature.WriteGeoJSON(featPath, feats, cfg.Output.Precision); err != nil {
		return nil, err
	}
	return &rep, nil
}

func init() {
	crosswalkCmd.Flags().String("features", "", "feature collection to fill in place (default: the join output)")
	rootCmd.AddCommand(crosswalkCmd)
}
