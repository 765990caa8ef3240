package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spark-map/atlas-cli/internal/feature"
	"github.com/spark-map/atlas-cli/internal/joiner"
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join tract boundaries with metric tables into map-ready GeoJSON",
	Long: `Reads the boundary table and every configured metric source, left-joins
them on the canonical 11-digit GEOID, derives classifications, and writes
one GeoJSON FeatureCollection plus its YAML data dictionary.

Every boundary tract produces exactly one feature; metrics a tract lacks
are emitted as JSON null. Re-running on unchanged inputs yields
byte-identical output.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyJoinFlags(cmd)
		if err := cfg.Validate("join"); err != nil {
			return err
		}

		return withRun(ctx, "join", func(ctx context.Context) (any, string, error) {
			res, err := joiner.Run(ctx, cfg)
			if err != nil {
				return nil, "", err
			}

			if err := feature.WriteGeoJSON(cfg.Output.Path, res.Features, cfg.Output.Precision); err != nil {
				return nil, "", err
			}
			if cfg.Output.Dictionary != "" {
				if err := feature.WriteDictionary(cfg.Output.Dictionary, res.Dictionary); err != nil {
					return nil, "", err
				}
			}

			fmt.Printf("Wrote %d features (%d deserts) to %s\n",
				res.Report.Features, res.Report.Deserts, cfg.Output.Path)
			return res.Report, cfg.Output.Path, nil
		})
	},
}

// applyJoinFlags folds command-line overrides into the loaded config.
func applyJoinFlags(cmd *cobra.Command) {
	if v, _ := cmd.Flags().GetString("boundary"); v != "" {
		cfg.Boundary.Path = v
	}
	if v, _ := cmd.Flags().GetString("state"); v != "" {
		cfg.Join.State = v
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		cfg.Output.Path = v
	}
	if cmd.Flags().Changed("strict") {
		v, _ := cmd.Flags().GetBool("strict")
		cfg.Join.Strict = v
	}
	if cmd.Flags().Changed("threshold") {
		v, _ := cmd.Flags().GetFloat64("threshold")
		cfg.Classify.DesertThreshold = v
	}
}

func init() {
	joinCmd.Flags().String("boundary", "", "boundary file path (default from config)")
	joinCmd.Flags().String("state", "", "restrict to one state, abbreviation or FIPS")
	joinCmd.Flags().String("output", "", "output GeoJSON path (default from config)")
	joinCmd.Flags().Bool("strict", false, "abort on the first malformed identifier")
	joinCmd.Flags().Float64("threshold", 0, "mobility desert threshold (default from config)")
	rootCmd.AddCommand(joinCmd)
}
