package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spark-map/atlas-cli/internal/feature"
	"github.com/spark-map/atlas-cli/internal/joiner"
)

var synthesizeCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Merge all metric sources into one wide CSV keyed by GEOID",
	Long: `Extracts every configured metric table and merges them into a single
wide CSV, one row per tract, without touching the boundary. The output
doubles as the crosswalk donor table for older tract vintages.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if v, _ := cmd.Flags().GetString("state"); v != "" {
			cfg.Join.State = v
		}
		outPath, _ := cmd.Flags().GetString("output")
		if outPath == "" {
			outPath = deriveCSVPath(cfg.Output.Path)
		}
		if err := cfg.Validate("synthesize"); err != nil {
			return err
		}

		return withRun(ctx, "synthesize", func(ctx context.Context) (any, string, error) {
			res, err := joiner.Synthesize(ctx, cfg)
			if err != nil {
				return nil, "", err
			}

			if err := feature.WriteCSV(outPath, res.Header, res.Rows); err != nil {
				return nil, "", err
			}
			if dictPath, _ := cmd.Flags().GetString("dictionary"); dictPath != "" {
				if err := feature.WriteDictionary(dictPath, res.Dictionary); err != nil {
					return nil, "", err
				}
			}

			fmt.Printf("Wrote %d tracts to %s\n", res.Report.Tracts, outPath)
			return res.Report, outPath, nil
		})
	},
}

// deriveCSVPath swaps the configured GeoJSON artifact's extension so the
// two outputs land side by side by default.
func deriveCSVPath(geojsonPath string) string {
	return strings.TrimSuffix(geojsonPath, ".geojson") + ".csv"
}

func init() {
	synthesizeCmd.Flags().String("state", "", "restrict to one state, abbreviation or FIPS")
	synthesizeCmd.Flags().String("output", "", "output CSV path (default: alongside the GeoJSON artifact)")
	synthesizeCmd.Flags().String("dictionary", "", "also write a YAML data dictionary to this path")
	rootCmd.AddCommand(synthesizeCmd)
}
