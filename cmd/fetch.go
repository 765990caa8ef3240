package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spark-map/atlas-cli/internal/tiger"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download census boundary artifacts into the local cache",
	Long: `Downloads the configured state's TIGER/Line tract shapefile ZIP and the
national 2020-to-2010 tract relationship file from census.gov, extracting
the ZIP in place. Artifacts already cached are skipped; HTTP failures
fall back to the Census FTP mirror when enabled.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if v, _ := cmd.Flags().GetString("state"); v != "" {
			cfg.Fetch.State = v
		}
		if v, _ := cmd.Flags().GetInt("year"); v != 0 {
			cfg.Fetch.Year = v
		}
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		return withRun(ctx, "fetch", func(ctx context.Context) (any, string, error) {
			res, err := tiger.Fetch(ctx, cfg.Fetch)
			if err != nil {
				return nil, "", err
			}
			fmt.Printf("Shapefile: %s\nRelationship file: %s\n(%d downloaded, %d cached)\n",
				res.ShapefilePath, res.RelationshipPath, res.Downloaded, res.Skipped)
			return res, res.ShapefilePath, nil
		})
	},
}

func init() {
	fetchCmd.Flags().String("state", "", "state to fetch, abbreviation or FIPS (default from config)")
	fetchCmd.Flags().Int("year", 0, "TIGER/Line vintage year (default from config)")
	rootCmd.AddCommand(fetchCmd)
}
