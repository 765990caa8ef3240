package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spark-map/atlas-cli/internal/poi"
)

var poiCmd = &cobra.Command{
	Use:   "poi",
	Short: "Work with point-of-interest overlay files",
}

var poiAugmentCmd = &cobra.Command{
	Use:   "augment",
	Short: "Annotate POI files with the containing tract's county",
	Long: `Looks up each point of interest (hospitals, schools, parks, ...) in the
joined tract features and writes county_name and county_fips onto it.
Points outside every tract get null county properties and are counted.
Files are rewritten in place, deterministically.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if v, _ := cmd.Flags().GetString("tracts"); v != "" {
			cfg.POI.TractsPath = v
		}
		if files, _ := cmd.Flags().GetStringSlice("file"); len(files) > 0 {
			cfg.POI.Files = files
		}
		if err := cfg.Validate("poi"); err != nil {
			return err
		}

		return withRun(ctx, "poi-augment", func(_ context.Context) (any, string, error) {
			rep, err := poi.Run(cfg.POI)
			if err != nil {
				return nil, "", err
			}
			points, unmatched := 0, 0
			for _, f := range rep.Files {
				points += f.Points
				unmatched += f.Unmatched
			}
			fmt.Printf("Annotated %d points across %d files (%d unmatched, %d files skipped)\n",
				points, len(rep.Files), unmatched, rep.Skipped)
			return rep, cfg.POI.TractsPath, nil
		})
	},
}

func init() {
	poiAugmentCmd.Flags().String("tracts", "", "joined tract feature collection (default from config)")
	poiAugmentCmd.Flags().StringSlice("file", nil, "POI GeoJSON file to annotate (repeatable; default from config)")
	poiCmd.AddCommand(poiAugmentCmd)
	rootCmd.AddCommand(poiCmd)
}
