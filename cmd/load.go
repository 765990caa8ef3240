package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spark-map/atlas-cli/internal/db"
	"github.com/spark-map/atlas-cli/internal/feature"
	"github.com/spark-map/atlas-cli/internal/pgload"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Upsert joined features into Postgres/PostGIS",
	Long: `Loads the joined feature collection into a PostGIS table for ad-hoc
analyst queries: GEOID key columns, the full property map as JSONB, and
the boundary geometry as SRID 4326 multipolygons. The GeoJSON artifact
remains the map's only input; this sink is optional.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		featPath, _ := cmd.Flags().GetString("features")
		if featPath == "" {
			featPath = cfg.Output.Path
		}
		if err := cfg.Validate("load"); err != nil {
			return err
		}

		return withRun(ctx, "load", func(ctx context.Context) (any, string, error) {
			feats, err := feature.ReadGeoJSON(featPath)
			if err != nil {
				return nil, "", err
			}

			pool, err := db.Connect(ctx, cfg.Postgres.DatabaseURL)
			if err != nil {
				return nil, "", err
			}
			defer pool.Close()

			if err := pgload.EnsureSchema(ctx, pool, cfg.Postgres.Table); err != nil {
				return nil, "", err
			}

			batchSize, _ := cmd.Flags().GetInt("batch-size")
			rep, err := pgload.Load(ctx, pool, cfg.Postgres.Table, feats, batchSize)
			if err != nil {
				return nil, "", err
			}

			fmt.Printf("Upserted %d rows into %s (%d without geometry)\n",
				rep.Rows, cfg.Postgres.Table, rep.NoGeom)
			return rep, cfg.Postgres.Table, nil
		})
	},
}

func init() {
	loadCmd.Flags().String("features", "", "feature collection to load (default: the join output)")
	loadCmd.Flags().Int("batch-size", 0, "rows per COPY batch (default 5000)")
	rootCmd.AddCommand(loadCmd)
}
