package main

import (
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spark-map/atlas-cli/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Preview the generated artifacts locally",
	Long: `Serves the output directory (map assets plus the joined GeoJSON) over
HTTP with permissive CORS, a health endpoint, and run history under
/api/runs. Nothing is computed per request.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if v, _ := cmd.Flags().GetInt("port"); v != 0 {
			cfg.Server.Port = v
		}
		if v, _ := cmd.Flags().GetString("dir"); v != "" {
			cfg.Server.Dir = v
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		srv := server.New(cfg.Server, st)

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("serving artifacts",
			zap.Int("port", cfg.Server.Port),
			zap.String("dir", cfg.Server.Dir),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (default from config)")
	serveCmd.Flags().String("dir", "", "directory to serve (default from config)")
	rootCmd.AddCommand(serveCmd)
}
