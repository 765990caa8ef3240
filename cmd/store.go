package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/spark-map/atlas-cli/internal/store"
)

// initStore opens the run-history database and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	path := cfg.Store.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "create store dir")
		}
	}

	st, err := store.NewSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// withRun records a command invocation in the run history around fn.
// History failures are logged, never fatal: the pipeline's artifacts
// matter more than its bookkeeping.
func withRun(ctx context.Context, command string, fn func(ctx context.Context) (report any, outputPath string, err error)) error {
	st, err := initStore(ctx)
	if err != nil {
		zap.L().Warn("run history unavailable", zap.String("command", command), zap.Error(err))
		_, _, runErr := fn(ctx)
		return runErr
	}
	defer st.Close() //nolint:errcheck

	run, err := st.CreateRun(ctx, command)
	if err != nil {
		zap.L().Warn("record run start", zap.String("command", command), zap.Error(err))
		_, _, runErr := fn(ctx)
		return runErr
	}

	report, outputPath, runErr := fn(ctx)
	if runErr != nil {
		if ferr := st.FailRun(ctx, run.ID, runErr); ferr != nil {
			zap.L().Warn("record failed run", zap.String("run_id", run.ID), zap.Error(ferr))
		}
		return runErr
	}

	if cerr := st.CompleteRun(ctx, run.ID, report, outputPath); cerr != nil {
		zap.L().Warn("record completed run", zap.String("run_id", run.ID), zap.Error(cerr))
	}
	zap.L().Info("run recorded",
		zap.String("run_id", run.ID),
		zap.String("command", command),
	)
	return nil
}
