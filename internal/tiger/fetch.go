package tiger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spark-map/atlas-cli/internal/config"
	"github.com/spark-map/atlas-cli/internal/fetcher"
	"github.com/spark-map/atlas-cli/internal/geoid"
)

// Result lists the artifacts a fetch produced or found in cache.
type Result struct {
	ShapefilePath    string `json:"shapefile_path"`
	RelationshipPath string `json:"relationship_path"`
	Downloaded       int    `json:"downloaded"`
	Skipped          int    `json:"skipped"`
}

// Fetch downloads the configured state's tract shapefile ZIP and the
// national relationship file into cfg.CacheDir, extracts the ZIP, and
// returns the resulting paths. Artifacts already in the cache are not
// re-downloaded.
func Fetch(ctx context.Context, cfg config.FetchConfig) (*Result, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	web := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:      timeout,
		MaxRetries:   cfg.MaxRetries,
		RateLimiters: rateLimiters(cfg.RatePerSec),
	})
	var mirror fetcher.Fetcher
	if cfg.FTPFallback {
		mirror = fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout})
	}
	return fetch(ctx, cfg, web, mirror)
}

// rateLimiters honors a configured rate override, otherwise the fetcher
// package defaults.
func rateLimiters(perSec float64) map[string]*rate.Limiter {
	if perSec <= 0 {
		return fetcher.DefaultRateLimiters()
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}
	return map[string]*rate.Limiter{
		"www2.census.gov": rate.NewLimiter(rate.Limit(perSec), burst),
	}
}

func fetch(ctx context.Context, cfg config.FetchConfig, web, mirror fetcher.Fetcher) (*Result, error) {
	if cfg.Year == 0 {
		cfg.Year = DefaultYear
	}
	fips, ok := geoid.StateFIPSFor(cfg.State)
	if !ok {
		return nil, eris.Errorf("tiger: unknown state %q", cfg.State)
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "tiger: create cache dir")
	}

	log := zap.L().With(
		zap.String("component", "tiger"),
		zap.String("state", fips),
		zap.Int("year", cfg.Year),
	)

	res := &Result{}

	zipURL := TractURL(cfg.Year, fips)
	zipPath := filepath.Join(cfg.CacheDir, filepath.Base(zipURL))
	if err := fetchArtifact(ctx, web, mirror, zipURL, zipPath, res, log); err != nil {
		return nil, err
	}

	extractDir := filepath.Join(cfg.CacheDir, strings.TrimSuffix(filepath.Base(zipURL), ".zip"))
	if _, err := fetcher.ExtractZIP(zipPath, extractDir); err != nil {
		return nil, eris.Wrapf(err, "tiger: extract %s", filepath.Base(zipPath))
	}
	shp, err := findFileByExt(extractDir, ".shp")
	if err != nil {
		return nil, eris.Wrap(err, "tiger: locate shapefile")
	}
	res.ShapefilePath = shp

	relPath := filepath.Join(cfg.CacheDir, filepath.Base(RelationshipURL))
	if err := fetchArtifact(ctx, web, mirror, RelationshipURL, relPath, res, log); err != nil {
		return nil, err
	}
	res.RelationshipPath = relPath

	log.Info("fetch complete",
		zap.String("shapefile", res.ShapefilePath),
		zap.String("relationship", res.RelationshipPath),
		zap.Int("downloaded", res.Downloaded),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// fetchArtifact downloads url to dest unless a non-empty copy is already
// cached. On HTTP failure it retries once over the FTP mirror when one is
// configured.
func fetchArtifact(ctx context.Context, web, mirror fetcher.Fetcher, url, dest string, res *Result, log *zap.Logger) error {
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		log.Debug("artifact already cached", zap.String("path", dest))
		res.Skipped++
		return nil
	}

	log.Info("downloading artifact", zap.String("url", url))
	_, err := web.DownloadToFile(ctx, url, dest)
	if err != nil && mirror != nil {
		log.Warn("http download failed, trying ftp mirror",
			zap.String("url", url),
			zap.Error(err),
		)
		_, err = mirror.DownloadToFile(ctx, MirrorURL(url), dest)
	}
	if err != nil {
		// Drop any partial file so the next run retries instead of
		// trusting a truncated artifact.
		_ = os.Remove(dest)
		return eris.Wrapf(err, "tiger: download %s", filepath.Base(dest))
	}
	res.Downloaded++
	return nil
}

// findFileByExt finds the first file with the given extension in a directory.
func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}
