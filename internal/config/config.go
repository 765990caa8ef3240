package config

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Boundary  BoundaryConfig  `yaml:"boundary" mapstructure:"boundary"`
	Sources   []SourceConfig  `yaml:"sources" mapstructure:"sources"`
	Join      JoinConfig      `yaml:"join" mapstructure:"join"`
	Classify  ClassifyConfig  `yaml:"classify" mapstructure:"classify"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Crosswalk CrosswalkConfig `yaml:"crosswalk" mapstructure:"crosswalk"`
	POI       POIConfig       `yaml:"poi" mapstructure:"poi"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Postgres  PostgresConfig  `yaml:"postgres" mapstructure:"postgres"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// BoundaryConfig names the authoritative tract geometry table.
type BoundaryConfig struct {
	Path   string `yaml:"path" mapstructure:"path"`     // .shp or .geojson
	Format string `yaml:"format" mapstructure:"format"` // "shapefile", "geojson", or "" = by extension
}

// SourceConfig describes one metric table. Type selects the extractor;
// the remaining fields cover per-source quirks.
type SourceConfig struct {
	Name       string   `yaml:"name" mapstructure:"name"`
	Type       string   `yaml:"type" mapstructure:"type"`
	Path       string   `yaml:"path" mapstructure:"path"`
	Sheet      string   `yaml:"sheet" mapstructure:"sheet"`           // xlsx only
	Delimiter  string   `yaml:"delimiter" mapstructure:"delimiter"`   // default ","
	Encoding   string   `yaml:"encoding" mapstructure:"encoding"`     // e.g. "latin1", default utf-8
	Sentinels  []string `yaml:"sentinels" mapstructure:"sentinels"`   // missing-value markers
	Scale      float64  `yaml:"scale" mapstructure:"scale"`           // multiply numeric values, 0 = 1
	Dictionary string   `yaml:"dictionary" mapstructure:"dictionary"` // wide: YAML column map
	Types      []string `yaml:"types" mapstructure:"types"`           // travel_time: destination set
}

// JoinConfig controls the join pass.
type JoinConfig struct {
	State       string `yaml:"state" mapstructure:"state"` // abbr or FIPS; "" = no filter
	Strict      bool   `yaml:"strict" mapstructure:"strict"`
	MaxParallel int    `yaml:"max_parallel" mapstructure:"max_parallel"`
}

// ClassifyConfig parameterizes derived classifications.
type ClassifyConfig struct {
	DesertThreshold float64 `yaml:"desert_threshold" mapstructure:"desert_threshold"`
	MobilityKey     string  `yaml:"mobility_key" mapstructure:"mobility_key"`
}

// OutputConfig controls artifact serialization.
type OutputConfig struct {
	Path       string `yaml:"path" mapstructure:"path"`
	Dictionary string `yaml:"dictionary" mapstructure:"dictionary"` // YAML data dictionary, "" = skip
	Precision  int    `yaml:"precision" mapstructure:"precision"`   // coordinate decimal digits
}

// CrosswalkConfig configures 2020->2010 relationship fills.
type CrosswalkConfig struct {
	RelationshipPath string `yaml:"relationship_path" mapstructure:"relationship_path"`
	DonorPath        string `yaml:"donor_path" mapstructure:"donor_path"`             // 2010-keyed wide CSV
	DonorDictionary  string `yaml:"donor_dictionary" mapstructure:"donor_dictionary"` // column map for the donor
	ProbeKey         string `yaml:"probe_key" mapstructure:"probe_key"`               // metric deciding "needs fill"
}

// POIConfig configures point-of-interest county augmentation.
type POIConfig struct {
	TractsPath string   `yaml:"tracts_path" mapstructure:"tracts_path"` // joined feature collection
	Files      []string `yaml:"files" mapstructure:"files"`
}

// FetchConfig configures census artifact downloads.
type FetchConfig struct {
	CacheDir    string  `yaml:"cache_dir" mapstructure:"cache_dir"`
	State       string  `yaml:"state" mapstructure:"state"`
	Year        int     `yaml:"year" mapstructure:"year"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	FTPFallback bool    `yaml:"ftp_fallback" mapstructure:"ftp_fallback"`
}

// StoreConfig configures the run-history store.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig configures the optional PostGIS sink.
type PostgresConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
}

// ServerConfig configures the preview server.
type ServerConfig struct {
	Port int    `yaml:"port" mapstructure:"port"`
	Dir  string `yaml:"dir" mapstructure:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("boundary.format", "")
	v.SetDefault("join.state", "")
	v.SetDefault("join.strict", false)
	v.SetDefault("join.max_parallel", 4)
	v.SetDefault("classify.desert_threshold", 40.0)
	v.SetDefault("classify.mobility_key", "mobility_pct")
	v.SetDefault("output.path", "data/tracts.geojson")
	v.SetDefault("output.dictionary", "data/tracts.dictionary.yaml")
	v.SetDefault("output.precision", 6)
	v.SetDefault("crosswalk.probe_key", "mobility_pct")
	v.SetDefault("fetch.cache_dir", "data/cache")
	v.SetDefault("fetch.state", "MD")
	v.SetDefault("fetch.year", 2025)
	v.SetDefault("fetch.rate_per_sec", 2.0)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.ftp_fallback", true)
	v.SetDefault("store.path", "data/atlas.db")
	v.SetDefault("postgres.table", "tract_metrics")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.dir", "data")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields a command mode depends on and reports every
// problem at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "join", "synthesize":
		if mode == "join" && c.Boundary.Path == "" {
			problems = append(problems, "boundary.path is required")
		}
		if len(c.Sources) == 0 {
			problems = append(problems, "at least one source is required")
		}
		for i, s := range c.Sources {
			at := "sources[" + strconv.Itoa(i) + "]"
			if s.Name == "" {
				problems = append(problems, at+".name is required")
			}
			if s.Type == "" {
				problems = append(problems, at+".type is required")
			}
			if s.Path == "" {
				problems = append(problems, at+".path is required")
			}
		}
		if c.Classify.DesertThreshold < 0 || c.Classify.DesertThreshold > 100 {
			problems = append(problems, "classify.desert_threshold must be between 0 and 100")
		}
		if c.Join.MaxParallel < 1 || c.Join.MaxParallel > 32 {
			problems = append(problems, "join.max_parallel must be between 1 and 32")
		}
	case "crosswalk":
		if c.Crosswalk.RelationshipPath == "" {
			problems = append(problems, "crosswalk.relationship_path is required")
		}
		if c.Crosswalk.DonorPath == "" {
			problems = append(problems, "crosswalk.donor_path is required")
		}
		if c.Crosswalk.DonorDictionary == "" {
			problems = append(problems, "crosswalk.donor_dictionary is required")
		}
	case "poi":
		if c.POI.TractsPath == "" {
			problems = append(problems, "poi.tracts_path is required")
		}
		if len(c.POI.Files) == 0 {
			problems = append(problems, "at least one entry in poi.files is required")
		}
	case "load":
		if c.Postgres.DatabaseURL == "" {
			problems = append(problems, "postgres.database_url is required")
		}
		if c.Postgres.Table == "" {
			problems = append(problems, "postgres.table is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "fetch":
		if c.Fetch.State == "" {
			problems = append(problems, "fetch.state is required")
		}
		if c.Fetch.Year < 2000 {
			problems = append(problems, "fetch.year must be >= 2000")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
