// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/heritage-watch/heritage-cli/internal/heritage"
)

// Config holds the full application configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine" mapstructure:"engine"`
	Datasets DatasetsConfig `yaml:"datasets" mapstructure:"datasets"`
	History  HistoryConfig  `yaml:"history" mapstructure:"history"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Refresh  RefreshConfig  `yaml:"refresh" mapstructure:"refresh"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// EngineConfig configures the resolution engine.
type EngineConfig struct {
	MaxRadiusMeters float64       `yaml:"max_radius_meters" mapstructure:"max_radius_meters"`
	MatcherTimeout  time.Duration `yaml:"matcher_timeout" mapstructure:"matcher_timeout"`
	CacheTTL        time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	CacheMaxEntries int           `yaml:"cache_max_entries" mapstructure:"cache_max_entries"`
	Coverage        BoundsConfig  `yaml:"coverage" mapstructure:"coverage"`
}

// BoundsConfig is a lat/lng bounding box.
type BoundsConfig struct {
	MinLat float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLat float64 `yaml:"max_lat" mapstructure:"max_lat"`
	MinLng float64 `yaml:"min_lng" mapstructure:"min_lng"`
	MaxLng float64 `yaml:"max_lng" mapstructure:"max_lng"`
}

// ServiceConfig converts the engine section into the engine's own config type.
func (c EngineConfig) ServiceConfig() heritage.ServiceConfig {
	return heritage.ServiceConfig{
		MaxRadiusMeters: c.MaxRadiusMeters,
		MatcherTimeout:  c.MatcherTimeout,
		CacheTTL:        c.CacheTTL,
		CacheMaxEntries: c.CacheMaxEntries,
		Coverage: heritage.Bounds{
			MinLat: c.Coverage.MinLat,
			MaxLat: c.Coverage.MaxLat,
			MinLng: c.Coverage.MinLng,
			MaxLng: c.Coverage.MaxLng,
		},
	}
}

// DatasetsConfig locates the reference datasets.
type DatasetsConfig struct {
	Manifest string `yaml:"manifest" mapstructure:"manifest"`
}

// HistoryConfig configures the resolution audit store.
type HistoryConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeocodeConfig configures the postcode geocoding client.
type GeocodeConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// RefreshConfig configures periodic snapshot reloads.
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port              int     `yaml:"port" mapstructure:"port"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
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
	v.SetEnvPrefix("HERITAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("engine.max_radius_meters", 50.0)
	v.SetDefault("engine.matcher_timeout", "2s")
	v.SetDefault("engine.cache_ttl", "6h")
	v.SetDefault("engine.cache_max_entries", 10000)
	v.SetDefault("engine.coverage.min_lat", 51.50)
	v.SetDefault("engine.coverage.max_lat", 51.65)
	v.SetDefault("engine.coverage.min_lng", -0.30)
	v.SetDefault("engine.coverage.max_lng", 0.00)
	v.SetDefault("datasets.manifest", "datasets.yaml")
	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.database_url", "heritage.db")
	v.SetDefault("geocode.base_url", "https://api.postcodes.io")
	v.SetDefault("geocode.requests_per_second", 10.0)
	v.SetDefault("refresh.interval", "24h")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.requests_per_second", 25.0)
	v.SetDefault("server.burst", 50)
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

// Validate checks that the configuration is usable for the given mode.
// Modes: "serve", "check", "datasets".
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Engine.MaxRadiusMeters <= 0 {
		problems = append(problems, "engine.max_radius_meters must be > 0")
	}
	if c.Engine.MatcherTimeout <= 0 {
		problems = append(problems, "engine.matcher_timeout must be > 0")
	}
	if c.Engine.Coverage.MinLat >= c.Engine.Coverage.MaxLat {
		problems = append(problems, "engine.coverage latitude range is empty")
	}
	if c.Engine.Coverage.MinLng >= c.Engine.Coverage.MaxLng {
		problems = append(problems, "engine.coverage longitude range is empty")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.History.Driver != "sqlite" && c.History.Driver != "postgres" && c.History.Driver != "none" {
			problems = append(problems, "history.driver must be sqlite, postgres, or none")
		}
	case "check":
		if c.Geocode.BaseURL == "" {
			problems = append(problems, "geocode.base_url is required")
		}
	case "datasets":
		if c.Datasets.Manifest == "" {
			problems = append(problems, "datasets.manifest is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
