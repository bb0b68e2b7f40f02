package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all tunables for the research service. The pipeline bounds are
// policy, not architecture, so every one of them is adjustable here rather
// than hardcoded at the call sites.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Search  SearchConfig  `mapstructure:"search"`
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	Compare CompareConfig `mapstructure:"compare"`
	Model   ModelConfig   `mapstructure:"model"`
	Storage StorageConfig `mapstructure:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SearchConfig bounds query planning and SERP access.
type SearchConfig struct {
	MaxTopics       int     `mapstructure:"max_topics"`
	ResultsPerQuery int     `mapstructure:"results_per_query"`
	RequestsPerSec  float64 `mapstructure:"requests_per_sec"`
	Jitter          float64 `mapstructure:"jitter"`
	Endpoint        string  `mapstructure:"endpoint"`
}

// ScrapeConfig bounds the fetcher pool for one subject.
type ScrapeConfig struct {
	ScanLimit     int           `mapstructure:"scan_limit"`
	ScanLimitLite int           `mapstructure:"scan_limit_lite"`
	Workers       int           `mapstructure:"workers"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	MinTextLen    int           `mapstructure:"min_text_len"`
	MaxTextLen    int           `mapstructure:"max_text_len"`
}

// CompareConfig bounds the competitor fan-out.
type CompareConfig struct {
	MaxCompetitors int `mapstructure:"max_competitors"`
	Workers        int `mapstructure:"workers"`
	SourcesPerBlob int `mapstructure:"sources_per_blob"`
}

// ModelConfig configures the external text-generation service.
type ModelConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Deployment  string        `mapstructure:"deployment"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxInputLen int           `mapstructure:"max_input_len"`
}

// StorageConfig selects and configures the evidence store backend.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"` // "sqlite" or "postgres"
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load reads configuration from an optional yaml file and DOSSIER_* environment
// variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/dossier/")

	v.SetEnvPrefix("DOSSIER")
	// Nested keys use dots internally; env names need underscores, so
	// scrape.workers is overridden by DOSSIER_SCRAPE_WORKERS.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No file is fine, env vars and defaults cover everything.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("search.max_topics", 3)
	v.SetDefault("search.results_per_query", 4)
	v.SetDefault("search.requests_per_sec", 1.0)
	v.SetDefault("search.jitter", 0.3)
	v.SetDefault("search.endpoint", "https://html.duckduckgo.com/html/")

	v.SetDefault("scrape.scan_limit", 6)
	v.SetDefault("scrape.scan_limit_lite", 3)
	v.SetDefault("scrape.workers", 5)
	v.SetDefault("scrape.fetch_timeout", 10*time.Second)
	v.SetDefault("scrape.min_text_len", 300)
	v.SetDefault("scrape.max_text_len", 15000)

	v.SetDefault("compare.max_competitors", 2)
	v.SetDefault("compare.workers", 3)
	v.SetDefault("compare.sources_per_blob", 2)

	v.SetDefault("model.timeout", 35*time.Second)
	v.SetDefault("model.max_input_len", 30000)

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.sqlite_path", "dossier.db")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	if cfg.Search.ResultsPerQuery <= 0 {
		return fmt.Errorf("search.results_per_query must be positive")
	}
	if cfg.Scrape.Workers <= 0 {
		return fmt.Errorf("scrape.workers must be positive")
	}
	if cfg.Scrape.ScanLimit <= 0 || cfg.Scrape.ScanLimitLite <= 0 {
		return fmt.Errorf("scan limits must be positive")
	}
	if cfg.Scrape.MinTextLen >= cfg.Scrape.MaxTextLen {
		return fmt.Errorf("scrape.min_text_len must be below scrape.max_text_len")
	}
	if cfg.Compare.Workers <= 0 {
		return fmt.Errorf("compare.workers must be positive")
	}
	switch cfg.Storage.Backend {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == "postgres" && cfg.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn required for postgres backend")
	}
	return nil
}
