package carteira

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// BaseCurrency is the reporting currency of the portfolio.
	BaseCurrency string `yaml:"base_currency"`

	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`

	Brapi struct {
		Token string `yaml:"token"`
	} `yaml:"brapi"`

	Fetch struct {
		CacheDir  string `yaml:"cache_dir"`
		BatchSize int    `yaml:"batch_size"`
		PacingMS  int    `yaml:"pacing_ms"`
		TimeoutS  int    `yaml:"timeout_s"`
	} `yaml:"fetch"`

	Schedule struct {
		PricesCron    string `yaml:"prices_cron"`
		DividendsCron string `yaml:"dividends_cron"`
	} `yaml:"schedule"`

	// CutoffExclusive switches position replay to count only
	// transactions strictly before the cutoff date.
	CutoffExclusive bool `yaml:"cutoff_exclusive"`
}

// LoadConfig reads config from a YAML file, then applies environment
// variable overrides and defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("BRAPI_TOKEN"); v != "" {
		cfg.Brapi.Token = v
	}
	if v := os.Getenv("CARTEIRA_DB"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("CARTEIRA_CACHE_DIR"); v != "" {
		cfg.Fetch.CacheDir = v
	}
	if v := os.Getenv("CARTEIRA_BASE_CURRENCY"); v != "" {
		cfg.BaseCurrency = v
	}

	// Defaults
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = "BRL"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "carteira.db"
	}
	if cfg.Fetch.CacheDir == "" {
		cfg.Fetch.CacheDir = defaultCacheDir()
	}
	if cfg.Fetch.BatchSize == 0 {
		cfg.Fetch.BatchSize = 20
	}
	if cfg.Fetch.PacingMS == 0 {
		cfg.Fetch.PacingMS = 500
	}
	if cfg.Fetch.TimeoutS == 0 {
		cfg.Fetch.TimeoutS = 30
	}
	if cfg.Schedule.PricesCron == "" {
		cfg.Schedule.PricesCron = "0 18 * * 1-5"
	}
	if cfg.Schedule.DividendsCron == "" {
		cfg.Schedule.DividendsCron = "30 18 * * 1-5"
	}

	return cfg, nil
}

// Policy derives the reconciliation policy from the configuration.
func (c *Config) Policy() Policy {
	p := DefaultPolicy()
	if c.CutoffExclusive {
		p.Cutoff = CutoffExclusive
	}
	p.BatchSize = c.Fetch.BatchSize
	p.Pacing = time.Duration(c.Fetch.PacingMS) * time.Millisecond
	p.Timeout = time.Duration(c.Fetch.TimeoutS) * time.Second
	return p
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".cache"
	}
	return dir + "/carteira"
}
