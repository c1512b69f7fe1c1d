// Package config loads run configuration from defaults, an optional YAML file
// and CARDVALUE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Run modes
const (
	ModeCollection = "collection"
	ModeMarket     = "market"
)

// Config is the validated configuration shared by the server and the CLI
type Config struct {
	DBPath  string `mapstructure:"db_path" validate:"required"`
	DataDir string `mapstructure:"data_dir" validate:"required"`
	Mode    string `mapstructure:"mode" validate:"oneof=collection market"`

	// Run control
	Workers  int    `mapstructure:"workers" validate:"min=1,max=64"`
	Season   string `mapstructure:"season"`
	Category string `mapstructure:"category"`
	Force    bool   `mapstructure:"force"`
	Limit    int    `mapstructure:"limit" validate:"min=0"`
	DryRun   bool   `mapstructure:"dry_run"`

	// Estimation and fetching
	DefaultPrice      float64       `mapstructure:"default_price" validate:"gte=0"`
	MaxListings       int           `mapstructure:"max_listings" validate:"min=1,max=240"`
	CheckpointEvery   int           `mapstructure:"checkpoint_every" validate:"min=1"`
	MinDelay          time.Duration `mapstructure:"min_delay" validate:"gte=0"`
	MaxDelay          time.Duration `mapstructure:"max_delay" validate:"gte=0,gtefield=MinDelay"`
	BulkDelayCap      time.Duration `mapstructure:"bulk_delay_cap" validate:"gte=0"`
	PageTimeout       time.Duration `mapstructure:"page_timeout" validate:"gt=0"`
	RenderURL         string        `mapstructure:"render_url" validate:"required,url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	GradedVariants    []int         `mapstructure:"graded_variants" validate:"dive,min=1,max=10"`
	KeywordTables     string        `mapstructure:"keyword_tables"`

	// Server
	ScrapeInterval     time.Duration `mapstructure:"scrape_interval" validate:"gte=0"`
	SnapshotHour       int           `mapstructure:"snapshot_hour" validate:"min=0,max=23"`
	Port               string        `mapstructure:"port"`
	CORSAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`
	MetricsAddr        string        `mapstructure:"metrics_addr"`

	// Output
	XLSX      bool   `mapstructure:"xlsx"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
}

// New returns a viper instance with defaults and environment binding applied
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("db_path", "./card_valuer.db")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("mode", ModeCollection)
	v.SetDefault("workers", 0) // 0 = mode default
	v.SetDefault("season", "")
	v.SetDefault("category", "")
	v.SetDefault("force", false)
	v.SetDefault("limit", 0)
	v.SetDefault("dry_run", false)
	v.SetDefault("default_price", 1.0)
	v.SetDefault("max_listings", 60)
	v.SetDefault("checkpoint_every", 50)
	v.SetDefault("min_delay", 500*time.Millisecond)
	v.SetDefault("max_delay", 3*time.Second)
	v.SetDefault("bulk_delay_cap", time.Second)
	v.SetDefault("page_timeout", 15*time.Second)
	v.SetDefault("render_url", "http://127.0.0.1:8097")
	v.SetDefault("requests_per_second", 2.0)
	v.SetDefault("graded_variants", []int{})
	v.SetDefault("keyword_tables", "")
	v.SetDefault("scrape_interval", 24*time.Hour)
	v.SetDefault("snapshot_hour", 23)
	v.SetDefault("port", "8080")
	v.SetDefault("cors_allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("metrics_addr", "")
	v.SetDefault("xlsx", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", "")

	v.SetEnvPrefix("CARDVALUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// ReadFile merges a YAML config file into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load decodes v, applies mode defaults and validates the result
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.applyModeDefaults()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyModeDefaults() {
	if c.Workers == 0 {
		if c.Mode == ModeMarket {
			c.Workers = 15
		} else {
			c.Workers = 3
		}
	}
	if c.Mode == ModeMarket && c.BulkDelayCap > 0 && c.MaxDelay > c.BulkDelayCap {
		c.MaxDelay = c.BulkDelayCap
		if c.MinDelay > c.MaxDelay {
			c.MinDelay = c.MaxDelay
		}
	}
}

// ArchiveCap is the rolling raw-sales window kept per card
func (c *Config) ArchiveCap() int {
	if c.Mode == ModeMarket {
		return 50
	}
	return 100
}

// SnapshotFile is the name of the aggregate value history file
func (c *Config) SnapshotFile() string {
	if c.Mode == ModeMarket {
		return "market_history.json"
	}
	return "portfolio_history.json"
}
