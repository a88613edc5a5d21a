// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Vision   VisionConfig   `mapstructure:"vision"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs page discovery and fetch behavior.
type CrawlerConfig struct {
	MaxPages          int    `mapstructure:"max_pages"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_seconds"`
	UserAgent         string `mapstructure:"user_agent"`
	RateLimitPerHost  int    `mapstructure:"rate_limit_per_host"`
}

// HeadlessConfig configures the chromedp rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
	MinHTMLBytes  int  `mapstructure:"min_html_bytes"`
}

// VisionConfig controls the model-based inference path. An empty APIKey
// disables the primary path entirely.
type VisionConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	TimeoutSec  int     `mapstructure:"timeout_seconds"`
}

// StorageConfig sets image persistence behavior.
type StorageConfig struct {
	Provider            string `mapstructure:"provider"`
	ImageDir            string `mapstructure:"image_dir"`
	GCSBucket           string `mapstructure:"gcs_bucket"`
	MaxImagesPerProduct int    `mapstructure:"max_images_per_product"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory stores.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// PubSubConfig holds metadata for job completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// PipelineConfig governs the per-job worker pool.
type PipelineConfig struct {
	Workers     int `mapstructure:"workers"`
	MaxProducts int `mapstructure:"max_products"`
	QueueDepth  int `mapstructure:"queue_depth"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JEWELCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.max_pages", 50)
	v.SetDefault("crawler.request_timeout_seconds", 15)
	v.SetDefault("crawler.user_agent", "jewelcrawler-bot/0.1")
	v.SetDefault("crawler.rate_limit_per_host", 2)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.min_html_bytes", 2048)
	v.SetDefault("vision.model", "gpt-4o")
	v.SetDefault("vision.max_tokens", 500)
	v.SetDefault("vision.temperature", 0.3)
	v.SetDefault("vision.timeout_seconds", 30)
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.image_dir", "./data/images")
	v.SetDefault("storage.max_images_per_product", 5)
	v.SetDefault("db.max_open_conns", 8)
	v.SetDefault("logging.development", true)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.max_products", 0)
	v.SetDefault("pipeline.queue_depth", 64)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.Crawler.RequestTimeoutSec <= 0 {
		return fmt.Errorf("crawler.request_timeout_seconds must be > 0")
	}
	if c.Crawler.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Vision.MaxTokens <= 0 {
		return fmt.Errorf("vision.max_tokens must be > 0")
	}
	if c.Vision.Temperature < 0 || c.Vision.Temperature > 2 {
		return fmt.Errorf("vision.temperature must be in [0,2]")
	}
	switch c.Storage.Provider {
	case "local", "gcs", "noop":
	default:
		return fmt.Errorf("unknown storage.provider: %s", c.Storage.Provider)
	}
	if c.Storage.Provider == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set when provider is gcs")
	}
	if c.Storage.MaxImagesPerProduct <= 0 {
		return fmt.Errorf("storage.max_images_per_product must be > 0")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be > 0")
	}
	return nil
}

// RequestTimeout converts the crawler timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawler.RequestTimeoutSec) * time.Second
}

// VisionTimeout converts the vision call budget into a duration.
func (c Config) VisionTimeout() time.Duration {
	return time.Duration(c.Vision.TimeoutSec) * time.Second
}
