package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
crawler:
  max_pages: 25
  request_timeout_seconds: 20
  user_agent: jewel-agent
  rate_limit_per_host: 4
headless:
  enabled: true
  max_parallel: 2
  nav_timeout_seconds: 30
vision:
  api_key: secret
  model: gpt-4o-mini
  max_tokens: 300
  temperature: 0.7
storage:
  provider: local
  image_dir: /tmp/images
  max_images_per_product: 3
db:
  dsn: postgres://u:p@localhost:5432/jewels
pubsub:
  project_id: proj
  topic_name: jewel-jobs
logging:
  development: false
pipeline:
  workers: 8
  max_products: 10
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.MaxPages != 25 || cfg.Crawler.UserAgent != "jewel-agent" {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if !cfg.Headless.Enabled || cfg.Headless.MaxParallel != 2 {
		t.Fatalf("expected headless overrides to apply: %+v", cfg.Headless)
	}
	if cfg.Vision.APIKey != "secret" || cfg.Vision.Model != "gpt-4o-mini" {
		t.Fatalf("expected vision overrides to apply: %+v", cfg.Vision)
	}
	if cfg.Storage.MaxImagesPerProduct != 3 {
		t.Fatalf("expected image cap 3, got %d", cfg.Storage.MaxImagesPerProduct)
	}
	if cfg.Pipeline.Workers != 8 || cfg.Pipeline.MaxProducts != 10 {
		t.Fatalf("expected pipeline overrides to apply: %+v", cfg.Pipeline)
	}
	if got := cfg.RequestTimeout(); got != 20*time.Second {
		t.Fatalf("expected request timeout 20s, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.MaxPages != 50 {
		t.Fatalf("expected default max pages 50, got %d", cfg.Crawler.MaxPages)
	}
	if cfg.Storage.Provider != "local" || cfg.Storage.MaxImagesPerProduct != 5 {
		t.Fatalf("expected local storage defaults: %+v", cfg.Storage)
	}
	if cfg.Pipeline.Workers != 4 {
		t.Fatalf("expected default worker pool 4, got %d", cfg.Pipeline.Workers)
	}
	if got := cfg.VisionTimeout(); got != 30*time.Second {
		t.Fatalf("expected vision timeout 30s, got %v", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero max pages", func(c *Config) { c.Crawler.MaxPages = 0 }},
		{"empty user agent", func(c *Config) { c.Crawler.UserAgent = "" }},
		{"headless without parallel", func(c *Config) {
			c.Headless.Enabled = true
			c.Headless.MaxParallel = 0
		}},
		{"unknown storage provider", func(c *Config) { c.Storage.Provider = "s3" }},
		{"gcs without bucket", func(c *Config) {
			c.Storage.Provider = "gcs"
			c.Storage.GCSBucket = ""
		}},
		{"zero image cap", func(c *Config) { c.Storage.MaxImagesPerProduct = 0 }},
		{"temperature out of range", func(c *Config) { c.Vision.Temperature = 3 }},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}
