package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/movierank/internal/scraper"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Importer.TopN != 5 || cfg.Report.TopK != 5 || cfg.Report.PieTopK != 8 || cfg.Report.MaxWords != 100 {
		t.Fatalf("unexpected report/importer defaults: %+v %+v", cfg.Importer, cfg.Report)
	}
	if cfg.Scraper.Mode != scraper.ModeHeadless {
		t.Fatalf("expected headless mode, got %q", cfg.Scraper.Mode)
	}
	if cfg.Scraper.Selectors != scraper.DefaultSelectors() {
		t.Fatalf("expected default selectors, got %+v", cfg.Scraper.Selectors)
	}
	if cfg.Scraper.RequestsPerSecond != 0.5 || cfg.Scraper.Burst != 1 {
		t.Fatalf("unexpected scrape rate defaults: %v/%d", cfg.Scraper.RequestsPerSecond, cfg.Scraper.Burst)
	}
	if cfg.DB.Tables.Rankings != "rankings" {
		t.Fatalf("expected default rankings table, got %q", cfg.DB.Tables.Rankings)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  request_timeout_seconds: 30
auth:
  enabled: true
  api_key: secret
db:
  dsn: postgres://movierank@localhost/movierank
  max_conns: 4
  tables:
    movies: films
importer:
  top_n: 3
scraper:
  mode: static
  top_n: 25
  nav_timeout_seconds: 45
  click_pause_ms: 250
  countries: ["KR", "BR"]
  selectors:
    title: h2.title
storage:
  gcs_bucket: movierank-artifacts
  report_prefix: reports
report:
  stopwords: ["heist"]
logging:
  development: false
  level: warn
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.RequestTimeout() != 30*time.Second {
		t.Fatalf("expected server overrides, got %+v", cfg.Server)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.DB.Tables.Movies != "films" || cfg.DB.Tables.Genres != "genres" {
		t.Fatalf("expected partial table override, got %+v", cfg.DB.Tables)
	}
	if cfg.Importer.TopN != 3 {
		t.Fatalf("expected importer.top_n 3, got %d", cfg.Importer.TopN)
	}
	if cfg.Scraper.Mode != scraper.ModeStatic || cfg.Scraper.TopN != 25 {
		t.Fatalf("expected scraper overrides, got %+v", cfg.Scraper)
	}
	if cfg.NavTimeout() != 45*time.Second || cfg.ClickPause() != 250*time.Millisecond {
		t.Fatalf("unexpected scraper durations %v %v", cfg.NavTimeout(), cfg.ClickPause())
	}
	if len(cfg.Scraper.Countries) != 2 || cfg.Scraper.Countries[1] != "BR" {
		t.Fatalf("expected countries override, got %v", cfg.Scraper.Countries)
	}
	if cfg.Scraper.Selectors.Title != "h2.title" || cfg.Scraper.Selectors.Score != scraper.DefaultSelectors().Score {
		t.Fatalf("expected one selector override, got %+v", cfg.Scraper.Selectors)
	}
	if cfg.Storage.GCSBucket != "movierank-artifacts" || cfg.Storage.ReportPrefix != "reports" {
		t.Fatalf("expected storage overrides, got %+v", cfg.Storage)
	}
	if len(cfg.Report.Stopwords) != 1 || cfg.Report.Stopwords[0] != "heist" {
		t.Fatalf("expected stopwords override, got %v", cfg.Report.Stopwords)
	}
	if cfg.Logging.Development || cfg.Logging.Level != "warn" {
		t.Fatalf("expected logging overrides, got %+v", cfg.Logging)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MOVIERANK_SERVER_PORT", "7070")
	t.Setenv("MOVIERANK_DB_DSN", "postgres://env@localhost/movierank")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env port 7070, got %d", cfg.Server.Port)
	}
	if cfg.DB.DSN != "postgres://env@localhost/movierank" {
		t.Fatalf("expected env dsn, got %q", cfg.DB.DSN)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:   ServerConfig{Port: 8080, RequestTimeoutSeconds: 60},
		Importer: ImporterConfig{TopN: 5},
		Scraper:  ScraperConfig{Mode: scraper.ModeHeadless, TopN: 10, BaseURL: scraper.DefaultBaseURL},
		Report:   ReportConfig{TopK: 5, PieTopK: 8, MaxWords: 100},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"invalid timeout", func(c *Config) { c.Server.RequestTimeoutSeconds = 0 }, "server.request_timeout_seconds"},
		{"auth missing api key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"invalid top n", func(c *Config) { c.Importer.TopN = 0 }, "importer.top_n"},
		{"min conns above max", func(c *Config) { c.DB.MaxConns, c.DB.MinConns = 2, 3 }, "db.min_conns"},
		{"unknown scraper mode", func(c *Config) { c.Scraper.Mode = "selenium" }, "scraper.mode"},
		{"scraper top n", func(c *Config) { c.Scraper.TopN = 0 }, "scraper.top_n"},
		{"negative scrape rate", func(c *Config) { c.Scraper.RequestsPerSecond = -1 }, "scraper.requests_per_second"},
		{"base url placeholder", func(c *Config) { c.Scraper.BaseURL = "https://example.com" }, "scraper.base_url"},
		{"report sizes", func(c *Config) { c.Report.MaxWords = 0 }, "report.max_words"},
		{"pubsub project", func(c *Config) { c.PubSub.TopicName = "imports" }, "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
