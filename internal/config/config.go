// Package config loads and validates movierank configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/movierank/internal/scraper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	DB       DBConfig       `mapstructure:"db"`
	Importer ImporterConfig `mapstructure:"importer"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Storage  StorageConfig  `mapstructure:"storage"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Report   ReportConfig   `mapstructure:"report"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	ShutdownGraceSeconds  int `mapstructure:"shutdown_grace_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// DBConfig controls access to Postgres. An empty DSN selects the in-memory store.
type DBConfig struct {
	DSN                    string       `mapstructure:"dsn"`
	MaxConns               int32        `mapstructure:"max_conns"`
	MinConns               int32        `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int          `mapstructure:"max_conn_lifetime_seconds"`
	Tables                 TablesConfig `mapstructure:"tables"`
}

// TablesConfig names the ranking tables.
type TablesConfig struct {
	Countries   string `mapstructure:"countries"`
	Genres      string `mapstructure:"genres"`
	Actors      string `mapstructure:"actors"`
	Movies      string `mapstructure:"movies"`
	MovieGenres string `mapstructure:"movie_genres"`
	MovieActors string `mapstructure:"movie_actors"`
	Rankings    string `mapstructure:"rankings"`
}

// ImporterConfig tunes the batch importer and the per-country query.
type ImporterConfig struct {
	TopN int `mapstructure:"top_n"`
}

// ScraperConfig drives the ranking scraper.
type ScraperConfig struct {
	Mode              string            `mapstructure:"mode"`
	BaseURL           string            `mapstructure:"base_url"`
	TopN              int               `mapstructure:"top_n"`
	UserAgent         string            `mapstructure:"user_agent"`
	NavTimeoutSeconds int               `mapstructure:"nav_timeout_seconds"`
	ClickPauseMillis  int               `mapstructure:"click_pause_ms"`
	RequestsPerSecond float64           `mapstructure:"requests_per_second"`
	Burst             int               `mapstructure:"burst"`
	CountryCodesFile  string            `mapstructure:"country_codes_file"`
	Countries         []string          `mapstructure:"countries"`
	Selectors         scraper.Selectors `mapstructure:"selectors"`
}

// StorageConfig selects where snapshots and reports are written.
type StorageConfig struct {
	GCSBucket      string `mapstructure:"gcs_bucket"`
	LocalDir       string `mapstructure:"local_dir"`
	SnapshotPrefix string `mapstructure:"snapshot_prefix"`
	ReportPrefix   string `mapstructure:"report_prefix"`
}

// PubSubConfig holds metadata for import notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ReportConfig controls the per-country HTML report.
type ReportConfig struct {
	TopK      int      `mapstructure:"top_k"`
	PieTopK   int      `mapstructure:"pie_top_k"`
	MaxWords  int      `mapstructure:"max_words"`
	Limit     int      `mapstructure:"limit"`
	Stopwords []string `mapstructure:"stopwords"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MOVIERANK")
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
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_grace_seconds", 10)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_seconds", 1800)
	v.SetDefault("db.tables.countries", "countries")
	v.SetDefault("db.tables.genres", "genres")
	v.SetDefault("db.tables.actors", "actors")
	v.SetDefault("db.tables.movies", "movies")
	v.SetDefault("db.tables.movie_genres", "movie_genres")
	v.SetDefault("db.tables.movie_actors", "movie_actors")
	v.SetDefault("db.tables.rankings", "rankings")
	v.SetDefault("importer.top_n", 5)

	sel := scraper.DefaultSelectors()
	v.SetDefault("scraper.mode", scraper.ModeHeadless)
	v.SetDefault("scraper.base_url", scraper.DefaultBaseURL)
	v.SetDefault("scraper.top_n", 10)
	v.SetDefault("scraper.user_agent", "movierank-bot/0.1")
	v.SetDefault("scraper.nav_timeout_seconds", 20)
	v.SetDefault("scraper.click_pause_ms", 500)
	v.SetDefault("scraper.requests_per_second", 0.5)
	v.SetDefault("scraper.burst", 1)
	v.SetDefault("scraper.country_codes_file", "data/raw/country_code.json")
	v.SetDefault("scraper.countries", []string{})
	v.SetDefault("scraper.selectors.item", sel.Item)
	v.SetDefault("scraper.selectors.info_button", sel.InfoButton)
	v.SetDefault("scraper.selectors.modal", sel.Modal)
	v.SetDefault("scraper.selectors.close_button", sel.CloseButton)
	v.SetDefault("scraper.selectors.title", sel.Title)
	v.SetDefault("scraper.selectors.year", sel.Year)
	v.SetDefault("scraper.selectors.score", sel.Score)
	v.SetDefault("scraper.selectors.summary", sel.Summary)
	v.SetDefault("scraper.selectors.image", sel.Image)
	v.SetDefault("scraper.selectors.genres", sel.Genres)
	v.SetDefault("scraper.selectors.actors", sel.Actors)

	v.SetDefault("storage.local_dir", "data")
	v.SetDefault("storage.snapshot_prefix", "raw")
	v.SetDefault("storage.report_prefix", "html")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("report.top_k", 5)
	v.SetDefault("report.pie_top_k", 8)
	v.SetDefault("report.max_words", 100)
	v.SetDefault("report.limit", 100)
	v.SetDefault("report.stopwords", []string{})
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Importer.TopN <= 0 {
		return fmt.Errorf("importer.top_n must be > 0")
	}
	if c.DB.MinConns < 0 || (c.DB.MaxConns > 0 && c.DB.MinConns > c.DB.MaxConns) {
		return fmt.Errorf("db.min_conns must be between 0 and db.max_conns")
	}
	switch c.Scraper.Mode {
	case scraper.ModeHeadless, scraper.ModeStatic:
	default:
		return fmt.Errorf("scraper.mode must be %q or %q", scraper.ModeHeadless, scraper.ModeStatic)
	}
	if c.Scraper.TopN <= 0 {
		return fmt.Errorf("scraper.top_n must be > 0")
	}
	if c.Scraper.RequestsPerSecond < 0 {
		return fmt.Errorf("scraper.requests_per_second must be >= 0")
	}
	if !strings.Contains(c.Scraper.BaseURL, "%s") {
		return fmt.Errorf("scraper.base_url must contain a %%s placeholder for the country code")
	}
	if c.Report.TopK <= 0 || c.Report.PieTopK <= 0 || c.Report.MaxWords <= 0 {
		return fmt.Errorf("report.top_k, report.pie_top_k and report.max_words must be > 0")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// RequestTimeout returns the per-request HTTP budget.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// NavTimeout returns the scraper's page navigation budget.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Scraper.NavTimeoutSeconds) * time.Second
}

// ClickPause returns the scraper's pause after each click.
func (c Config) ClickPause() time.Duration {
	return time.Duration(c.Scraper.ClickPauseMillis) * time.Millisecond
}

// MaxConnLifetime returns the pool connection lifetime.
func (c Config) MaxConnLifetime() time.Duration {
	return time.Duration(c.DB.MaxConnLifetimeSeconds) * time.Second
}
