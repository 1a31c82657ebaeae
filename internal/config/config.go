// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Trending   TrendingConfig   `mapstructure:"trending"`
	Scraper    ScraperConfig    `mapstructure:"scraper"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Output     OutputConfig     `mapstructure:"output"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SchedulerConfig governs the coordinator and worker pool.
type SchedulerConfig struct {
	Workers               int  `mapstructure:"workers"`
	RetryFailedNextRun    bool `mapstructure:"retry_failed_next_run"`
	ResetOutputOnFreshRun bool `mapstructure:"reset_output_on_fresh_run"`
}

// TrendingConfig enumerates the trending pages to crawl.
type TrendingConfig struct {
	BaseURL         string   `mapstructure:"base_url"`
	Languages       []string `mapstructure:"languages"`
	Periods         []string `mapstructure:"periods"`
	SpokenLanguages []string `mapstructure:"spoken_languages"`
}

// ScraperConfig configures fetching and parsing of a single page.
type ScraperConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	BackoffInitial    time.Duration `mapstructure:"backoff_initial"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
	UserAgent         string        `mapstructure:"user_agent"`
	AcceptLanguage    string        `mapstructure:"accept_language"`
	Referer           string        `mapstructure:"referer"`
	SleepMin          time.Duration `mapstructure:"sleep_min"`
	SleepMax          time.Duration `mapstructure:"sleep_max"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	RespectRobots     bool          `mapstructure:"respect_robots"`
	FetchDetails      bool          `mapstructure:"fetch_details"`
}

// PathsConfig holds local file locations.
type PathsConfig struct {
	Checkpoint  string `mapstructure:"checkpoint"`
	OutputCSV   string `mapstructure:"output_csv"`
	MetricsJSON string `mapstructure:"metrics_json"`
}

// OutputConfig controls the CSV layout and reconciliation.
type OutputConfig struct {
	DedupeKey string   `mapstructure:"dedupe_key"`
	SortKeys  []string `mapstructure:"sort_keys"`
	Fields    []string `mapstructure:"fields"`
}

// CheckpointConfig selects where completion state lives.
type CheckpointConfig struct {
	Backend  string         `mapstructure:"backend"`
	Name     string         `mapstructure:"name"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig controls access to the checkpoint table.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RedisConfig controls access to the checkpoint key.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Key      string        `mapstructure:"key"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ArchiveConfig sets where run artifacts are uploaded.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// NotifyConfig holds metadata for run-completion notifications.
type NotifyConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the status server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features and file output.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	Compress    bool   `mapstructure:"compress"`
}

// Load builds a Config from disk/environment. Every key needs a default so
// AutomaticEnv can resolve it during Unmarshal.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRENDCRAWL")
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
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.retry_failed_next_run", false)
	v.SetDefault("scheduler.reset_output_on_fresh_run", true)
	v.SetDefault("trending.base_url", "https://github.com/trending")
	v.SetDefault("trending.languages", []string{})
	v.SetDefault("trending.periods", []string{"daily"})
	v.SetDefault("trending.spoken_languages", []string{"en"})
	v.SetDefault("scraper.timeout", 15*time.Second)
	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.backoff_initial", time.Second)
	v.SetDefault("scraper.backoff_max", 8*time.Second)
	v.SetDefault("scraper.user_agent", "trendcrawl/0.1 (+https://github.com/JakeFAU/trending-crawler)")
	v.SetDefault("scraper.accept_language", "en-US,en;q=0.9")
	v.SetDefault("scraper.referer", "https://github.com/")
	v.SetDefault("scraper.sleep_min", 500*time.Millisecond)
	v.SetDefault("scraper.sleep_max", 1500*time.Millisecond)
	v.SetDefault("scraper.requests_per_second", 1.0)
	v.SetDefault("scraper.burst", 1)
	v.SetDefault("scraper.respect_robots", false)
	v.SetDefault("scraper.fetch_details", false)
	v.SetDefault("paths.checkpoint", "data/checkpoint.json")
	v.SetDefault("paths.output_csv", "data/trending.csv")
	v.SetDefault("paths.metrics_json", "data/metrics.json")
	v.SetDefault("output.dedupe_key", "slug")
	v.SetDefault("output.sort_keys", []string{"source_url"})
	v.SetDefault("output.fields", []string{})
	v.SetDefault("checkpoint.backend", "file")
	v.SetDefault("checkpoint.name", "default")
	v.SetDefault("checkpoint.postgres.dsn", "")
	v.SetDefault("checkpoint.postgres.table", "checkpoints")
	v.SetDefault("checkpoint.postgres.max_conns", 4)
	v.SetDefault("checkpoint.redis.addr", "localhost:6379")
	v.SetDefault("checkpoint.redis.password", "")
	v.SetDefault("checkpoint.redis.db", 0)
	v.SetDefault("checkpoint.redis.key", "trendcrawl:checkpoint")
	v.SetDefault("checkpoint.redis.ttl", time.Duration(0))
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.provider", "local")
	v.SetDefault("archive.base_dir", "data/archive")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.prefix", "runs")
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.provider", "memory")
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "trending-runs")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler.workers must be > 0")
	}
	if len(c.Trending.Periods) == 0 {
		return fmt.Errorf("trending.periods must not be empty")
	}
	if len(c.Trending.SpokenLanguages) == 0 {
		return fmt.Errorf("trending.spoken_languages must not be empty")
	}
	if c.Scraper.Timeout <= 0 {
		return fmt.Errorf("scraper.timeout must be > 0")
	}
	if c.Scraper.MaxRetries <= 0 {
		return fmt.Errorf("scraper.max_retries must be > 0")
	}
	if c.Scraper.SleepMin < 0 || c.Scraper.SleepMax < c.Scraper.SleepMin {
		return fmt.Errorf("scraper.sleep_min must be >= 0 and <= scraper.sleep_max")
	}
	if c.Paths.OutputCSV == "" {
		return fmt.Errorf("paths.output_csv is required")
	}
	if c.Output.DedupeKey == "" {
		return fmt.Errorf("output.dedupe_key is required")
	}
	if len(c.Output.Fields) > 0 && !contains(c.Output.Fields, c.Output.DedupeKey) {
		return fmt.Errorf("output.fields must include dedupe key %q", c.Output.DedupeKey)
	}
	switch c.Checkpoint.Backend {
	case "file":
		if c.Paths.Checkpoint == "" {
			return fmt.Errorf("paths.checkpoint is required for the file checkpoint backend")
		}
	case "postgres":
		if c.Checkpoint.Postgres.DSN == "" {
			return fmt.Errorf("checkpoint.postgres.dsn is required for the postgres backend")
		}
	case "redis":
		if c.Checkpoint.Redis.Addr == "" {
			return fmt.Errorf("checkpoint.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown checkpoint.backend %q", c.Checkpoint.Backend)
	}
	if c.Archive.Enabled {
		switch c.Archive.Provider {
		case "local":
			if c.Archive.BaseDir == "" {
				return fmt.Errorf("archive.base_dir is required for the local archive")
			}
		case "gcs":
			if c.Archive.GCSBucket == "" {
				return fmt.Errorf("archive.gcs_bucket is required for the gcs archive")
			}
		default:
			return fmt.Errorf("unknown archive.provider %q", c.Archive.Provider)
		}
	}
	if c.Notify.Enabled {
		switch c.Notify.Provider {
		case "memory":
		case "pubsub":
			if c.Notify.ProjectID == "" {
				return fmt.Errorf("notify.project_id is required for pubsub")
			}
		default:
			return fmt.Errorf("unknown notify.provider %q", c.Notify.Provider)
		}
		if c.Notify.Topic == "" {
			return fmt.Errorf("notify.topic is required when notify is enabled")
		}
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
