// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// SchedulerConfig governs worker fan-out and batch behavior.
type SchedulerConfig struct {
	MaxConcurrentJobs int `mapstructure:"max_concurrent_jobs"`
	BatchSize         int `mapstructure:"batch_size"`
	PollIntervalSec   int `mapstructure:"poll_interval_seconds"`
	FetchTimeoutSec   int `mapstructure:"fetch_timeout_seconds"`
	DefaultRetryLimit int `mapstructure:"default_retry_limit"`
	StatsWindowDays   int `mapstructure:"stats_window_days"`
}

// SourcesConfig carries per-provider request budgets in requests per minute.
type SourcesConfig struct {
	DefaultRequestsPerMinute int            `mapstructure:"default_requests_per_minute"`
	RequestsPerMinute        map[string]int `mapstructure:"requests_per_minute"`
	FREDAPIKey               string         `mapstructure:"fred_api_key"`
	UserAgent                string         `mapstructure:"user_agent"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features and sets the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CatalogConfig points at an optional series definition file merged over the
// built-in catalog.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
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
	v.SetDefault("scheduler.max_concurrent_jobs", 5)
	v.SetDefault("scheduler.batch_size", 10)
	v.SetDefault("scheduler.poll_interval_seconds", 15)
	v.SetDefault("scheduler.fetch_timeout_seconds", 30)
	v.SetDefault("scheduler.default_retry_limit", 3)
	v.SetDefault("scheduler.stats_window_days", 30)
	v.SetDefault("sources.default_requests_per_minute", 30)
	// Conservative budgets for the statistical agencies served by the
	// built-in catalog. FRED tolerates far more than BLS.
	v.SetDefault("sources.requests_per_minute", map[string]int{
		"fred":     120,
		"bls":      25,
		"bea":      30,
		"census":   40,
		"treasury": 60,
	})
	v.SetDefault("sources.user_agent", "series-crawler/1.0 (+https://github.com/macrofeed/series-crawler)")
	v.SetDefault("db.max_open_conns", 8)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scheduler.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("scheduler.max_concurrent_jobs must be > 0")
	}
	if c.Scheduler.FetchTimeoutSec <= 0 {
		return fmt.Errorf("scheduler.fetch_timeout_seconds must be > 0")
	}
	if c.Scheduler.DefaultRetryLimit < 0 {
		return fmt.Errorf("scheduler.default_retry_limit must be >= 0")
	}
	if c.Sources.DefaultRequestsPerMinute <= 0 {
		return fmt.Errorf("sources.default_requests_per_minute must be > 0")
	}
	for src, rpm := range c.Sources.RequestsPerMinute {
		if rpm <= 0 {
			return fmt.Errorf("sources.requests_per_minute.%s must be > 0", src)
		}
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// FetchTimeout converts the configured fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Scheduler.FetchTimeoutSec) * time.Second
}

// PollInterval converts the worker poll cadence into a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Scheduler.PollIntervalSec) * time.Second
}
