// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Fennzo/CourtScrapper/internal/courts"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Portal   PortalConfig   `mapstructure:"portal"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Captcha  CaptchaConfig  `mapstructure:"captcha"`
	Search   SearchConfig   `mapstructure:"search"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Recovery RecoveryConfig `mapstructure:"recovery"`
	Output   OutputConfig   `mapstructure:"output"`
	DB       DBConfig       `mapstructure:"db"`
	Storage  StorageConfig  `mapstructure:"storage"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PortalConfig identifies the court records site.
type PortalConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// BrowserConfig controls the Chrome instances that drive the portal.
type BrowserConfig struct {
	Headless           bool   `mapstructure:"headless"`
	UserAgent          string `mapstructure:"user_agent"`
	NavTimeoutSeconds  int    `mapstructure:"nav_timeout_seconds"`
	ActionDelaySeconds int    `mapstructure:"action_delay_seconds"`
}

// CaptchaConfig governs automated captcha solving.
type CaptchaConfig struct {
	APIKey     string  `mapstructure:"api_key"`
	UseService bool    `mapstructure:"use_service"`
	MinBalance float64 `mapstructure:"min_balance"`
	// ManualTimeoutSeconds bounds the wait for a human to tick the
	// checkbox. Zero waits indefinitely.
	ManualTimeoutSeconds int `mapstructure:"manual_timeout_seconds"`
}

// ManualTimeout converts the configured seconds into a duration.
func (c CaptchaConfig) ManualTimeout() time.Duration {
	return time.Duration(c.ManualTimeoutSeconds) * time.Second
}

// SearchConfig is the scraping criteria.
type SearchConfig struct {
	Attorneys      []courts.AttorneyQuery `mapstructure:"attorneys"`
	CaseType       string                 `mapstructure:"case_type"`
	ChargeKeywords []string               `mapstructure:"charge_keywords"`
	MinCaseYear    int                    `mapstructure:"min_case_year"`
	ItemsPerPage   int                    `mapstructure:"items_per_page"`
}

// PoolConfig bounds session concurrency.
type PoolConfig struct {
	MaxWorkers int `mapstructure:"max_workers"`
}

// RecoveryConfig controls session restarts after navigation failures.
type RecoveryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	MaxAttempts  uint `mapstructure:"max_attempts"`
	DelaySeconds int  `mapstructure:"delay_seconds"`
}

// OutputConfig sets the local export destination.
type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

// DBConfig controls access to the relational database. An empty DSN disables
// persistence.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// StorageConfig sets the artifact upload bucket. An empty bucket disables
// uploads.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for run-completion notifications. An empty
// project disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. Environment variables use the
// COURTS prefix, e.g. COURTS_CAPTCHA_API_KEY.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("COURTS")
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
	v.SetDefault("portal.base_url", "https://courtsportal.dallascounty.org/DALLASPROD/Home/Dashboard/29")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.nav_timeout_seconds", 30)
	v.SetDefault("browser.action_delay_seconds", 3)
	v.SetDefault("captcha.use_service", true)
	v.SetDefault("captcha.min_balance", 0.003)
	v.SetDefault("search.case_type", "FELONY")
	v.SetDefault("search.charge_keywords", []string{"ASSAULT"})
	v.SetDefault("search.min_case_year", 2025)
	v.SetDefault("search.items_per_page", 200)
	v.SetDefault("pool.max_workers", 3)
	v.SetDefault("recovery.enabled", true)
	v.SetDefault("recovery.max_attempts", 6)
	v.SetDefault("recovery.delay_seconds", 2)
	v.SetDefault("output.dir", "results")
	v.SetDefault("output.format", "excel")
	v.SetDefault("db.table", "case_records")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Portal.BaseURL == "" {
		return fmt.Errorf("portal.base_url is required")
	}
	if len(c.Search.Attorneys) == 0 {
		return fmt.Errorf("search.attorneys must list at least one attorney")
	}
	for i, a := range c.Search.Attorneys {
		if a.FirstName == "" || a.LastName == "" {
			return fmt.Errorf("search.attorneys[%d] needs both first_name and last_name", i)
		}
	}
	if c.Search.MinCaseYear <= 0 {
		return fmt.Errorf("search.min_case_year must be > 0")
	}
	if c.Pool.MaxWorkers <= 0 {
		return fmt.Errorf("pool.max_workers must be > 0")
	}
	if c.Captcha.UseService && c.Captcha.APIKey == "" && c.Browser.Headless {
		return fmt.Errorf("captcha.api_key is required for headless runs with the captcha service enabled")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the ops server is enabled")
	}
	return nil
}

// NavTimeout converts the configured seconds into a duration.
func (c BrowserConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSeconds) * time.Second
}

// ActionDelay converts the configured seconds into a duration.
func (c BrowserConfig) ActionDelay() time.Duration {
	return time.Duration(c.ActionDelaySeconds) * time.Second
}

// RecoveryDelay converts the configured seconds into a duration.
func (c RecoveryConfig) RecoveryDelay() time.Duration {
	return time.Duration(c.DelaySeconds) * time.Second
}
