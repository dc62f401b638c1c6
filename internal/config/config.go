package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // scoring.timezone must resolve on hosts without zoneinfo

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Routes     RoutesConfig     `yaml:"routes" mapstructure:"routes"`
	AI         AIConfig         `yaml:"ai" mapstructure:"ai"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the feedback and cache backend. For the sqlite
// driver DatabaseURL is a file path or DSN.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RoutesConfig locates the route catalogue. An empty File selects the
// built-in catalogue.
type RoutesConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// AIConfig holds the explanation provider settings and its call budget.
type AIConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	Model         string  `yaml:"model" mapstructure:"model"`
	MaxCalls      int     `yaml:"max_calls" mapstructure:"max_calls"`
	MinIntervalMS int     `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxTokens     int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature   float64 `yaml:"temperature" mapstructure:"temperature"`
	UseMock       bool    `yaml:"use_mock" mapstructure:"use_mock"`
}

// MinInterval returns the minimum spacing between live calls.
func (c AIConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMS) * time.Millisecond
}

// Timeout returns the per-call deadline.
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// CacheConfig configures the live explanation cache.
type CacheConfig struct {
	ExplanationTTLMins int `yaml:"explanation_ttl_mins" mapstructure:"explanation_ttl_mins"`
}

// ExplanationTTL returns how long a cached live explanation stays valid.
func (c CacheConfig) ExplanationTTL() time.Duration {
	return time.Duration(c.ExplanationTTLMins) * time.Minute
}

// ScoringConfig configures the scoring engine.
type ScoringConfig struct {
	Timezone    string `yaml:"timezone" mapstructure:"timezone"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// Location resolves Timezone; "Local" and "" map to time.Local.
func (c ScoringConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: load timezone %q", c.Timezone)
	}
	return loc, nil
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures the background alert checker.
type MonitoringConfig struct {
	Enabled             bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs   int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	UnsafeRateThreshold float64 `yaml:"unsafe_rate_threshold" mapstructure:"unsafe_rate_threshold"`
	MinFeedback         int     `yaml:"min_feedback" mapstructure:"min_feedback"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SAFEROUTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "saferoute.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("routes.file", "")
	v.SetDefault("ai.key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.model", "claude-haiku-4-5")
	v.SetDefault("ai.max_calls", 2)
	v.SetDefault("ai.min_interval_ms", 3000)
	v.SetDefault("ai.timeout_secs", 10)
	v.SetDefault("ai.max_tokens", 400)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.use_mock", false)
	v.SetDefault("cache.explanation_ttl_mins", 5)
	v.SetDefault("scoring.timezone", "Local")
	v.SetDefault("scoring.concurrency", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.unsafe_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_feedback", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given command mode ("serve" or
// "cli") and reports every problem found in one error.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Monitoring.Enabled && c.Monitoring.WebhookURL == "" {
			errs = append(errs, "monitoring.webhook_url is required when monitoring is enabled")
		}
		if c.Monitoring.UnsafeRateThreshold < 0 || c.Monitoring.UnsafeRateThreshold > 1 {
			errs = append(errs, "monitoring.unsafe_rate_threshold must be between 0 and 1")
		}
	case "cli":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, fmt.Sprintf("store.database_url is required for driver %s", c.Store.Driver))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite, postgres or memory (got %q)", c.Store.Driver))
	}

	if c.AI.MaxCalls < 0 {
		errs = append(errs, "ai.max_calls must be >= 0")
	}
	if c.AI.MinIntervalMS < 0 {
		errs = append(errs, "ai.min_interval_ms must be >= 0")
	}
	if c.AI.TimeoutSecs <= 0 {
		errs = append(errs, "ai.timeout_secs must be > 0")
	}
	if c.AI.MaxTokens <= 0 {
		errs = append(errs, "ai.max_tokens must be > 0")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 1 {
		errs = append(errs, "ai.temperature must be between 0 and 1")
	}
	if c.Cache.ExplanationTTLMins < 0 {
		errs = append(errs, "cache.explanation_ttl_mins must be >= 0")
	}
	if c.Scoring.Concurrency < 1 || c.Scoring.Concurrency > 32 {
		errs = append(errs, "scoring.concurrency must be between 1 and 32")
	}
	if _, err := c.Scoring.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("scoring.timezone %q is not a known location", c.Scoring.Timezone))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
