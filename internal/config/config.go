package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Commerce    CommerceConfig    `yaml:"commerce" mapstructure:"commerce"`
	AdPlatform  AdPlatformConfig  `yaml:"ad_platform" mapstructure:"ad_platform"`
	AICreative  AICreativeConfig  `yaml:"ai_creative" mapstructure:"ai_creative"`
	ObjectStore ObjectStoreConfig `yaml:"object_store" mapstructure:"object_store"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	SalesTracker SalesTrackerConfig `yaml:"sales_tracker" mapstructure:"sales_tracker"`
	Replacement  ReplacementConfig  `yaml:"replacement" mapstructure:"replacement"`
	AdSync       AdSyncConfig       `yaml:"ad_sync" mapstructure:"ad_sync"`
	Monitoring   MonitoringConfig   `yaml:"monitoring" mapstructure:"monitoring"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Circuit     CircuitConfig     `yaml:"circuit" mapstructure:"circuit"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CacheConfig configures the short-TTL shop metadata cache.
type CacheConfig struct {
	RedisURL   string `yaml:"redis_url" mapstructure:"redis_url"`
	TTLSeconds int    `yaml:"ttl_seconds" mapstructure:"ttl_seconds"`
}

// CommerceConfig holds commerce-platform (storefront) API settings.
type CommerceConfig struct {
	APIVersion        string `yaml:"api_version" mapstructure:"api_version"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AdPlatformConfig holds ad-platform OAuth and API settings.
type AdPlatformConfig struct {
	BaseURL           string `yaml:"base_url" mapstructure:"base_url"`
	ClientID          string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret      string `yaml:"client_secret" mapstructure:"client_secret"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AICreativeConfig holds the image/video generation service settings.
type AICreativeConfig struct {
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	Key             string `yaml:"key" mapstructure:"key"`
	PollIntervalSecs int   `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	PollTimeoutSecs  int   `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
}

// ObjectStoreConfig holds the object-storage upload settings for generated
// winner creatives.
type ObjectStoreConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Key     string `yaml:"key" mapstructure:"key"`
	Bucket  string `yaml:"bucket" mapstructure:"bucket"`
}

// AnthropicConfig holds settings for the optional LLM-written creative
// prompts used by Pipeline F. Key empty disables it; winner creatives then
// use their fixed fallback prompt templates.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// SalesTrackerConfig configures Pipeline B's order-fetch window and
// convergence behavior.
type SalesTrackerConfig struct {
	LookbackDays   int `yaml:"lookback_days" mapstructure:"lookback_days"`
	PageSize       int `yaml:"page_size" mapstructure:"page_size"`
}

// ReplacementConfig configures Pipeline C's tag-swap safety behavior.
type ReplacementConfig struct {
	MaxReplacementsPerRun int `yaml:"max_replacements_per_run" mapstructure:"max_replacements_per_run"`
}

// AdSyncConfig configures Pipeline D's pin-creation pagination and
// throttling behavior.
type AdSyncConfig struct {
	ProductsPerPage    int `yaml:"products_per_page" mapstructure:"products_per_page"`
	MinPinIntervalMillis int `yaml:"min_pin_interval_millis" mapstructure:"min_pin_interval_millis"`
}

// MonitoringConfig configures the fleet health alerter.
type MonitoringConfig struct {
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	LookbackHours       int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
}

// BatchConfig configures per-run concurrency.
type BatchConfig struct {
	MaxConcurrentTenants int `yaml:"max_concurrent_tenants" mapstructure:"max_concurrent_tenants"`
}

// CircuitConfig configures the per-host circuit breaker every external API
// client shares through httpx.Client. Zero values fall back to
// resilience.DefaultCircuitBreakerConfig().
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks required configuration fields based on the pipeline mode
// being run. Supported modes: "salestrack", "replace", "adsync", "optimize",
// "winners", "jobs".
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "salestrack":
		// commerce platform only
	case "replace":
		if c.AdPlatform.BaseURL == "" {
			errs = append(errs, "ad_platform.base_url is required")
		}
	case "adsync":
		if c.AdPlatform.BaseURL == "" {
			errs = append(errs, "ad_platform.base_url is required")
		}
		if c.ObjectStore.BaseURL == "" {
			errs = append(errs, "object_store.base_url is required")
		}
	case "optimize":
		if c.AdPlatform.BaseURL == "" {
			errs = append(errs, "ad_platform.base_url is required")
		}
	case "winners":
		if c.AdPlatform.BaseURL == "" {
			errs = append(errs, "ad_platform.base_url is required")
		}
		if c.AICreative.BaseURL == "" {
			errs = append(errs, "ai_creative.base_url is required")
		}
		if c.ObjectStore.BaseURL == "" {
			errs = append(errs, "object_store.base_url is required")
		}
	case "jobs":
		// ledger inspection only; store is sufficient
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Batch.MaxConcurrentTenants < 1 || c.Batch.MaxConcurrentTenants > 50 {
		errs = append(errs, "batch.max_concurrent_tenants must be between 1 and 50")
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: validation failed: %s", strings.Join(errs, "; ")))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("batch.max_concurrent_tenants", 10)
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("commerce.api_version", "2024-10")
	v.SetDefault("commerce.requests_per_second", 2.0)
	v.SetDefault("commerce.timeout_secs", 30)
	v.SetDefault("ad_platform.base_url", "https://api.adplatform.example/v5")
	v.SetDefault("ad_platform.requests_per_second", 2.0)
	v.SetDefault("ad_platform.timeout_secs", 30)
	v.SetDefault("ai_creative.poll_interval_secs", 5)
	v.SetDefault("ai_creative.poll_timeout_secs", 600)
	v.SetDefault("sales_tracker.lookback_days", 14)
	v.SetDefault("sales_tracker.page_size", 250)
	v.SetDefault("replacement.max_replacements_per_run", 500)
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)

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
