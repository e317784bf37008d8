package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Registry   RegistryConfig   `yaml:"registry" mapstructure:"registry"`
	Matching   MatchingConfig   `yaml:"matching" mapstructure:"matching"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Reasoning  ReasoningConfig  `yaml:"reasoning" mapstructure:"reasoning"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CatalogConfig locates the base catalog snapshot.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// RegistryConfig configures the spring option registry.
type RegistryConfig struct {
	// SeedPath is an optional YAML file of known options loaded at startup.
	SeedPath string `yaml:"seed_path" mapstructure:"seed_path"`
	// CacheTTLSecs is how long option lookups stay cached; 0 disables the cache.
	CacheTTLSecs int `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
}

// MatchingConfig tunes catalog matching.
type MatchingConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
}

// BatchConfig controls batch processing.
type BatchConfig struct {
	MaxConcurrentEntries int `yaml:"max_concurrent_entries" mapstructure:"max_concurrent_entries"`
	EntryTimeoutSecs     int `yaml:"entry_timeout_secs" mapstructure:"entry_timeout_secs"`
}

// ReasoningConfig bounds calls to the reasoning collaborator.
type ReasoningConfig struct {
	Enabled          bool    `yaml:"enabled" mapstructure:"enabled"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst            int     `yaml:"burst" mapstructure:"burst"`
	MaxConcurrency   int     `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ValidationConfig configures the validation stage.
type ValidationConfig struct {
	// RequireSemantic sends products whose semantic review was skipped to
	// manual review.
	RequireSemantic bool `yaml:"require_semantic" mapstructure:"require_semantic"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. Variables from a
// .env file in the working directory are added to the environment first;
// variables already set win.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RESOLVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "resolver.db")
	v.SetDefault("catalog.path", "catalog.yaml")
	v.SetDefault("registry.seed_path", "")
	v.SetDefault("registry.cache_ttl_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("matching.fuzzy_threshold", 0.8)
	v.SetDefault("batch.max_concurrent_entries", 8)
	v.SetDefault("batch.entry_timeout_secs", 120)
	v.SetDefault("reasoning.enabled", true)
	v.SetDefault("reasoning.max_attempts", 3)
	v.SetDefault("reasoning.initial_backoff_ms", 500)
	v.SetDefault("reasoning.max_backoff_ms", 10000)
	v.SetDefault("reasoning.timeout_secs", 30)
	v.SetDefault("reasoning.rate_per_sec", 2.0)
	v.SetDefault("reasoning.burst", 4)
	v.SetDefault("reasoning.max_concurrency", 4)
	v.SetDefault("reasoning.breaker_threshold", 5)
	v.SetDefault("reasoning.breaker_reset_secs", 30)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("validation.require_semantic", true)

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

// Validate checks the settings a command needs. mode is the command name
// ("resolve", "match", "registry", "migrate"); base settings are always
// checked.
func (c *Config) Validate(mode string) error {
	var problems []string
	if c.Matching.FuzzyThreshold <= 0 || c.Matching.FuzzyThreshold > 1 {
		problems = append(problems, fmt.Sprintf("matching.fuzzy_threshold %g outside (0,1]", c.Matching.FuzzyThreshold))
	}
	if c.Batch.MaxConcurrentEntries < 1 {
		problems = append(problems, "batch.max_concurrent_entries must be positive")
	}
	switch strings.ToLower(c.Store.Driver) {
	case "sqlite", "postgres", "postgresql", "pgx":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	switch mode {
	case "resolve":
		if c.Catalog.Path == "" {
			problems = append(problems, "catalog.path is required")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Reasoning.Enabled {
			if c.Anthropic.Key == "" {
				problems = append(problems, "anthropic.key is required when reasoning.enabled (RESOLVER_ANTHROPIC_KEY)")
			}
			if c.Reasoning.MaxAttempts < 1 {
				problems = append(problems, "reasoning.max_attempts must be positive")
			}
			if c.Reasoning.RatePerSec > 0 && c.Reasoning.Burst < 1 {
				problems = append(problems, "reasoning.burst must be at least 1 when reasoning.rate_per_sec is set")
			}
		}
	case "match":
		if c.Catalog.Path == "" {
			problems = append(problems, "catalog.path is required")
		}
	case "registry", "migrate":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
