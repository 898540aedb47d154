package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`
	Painel   PainelConfig   `yaml:"painel" mapstructure:"painel"`
	Fallback FallbackConfig `yaml:"fallback" mapstructure:"fallback"`
	Consulta ConsultaConfig `yaml:"consulta" mapstructure:"consulta"`
	Pricing  PricingConfig  `yaml:"pricing" mapstructure:"pricing"`
	Session  SessionConfig  `yaml:"session" mapstructure:"session"`
	Retry    RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Circuit  CircuitConfig  `yaml:"circuit" mapstructure:"circuit"`
	History  HistoryConfig  `yaml:"history" mapstructure:"history"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// ProviderConfig points at the external lookup provider.
type ProviderConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PainelConfig points at the dashboard backend (balance, modules,
// subscriptions).
type PainelConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// FallbackConfig configures the report-link fetch.
type FallbackConfig struct {
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyBytes  int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// Timeout returns the fallback deadline.
func (f FallbackConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// ConsultaConfig identifies the search feature and its input rules.
type ConsultaConfig struct {
	ModuleID      int      `yaml:"module_id" mapstructure:"module_id"`
	RouteKey      string   `yaml:"route_key" mapstructure:"route_key"`
	SourceFeature string   `yaml:"source_feature" mapstructure:"source_feature"`
	MinLength     int      `yaml:"min_length" mapstructure:"min_length"`
	TrustedHosts  []string `yaml:"trusted_hosts" mapstructure:"trusted_hosts"`
}

// PricingConfig holds static fallback prices by route key.
type PricingConfig struct {
	RoutePrices    map[string]float64 `yaml:"route_prices" mapstructure:"route_prices"`
	RouteTableFile string             `yaml:"route_table_file" mapstructure:"route_table_file"`
}

// SessionConfig carries the CLI's bearer token and user id.
type SessionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	UserID string `yaml:"user_id" mapstructure:"user_id"`
}

// RetryConfig configures retries for idempotent dashboard reads.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// CircuitConfig configures the breaker around the lookup provider.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// HistoryConfig configures history paging.
type HistoryConfig struct {
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONSULTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "consulta.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("provider.base_url", "http://localhost:3000/api")
	v.SetDefault("provider.timeout_secs", 60)
	v.SetDefault("painel.base_url", "http://localhost:3000/api")
	v.SetDefault("painel.timeout_secs", 15)
	v.SetDefault("fallback.timeout_secs", 45)
	v.SetDefault("fallback.max_body_bytes", 5<<20)
	v.SetDefault("fallback.user_agent", "consulta-nome/1.0")
	v.SetDefault("fallback.rate_per_second", 5)
	v.SetDefault("consulta.module_id", 156)
	v.SetDefault("consulta.route_key", "/dashboard/consultar-nome-completo")
	v.SetDefault("consulta.source_feature", "consultar-nome-completo")
	v.SetDefault("consulta.min_length", 5)
	v.SetDefault("consulta.trusted_hosts", []string{"pastebin.sbs", "pastebin.com"})
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.cooldown_secs", 30)
	v.SetDefault("history.page_size", 100)

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

// Validate checks the fields a command mode needs. Modes: "search",
// "history", "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "history":
	case "search", "serve":
		if c.Provider.BaseURL == "" {
			errs = append(errs, "provider.base_url is required")
		}
		if c.Painel.BaseURL == "" {
			errs = append(errs, "painel.base_url is required")
		}
		if c.Consulta.MinLength < 1 {
			errs = append(errs, "consulta.min_length must be > 0")
		}
		if c.Fallback.TimeoutSecs < 1 {
			errs = append(errs, "fallback.timeout_secs must be > 0")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
