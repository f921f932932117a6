// Package config loads reachmap configuration from an optional config.yaml
// and REACHMAP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// stdout is the JSON log destination.
var stdout io.Writer = os.Stdout

// EnvPrefix prefixes every environment variable: REACHMAP_ORS_API_KEY → ors.api_key.
const EnvPrefix = "REACHMAP"

// Config holds all application configuration.
type Config struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	Log         LogConfig       `mapstructure:"log"`
	ORS         ORSConfig       `mapstructure:"ors"`
	Isochrone   IsochroneConfig `mapstructure:"isochrone"`
	Workspace   WorkspaceConfig `mapstructure:"workspace"`
	Valkey      ValkeyConfig    `mapstructure:"valkey"`
	PubSub      PubSubConfig    `mapstructure:"pubsub"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RequireTLS rejects requests a load balancer forwarded over plain HTTP.
	RequireTLS bool `mapstructure:"require_tls"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type ORSConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries uint64        `mapstructure:"max_retries"`
}

type IsochroneConfig struct {
	// CacheTTL enables result caching for stateless computes; zero disables it.
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxMinutes   float64       `mapstructure:"max_minutes"`
	MaxMeters    float64       `mapstructure:"max_meters"`
}

type WorkspaceConfig struct {
	MaxWorkspaces int           `mapstructure:"max_workspaces"`
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	PreviewDelay  time.Duration `mapstructure:"preview_delay"`
}

// ValkeyConfig enables the shared result cache when Addr is set.
type ValkeyConfig struct {
	Addr   string `mapstructure:"addr"`
	Prefix string `mapstructure:"prefix"`
}

// PubSubConfig enables export events when both fields are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether export events should be published.
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.Topic != ""
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	BuildsPerMinute   int `mapstructure:"builds_per_minute"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Load reads configuration. paths are searched for config.yaml in addition to
// the working directory; a missing file is fine.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 45*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.require_tls", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("ors.api_key", "")
	v.SetDefault("ors.base_url", "https://api.openrouteservice.org")
	v.SetDefault("ors.timeout", 30*time.Second)
	v.SetDefault("ors.max_retries", 0)

	v.SetDefault("isochrone.cache_ttl", 0)
	v.SetDefault("isochrone.fetch_timeout", 45*time.Second)
	v.SetDefault("isochrone.max_minutes", 120)
	v.SetDefault("isochrone.max_meters", 120000)

	v.SetDefault("workspace.max_workspaces", 1000)
	v.SetDefault("workspace.idle_ttl", 2*time.Hour)
	v.SetDefault("workspace.sweep_interval", 5*time.Minute)
	v.SetDefault("workspace.preview_delay", 3*time.Second)

	v.SetDefault("valkey.addr", "")
	v.SetDefault("valkey.prefix", "reachmap:isochrone:")

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")

	v.SetDefault("rate_limit.requests_per_minute", 600)
	v.SetDefault("rate_limit.builds_per_minute", 30)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "reachmap-api")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level %q is not a valid level", c.Log.Level))
	}
	if c.ORS.BaseURL == "" {
		errs = append(errs, "ors.base_url is required")
	}
	if c.ORS.Timeout <= 0 {
		errs = append(errs, "ors.timeout must be positive")
	}
	if c.Isochrone.CacheTTL < 0 {
		errs = append(errs, "isochrone.cache_ttl must not be negative")
	}
	if c.Isochrone.FetchTimeout <= 0 {
		errs = append(errs, "isochrone.fetch_timeout must be positive")
	}
	if c.Isochrone.MaxMinutes < 1 {
		errs = append(errs, "isochrone.max_minutes must be at least 1")
	}
	if c.Isochrone.MaxMeters < 1 {
		errs = append(errs, "isochrone.max_meters must be at least 1")
	}
	if c.Workspace.MaxWorkspaces < 0 {
		errs = append(errs, "workspace.max_workspaces must not be negative")
	}
	if c.Workspace.PreviewDelay <= 0 {
		errs = append(errs, "workspace.preview_delay must be positive")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		errs = append(errs, "pubsub.project_id and pubsub.topic must be set together")
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, "rate_limit.requests_per_minute must be positive")
	}
	if c.RateLimit.BuildsPerMinute <= 0 {
		errs = append(errs, "rate_limit.builds_per_minute must be positive")
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		errs = append(errs, "telemetry.otlp_endpoint is required when telemetry is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Logger builds the process logger from the log section.
func (c *Config) Logger(service, version string) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if c.Log.Pretty {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = zerolog.New(zerolog.SyncWriter(stdout))
	}
	return logger.Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("environment", c.Environment).
		Logger()
}
