// Package config loads application configuration from config/config.yaml
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/hangarlink/market_layer/pkg/logger"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig         `yaml:"server"`
	Database  DatabaseConfig       `yaml:"database"`
	Logging   logger.LoggingConfig `yaml:"logging"`
	Auth      AuthConfig           `yaml:"auth"`
	RateLimit RateLimitConfig      `yaml:"rate_limit"`
	Audit     AuditConfig          `yaml:"audit"`
	Pricing   PricingConfig        `yaml:"pricing"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host           string `yaml:"host" env:"SERVER_HOST"`
	Port           int    `yaml:"port" env:"SERVER_PORT"`
	ReadTimeoutSec int    `yaml:"read_timeout_sec" env:"SERVER_READ_TIMEOUT_SEC"`
	IdleTimeoutSec int    `yaml:"idle_timeout_sec" env:"SERVER_IDLE_TIMEOUT_SEC"`
}

// DatabaseConfig controls the SQL store. An empty DSN selects the in-memory
// store.
type DatabaseConfig struct {
	Driver          string `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN             string `yaml:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_sec" env:"DATABASE_CONN_MAX_LIFETIME_SEC"`
}

// AuthConfig holds the bearer token secret. Empty disables token
// verification; identity then comes from request headers.
type AuthConfig struct {
	Secret string `yaml:"secret" env:"AUTH_SECRET"`
}

// RateLimitConfig throttles per-user request rates. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second" env:"RATE_LIMIT_RPS"`
	Burst             int `yaml:"burst" env:"RATE_LIMIT_BURST"`
}

// AuditConfig controls the in-memory audit ring and optional file sink.
type AuditConfig struct {
	Limit int    `yaml:"limit" env:"AUDIT_LIMIT"`
	File  string `yaml:"file" env:"AUDIT_FILE"`
}

// PricingConfig controls the background price refresher.
type PricingConfig struct {
	FetchURL        string `yaml:"fetch_url" env:"PRICE_FETCH_URL"`
	RefreshInterval string `yaml:"refresh_interval" env:"PRICE_REFRESH_INTERVAL"`
}

// Load reads config/config.yaml when present and applies environment
// overrides on top.
func Load() (*Config, error) {
	return LoadFromPath(filepath.Join("config", "config.yaml"))
}

// LoadFromPath loads configuration from a specific yaml file. A missing file
// is not an error; defaults plus environment variables apply.
func LoadFromPath(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if cfg.Server.Port <= 0 {
		return nil, fmt.Errorf("server port must be positive, got %d", cfg.Server.Port)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeoutSec: 15,
			IdleTimeoutSec: 60,
		},
		Database: DatabaseConfig{
			Driver:       "postgres",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Logging: logger.LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Audit: AuditConfig{Limit: 200},
		Pricing: PricingConfig{
			RefreshInterval: "1h",
		},
	}
}
