// Package config loads service configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Mail     MailConfig     `yaml:"mail"`
	Logging  LoggingConfig  `yaml:"logging"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
	CORS     CORSConfig     `yaml:"cors"`
}

type ServerConfig struct {
	Host         string        `yaml:"host" env:"SERVER_HOST"`
	Port         int           `yaml:"port" env:"SERVER_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	// DSN is a lib/pq connection string. Empty means in-memory storage.
	DSN string `yaml:"dsn" env:"DATABASE_URL"`
}

type RedisConfig struct {
	// Addr enables the Redis session store when set.
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type AuthConfig struct {
	Secret     string        `yaml:"secret" env:"AUTH_SECRET"`
	Issuer     string        `yaml:"issuer" env:"AUTH_ISSUER"`
	AccessTTL  time.Duration `yaml:"access_ttl" env:"AUTH_ACCESS_TTL"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" env:"AUTH_REFRESH_TTL"`
}

type MailConfig struct {
	// Host enables SMTP delivery when set; otherwise mail is logged.
	Host       string `yaml:"host" env:"MAIL_HOST"`
	Port       int    `yaml:"port" env:"MAIL_PORT"`
	Username   string `yaml:"username" env:"MAIL_USERNAME"`
	Password   string `yaml:"password" env:"MAIL_PASSWORD"`
	From       string `yaml:"from" env:"MAIL_FROM"`
	AssetsHost string `yaml:"assets_host" env:"ASSETS_HOST"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

type CleanupConfig struct {
	Schedule string `yaml:"schedule" env:"CLEANUP_SCHEDULE"`
}

type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// Default returns the configuration used when neither file nor environment
// say otherwise.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Auth: AuthConfig{
			Issuer:     "shopfront-accounts",
			AccessTTL:  24 * time.Hour,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Mail: MailConfig{
			Port:       587,
			From:       "no-reply@shopfront.local",
			AssetsHost: "http://localhost:3000",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Cleanup: CleanupConfig{Schedule: "@hourly"},
	}
}

// Load reads config.yaml if present, then applies environment overrides.
func Load() (*Config, error) {
	return LoadFromPath("config.yaml")
}

// LoadFromPath reads the given YAML file (missing file is fine), then applies
// environment overrides.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Environment-only configuration.
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("AUTH_SECRET is required")
	}
	return cfg, nil
}
