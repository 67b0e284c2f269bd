// Package config loads and validates gateway config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Nonce store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreBolt   = "bolt"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :9000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is a zerolog level name.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// SIWEDomain is the domain sign-in messages must name; empty disables the check.
	SIWEDomain string `mapstructure:"SIWE_DOMAIN"`
	// NonceTTL is how long an issued nonce stays redeemable.
	NonceTTL time.Duration `mapstructure:"NONCE_TTL"`
	// NonceStore selects the nonce backend: memory, redis or bolt.
	NonceStore string `mapstructure:"NONCE_STORE"`
	// BoltPath is the bbolt file used when NonceStore is bolt.
	BoltPath string `mapstructure:"BOLT_PATH"`
	// RedisURL is used by the redis nonce store and the event stream.
	RedisURL string `mapstructure:"REDIS_URL"`

	// DatabaseDSN is the sqlite DSN of the user directory.
	DatabaseDSN string `mapstructure:"DATABASE_DSN"`
	// DirectoryTimeout bounds every user directory call.
	DirectoryTimeout time.Duration `mapstructure:"DIRECTORY_TIMEOUT"`

	// JWTPrivateKey is the PEM-encoded P-256 private key or a path to it. Empty generates an ephemeral key outside production.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTIssuer is the iss claim of session tokens.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// SessionTTL is the session token lifetime.
	SessionTTL time.Duration `mapstructure:"SESSION_TTL"`

	// EventsTopicPrefix prefixes the topic of published auth events.
	EventsTopicPrefix string `mapstructure:"EVENTS_TOPIC_PREFIX"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":9000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SIWE_DOMAIN", "")
	v.SetDefault("NONCE_TTL", "5m")
	v.SetDefault("NONCE_STORE", StoreMemory)
	v.SetDefault("BOLT_PATH", "walletgate.db")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("DATABASE_DSN", "file:walletgate.sqlite?cache=shared")
	v.SetDefault("DIRECTORY_TIMEOUT", "5s")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_ISSUER", "walletgate")
	v.SetDefault("SESSION_TTL", "15m")
	v.SetDefault("EVENTS_TOPIC_PREFIX", "walletgate")
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.NonceTTL <= 0 {
		return nil, errors.New("config: NONCE_TTL must be positive")
	}
	if cfg.SessionTTL <= 0 {
		return nil, errors.New("config: SESSION_TTL must be positive")
	}
	if cfg.DirectoryTimeout <= 0 {
		return nil, errors.New("config: DIRECTORY_TIMEOUT must be positive")
	}

	switch cfg.NonceStore {
	case StoreMemory:
	case StoreRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("config: REDIS_URL must be set when NONCE_STORE=redis")
		}
	case StoreBolt:
		if cfg.BoltPath == "" {
			return nil, errors.New("config: BOLT_PATH must be set when NONCE_STORE=bolt")
		}
	default:
		return nil, fmt.Errorf("config: unknown NONCE_STORE %q", cfg.NonceStore)
	}

	if cfg.IsProduction() && cfg.JWTPrivateKey == "" {
		return nil, errors.New("config: JWT_PRIVATE_KEY must be set when APP_ENV=production")
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
