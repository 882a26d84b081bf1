package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Registry RegistryConfig
	Remote   RemoteConfig
	Cache    CacheConfig
	Logging  LogConfig
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// RegistryConfig holds remote-instance registry configuration.
type RegistryConfig struct {
	Path string `envconfig:"REGISTRY_PATH" default:"instances.yaml"`
}

// RemoteConfig holds timeouts and identity for calls against remote panels.
//
// Reads and writes carry different budgets: listing pages on loaded panels
// are slow, and create submissions can block on server-side commits.
type RemoteConfig struct {
	NavTimeout   time.Duration `envconfig:"REMOTE_NAV_TIMEOUT" default:"10s"`
	ReadTimeout  time.Duration `envconfig:"REMOTE_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"REMOTE_WRITE_TIMEOUT" default:"120s"`
	UserAgent    string        `envconfig:"REMOTE_USER_AGENT" default:"gateprov/1.0"`
	RatePerSec   float64       `envconfig:"REMOTE_RATE_PER_SEC" default:"4"`
}

// CacheConfig holds credential cache configuration.
type CacheConfig struct {
	TTL       time.Duration `envconfig:"CACHE_TTL" default:"30m"`
	HighWater int           `envconfig:"CACHE_HIGH_WATER" default:"64"`
	Keep      int           `envconfig:"CACHE_KEEP" default:"48"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8090",
			Host: "0.0.0.0",
		},
		Registry: RegistryConfig{
			Path: "instances.yaml",
		},
		Remote: RemoteConfig{
			NavTimeout:   10 * time.Second,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			UserAgent:    "gateprov/1.0",
			RatePerSec:   4,
		},
		Cache: CacheConfig{
			TTL:       30 * time.Minute,
			HighWater: 64,
			Keep:      48,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
