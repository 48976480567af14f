// Package common provides shared utilities for Folio
package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Folio
type Config struct {
	Environment string         `toml:"environment"`
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Cache       CacheConfig    `toml:"cache"`
	Clients     ClientsConfig  `toml:"clients"`
	Snapshot    SnapshotConfig `toml:"snapshot"`
	Auth        AuthConfig     `toml:"auth"`
	Logging     LoggingConfig  `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig selects the record-store backend for holdings, snapshots,
// watchlist and settings. The tiered cache is always file based.
type StorageConfig struct {
	Backend   string `toml:"backend"` // "file" (default) or "surrealdb"
	Path      string `toml:"path"`
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// IsSurrealDB reports whether the SurrealDB backend is selected.
func (c *StorageConfig) IsSurrealDB() bool {
	return strings.EqualFold(strings.TrimSpace(c.Backend), "surrealdb")
}

// CacheConfig holds the tiered cache configuration.
type CacheConfig struct {
	Dir              string             `toml:"dir"`
	TTLDays          map[string]float64 `toml:"ttl_days"` // per-resource overrides, fractional days
	FetchConcurrency int                `toml:"fetch_concurrency"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	FMP       ClientConfig `toml:"fmp"`
	CoinGecko ClientConfig `toml:"coingecko"`
	Tradier   ClientConfig `toml:"tradier"`
	Gemini    GeminiConfig `toml:"gemini"`
}

// ClientConfig holds connection settings for an upstream HTTP API
type ClientConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *ClientConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// SnapshotConfig controls automatic daily snapshots.
type SnapshotConfig struct {
	OnLoad      bool   `toml:"on_load"`
	Schedule    string `toml:"schedule"` // cron spec, empty disables the scheduler
	HistoryDays int    `toml:"history_days"`
}

// AuthConfig holds PIN session token configuration.
type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`
	TokenExpiry string `toml:"token_expiry"` // duration string, default "24h"
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Backend:   "file",
			Path:      "data/portfolio",
			Address:   "ws://localhost:8000/rpc",
			Namespace: "folio",
			Database:  "folio",
			Username:  "root",
			Password:  "root",
		},
		Cache: CacheConfig{
			Dir:              "data/fmp_cache",
			FetchConcurrency: 5,
		},
		Clients: ClientsConfig{
			FMP: ClientConfig{
				BaseURL:   "https://financialmodelingprep.com/stable",
				RateLimit: 5,
				Timeout:   "30s",
			},
			CoinGecko: ClientConfig{
				BaseURL:   "https://api.coingecko.com/api/v3",
				RateLimit: 1,
				Timeout:   "10s",
			},
			Tradier: ClientConfig{
				BaseURL:   "https://sandbox.tradier.com/v1",
				RateLimit: 2,
				Timeout:   "10s",
			},
			Gemini: GeminiConfig{
				Model: "gemini-2.5-flash",
			},
		},
		Snapshot: SnapshotConfig{
			OnLoad:      true,
			HistoryDays: 90,
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-jwt-secret-change-in-production",
			TokenExpiry: "24h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with .env and environment overrides.
// Later files override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	applyEnvOverrides(config)

	return config, nil
}

// loadDotEnv loads FOLIO_ENV_FILE (default ".env") into the process
// environment. Variables already set are left untouched.
func loadDotEnv() error {
	path := os.Getenv("FOLIO_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// firstEnv returns the first non-empty environment variable among names.
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FOLIO_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("FOLIO_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("FOLIO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("FOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("FOLIO_DATA_PATH"); path != "" {
		config.Storage.Path = filepath.Join(path, "portfolio")
		config.Cache.Dir = filepath.Join(path, "fmp_cache")
	}

	if v := os.Getenv("FOLIO_STORAGE_BACKEND"); v != "" {
		config.Storage.Backend = v
	}
	if v := os.Getenv("FOLIO_SURREALDB_ADDRESS"); v != "" {
		config.Storage.Address = v
	}

	if v := firstEnv("FMP_API_KEY", "FOLIO_FMP_API_KEY"); v != "" {
		config.Clients.FMP.APIKey = v
	}
	if v := firstEnv("COINGECKO_API_KEY", "FOLIO_COINGECKO_API_KEY"); v != "" {
		config.Clients.CoinGecko.APIKey = v
	}
	if v := firstEnv("TRADIER_API_KEY", "FOLIO_TRADIER_API_KEY"); v != "" {
		config.Clients.Tradier.APIKey = v
	}
	if v := firstEnv("GEMINI_API_KEY", "FOLIO_GEMINI_API_KEY", "GOOGLE_API_KEY"); v != "" {
		config.Clients.Gemini.APIKey = v
	}

	if v := os.Getenv("FOLIO_SNAPSHOT_SCHEDULE"); v != "" {
		config.Snapshot.Schedule = v
	}

	if v := os.Getenv("FOLIO_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("FOLIO_AUTH_TOKEN_EXPIRY"); v != "" {
		config.Auth.TokenExpiry = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
