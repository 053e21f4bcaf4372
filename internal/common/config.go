// Package common provides shared utilities for tickercal
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Storage backends for the ticker registry.
const (
	StorageBackendFile      = "file"
	StorageBackendSurrealDB = "surrealdb"
)

// Config holds all configuration for tickercal
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Clients     ClientsConfig `toml:"clients"`
	Sync        SyncConfig    `toml:"sync"`
	Market      MarketConfig  `toml:"market"`
	Auth        AuthConfig    `toml:"auth"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig selects and configures the registry store.
type StorageConfig struct {
	Backend   string          `toml:"backend"` // "file" (default) or "surrealdb"
	File      FileConfig      `toml:"file"`
	SurrealDB SurrealDBConfig `toml:"surrealdb"`
}

// FileConfig holds the path of the registry JSON document.
type FileConfig struct {
	Path     string `toml:"path"`
	Versions int    `toml:"versions"` // backup copies kept as <path>.v1 .. .vN
}

// SurrealDBConfig holds SurrealDB connection settings.
type SurrealDBConfig struct {
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EODHD   EODHDConfig   `toml:"eodhd"`
	Discord DiscordConfig `toml:"discord"`
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
	Exchange  string `toml:"exchange"` // suffix appended to bare tickers, e.g. "US" -> AAPL.US
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// DiscordConfig holds the chat platform connection settings.
type DiscordConfig struct {
	Token          string   `toml:"token"`
	CommandGuilds  []string `toml:"command_guilds"` // guilds that get commands registered instantly; global registration always happens
	EventLocation  string   `toml:"event_location"`
	RequestTimeout string   `toml:"request_timeout"`
}

// GetRequestTimeout parses and returns the per-call REST timeout
func (c *DiscordConfig) GetRequestTimeout() time.Duration {
	return parseDuration(c.RequestTimeout, 15*time.Second)
}

// SyncConfig controls the earnings sync cadence.
type SyncConfig struct {
	Interval       string `toml:"interval"`
	PublishSpacing string `toml:"publish_spacing"`
	StatusInterval string `toml:"status_interval"`
	Lookahead      string `toml:"lookahead"` // how far ahead to ask the provider for report dates
}

// GetInterval returns the batch sync interval (default 24h).
func (c *SyncConfig) GetInterval() time.Duration {
	return parseDuration(c.Interval, 24*time.Hour)
}

// GetPublishSpacing returns the minimum gap between event creates to one community (default 1s).
func (c *SyncConfig) GetPublishSpacing() time.Duration {
	return parseDuration(c.PublishSpacing, time.Second)
}

// GetStatusInterval returns the presence refresh interval (default 1m).
func (c *SyncConfig) GetStatusInterval() time.Duration {
	return parseDuration(c.StatusInterval, time.Minute)
}

// GetLookahead returns the provider query window (default 365 days).
func (c *SyncConfig) GetLookahead() time.Duration {
	return parseDuration(c.Lookahead, 365*24*time.Hour)
}

// MarketConfig describes the exchange session used for presence status.
type MarketConfig struct {
	Timezone string   `toml:"timezone"`
	Open     string   `toml:"open"`  // HH:MM local
	Close    string   `toml:"close"` // HH:MM local
	Holidays []string `toml:"holidays"`
}

// AuthConfig holds the operator API secret.
type AuthConfig struct {
	AdminJWTSecret string `toml:"admin_jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
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
			Backend: StorageBackendFile,
			File:    FileConfig{Path: "data/server_tickers.json", Versions: 3},
			SurrealDB: SurrealDBConfig{
				Address:   "ws://localhost:8000/rpc",
				Namespace: "tickercal",
				Database:  "tickercal",
				Username:  "root",
				Password:  "root",
			},
		},
		Clients: ClientsConfig{
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
				Exchange:  "US",
			},
			Discord: DiscordConfig{
				EventLocation:  "Stock Market",
				RequestTimeout: "15s",
			},
		},
		Sync: SyncConfig{
			Interval:       "24h",
			PublishSpacing: "1s",
			StatusInterval: "1m",
			Lookahead:      "8760h",
		},
		Market: MarketConfig{
			Timezone: "America/New_York",
			Open:     "09:30",
			Close:    "16:00",
		},
		Auth: AuthConfig{
			AdminJWTSecret: "change-me-in-production",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Outputs:    []string{"console", "file"},
			FilePath:   "./logs/tickercal.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	config.Storage.Backend = strings.ToLower(strings.TrimSpace(config.Storage.Backend))
	if config.Storage.Backend == "" {
		config.Storage.Backend = StorageBackendFile
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TICKERCAL_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("TICKERCAL_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("TICKERCAL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("TICKERCAL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("TICKERCAL_DATA_PATH"); path != "" {
		config.Storage.File.Path = filepath.Join(path, "server_tickers.json")
	}

	if backend := os.Getenv("TICKERCAL_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}

	if addr := os.Getenv("TICKERCAL_SURREALDB_ADDRESS"); addr != "" {
		config.Storage.SurrealDB.Address = addr
	}

	for _, name := range []string{"EODHD_API_KEY", "TICKERCAL_EODHD_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			config.Clients.EODHD.APIKey = v
			break
		}
	}

	// TOKEN is the legacy variable name
	for _, name := range []string{"DISCORD_TOKEN", "TICKERCAL_DISCORD_TOKEN", "TOKEN"} {
		if v := os.Getenv(name); v != "" {
			config.Clients.Discord.Token = v
			break
		}
	}

	if v := os.Getenv("TICKERCAL_ADMIN_JWT_SECRET"); v != "" {
		config.Auth.AdminJWTSecret = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ValidateRequired returns the names of required settings that are missing.
func (c *Config) ValidateRequired() []string {
	var missing []string
	if c.Clients.EODHD.APIKey == "" {
		missing = append(missing, "clients.eodhd.api_key")
	}
	if c.Clients.Discord.Token == "" {
		missing = append(missing, "clients.discord.token")
	}
	if c.Auth.AdminJWTSecret == "" || c.Auth.AdminJWTSecret == "change-me-in-production" {
		missing = append(missing, "auth.admin_jwt_secret")
	}
	if c.Storage.Backend == StorageBackendSurrealDB && c.Storage.SurrealDB.Address == "" {
		missing = append(missing, "storage.surrealdb.address")
	}
	return missing
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
