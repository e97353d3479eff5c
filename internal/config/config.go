// Package config loads commander-vault settings from TOML, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/ramonehamilton/commander-vault/internal/cache"
	"github.com/ramonehamilton/commander-vault/internal/cards/scryfall"
	"github.com/ramonehamilton/commander-vault/internal/versioning"
)

// Environment variables that override the config file.
const (
	EnvHome     = "DECKVAULT_HOME"
	EnvDBPath   = "DECKVAULT_DB_PATH"
	EnvLogLevel = "DECKVAULT_LOG_LEVEL"
)

const (
	// FileName is the config file inside the home directory.
	FileName = "config.toml"

	defaultDirName = ".commander-vault"
)

// Storage backends.
const (
	BackendSQLite     = "sqlite"
	BackendFilesystem = "filesystem"
)

// Cache media.
const (
	MediumBolt   = "bolt"
	MediumMemory = "memory"
	MediumNone   = "none"
)

// Config represents the application configuration.
type Config struct {
	Storage    StorageConfig    `toml:"storage"`
	Cache      CacheConfig      `toml:"cache"`
	Scryfall   ScryfallConfig   `toml:"scryfall"`
	Versioning VersioningConfig `toml:"versioning"`
	Log        LogConfig        `toml:"log"`

	path string
}

// StorageConfig selects where deck archives live.
type StorageConfig struct {
	Backend string `toml:"backend"`  // sqlite or filesystem
	DBPath  string `toml:"db_path"`  // SQLite database file
	DeckDir string `toml:"deck_dir"` // filesystem backend directory
}

// CacheConfig contains card-data caching settings.
type CacheConfig struct {
	Medium     string            `toml:"medium"`      // bolt, memory or none
	Path       string            `toml:"path"`        // bbolt file
	QuotaBytes int64             `toml:"quota_bytes"` // 0 = unlimited
	TTL        map[string]string `toml:"ttl"`         // namespace -> duration, e.g. cards = "12h"
}

// ScryfallConfig configures the card API client.
type ScryfallConfig struct {
	BaseURL           string  `toml:"base_url"`
	UserAgent         string  `toml:"user_agent"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// VersioningConfig holds versioning defaults for new decks.
type VersioningConfig struct {
	DefaultScheme string `toml:"default_scheme"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// Home returns the data directory: $DECKVAULT_HOME or ~/.commander-vault.
func Home() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(userHome, defaultDirName), nil
}

// DefaultConfig returns the default configuration rooted at home.
func DefaultConfig(home string) *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendSQLite,
			DBPath:  filepath.Join(home, "decks.db"),
			DeckDir: filepath.Join(home, "decks"),
		},
		Cache: CacheConfig{
			Medium:     MediumBolt,
			Path:       filepath.Join(home, "cache.bolt"),
			QuotaBytes: 512 << 20,
			TTL:        map[string]string{},
		},
		Scryfall: ScryfallConfig{
			BaseURL:           scryfall.DefaultBaseURL,
			UserAgent:         scryfall.DefaultUserAgent,
			RequestsPerSecond: 10,
		},
		Versioning: VersioningConfig{
			DefaultScheme: string(versioning.SchemeSemantic),
		},
		Log: LogConfig{
			Level: "info",
		},
		path: filepath.Join(home, FileName),
	}
}

// Load reads the configuration. An empty path means <home>/config.toml.
// A missing file yields the defaults. Variables from .env files in the
// working directory and home are loaded first; real environment
// variables win over both .env values and the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // no .env in the working directory is fine

	home, err := Home()
	if err != nil {
		return nil, err
	}
	_ = godotenv.Load(filepath.Join(home, ".env"))
	// The home .env may set DECKVAULT_HOME itself.
	if home, err = Home(); err != nil {
		return nil, err
	}

	if path == "" {
		path = filepath.Join(home, FileName)
	}

	config := DefaultConfig(home)
	config.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	config.applyEnv()
	return config, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvDBPath); ok && v != "" {
		c.Storage.DBPath = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
}

// Path returns the file the configuration was loaded from or will be saved to.
func (c *Config) Path() string {
	return c.path
}

// Save writes the configuration back to Path.
func (c *Config) Save() error {
	if c.path == "" {
		home, err := Home()
		if err != nil {
			return err
		}
		c.path = filepath.Join(home, FileName)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.DBPath == "" {
			return fmt.Errorf("storage db_path is required for the sqlite backend")
		}
	case BackendFilesystem:
		if c.Storage.DeckDir == "" {
			return fmt.Errorf("storage deck_dir is required for the filesystem backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Cache.Medium {
	case MediumBolt:
		if c.Cache.Path == "" {
			return fmt.Errorf("cache path is required for the bolt medium")
		}
	case MediumMemory, MediumNone:
	default:
		return fmt.Errorf("unknown cache medium %q", c.Cache.Medium)
	}

	if c.Cache.QuotaBytes < 0 {
		return fmt.Errorf("cache quota cannot be negative: %d", c.Cache.QuotaBytes)
	}
	if _, err := c.CacheTTLs(); err != nil {
		return err
	}

	if c.Scryfall.RequestsPerSecond <= 0 {
		return fmt.Errorf("scryfall requests_per_second must be positive: %v", c.Scryfall.RequestsPerSecond)
	}

	if _, err := versioning.ParseScheme(c.Versioning.DefaultScheme); err != nil {
		return fmt.Errorf("invalid default scheme: %w", err)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}

	return nil
}

// CacheTTLs returns the per-namespace TTL overrides as durations.
func (c *Config) CacheTTLs() (map[cache.Namespace]time.Duration, error) {
	ttls := make(map[cache.Namespace]time.Duration, len(c.Cache.TTL))
	for name, raw := range c.Cache.TTL {
		ns, err := cache.ParseNamespace(name)
		if err != nil {
			return nil, fmt.Errorf("invalid cache ttl key: %w", err)
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid cache TTL %q for %s: %w", raw, name, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("cache TTL for %s must be positive: %s", name, raw)
		}
		ttls[ns] = d
	}
	return ttls, nil
}

// GetCacheTTL returns the effective TTL for a namespace.
func (c *Config) GetCacheTTL(ns cache.Namespace) (time.Duration, error) {
	ttls, err := c.CacheTTLs()
	if err != nil {
		return 0, err
	}
	if d, ok := ttls[ns]; ok {
		return d, nil
	}
	return ns.DefaultTTL(), nil
}

// DefaultScheme returns the parsed default versioning scheme.
func (c *Config) DefaultScheme() versioning.Scheme {
	scheme, err := versioning.ParseScheme(c.Versioning.DefaultScheme)
	if err != nil {
		return versioning.SchemeSemantic
	}
	return scheme
}
