package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/commander-vault/internal/cache"
	"github.com/ramonehamilton/commander-vault/internal/versioning"
)

// isolate points the home directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(EnvHome, home)
	t.Setenv(EnvDBPath, "")
	t.Setenv(EnvLogLevel, "")
	t.Chdir(t.TempDir())
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(home, "decks.db"), cfg.Storage.DBPath)
	assert.Equal(t, MediumBolt, cfg.Cache.Medium)
	assert.Equal(t, filepath.Join(home, FileName), cfg.Path())
	assert.Equal(t, versioning.SchemeSemantic, cfg.DefaultScheme())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
[storage]
backend = "filesystem"

[cache]
medium = "memory"

[cache.ttl]
cards = "12h"

[versioning]
default_scheme = "date"
`), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendFilesystem, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(home, "decks"), cfg.Storage.DeckDir, "unset keys keep defaults")
	assert.Equal(t, MediumMemory, cfg.Cache.Medium)
	assert.Equal(t, versioning.SchemeDate, cfg.DefaultScheme())

	ttl, err := cfg.GetCacheTTL(cache.NamespaceCards)
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, ttl)

	ttl, err = cfg.GetCacheTTL(cache.NamespaceImages)
	require.NoError(t, err)
	assert.Equal(t, cache.NamespaceImages.DefaultTTL(), ttl)
}

func TestLoadEnvOverrides(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, FileName), []byte("[log]\nlevel = \"warn\"\n"), 0o644))

	t.Setenv(EnvDBPath, "/srv/decks.db")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/decks.db", cfg.Storage.DBPath)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.Unsetenv(EnvLogLevel))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".env"), []byte(EnvLogLevel+"=error\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv(EnvLogLevel) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoadMalformed(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("[storage\nbackend ="), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "sub", "custom.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Cache.QuotaBytes = 1024
	cfg.Cache.TTL["sets"] = "48h"
	require.NoError(t, cfg.Save())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), again.Cache.QuotaBytes)
	assert.Equal(t, "48h", again.Cache.TTL["sets"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "postgres" }, wantErr: true},
		{name: "sqlite without path", mutate: func(c *Config) { c.Storage.DBPath = "" }, wantErr: true},
		{name: "unknown medium", mutate: func(c *Config) { c.Cache.Medium = "redis" }, wantErr: true},
		{name: "none medium", mutate: func(c *Config) { c.Cache.Medium = MediumNone; c.Cache.Path = "" }},
		{name: "negative quota", mutate: func(c *Config) { c.Cache.QuotaBytes = -1 }, wantErr: true},
		{name: "bad ttl", mutate: func(c *Config) { c.Cache.TTL["cards"] = "soon" }, wantErr: true},
		{name: "unknown namespace", mutate: func(c *Config) { c.Cache.TTL["decks"] = "1h" }, wantErr: true},
		{name: "zero ttl", mutate: func(c *Config) { c.Cache.TTL["cards"] = "0s" }, wantErr: true},
		{name: "zero rate", mutate: func(c *Config) { c.Scryfall.RequestsPerSecond = 0 }, wantErr: true},
		{name: "bad scheme", mutate: func(c *Config) { c.Versioning.DefaultScheme = "calver" }, wantErr: true},
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: true},
		{name: "upper level", mutate: func(c *Config) { c.Log.Level = "DEBUG" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(t.TempDir())
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
