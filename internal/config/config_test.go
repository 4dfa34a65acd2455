package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig.Search, cfg.Search)
	assert.Equal(t, DefaultConfig.Window, cfg.Window)
	assert.NoError(t, cfg.Validate())
}

func TestPartialFileKeepsOtherDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[search]
max_results = 25

[apps]
extra_dirs = ["/opt/apps"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Search.MaxResults)
	assert.Equal(t, DefaultConfig.Search.Threshold, cfg.Search.Threshold)
	assert.Equal(t, []string{"/opt/apps"}, cfg.Apps.ExtraDirs)
	assert.Equal(t, DefaultConfig.Preview.Workers, cfg.Preview.Workers)
	assert.Empty(t, DefaultConfig.Apps.ExtraDirs)
}

func TestMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[search\n"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
	assert.Error(t, ValidateConfig(path))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := DefaultConfig
	cfg.Window.Width = 1200
	cfg.Sway.MsgCommand = "scrollmsg"

	require.NoError(t, SaveConfig(&cfg, path))
	loaded, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, 1200, loaded.Window.Width)
	assert.Equal(t, "scrollmsg", loaded.Sway.MsgCommand)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"negative threshold", func(c *Config) { c.Search.Threshold = -1 }, false},
		{"unlimited results", func(c *Config) { c.Search.MaxResults = 0 }, true},
		{"zero parallelism", func(c *Config) { c.Switcher.Parallelism = 0 }, false},
		{"tiny window", func(c *Config) { c.Window.Width = 10 }, false},
		{"no workers", func(c *Config) { c.Preview.Workers = 0 }, false},
		{"no workers but disabled", func(c *Config) { c.Preview.Enabled = false; c.Preview.Workers = 0 }, true},
		{"empty socket", func(c *Config) { c.Switcher.SocketPath = "" }, false},
		{"huge icons", func(c *Config) { c.Apps.IconSize = 1024 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAppsCachePath(t *testing.T) {
	cfg := DefaultConfig
	cfg.CacheDir = "/var/cache/lswitch"
	assert.Equal(t, "/var/cache/lswitch/apps.json", cfg.AppsCachePath())

	cfg.Apps.CacheFile = "/tmp/apps.json"
	assert.Equal(t, "/tmp/apps.json", cfg.AppsCachePath())
}
