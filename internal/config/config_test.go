package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4, cfg.Editor.Workers)
	assert.Equal(t, 100, cfg.Editor.Quality)
	assert.Equal(t, "image/jpeg", cfg.Editor.DefaultMIMEType)
	assert.NotEmpty(t, cfg.Cache.Dir)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Editor.Workers = 0 }},
		{"quality too high", func(c *Config) { c.Editor.Quality = 101 }},
		{"quality too low", func(c *Config) { c.Editor.Quality = 0 }},
		{"no timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }},
		{"no cache dirs", func(c *Config) { c.Cache.Dir = ""; c.Cache.ExternalDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Editor.Workers = 8
	cfg.Cache.ExternalDir = "/mnt/external"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
