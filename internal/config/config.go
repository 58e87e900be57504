package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	Editor EditorConfig `json:"editor"`
	HTTP   HTTPConfig   `json:"http"`
	Cache  CacheConfig  `json:"cache"`
}

// EditorConfig holds configuration for the crop pipeline
type EditorConfig struct {
	// Workers is the size of the crop worker pool.
	Workers int `json:"workers"`
	// Quality is the encode quality for JPEG and WebP output (1-100).
	Quality int `json:"quality"`
	// DefaultMIMEType is the output format used when the source format
	// cannot be determined.
	DefaultMIMEType string `json:"default_mime_type"`
}

// HTTPConfig holds configuration for remote image references
type HTTPConfig struct {
	TimeoutSeconds int    `json:"timeout_seconds"`
	UserAgent      string `json:"user_agent"`
}

// CacheConfig holds configuration for the temp-file cache
type CacheConfig struct {
	// Dir is the internal cache directory, created on demand.
	Dir string `json:"dir"`
	// ExternalDir is an optional second cache directory. When present and
	// with more free space than Dir, output files are created there.
	ExternalDir string `json:"external_dir"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Editor: EditorConfig{
			Workers:         4,
			Quality:         100,
			DefaultMIMEType: "image/jpeg",
		},
		HTTP: HTTPConfig{
			TimeoutSeconds: 30,
			UserAgent:      "Image-Editor/1.0 (+https://github.com/menta2k/image-editor)",
		},
		Cache: CacheConfig{
			Dir: filepath.Join(os.TempDir(), "image-editor"),
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Editor.Workers < 1 {
		return fmt.Errorf("editor.workers must be positive")
	}

	if c.Editor.Quality < 1 || c.Editor.Quality > 100 {
		return fmt.Errorf("editor.quality must be between 1 and 100")
	}

	if c.HTTP.TimeoutSeconds < 1 {
		return fmt.Errorf("http.timeout_seconds must be positive")
	}

	if c.Cache.Dir == "" && c.Cache.ExternalDir == "" {
		return fmt.Errorf("cache.dir or cache.external_dir must be set")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "image-editor", "config.json")
}
