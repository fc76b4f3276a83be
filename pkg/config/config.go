// Package config provides configuration loading and management for imagelab.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// HTTP server parameters
	Server struct {
		// Addr is the listen address of the web interface
		Addr string `yaml:"addr"`

		// MaxUploadBytes caps the size of a single upload
		MaxUploadBytes int64 `yaml:"maxUploadBytes"`

		// ReadTimeoutSeconds and WriteTimeoutSeconds bound a request
		ReadTimeoutSeconds  int `yaml:"readTimeoutSeconds"`
		WriteTimeoutSeconds int `yaml:"writeTimeoutSeconds"`

		// Compress enables gzip compression of responses
		Compress bool `yaml:"compress"`
	} `yaml:"server"`

	// Transform pipeline parameters
	Pipeline struct {
		// LogFloor is the smallest magnitude passed to the logarithm when
		// rendering coefficient grids
		LogFloor float64 `yaml:"logFloor"`

		// JPEGQuality is used for every encoded artifact
		JPEGQuality int `yaml:"jpegQuality"`

		// MaxPixels refuses uploads whose header declares more pixels
		MaxPixels int `yaml:"maxPixels"`

		// MaxDimension downscales larger uploads before processing; 0 disables
		MaxDimension int `yaml:"maxDimension"`
	} `yaml:"pipeline"`

	// Figure parameters
	Figure struct {
		// PanelSize is the edge length of each square panel cell in pixels
		PanelSize int `yaml:"panelSize"`
	} `yaml:"figure"`

	// Output parameters
	Output struct {
		// Dir is where the command line mode writes artifacts
		Dir string `yaml:"dir"`

		// DumpCoefficients writes the raw coefficient grids next to the images
		DumpCoefficients bool `yaml:"dumpCoefficients"`

		// Verbose prints per-stage progress in the command line mode and
		// rejected requests in the server
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Addr = ":8080"
	cfg.Server.MaxUploadBytes = 20 << 20
	cfg.Server.ReadTimeoutSeconds = 30
	cfg.Server.WriteTimeoutSeconds = 60
	cfg.Server.Compress = true

	cfg.Pipeline.LogFloor = 1e-9
	cfg.Pipeline.JPEGQuality = 90
	cfg.Pipeline.MaxPixels = 16 << 20
	cfg.Pipeline.MaxDimension = 1024

	cfg.Figure.PanelSize = 320

	cfg.Output.Dir = "artifacts"
	cfg.Output.DumpCoefficients = false
	cfg.Output.Verbose = true

	return cfg
}

// Validate reports the first setting that the pipeline cannot work with
func (c *Config) Validate() error {
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.maxUploadBytes must be positive, got %d", c.Server.MaxUploadBytes)
	}
	if !(c.Pipeline.LogFloor > 0) {
		return fmt.Errorf("pipeline.logFloor must be positive, got %g", c.Pipeline.LogFloor)
	}
	if c.Pipeline.JPEGQuality < 1 || c.Pipeline.JPEGQuality > 100 {
		return fmt.Errorf("pipeline.jpegQuality must be between 1 and 100, got %d", c.Pipeline.JPEGQuality)
	}
	if c.Pipeline.MaxPixels <= 0 {
		return fmt.Errorf("pipeline.maxPixels must be positive, got %d", c.Pipeline.MaxPixels)
	}
	if c.Pipeline.MaxDimension < 0 {
		return fmt.Errorf("pipeline.maxDimension must not be negative, got %d", c.Pipeline.MaxDimension)
	}
	if c.Figure.PanelSize <= 0 {
		return fmt.Errorf("figure.panelSize must be positive, got %d", c.Figure.PanelSize)
	}
	return nil
}

// ReadTimeout returns the server read timeout as a duration
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the server write timeout as a duration
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
