// Package config provides configuration loading and management for niftiview.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"niftiview/internal/models"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores limits how many files are decoded in parallel
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Display defaults for the interaction engine
	Display struct {
		// WindowCenter and WindowWidth are used for datasets without
		// explicit windowing
		WindowCenter float64 `yaml:"windowCenter"`
		WindowWidth  float64 `yaml:"windowWidth"`

		// ScrollStep is added or removed by one scroll increment
		ScrollStep float64 `yaml:"scrollStep"`
	} `yaml:"display"`

	// Storage parameters
	Storage struct {
		// MappingFile is the JSON file holding mapping records. Empty
		// disables persistence.
		MappingFile string `yaml:"mappingFile"`
	} `yaml:"storage"`

	// Logging parameters
	Logging struct {
		// File enables a rotating log file instead of stdout
		File string `yaml:"file"`

		// MaxSizeMB and MaxAgeDays control rotation of File
		MaxSizeMB  int `yaml:"maxSizeMB"`
		MaxAgeDays int `yaml:"maxAgeDays"`

		// Debug enables debug output
		Debug bool `yaml:"debug"`
	} `yaml:"logging"`

	// Server parameters
	Server struct {
		// Addr is the HTTP listen address for the presentation API
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Display.WindowCenter = models.DefaultWindowing.Center
	cfg.Display.WindowWidth = models.DefaultWindowing.Width
	cfg.Display.ScrollStep = 1

	cfg.Storage.MappingFile = filepath.Join("data", "mappings.json")

	cfg.Logging.MaxSizeMB = 50
	cfg.Logging.MaxAgeDays = 14

	cfg.Server.Addr = "localhost:8080"

	return cfg
}

// Windowing returns the configured default windowing
func (c *Config) Windowing() models.WindowingParams {
	return models.WindowingParams{Center: c.Display.WindowCenter, Width: c.Display.WindowWidth}
}

// Validate checks values that would make the application misbehave
func (c *Config) Validate() error {
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("processing.numCores must be at least 1, got %d", c.Processing.NumCores)
	}
	if c.Display.WindowWidth <= 0 {
		return fmt.Errorf("display.windowWidth must be positive, got %g", c.Display.WindowWidth)
	}
	if c.Display.ScrollStep <= 0 {
		return fmt.Errorf("display.scrollStep must be positive, got %g", c.Display.ScrollStep)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
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

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
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
