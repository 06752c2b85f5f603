// Package config provides configuration loading and management for seedcell.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/seed-cell-size/internal/imaging"
	"github.com/ironsheep/seed-cell-size/internal/logging"
	"github.com/ironsheep/seed-cell-size/internal/pipeline"
	"github.com/ironsheep/seed-cell-size/internal/render"
)

// LogLevelEnv overrides Logging.Level when set.
const LogLevelEnv = "SEEDCELL_LOG_LEVEL"

// Config represents the application configuration loaded from YAML
type Config struct {
	// Pipeline holds every stage parameter
	Pipeline pipeline.Params `yaml:"pipeline"`

	// Output parameters
	Output struct {
		// Format is the image format of the artefacts: png or tiff
		Format string `yaml:"format"`

		// Debug writes numbered intermediates of each stage
		Debug bool `yaml:"debug"`

		// LabelTextSize is the pixel height of the ids in labels.png
		LabelTextSize int `yaml:"labelTextSize"`

		// FailOnEmpty makes a run with no surviving regions an error
		FailOnEmpty bool `yaml:"failOnEmpty"`
	} `yaml:"output"`

	// Logging parameters
	Logging struct {
		// Level is debug, info, warn or error
		Level string `yaml:"level"`

		// Format is text, json or traditional
		Format string `yaml:"format"`

		// FileOutput appends to audit.log in the output directory
		FileOutput bool `yaml:"fileOutput"`
	} `yaml:"logging"`

	// HTTP server parameters
	HTTP struct {
		// Addr is the listen address
		Addr string `yaml:"addr"`

		// MaxUploadBytes limits the request body of /v1/measure
		MaxUploadBytes int64 `yaml:"maxUploadBytes"`
	} `yaml:"http"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Pipeline = pipeline.DefaultParams()

	cfg.Output.Format = "png"
	cfg.Output.Debug = false
	cfg.Output.LabelTextSize = render.DefaultTextSize
	cfg.Output.FailOnEmpty = false

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	cfg.Logging.FileOutput = true

	cfg.HTTP.Addr = "127.0.0.1:8080"
	cfg.HTTP.MaxUploadBytes = 64 << 20

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if level := os.Getenv(LogLevelEnv); level != "" {
		cfg.Logging.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
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
	return SaveConfig(DefaultConfig(), configPath)
}

// Validate checks pipeline parameters and output settings.
func (c *Config) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	switch c.Output.Format {
	case "png", "tiff":
	default:
		return fmt.Errorf("%w: output format %q must be png or tiff", imaging.ErrInvalidParameter, c.Output.Format)
	}
	if c.Output.LabelTextSize <= 0 {
		return fmt.Errorf("%w: label text size %d must be positive", imaging.ErrInvalidParameter, c.Output.LabelTextSize)
	}
	switch c.Logging.Format {
	case "text", "json", "traditional":
	default:
		return fmt.Errorf("%w: log format %q must be text, json or traditional", imaging.ErrInvalidParameter, c.Logging.Format)
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: max upload bytes %d must be positive", imaging.ErrInvalidParameter, c.HTTP.MaxUploadBytes)
	}
	return nil
}

// Params returns the pipeline parameters.
func (c *Config) Params() pipeline.Params {
	return c.Pipeline
}

// AnalyseOptions maps the output section onto pipeline options.
func (c *Config) AnalyseOptions() pipeline.AnalyseOptions {
	label := render.DefaultLabelOptions()
	label.TextSize = c.Output.LabelTextSize
	return pipeline.AnalyseOptions{
		ArtefactOptions: pipeline.ArtefactOptions{
			Format: c.Output.Format,
			Debug:  c.Output.Debug,
			Label:  label,
		},
		FailOnEmpty: c.Output.FailOnEmpty,
	}
}

// LoggingOptions maps the logging section onto logging.Options.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		FileOutput: c.Logging.FileOutput,
	}
}
