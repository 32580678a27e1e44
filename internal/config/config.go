// Package config loads the server and CLI configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Context  ContextConfig  `yaml:"context"`
	Listing  ListingConfig  `yaml:"listing"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ContextConfig struct {
	// PreviewLimit caps the characters of each preview line.
	PreviewLimit int `yaml:"previewLimit"`
}

type ListingConfig struct {
	LowQualityThreshold int `yaml:"lowQualityThreshold"`
	// OutputKinds maps agent definition ids to their declared output kind.
	OutputKinds map[string]string `yaml:"outputKinds"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Listen: ":3000"},
		Database: DatabaseConfig{URL: "postgres://localhost:5432/workflow?sslmode=disable"},
		Log:      LogConfig{Level: "info", Format: "json"},
		Context:  ContextConfig{PreviewLimit: 120},
		Listing:  ListingConfig{LowQualityThreshold: 60},
	}
}

// Load reads configuration from a file on top of the defaults, expanding
// ${VAR} references, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("DATABASE_URL"); val != "" {
		cfg.Database.URL = val
	}
	if val := os.Getenv("LISTEN_ADDR"); val != "" {
		cfg.Server.Listen = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
}

// Validate normalizes and checks the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Listen) == "" {
		return fmt.Errorf("server.listen is required")
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch c.Log.Level {
	case "":
		c.Log.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q, supported levels: debug, info, warn, error", c.Log.Level)
	}

	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch c.Log.Format {
	case "":
		c.Log.Format = "json"
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q, supported formats: json, text", c.Log.Format)
	}

	if c.Context.PreviewLimit < 0 {
		return fmt.Errorf("context.previewLimit must not be negative")
	}
	if c.Listing.LowQualityThreshold < 0 || c.Listing.LowQualityThreshold > 100 {
		return fmt.Errorf("listing.lowQualityThreshold must be between 0 and 100")
	}
	return nil
}
