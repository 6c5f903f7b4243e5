package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the bot configuration.
type Config struct {
	BotToken string         `yaml:"bot_token"`
	Database DatabaseConfig `yaml:"database"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Ops      OpsConfig      `yaml:"ops"`
	Verbose  bool           `yaml:"-"` // set via CLI flag
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // database file path (default: data/modwatch.db)
}

// CatalogConfig contains Modrinth API settings.
type CatalogConfig struct {
	BaseURL string `yaml:"base_url"` // API base URL (default: https://api.modrinth.com/v2)
}

// OpsConfig contains the ops HTTP server settings.
type OpsConfig struct {
	Address string `yaml:"address"` // listen address (default: :9090)
}

// exampleConfig is written next to a missing config file so a first run
// leaves something to fill in.
const exampleConfig = `# modwatch configuration
bot_token: "enter the bot token here"

database:
  path: data/modwatch.db

catalog:
  base_url: https://api.modrinth.com/v2

ops:
  address: ":9090"
`

// LoadConfig loads configuration from a YAML file. The bot token may be
// overridden by the MODWATCH_BOT_TOKEN environment variable.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	cfg.applyEnv()
	return cfg
}

// WriteExampleConfig writes a commented starter config to path.
func WriteExampleConfig(path string) error {
	return os.WriteFile(path, []byte(exampleConfig), 0600)
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/modwatch.db"
	}
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = "https://api.modrinth.com/v2"
	}
	if c.Ops.Address == "" {
		c.Ops.Address = ":9090"
	}
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if token := os.Getenv("MODWATCH_BOT_TOKEN"); token != "" {
		c.BotToken = token
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.BotToken == "" || c.BotToken == "enter the bot token here" {
		return fmt.Errorf("bot_token is required (config file or MODWATCH_BOT_TOKEN)")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}
