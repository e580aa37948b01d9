// Package config loads engine settings from foresight.yml plus the process
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds engine-level settings loaded from foresight.yml.
type Config struct {
	// ListenAddr is the HTTP server bind address.
	ListenAddr string `yaml:"listenAddr,omitempty"`

	// StorePath enables the SQLite store when set; empty keeps state
	// in memory.
	StorePath string `yaml:"storePath,omitempty"`

	// NATSURL enables event publishing when set.
	NATSURL string `yaml:"natsUrl,omitempty"`

	// DefaultPreset names the preset used when a request does not pick one.
	DefaultPreset string `yaml:"defaultPreset,omitempty"`

	// CatalogPath overrides the embedded agent catalog.
	CatalogPath string `yaml:"catalogPath,omitempty"`

	LogLevel    string `yaml:"logLevel,omitempty"`
	Development bool   `yaml:"development,omitempty"`

	// GenAIAPIKey is never read from YAML; it comes from the environment.
	GenAIAPIKey string `yaml:"-"`
}

// Load reads foresight.yml or foresight.yaml from dir, merging in the
// environment. A missing file yields defaults, not an error. A .env file in
// dir is loaded first, if present.
func Load(dir string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	cfg := &Config{}
	for _, name := range []string{"foresight.yml", "foresight.yaml"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		break
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FORESIGHT_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("FORESIGHT_STORE_PATH"); v != "" {
		c.StorePath = v
	}
	if v := os.Getenv("FORESIGHT_NATS_URL"); v != "" {
		c.NATSURL = v
	}
	if v := os.Getenv("FORESIGHT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	c.GenAIAPIKey = os.Getenv("GEMINI_API_KEY")
	if c.GenAIAPIKey == "" {
		c.GenAIAPIKey = os.Getenv("GOOGLE_API_KEY")
	}
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8686"
	}
	if c.DefaultPreset == "" {
		c.DefaultPreset = "default"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
