package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pixelforge/scanvault/secure"
)

// Config holds the gateway daemon configuration
type Config struct {
	// Listen address for the HTTP server
	Listen string `yaml:"listen"`

	// Provider configuration for upstream key validation
	Provider ProviderConfig `yaml:"provider"`

	// ClientRate limits requests per remote client
	ClientRate ClientRateConfig `yaml:"client_rate"`

	// Secure holds the security layer configuration
	Secure *secure.Config `yaml:"secure"`
}

// ProviderConfig holds the OCR provider settings
type ProviderConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ClientRateConfig holds per-client request limiting settings
type ClientRateConfig struct {
	MaxRequests   int `yaml:"max_requests"`
	WindowMinutes int `yaml:"window_minutes"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Use defaults if no config file
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Secure.Validate(); err != nil {
		return nil, fmt.Errorf("invalid secure config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	sec := secure.DefaultConfig()
	// HTTP requests are the activity signal for a headless gateway.
	sec.ActivityEvents = []string{"request"}

	return &Config{
		Listen: ":8090",
		Provider: ProviderConfig{
			URL:            "https://generativelanguage.googleapis.com/v1beta/models",
			TimeoutSeconds: 30,
		},
		ClientRate: ClientRateConfig{
			MaxRequests:   10,
			WindowMinutes: 60,
		},
		Secure: sec,
	}
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

func (c *Config) ClientWindow() time.Duration {
	return time.Duration(c.ClientRate.WindowMinutes) * time.Minute
}
