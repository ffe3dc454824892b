package secure

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the security layer configuration
type Config struct {
	// Session timing
	SessionTimeoutMinutes    int `yaml:"session_timeout_minutes"`
	InactivityTimeoutMinutes int `yaml:"inactivity_timeout_minutes"`

	// Stored data and credential envelope lifetime
	DataExpiryHours       int `yaml:"data_expiry_hours"`
	CredentialMaxAgeHours int `yaml:"credential_max_age_hours"`

	// Attempt limiting
	MaxAttempts          int `yaml:"max_attempts"`
	AttemptWindowSeconds int `yaml:"attempt_window_seconds"`
	LockoutMinutes       int `yaml:"lockout_minutes"`

	// Background cadences
	SweepIntervalMinutes   int `yaml:"sweep_interval_minutes"`
	MonitorIntervalSeconds int `yaml:"monitor_interval_seconds"`

	// Credential format bounds
	CredentialMinLength int `yaml:"credential_min_length"`
	CredentialMaxLength int `yaml:"credential_max_length"`

	// ActivityEvents overrides the recognized activity event classes.
	// Empty means the session package defaults.
	ActivityEvents []string `yaml:"activity_events"`

	// Production suppresses non-essential log output
	Production bool `yaml:"production"`
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		SessionTimeoutMinutes:    30,
		InactivityTimeoutMinutes: 10,
		DataExpiryHours:          24,
		CredentialMaxAgeHours:    24,
		MaxAttempts:              5,
		AttemptWindowSeconds:     60,
		LockoutMinutes:           5,
		SweepIntervalMinutes:     5,
		MonitorIntervalSeconds:   30,
		CredentialMinLength:      16,
		CredentialMaxLength:      128,
	}
}

// Validate checks the configuration for values that would break the layer
func (c *Config) Validate() error {
	if c.SessionTimeoutMinutes <= 0 {
		return fmt.Errorf("session_timeout_minutes must be positive, got %d", c.SessionTimeoutMinutes)
	}
	if c.InactivityTimeoutMinutes <= 0 {
		return fmt.Errorf("inactivity_timeout_minutes must be positive, got %d", c.InactivityTimeoutMinutes)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.CredentialMinLength <= 0 || c.CredentialMaxLength < c.CredentialMinLength {
		return fmt.Errorf("invalid credential length bounds: min=%d max=%d",
			c.CredentialMinLength, c.CredentialMaxLength)
	}
	return nil
}

func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMinutes) * time.Minute
}

func (c *Config) InactivityTimeout() time.Duration {
	return time.Duration(c.InactivityTimeoutMinutes) * time.Minute
}

func (c *Config) DataExpiry() time.Duration {
	return time.Duration(c.DataExpiryHours) * time.Hour
}

func (c *Config) CredentialMaxAge() time.Duration {
	return time.Duration(c.CredentialMaxAgeHours) * time.Hour
}

func (c *Config) AttemptWindow() time.Duration {
	return time.Duration(c.AttemptWindowSeconds) * time.Second
}

func (c *Config) Lockout() time.Duration {
	return time.Duration(c.LockoutMinutes) * time.Minute
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.MonitorIntervalSeconds) * time.Second
}
