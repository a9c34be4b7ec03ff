package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the client
type Config struct {
	Environment string            `mapstructure:"environment"`
	LogLevel    string            `mapstructure:"log_level"`
	API         APIConfig         `mapstructure:"api"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Eligibility EligibilityConfig `mapstructure:"eligibility"`
	Results     ResultsConfig     `mapstructure:"results"`
	Log         LogConfig         `mapstructure:"log"`
}

// APIConfig holds backend connection settings
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig holds credential persistence settings
type AuthConfig struct {
	TokenFile string `mapstructure:"token_file"`
}

// EligibilityConfig holds vote-eligibility probing settings. Probing infers
// "already voted" from the backend's duplicate rejection; the sentinel id
// must never resolve to a real candidate.
type EligibilityConfig struct {
	ProbeEnabled        bool   `mapstructure:"probe_enabled"`
	SentinelCandidateID string `mapstructure:"sentinel_candidate_id"`
}

// ResultsConfig holds tally refresh settings
type ResultsConfig struct {
	RefreshSchedule string `mapstructure:"refresh_schedule"`
}

// LogConfig holds log output settings
type LogConfig struct {
	OutputPath string `mapstructure:"output_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Load reads the configuration file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default configuration values
	setDefaults(v)

	// Read the config file
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, will rely on defaults and env vars
	}

	// Override with environment variables
	v.SetEnvPrefix("ELECTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Parse the configuration
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for all configuration options
func setDefaults(v *viper.Viper) {
	// General defaults
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// API defaults
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", "30s")

	// Auth defaults
	v.SetDefault("auth.token_file", "./data/token")

	// Eligibility defaults
	v.SetDefault("eligibility.probe_enabled", true)
	v.SetDefault("eligibility.sentinel_candidate_id", "test")

	// Results defaults
	v.SetDefault("results.refresh_schedule", "@every 1m")

	// Log defaults
	v.SetDefault("log.output_path", "logs/election.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.compress", true)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return fmt.Errorf("api config: %w", err)
	}

	if err := c.validateAuth(); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	if err := c.validateEligibility(); err != nil {
		return fmt.Errorf("eligibility config: %w", err)
	}

	if err := c.validateResults(); err != nil {
		return fmt.Errorf("results config: %w", err)
	}

	return nil
}

func (c *Config) validateAPI() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", u.Scheme)
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

func (c *Config) validateAuth() error {
	if c.Auth.TokenFile == "" {
		return fmt.Errorf("token_file cannot be empty")
	}
	return nil
}

func (c *Config) validateEligibility() error {
	if c.Eligibility.ProbeEnabled && c.Eligibility.SentinelCandidateID == "" {
		return fmt.Errorf("sentinel_candidate_id cannot be empty when probing is enabled")
	}
	return nil
}

func (c *Config) validateResults() error {
	if c.Results.RefreshSchedule == "" {
		return fmt.Errorf("refresh_schedule cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if the environment is set to development
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Environment) == "development"
}
