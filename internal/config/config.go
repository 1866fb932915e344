package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// API settings
	BaseURL        string
	RequestTimeout time.Duration
	// APIReadyAttempts bounds the one-per-second readiness pings issued
	// before the first submission.
	APIReadyAttempts int

	// Polling settings
	PollInterval    time.Duration
	BackoffInterval time.Duration
	// MaxPollFailures bounds consecutive transient poll failures.
	// Zero keeps the retry-forever behavior.
	MaxPollFailures int

	// Export settings
	ExportDir string
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		BaseURL:          "http://localhost:8000",
		RequestTimeout:   30 * time.Second,
		APIReadyAttempts: 30,
		PollInterval:     2 * time.Second,
		BackoffInterval:  5 * time.Second,
		MaxPollFailures:  0,
		ExportDir:        ".",
	}
}

// LoadFromEnvironment loads configuration from environment variables
func (c *Config) LoadFromEnvironment() {
	if baseURL := os.Getenv("TGSTAT_BASE_URL"); baseURL != "" {
		c.BaseURL = baseURL
	}

	if timeout := os.Getenv("TGSTAT_REQUEST_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			c.RequestTimeout = time.Duration(t) * time.Second
		}
	}

	if interval := os.Getenv("TGSTAT_POLL_INTERVAL"); interval != "" {
		if i, err := strconv.Atoi(interval); err == nil {
			c.PollInterval = time.Duration(i) * time.Millisecond
		}
	}

	if backoff := os.Getenv("TGSTAT_BACKOFF_INTERVAL"); backoff != "" {
		if b, err := strconv.Atoi(backoff); err == nil {
			c.BackoffInterval = time.Duration(b) * time.Millisecond
		}
	}

	if attempts := os.Getenv("TGSTAT_API_READY_ATTEMPTS"); attempts != "" {
		if a, err := strconv.Atoi(attempts); err == nil {
			c.APIReadyAttempts = a
		}
	}

	if failures := os.Getenv("TGSTAT_MAX_POLL_FAILURES"); failures != "" {
		if f, err := strconv.Atoi(failures); err == nil {
			c.MaxPollFailures = f
		}
	}

	if exportDir := os.Getenv("TGSTAT_EXPORT_DIR"); exportDir != "" {
		c.ExportDir = exportDir
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base URL %q: %w", c.BaseURL, err)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got: %v", c.RequestTimeout)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got: %v", c.PollInterval)
	}

	if c.BackoffInterval <= 0 {
		return fmt.Errorf("backoff interval must be positive, got: %v", c.BackoffInterval)
	}

	if c.APIReadyAttempts <= 0 {
		return fmt.Errorf("API ready attempts must be positive, got: %d", c.APIReadyAttempts)
	}

	if c.MaxPollFailures < 0 {
		return fmt.Errorf("max poll failures must be non-negative, got: %d", c.MaxPollFailures)
	}

	return nil
}
