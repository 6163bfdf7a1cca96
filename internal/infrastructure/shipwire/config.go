package shipwire

import (
	"errors"
	"strings"
	"time"
)

// Config holds configuration for the remote fulfillment provider API
type Config struct {
	// BaseURL is the base URL for the provider API
	BaseURL string
	// APIKey is the bearer token for the provider API
	APIKey string
	// RequestsPerMinute is the provider's call ceiling per rolling minute
	RequestsPerMinute int
	// Burst is the smoothing-bucket burst allowance
	Burst int
	// Timeout is the per-request HTTP timeout
	Timeout time.Duration
	// MaxAttempts caps in-call retries on throttled responses
	MaxAttempts int
	// InitialBackoff is the first wait after a throttled response without a
	// Retry-After header; it doubles per attempt
	InitialBackoff time.Duration
}

// Defaults applied by Validate
const (
	DefaultRequestsPerMinute = 40
	DefaultBurst             = 200
	DefaultTimeout           = 30 * time.Second
	DefaultMaxAttempts       = 5
	DefaultInitialBackoff    = 4 * time.Second
)

// Errors for provider configuration
var (
	ErrConfigMissingBaseURL = errors.New("shipwire: base URL is required")
	ErrConfigMissingAPIKey  = errors.New("shipwire: API key is required")
)

// NewConfig creates a new provider configuration with defaults
func NewConfig(baseURL, apiKey string) *Config {
	return &Config{
		BaseURL:           baseURL,
		APIKey:            apiKey,
		RequestsPerMinute: DefaultRequestsPerMinute,
		Burst:             DefaultBurst,
		Timeout:           DefaultTimeout,
		MaxAttempts:       DefaultMaxAttempts,
		InitialBackoff:    DefaultInitialBackoff,
	}
}

// Validate validates the provider configuration and fills defaults
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.APIKey == "" {
		return ErrConfigMissingAPIKey
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.Burst <= 0 {
		c.Burst = DefaultBurst
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	return nil
}
