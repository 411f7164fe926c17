package backend

import (
	"errors"
	"net/url"
	"time"
)

// Config errors
var (
	ErrMissingBaseURL = errors.New("backend: base URL is required")
	ErrInvalidBaseURL = errors.New("backend: base URL must be an absolute http(s) URL")
)

// Config holds the backend client configuration
type Config struct {
	BaseURL string
	// Timeout bounds every request. Default: 30s
	Timeout time.Duration
	// RateLimitRPS paces outbound requests; 0 disables pacing
	RateLimitRPS   float64
	RateLimitBurst int
	// UserAgent is sent with every request
	UserAgent string
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidBaseURL
	}
	return nil
}
