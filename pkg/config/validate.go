package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"spiderbot/pkg/utils"
)

// Validate checks Config fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults
func (c *Config) Validate() (warnings []string, err error) {
	// SeedURL: required, absolute http(s)
	if c.SeedURL == "" {
		return warnings, fmt.Errorf("%w: seed_url is required", utils.ErrInvalidConfiguration)
	}
	seed, parseErr := url.ParseRequestURI(c.SeedURL)
	if parseErr != nil {
		return warnings, fmt.Errorf("%w: seed_url '%s': %v", utils.ErrInvalidConfiguration, c.SeedURL, parseErr)
	}
	if seed.Scheme != "http" && seed.Scheme != "https" {
		return warnings, fmt.Errorf("%w: seed_url must start with http:// or https://", utils.ErrInvalidConfiguration)
	}
	if seed.Hostname() == "" {
		return warnings, fmt.Errorf("%w: seed_url '%s' has no host", utils.ErrInvalidConfiguration, c.SeedURL)
	}

	// MaxWorkers: hard bounds, rejected before any worker starts
	if c.MaxWorkers < 1 || c.MaxWorkers > 16 {
		return warnings, fmt.Errorf("%w: max_workers must be 1-16, got %d", utils.ErrInvalidConfiguration, c.MaxWorkers)
	}

	// Delay: zero is allowed (no politeness), negative is not
	if c.Delay < 0 {
		return warnings, fmt.Errorf("%w: delay must be >= 0, got %v", utils.ErrInvalidConfiguration, c.Delay)
	}

	// StoragePath
	if c.StoragePath == "" {
		warnings = append(warnings, "storage_path is empty, defaulting to 'crawled_urls.csv'")
		c.StoragePath = "crawled_urls.csv"
	}

	// DomainScope
	switch strings.ToLower(c.DomainScope) {
	case "":
		c.DomainScope = ScopeHost
	case ScopeHost, ScopeDomain:
		c.DomainScope = strings.ToLower(c.DomainScope)
	default:
		return warnings, fmt.Errorf("%w: domain_scope must be '%s' or '%s', got '%s'",
			utils.ErrInvalidConfiguration, ScopeHost, ScopeDomain, c.DomainScope)
	}

	// RestrictToDomain default: on
	if c.RestrictToDomain == nil {
		restricted := true
		c.RestrictToDomain = &restricted
	}

	// UserAgent
	if c.UserAgent == "" {
		c.UserAgent = "SpiderBot/2.0"
	}

	// RequestTimeout
	if c.RequestTimeout <= 0 {
		warnings = append(warnings, "request_timeout should be > 0, defaulting to 5s")
		c.RequestTimeout = 5 * time.Second
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 500 * time.Millisecond
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 10 * time.Second
		}
		if c.InitialRetryDelay > c.MaxRetryDelay {
			warnings = append(warnings, fmt.Sprintf(
				"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
				c.InitialRetryDelay, c.MaxRetryDelay))
			c.InitialRetryDelay = c.MaxRetryDelay
		}
	}

	// MaxBodyBytes
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 10 << 20 // 10 MiB
	}

	// MaxInflight: defaults to worker count; more would never be used
	if c.MaxInflight <= 0 {
		c.MaxInflight = c.MaxWorkers
	}

	// StopTimeout
	if c.StopTimeout <= 0 {
		c.StopTimeout = 30 * time.Second
	}

	// EventBufferSize
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = 256
	}

	return warnings, nil
}

// SeedHost returns the hostname of the validated seed URL.
// Call only after Validate has succeeded
func (c *Config) SeedHost() string {
	seed, err := url.Parse(c.SeedURL)
	if err != nil {
		return ""
	}
	return seed.Hostname()
}
