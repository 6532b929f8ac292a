package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Domain scope granularity for the crawl's admission filter
const (
	// ScopeHost admits only URLs whose host matches the seed host exactly
	ScopeHost = "host"
	// ScopeDomain admits URLs sharing the seed's registrable domain
	// (public-suffix aware), so subdomains are included
	ScopeDomain = "domain"
)

// Config holds everything a single crawl needs
type Config struct {
	SeedURL           string        `yaml:"seed_url"`
	MaxWorkers        int           `yaml:"max_workers"`
	Delay             time.Duration `yaml:"delay"`              // Politeness delay per worker, before each request
	StoragePath       string        `yaml:"storage_path"`       // CSV record log; "<path>.pending" holds the frontier snapshot
	RestrictToDomain  *bool         `yaml:"restrict_to_domain"` // Pointer for tri-state: nil = default (true)
	DomainScope       string        `yaml:"domain_scope"`       // "host" (exact) or "domain" (registrable)
	UserAgent         string        `yaml:"user_agent"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	InitialRetryDelay time.Duration `yaml:"initial_retry_delay"`
	MaxRetryDelay     time.Duration `yaml:"max_retry_delay"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	MaxInflight       int           `yaml:"max_inflight"` // Global cap on concurrent HTTP requests
	StopTimeout       time.Duration `yaml:"stop_timeout"` // Bounded wait for workers during Stop
	EventBufferSize   int           `yaml:"event_buffer_size"`

	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host,omitempty"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	DialerTimeout       time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive     time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// Default returns the configuration matching the original defaults:
// 4 workers, 1s delay, crawled_urls.csv, domain restriction on
func Default() *Config {
	return &Config{
		MaxWorkers:     4,
		Delay:          1 * time.Second,
		StoragePath:    "crawled_urls.csv",
		DomainScope:    ScopeHost,
		UserAgent:      "SpiderBot/2.0",
		RequestTimeout: 5 * time.Second,
	}
}

// fileConfig mirrors Config for YAML decoding. Durations are strings in
// Go duration syntax ("250ms", "1s"); pointers distinguish unset from zero
// so file values overlay defaults instead of clobbering them
type fileConfig struct {
	SeedURL           string `yaml:"seed_url"`
	MaxWorkers        *int   `yaml:"max_workers"`
	Delay             string `yaml:"delay"`
	StoragePath       string `yaml:"storage_path"`
	RestrictToDomain  *bool  `yaml:"restrict_to_domain"`
	DomainScope       string `yaml:"domain_scope"`
	UserAgent         string `yaml:"user_agent"`
	RequestTimeout    string `yaml:"request_timeout"`
	MaxRetries        *int   `yaml:"max_retries"`
	InitialRetryDelay string `yaml:"initial_retry_delay"`
	MaxRetryDelay     string `yaml:"max_retry_delay"`
	MaxBodyBytes      *int64 `yaml:"max_body_bytes"`
	MaxInflight       *int   `yaml:"max_inflight"`
	StopTimeout       string `yaml:"stop_timeout"`
	EventBufferSize   *int   `yaml:"event_buffer_size"`

	HTTPClientSettings struct {
		MaxIdleConns        *int   `yaml:"max_idle_conns"`
		MaxIdleConnsPerHost *int   `yaml:"max_idle_conns_per_host"`
		IdleConnTimeout     string `yaml:"idle_conn_timeout"`
		TLSHandshakeTimeout string `yaml:"tls_handshake_timeout"`
		DialerTimeout       string `yaml:"dialer_timeout"`
		DialerKeepAlive     string `yaml:"dialer_keep_alive"`
	} `yaml:"http_client_settings"`
}

// Load reads a YAML config file over the defaults
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file '%s': %w", path, err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing config file '%s': %w", path, err)
	}

	cfg := Default()
	if file.SeedURL != "" {
		cfg.SeedURL = file.SeedURL
	}
	if file.MaxWorkers != nil {
		cfg.MaxWorkers = *file.MaxWorkers
	}
	if file.StoragePath != "" {
		cfg.StoragePath = file.StoragePath
	}
	if file.RestrictToDomain != nil {
		cfg.RestrictToDomain = file.RestrictToDomain
	}
	if file.DomainScope != "" {
		cfg.DomainScope = file.DomainScope
	}
	if file.UserAgent != "" {
		cfg.UserAgent = file.UserAgent
	}
	if file.MaxRetries != nil {
		cfg.MaxRetries = *file.MaxRetries
	}
	if file.MaxBodyBytes != nil {
		cfg.MaxBodyBytes = *file.MaxBodyBytes
	}
	if file.MaxInflight != nil {
		cfg.MaxInflight = *file.MaxInflight
	}
	if file.EventBufferSize != nil {
		cfg.EventBufferSize = *file.EventBufferSize
	}
	if file.HTTPClientSettings.MaxIdleConns != nil {
		cfg.HTTPClientSettings.MaxIdleConns = *file.HTTPClientSettings.MaxIdleConns
	}
	if file.HTTPClientSettings.MaxIdleConnsPerHost != nil {
		cfg.HTTPClientSettings.MaxIdleConnsPerHost = *file.HTTPClientSettings.MaxIdleConnsPerHost
	}

	durations := []struct {
		raw  string
		key  string
		dest *time.Duration
	}{
		{file.Delay, "delay", &cfg.Delay},
		{file.RequestTimeout, "request_timeout", &cfg.RequestTimeout},
		{file.InitialRetryDelay, "initial_retry_delay", &cfg.InitialRetryDelay},
		{file.MaxRetryDelay, "max_retry_delay", &cfg.MaxRetryDelay},
		{file.StopTimeout, "stop_timeout", &cfg.StopTimeout},
		{file.HTTPClientSettings.IdleConnTimeout, "idle_conn_timeout", &cfg.HTTPClientSettings.IdleConnTimeout},
		{file.HTTPClientSettings.TLSHandshakeTimeout, "tls_handshake_timeout", &cfg.HTTPClientSettings.TLSHandshakeTimeout},
		{file.HTTPClientSettings.DialerTimeout, "dialer_timeout", &cfg.HTTPClientSettings.DialerTimeout},
		{file.HTTPClientSettings.DialerKeepAlive, "dialer_keep_alive", &cfg.HTTPClientSettings.DialerKeepAlive},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("config file '%s': %s: %w", path, d.key, err)
		}
		*d.dest = parsed
	}

	return cfg, nil
}

// Restricted reports whether the crawl is limited to the seed's domain.
// Unset means restricted
func (c *Config) Restricted() bool {
	if c.RestrictToDomain == nil {
		return true
	}
	return *c.RestrictToDomain
}
