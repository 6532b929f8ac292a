package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spiderbot/pkg/utils"
)

func validConfig() *Config {
	cfg := Default()
	cfg.SeedURL = "https://example.com"
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()

	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "example.com", cfg.SeedHost())
}

func TestValidate_SeedURLErrors(t *testing.T) {
	tests := []struct {
		name string
		seed string
	}{
		{"empty", ""},
		{"no scheme", "example.com"},
		{"relative path", "/just/a/path"},
		{"ftp scheme", "ftp://example.com"},
		{"file scheme", "file:///etc/passwd"},
		{"no host", "https:///path-only"},
		{"garbage", "not a url at all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.SeedURL = tt.seed

			_, err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrInvalidConfiguration)
		})
	}
}

func TestValidate_WorkerBounds(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		wantErr bool
	}{
		{"zero", 0, true},
		{"negative", -1, true},
		{"minimum", 1, false},
		{"default", 4, false},
		{"maximum", 16, false},
		{"too many", 17, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.MaxWorkers = tt.workers

			_, err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, utils.ErrInvalidConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_Delay(t *testing.T) {
	cfg := validConfig()
	cfg.Delay = -1 * time.Second
	_, err := cfg.Validate()
	assert.ErrorIs(t, err, utils.ErrInvalidConfiguration)

	cfg = validConfig()
	cfg.Delay = 0 // zero disables politeness, still valid
	_, err = cfg.Validate()
	assert.NoError(t, err)
}

func TestValidate_DomainScope(t *testing.T) {
	cfg := validConfig()
	cfg.DomainScope = ""
	_, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, ScopeHost, cfg.DomainScope)

	cfg = validConfig()
	cfg.DomainScope = "Domain" // case-insensitive
	_, err = cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, ScopeDomain, cfg.DomainScope)

	cfg = validConfig()
	cfg.DomainScope = "subdomains"
	_, err = cfg.Validate()
	assert.ErrorIs(t, err, utils.ErrInvalidConfiguration)
}

func TestValidate_AppliesDefaults(t *testing.T) {
	cfg := &Config{
		SeedURL:    "https://example.com",
		MaxWorkers: 4,
	}

	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.NotEmpty(t, warnings) // empty storage_path and request_timeout warn

	assert.Equal(t, "crawled_urls.csv", cfg.StoragePath)
	assert.Equal(t, "SpiderBot/2.0", cfg.UserAgent)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, int64(10<<20), cfg.MaxBodyBytes)
	assert.Equal(t, cfg.MaxWorkers, cfg.MaxInflight)
	assert.Equal(t, 30*time.Second, cfg.StopTimeout)
	assert.Equal(t, 256, cfg.EventBufferSize)
	require.NotNil(t, cfg.RestrictToDomain)
	assert.True(t, *cfg.RestrictToDomain)
	assert.True(t, cfg.Restricted())
}

func TestValidate_NegativeRetriesClampedWithWarning(t *testing.T) {
	cfg := validConfig()
	cfg.MaxRetries = -3

	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
	assert.Equal(t, 0, cfg.MaxRetries)
}

func TestValidate_RetryDelayDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.MaxRetries = 3

	_, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialRetryDelay)
	assert.Equal(t, 10*time.Second, cfg.MaxRetryDelay)

	// Inverted delays collapse to the max with a warning
	cfg = validConfig()
	cfg.MaxRetries = 3
	cfg.InitialRetryDelay = 20 * time.Second
	cfg.MaxRetryDelay = 2 * time.Second

	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
	assert.Equal(t, 2*time.Second, cfg.InitialRetryDelay)
}

func TestRestricted(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Restricted(), "unset restriction must default to true")

	off := false
	cfg.RestrictToDomain = &off
	assert.False(t, cfg.Restricted())

	on := true
	cfg.RestrictToDomain = &on
	assert.True(t, cfg.Restricted())
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawl.yaml")
	content := `
seed_url: https://docs.example.com
max_workers: 8
delay: 250ms
domain_scope: domain
restrict_to_domain: false
max_retries: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://docs.example.com", cfg.SeedURL)
	assert.Equal(t, 8, cfg.MaxWorkers)
	assert.Equal(t, 250*time.Millisecond, cfg.Delay)
	assert.Equal(t, ScopeDomain, cfg.DomainScope)
	require.NotNil(t, cfg.RestrictToDomain)
	assert.False(t, *cfg.RestrictToDomain)
	assert.Equal(t, 2, cfg.MaxRetries)

	// Unset fields keep their defaults
	assert.Equal(t, "crawled_urls.csv", cfg.StoragePath)
	assert.Equal(t, "SpiderBot/2.0", cfg.UserAgent)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed_url: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
