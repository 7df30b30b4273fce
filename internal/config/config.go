// Package config assembles the process-wide configuration once at startup.
// Values come from DefaultConfig, then environment variables, then an
// optional local YAML override file. The result is read-only afterwards and
// is handed to each component when it is constructed.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config validation errors
var (
	// ErrInvalidResponseTimeout is returned when ResponseTimeout is not positive
	ErrInvalidResponseTimeout = errors.New("ResponseTimeout must be positive")
	// ErrInvalidMaxRedirects is returned when MaxRedirects is negative
	ErrInvalidMaxRedirects = errors.New("MaxRedirects cannot be negative")
	// ErrInvalidCacheTTL is returned when a cache TTL is not positive
	ErrInvalidCacheTTL = errors.New("cache TTL must be positive")
	// ErrInvalidCacheMaxEntries is returned when CacheMaxEntries is not positive
	ErrInvalidCacheMaxEntries = errors.New("CacheMaxEntries must be positive")
	// ErrInvalidMaxPageSize is returned when MaxPageMB is not positive
	ErrInvalidMaxPageSize = errors.New("MaxPageMB must be positive")
	// ErrMissingUserAgent is returned when UserAgent is empty
	ErrMissingUserAgent = errors.New("UserAgent is required")
)

// Version is reported in the default User-Agent.
const Version = "0.6.0"

// Config holds the global settings shared by every component.
type Config struct {
	// ResponseTimeout bounds one logical fetch, probe or status check.
	ResponseTimeout Duration `yaml:"response_timeout"`

	// UserAgent is sent with every outbound request.
	UserAgent string `yaml:"user_agent"`

	// MaxRedirects is the default redirect bound for page fetches. Zero
	// forbids redirects.
	MaxRedirects int `yaml:"max_redirects"`

	// CacheTTL is the lifetime of long-lived entries (oEmbed, status, images).
	CacheTTL Duration `yaml:"cache_ttl"`

	// PageCacheTTL is the lifetime of fetched page entries.
	PageCacheTTL Duration `yaml:"page_cache_ttl"`

	// CacheMaxEntries bounds the in-memory cache.
	CacheMaxEntries int `yaml:"cache_max_entries"`

	// CacheCleanupInterval is how often expired entries are swept.
	// Zero disables the sweep.
	CacheCleanupInterval Duration `yaml:"cache_cleanup_interval"`

	// WhitelistURL is fetched when WhitelistFile is empty.
	WhitelistURL string `yaml:"whitelist_url"`

	// WhitelistFile is a local whitelist snapshot; it wins over WhitelistURL.
	WhitelistFile string `yaml:"whitelist_file"`

	// WhitelistReloadPeriod is how often the whitelist is reloaded.
	// Zero disables hot reload.
	WhitelistReloadPeriod Duration `yaml:"whitelist_reload_period"`

	// WhitelistLogURL receives telemetry for non-whitelisted URLs.
	// Empty disables telemetry.
	WhitelistLogURL string `yaml:"whitelist_log_url"`

	// TelemetryPerMinute caps telemetry requests sent to WhitelistLogURL.
	TelemetryPerMinute int `yaml:"telemetry_per_minute"`

	// MaxPageMB caps how much of an HTML page is read.
	MaxPageMB int `yaml:"max_page_mb"`

	// ProbeImages fills missing image dimensions by probing the image.
	ProbeImages bool `yaml:"probe_images"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ResponseTimeout:       DurationFrom(5 * time.Second),
		UserAgent:             "Embedkit/" + Version + " (+https://github.com/embedkit/embedkit)",
		MaxRedirects:          3,
		CacheTTL:              DurationFrom(24 * time.Hour),
		PageCacheTTL:          DurationFrom(10 * time.Minute),
		CacheMaxEntries:       10000,
		CacheCleanupInterval:  DurationFrom(10 * time.Minute),
		WhitelistURL:          "",
		WhitelistFile:         "",
		WhitelistReloadPeriod: DurationFrom(1 * time.Hour),
		WhitelistLogURL:       "",
		TelemetryPerMinute:    60,
		MaxPageMB:             10,
		ProbeImages:           true,
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.ResponseTimeout.Duration <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidResponseTimeout, c.ResponseTimeout.Duration)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxRedirects, c.MaxRedirects)
	}
	if c.CacheTTL.Duration <= 0 {
		return fmt.Errorf("%w: cache_ttl got %v", ErrInvalidCacheTTL, c.CacheTTL.Duration)
	}
	if c.PageCacheTTL.Duration <= 0 {
		return fmt.Errorf("%w: page_cache_ttl got %v", ErrInvalidCacheTTL, c.PageCacheTTL.Duration)
	}
	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCacheMaxEntries, c.CacheMaxEntries)
	}
	if c.MaxPageMB <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxPageSize, c.MaxPageMB)
	}
	if c.UserAgent == "" {
		return ErrMissingUserAgent
	}
	return nil
}

// MaxPageBytes returns MaxPageMB in bytes.
func (c Config) MaxPageBytes() int64 {
	return int64(c.MaxPageMB) * 1024 * 1024
}

// Load builds the process configuration: defaults, then environment, then the
// override file named by EMBED_CONFIG_FILE (if any). The result is validated.
func Load() (Config, error) {
	cfg := ConfigFromEnv()

	if path := os.Getenv("EMBED_CONFIG_FILE"); path != "" {
		merged, err := MergeFile(cfg, path)
		if err != nil {
			return Config{}, err
		}
		cfg = merged
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MergeFile overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current value. A missing file is not an error.
func MergeFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("[CONFIG] override file not found, using defaults", "path", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config override: %w", err)
	}

	merged := cfg
	if err := yaml.Unmarshal(data, &merged); err != nil {
		return cfg, fmt.Errorf("parsing config override %s: %w", path, err)
	}

	slog.Info("[CONFIG] merged override file", "path", path)
	return merged, nil
}

// ConfigFromEnv creates a Config from environment variables.
// Uses defaults for any missing or invalid environment variables.
//
// Environment variables:
//   - EMBED_RESPONSE_TIMEOUT_MS: fetch/probe timeout in milliseconds (default: 5000)
//   - EMBED_USER_AGENT: outbound User-Agent
//   - EMBED_MAX_REDIRECTS: redirect bound for page fetches (default: 3)
//   - EMBED_CACHE_TTL_SECONDS: long-lived cache TTL (default: 86400)
//   - EMBED_PAGE_CACHE_TTL_SECONDS: page cache TTL (default: 600)
//   - EMBED_CACHE_MAX_ENTRIES: in-memory cache bound (default: 10000)
//   - EMBED_CACHE_CLEANUP_INTERVAL_MINUTES: expired entry sweep, 0 to disable (default: 10)
//   - EMBED_WHITELIST_URL: remote whitelist document
//   - EMBED_WHITELIST_FILE: local whitelist document (wins over the URL)
//   - EMBED_WHITELIST_RELOAD_MINUTES: reload period, 0 to disable (default: 60)
//   - EMBED_WHITELIST_LOG_URL: telemetry endpoint, empty to disable
//   - EMBED_TELEMETRY_PER_MINUTE: telemetry rate cap (default: 60)
//   - EMBED_MAX_PAGE_MB: page size cap in MB (default: 10)
//   - EMBED_PROBE_IMAGES: "true"/"1" or "false"/"0" (default: true)
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("EMBED_RESPONSE_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ResponseTimeout = DurationFrom(time.Duration(n) * time.Millisecond)
		} else {
			warnInvalid("EMBED_RESPONSE_TIMEOUT_MS", v, cfg.ResponseTimeout.Duration, err)
		}
	}

	if v := os.Getenv("EMBED_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}

	if v := os.Getenv("EMBED_MAX_REDIRECTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxRedirects = n
		} else {
			warnInvalid("EMBED_MAX_REDIRECTS", v, cfg.MaxRedirects, err)
		}
	}

	if v := os.Getenv("EMBED_CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheTTL = DurationFrom(time.Duration(n) * time.Second)
		} else {
			warnInvalid("EMBED_CACHE_TTL_SECONDS", v, cfg.CacheTTL.Duration, err)
		}
	}

	if v := os.Getenv("EMBED_PAGE_CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PageCacheTTL = DurationFrom(time.Duration(n) * time.Second)
		} else {
			warnInvalid("EMBED_PAGE_CACHE_TTL_SECONDS", v, cfg.PageCacheTTL.Duration, err)
		}
	}

	if v := os.Getenv("EMBED_CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxEntries = n
		} else {
			warnInvalid("EMBED_CACHE_MAX_ENTRIES", v, cfg.CacheMaxEntries, err)
		}
	}

	if v := os.Getenv("EMBED_CACHE_CLEANUP_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.CacheCleanupInterval = DurationFrom(time.Duration(n) * time.Minute)
		} else {
			warnInvalid("EMBED_CACHE_CLEANUP_INTERVAL_MINUTES", v, cfg.CacheCleanupInterval.Duration, err)
		}
	}

	if v := os.Getenv("EMBED_WHITELIST_URL"); v != "" {
		cfg.WhitelistURL = v
	}

	if v := os.Getenv("EMBED_WHITELIST_FILE"); v != "" {
		cfg.WhitelistFile = v
	}

	if v := os.Getenv("EMBED_WHITELIST_RELOAD_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.WhitelistReloadPeriod = DurationFrom(time.Duration(n) * time.Minute)
		} else {
			warnInvalid("EMBED_WHITELIST_RELOAD_MINUTES", v, cfg.WhitelistReloadPeriod.Duration, err)
		}
	}

	if v := os.Getenv("EMBED_WHITELIST_LOG_URL"); v != "" {
		cfg.WhitelistLogURL = v
	}

	if v := os.Getenv("EMBED_TELEMETRY_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TelemetryPerMinute = n
		} else {
			warnInvalid("EMBED_TELEMETRY_PER_MINUTE", v, cfg.TelemetryPerMinute, err)
		}
	}

	if v := os.Getenv("EMBED_MAX_PAGE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxPageMB = n
		} else {
			warnInvalid("EMBED_MAX_PAGE_MB", v, cfg.MaxPageMB, err)
		}
	}

	if v := os.Getenv("EMBED_PROBE_IMAGES"); v != "" {
		cfg.ProbeImages = v == "true" || v == "1"
	}

	return cfg
}

func warnInvalid(name, value string, def any, err error) {
	slog.Warn("[CONFIG] invalid "+name+" value, using default",
		"value", value,
		"default", def,
		"error", err,
	)
}
