// Package config handles application configuration.
//
// Values are resolved by viper in this order: command-line flags (bound by
// the CLI), AIDETECTOR_* environment variables, an optional YAML config
// file, then the defaults below. Keys use dots and dashes; the matching
// environment variable replaces both with underscores, e.g.
// max-upload-size -> AIDETECTOR_MAX_UPLOAD_SIZE.
//
// All configuration is validated at startup to fail fast if misconfigured.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "AIDETECTOR"

// Configuration keys.
const (
	KeyEnvironment    = "env"
	KeyPort           = "port"
	KeyLogLevel       = "log.level"
	KeyLogFormat      = "log.format"
	KeyMaxUploadSize  = "max-upload-size"
	KeyRequestTimeout = "request-timeout"
	KeyRateLimit      = "rate-limit-per-minute"
	KeyAllowedOrigins = "allowed-origins"
	KeySamplingSeed   = "sampling.seed"
)

// DefaultMaxUploadSize is the upload ceiling of the public endpoint (50 MiB).
const DefaultMaxUploadSize int64 = 50 * 1024 * 1024

// Config holds all application configuration.
type Config struct {
	// Environment is the deployment environment: development, staging, production
	Environment string

	// Port is the HTTP server port
	Port int

	// LogLevel is one of debug, info, warn, error
	LogLevel string

	// LogFormat is text or json; json is the default in production
	LogFormat string

	// MaxUploadSize is the maximum accepted media size in bytes
	MaxUploadSize int64

	// RequestTimeout bounds the wall-clock time of one detection request
	RequestTimeout time.Duration

	// RateLimitPerMinute is the maximum requests per minute per client IP (0 disables)
	RateLimitPerMinute int

	// AllowedOrigins lists CORS origins; "*" allows all
	AllowedOrigins []string

	// SamplingSeed makes pixel sampling reproducible when non-zero
	SamplingSeed uint64
}

// New returns a viper instance with defaults and environment binding set up.
// Callers may bind flags or read a config file into it before FromViper.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyEnvironment, "development")
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "")
	v.SetDefault(KeyMaxUploadSize, DefaultMaxUploadSize)
	v.SetDefault(KeyRequestTimeout, 30*time.Second)
	v.SetDefault(KeyRateLimit, 60)
	v.SetDefault(KeyAllowedOrigins, []string{"*"})
	v.SetDefault(KeySamplingSeed, uint64(0))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads configuration from the environment and defaults only.
// Use Validate() to check the result.
func Load() (*Config, error) {
	return FromViper(New())
}

// FromViper builds a Config from an already populated viper instance.
// Values that cannot be parsed fall back to their defaults.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment:        strings.ToLower(strings.TrimSpace(v.GetString(KeyEnvironment))),
		Port:               intOrDefault(v, KeyPort, 8080),
		LogLevel:           v.GetString(KeyLogLevel),
		LogFormat:          strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
		MaxUploadSize:      int64OrDefault(v, KeyMaxUploadSize, DefaultMaxUploadSize),
		RequestTimeout:     durationOrDefault(v, KeyRequestTimeout, 30*time.Second),
		RateLimitPerMinute: intOrDefault(v, KeyRateLimit, 60),
		AllowedOrigins:     splitList(v.GetStringSlice(KeyAllowedOrigins)),
		SamplingSeed:       v.GetUint64(KeySamplingSeed),
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
		if cfg.IsProduction() {
			cfg.LogFormat = "json"
		}
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	// Production requires explicit origins.
	if cfg.IsProduction() && cfg.AllowedOrigins[0] == "*" {
		cfg.AllowedOrigins = []string{}
	}

	return cfg, nil
}

// Validate checks that all configuration values are usable.
// Every problem found is reported in the returned error.
func (c *Config) Validate() error {
	var errors []string

	if c.Port < 1 || c.Port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port: %d (must be 1-65535)", c.Port))
	}

	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.Environment] {
		errors = append(errors, fmt.Sprintf("invalid environment: %s (must be development, staging, or production)", c.Environment))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format: %s (must be text or json)", c.LogFormat))
	}

	if c.IsProduction() && len(c.AllowedOrigins) == 0 {
		errors = append(errors, "allowed-origins must be set in production (not *)")
	}

	if c.MaxUploadSize < 1024 {
		errors = append(errors, fmt.Sprintf("max-upload-size too small: %d (minimum 1024)", c.MaxUploadSize))
	}
	if c.MaxUploadSize > 1024*1024*1024 {
		errors = append(errors, fmt.Sprintf("max-upload-size too large: %d (maximum 1GB)", c.MaxUploadSize))
	}

	if c.RequestTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("request-timeout too short: %s (minimum 1s)", c.RequestTimeout))
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate-limit-per-minute: %d (must be >= 0)", c.RateLimitPerMinute))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// intOrDefault returns the key as an int, or def when the raw value does not parse.
// viper's GetInt returns 0 for garbage, which would hide a typo.
func intOrDefault(v *viper.Viper, key string, def int) int {
	if !parses(v, key) {
		return def
	}
	return v.GetInt(key)
}

func int64OrDefault(v *viper.Viper, key string, def int64) int64 {
	if !parses(v, key) {
		return def
	}
	return v.GetInt64(key)
}

func durationOrDefault(v *viper.Viper, key string, def time.Duration) time.Duration {
	raw, ok := v.Get(key).(string)
	if !ok {
		return v.GetDuration(key)
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return d
}

// parses reports whether a string value under key is a base-10 integer.
// Non-string values (defaults, YAML numbers) are trusted.
func parses(v *viper.Viper, key string) bool {
	raw, ok := v.Get(key).(string)
	if !ok {
		return true
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	for i, r := range raw {
		if r == '-' && i == 0 && len(raw) > 1 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// splitList flattens comma-separated entries; env values arrive as one string.
func splitList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}
