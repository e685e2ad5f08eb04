package config

import (
	"strings"
	"testing"
	"time"
)

// TestLoad verifies that configuration loads correctly from environment variables.
func TestLoad(t *testing.T) {
	t.Run("loads defaults when no env vars set", func(t *testing.T) {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned error: %v", err)
		}

		assertEqual(t, "Environment", cfg.Environment, "development")
		assertEqual(t, "Port", cfg.Port, 8080)
		assertEqual(t, "LogLevel", cfg.LogLevel, "info")
		assertEqual(t, "LogFormat", cfg.LogFormat, "text")
		assertEqual(t, "MaxUploadSize", cfg.MaxUploadSize, int64(50*1024*1024))
		assertEqual(t, "RequestTimeout", cfg.RequestTimeout, 30*time.Second)
		assertEqual(t, "RateLimitPerMinute", cfg.RateLimitPerMinute, 60)
		assertEqual(t, "SamplingSeed", cfg.SamplingSeed, uint64(0))

		if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
			t.Errorf("AllowedOrigins: expected [*], got %v", cfg.AllowedOrigins)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("loads values from environment", func(t *testing.T) {
		t.Setenv("AIDETECTOR_ENV", "production")
		t.Setenv("AIDETECTOR_PORT", "3000")
		t.Setenv("AIDETECTOR_LOG_LEVEL", "debug")
		t.Setenv("AIDETECTOR_MAX_UPLOAD_SIZE", "10485760")
		t.Setenv("AIDETECTOR_REQUEST_TIMEOUT", "45s")
		t.Setenv("AIDETECTOR_RATE_LIMIT_PER_MINUTE", "120")
		t.Setenv("AIDETECTOR_ALLOWED_ORIGINS", "https://example.com, https://app.example.com")
		t.Setenv("AIDETECTOR_SAMPLING_SEED", "42")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned error: %v", err)
		}

		assertEqual(t, "Environment", cfg.Environment, "production")
		assertEqual(t, "Port", cfg.Port, 3000)
		assertEqual(t, "LogLevel", cfg.LogLevel, "debug")
		assertEqual(t, "LogFormat", cfg.LogFormat, "json")
		assertEqual(t, "MaxUploadSize", cfg.MaxUploadSize, int64(10485760))
		assertEqual(t, "RequestTimeout", cfg.RequestTimeout, 45*time.Second)
		assertEqual(t, "RateLimitPerMinute", cfg.RateLimitPerMinute, 120)
		assertEqual(t, "SamplingSeed", cfg.SamplingSeed, uint64(42))

		if len(cfg.AllowedOrigins) != 2 {
			t.Fatalf("AllowedOrigins: expected 2, got %v", cfg.AllowedOrigins)
		}
		assertEqual(t, "AllowedOrigins[1]", cfg.AllowedOrigins[1], "https://app.example.com")

		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() returned error: %v", err)
		}
	})

	t.Run("handles invalid values gracefully", func(t *testing.T) {
		t.Setenv("AIDETECTOR_PORT", "not-a-number")
		t.Setenv("AIDETECTOR_MAX_UPLOAD_SIZE", "invalid")
		t.Setenv("AIDETECTOR_REQUEST_TIMEOUT", "soon")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned error: %v", err)
		}

		assertEqual(t, "Port", cfg.Port, 8080)
		assertEqual(t, "MaxUploadSize", cfg.MaxUploadSize, DefaultMaxUploadSize)
		assertEqual(t, "RequestTimeout", cfg.RequestTimeout, 30*time.Second)
	})

	t.Run("production drops wildcard origin", func(t *testing.T) {
		t.Setenv("AIDETECTOR_ENV", "production")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned error: %v", err)
		}
		if len(cfg.AllowedOrigins) != 0 {
			t.Errorf("expected no origins in production, got %v", cfg.AllowedOrigins)
		}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() should require explicit origins in production")
		}
	})
}

// TestFromViperConfigFile verifies values read from a YAML config file.
func TestFromViperConfigFile(t *testing.T) {
	v := New()
	v.SetConfigType("yaml")
	err := v.ReadConfig(strings.NewReader(`
env: staging
port: 9090
log:
  level: warn
  format: json
max-upload-size: 2048
request-timeout: 5s
allowed-origins:
  - https://a.example
  - https://b.example
sampling:
  seed: 7
`))
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}

	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("FromViper: %v", err)
	}

	assertEqual(t, "Environment", cfg.Environment, "staging")
	assertEqual(t, "Port", cfg.Port, 9090)
	assertEqual(t, "LogLevel", cfg.LogLevel, "warn")
	assertEqual(t, "LogFormat", cfg.LogFormat, "json")
	assertEqual(t, "MaxUploadSize", cfg.MaxUploadSize, int64(2048))
	assertEqual(t, "RequestTimeout", cfg.RequestTimeout, 5*time.Second)
	assertEqual(t, "SamplingSeed", cfg.SamplingSeed, uint64(7))
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins: %v", cfg.AllowedOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate(): %v", err)
	}
}

// TestValidate verifies configuration validation.
func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment:        "development",
			Port:               8080,
			LogFormat:          "text",
			MaxUploadSize:      DefaultMaxUploadSize,
			RequestTimeout:     30 * time.Second,
			RateLimitPerMinute: 60,
			AllowedOrigins:     []string{"*"},
		}
	}

	t.Run("accepts valid development config", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("Validate() returned error for valid config: %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port 0", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"invalid environment", func(c *Config) { c.Environment = "invalid" }},
		{"invalid log format", func(c *Config) { c.LogFormat = "xml" }},
		{"upload too small", func(c *Config) { c.MaxUploadSize = 100 }},
		{"upload too large", func(c *Config) { c.MaxUploadSize = 2 * 1024 * 1024 * 1024 }},
		{"timeout too short", func(c *Config) { c.RequestTimeout = 10 * time.Millisecond }},
		{"negative rate limit", func(c *Config) { c.RateLimitPerMinute = -1 }},
		{"production without origins", func(c *Config) {
			c.Environment = "production"
			c.AllowedOrigins = nil
		}},
	}

	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() should reject %s", tt.name)
			}
		})
	}

	t.Run("reports every problem", func(t *testing.T) {
		cfg := valid()
		cfg.Port = 0
		cfg.MaxUploadSize = 1
		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "port") || !strings.Contains(err.Error(), "max-upload-size") {
			t.Errorf("error should list both problems: %v", err)
		}
	})
}

// TestIsProduction verifies environment detection.
func TestIsProduction(t *testing.T) {
	tests := []struct {
		env    string
		isProd bool
		isDev  bool
	}{
		{"production", true, false},
		{"development", false, true},
		{"staging", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := &Config{Environment: tt.env}

			if cfg.IsProduction() != tt.isProd {
				t.Errorf("IsProduction(): expected %v, got %v", tt.isProd, cfg.IsProduction())
			}
			if cfg.IsDevelopment() != tt.isDev {
				t.Errorf("IsDevelopment(): expected %v, got %v", tt.isDev, cfg.IsDevelopment())
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList([]string{" a , b ", "c", ""})
	if strings.Join(got, "|") != "a|b|c" {
		t.Errorf("splitList = %v", got)
	}
}

func assertEqual[T comparable](t *testing.T, name string, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %v, got %v", name, want, got)
	}
}
