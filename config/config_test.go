package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonwraymond/erpgate/cache"
	"github.com/jonwraymond/erpgate/encode"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"ERP_URL", "DOLIBARR_URL", "ERP_API_KEY", "DOLIBARR_API_KEY", "LOG_LEVEL",
		"OUTPUT_FORMAT", "MCP_TRANSPORT", "MCP_HTTP_ADDR", "MCP_API_KEYS", "MCP_API_KEY",
		"MCP_AUTH_ENABLED", "CACHE_ENABLED", "CACHE_STORE", "CACHE_PATH",
	} {
		t.Setenv(name, "")
	}
}

func TestLoad_FileEnvAndSecrets(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "erp_key"), []byte("file-key\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, "erpgate.yaml", `
secrets_dir: `+dir+`
backend:
  url: https://erp.example.com
  api_key: secretref:file:erp_key
  max_retries: 4
  base_delay: 100ms
cache:
  classes:
    short: 10s
  entities:
    products: long
output:
  format: json
server:
  transport: http
  api_keys: ["${ERPGATE_TEST_CLIENT_KEY}"]
`)
	t.Setenv("ERPGATE_TEST_CLIENT_KEY", "client-key")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("MCP_HTTP_ADDR", "127.0.0.1:9000")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.APIKey != "file-key" {
		t.Errorf("Backend.APIKey = %q, want file-key", cfg.Backend.APIKey)
	}
	if cfg.Backend.MaxRetries != 4 || cfg.Backend.BaseDelay != 100*time.Millisecond {
		t.Errorf("Backend = %+v", cfg.Backend)
	}
	if cfg.Backend.Timeout != 30*time.Second {
		t.Errorf("Backend.Timeout = %v, want default 30s", cfg.Backend.Timeout)
	}
	if cfg.Telemetry.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.Telemetry.LogLevel)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if len(cfg.Server.APIKeys) != 1 || cfg.Server.APIKeys[0] != "client-key" {
		t.Errorf("Server.APIKeys = %v", cfg.Server.APIKeys)
	}
	if cfg.Format() != encode.FormatJSON {
		t.Errorf("Format() = %q, want json", cfg.Format())
	}

	p := cfg.Policy()
	if got := p.TTL("invoices"); got != 10*time.Second {
		t.Errorf("TTL(invoices) = %v, want 10s", got)
	}
	if got := p.TTL("products"); got != 15*time.Minute {
		t.Errorf("TTL(products) = %v, want 15m", got)
	}
	if got := cache.DefaultPolicy().TTL("invoices"); got != 30*time.Second {
		t.Errorf("default policy mutated: TTL(invoices) = %v", got)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOLIBARR_URL", "http://erp.local")
	t.Setenv("ERP_API_KEY", "k")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("MCP_API_KEYS", " a, b ,,")

	cfg, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.URL != "http://erp.local" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled = true, want false")
	}
	if len(cfg.Server.APIKeys) != 2 || cfg.Server.APIKeys[1] != "b" {
		t.Errorf("Server.APIKeys = %q", cfg.Server.APIKeys)
	}
	if cfg.Server.Transport != TransportStdio {
		t.Errorf("Server.Transport = %q, want stdio", cfg.Server.Transport)
	}
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(context.Background(), filepath.Join(t.TempDir(), "none.yaml")); err == nil {
			t.Error("Load() error = nil")
		}
	})
	t.Run("bad yaml", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "backend: [")
		if _, err := Load(context.Background(), path); err == nil {
			t.Error("Load() error = nil")
		}
	})
	t.Run("bad bool", func(t *testing.T) {
		t.Setenv("ERP_URL", "http://erp.local")
		t.Setenv("CACHE_ENABLED", "maybe")
		if _, err := Load(context.Background(), ""); !errors.Is(err, ErrBadEnv) {
			t.Errorf("Load() error = %v, want ErrBadEnv", err)
		}
	})
	t.Run("missing env reference", func(t *testing.T) {
		t.Setenv("ERP_URL", "http://erp.local")
		t.Setenv("ERP_API_KEY", "${ERPGATE_TEST_UNSET_KEY}")
		if _, err := Load(context.Background(), ""); err == nil {
			t.Error("Load() error = nil")
		}
	})
}

func validConfig() Config {
	c := Default()
	c.Backend.URL = "http://erp.local"
	return c
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults with url", func(*Config) {}, true},
		{"no url", func(c *Config) { c.Backend.URL = "" }, false},
		{"negative retries", func(c *Config) { c.Backend.MaxRetries = -1 }, false},
		{"unknown format", func(c *Config) { c.Output.Format = "xml" }, false},
		{"format alias", func(c *Config) { c.Output.Format = "toon" }, true},
		{"unknown store", func(c *Config) { c.Cache.Store = "redis" }, false},
		{"bolt without path", func(c *Config) { c.Cache.Store = StoreBolt }, false},
		{"bolt disabled", func(c *Config) { c.Cache.Store = StoreBolt; c.Cache.Enabled = false }, true},
		{"unknown class", func(c *Config) { c.Cache.Entities = map[string]cache.TTLClass{"invoices": "forever"} }, false},
		{"unknown class lifetime", func(c *Config) { c.Cache.Classes = map[cache.TTLClass]time.Duration{"forever": time.Hour} }, false},
		{"negative lifetime", func(c *Config) { c.Cache.Classes = map[cache.TTLClass]time.Duration{cache.TTLShort: -time.Second} }, false},
		{"unknown dependent", func(c *Config) { c.Cache.Invalidates = map[string][]string{"invoices": {"payments"}} }, false},
		{"new entity", func(c *Config) {
			c.Cache.Entities = map[string]cache.TTLClass{"payments": cache.TTLShort}
			c.Cache.Invalidates = map[string][]string{"invoices": {"payments"}}
		}, true},
		{"unknown transport", func(c *Config) { c.Server.Transport = "sse" }, false},
		{"http without credentials", func(c *Config) { c.Server.Transport = TransportHTTP }, false},
		{"http without auth", func(c *Config) { c.Server.Transport = TransportHTTP; c.Server.AuthEnabled = false }, true},
		{"http with jwt", func(c *Config) { c.Server.Transport = TransportHTTP; c.Server.JWTSecret = "s" }, true},
		{"bad log level", func(c *Config) { c.Telemetry.LogLevel = "loud" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() error = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestConnectorSettings(t *testing.T) {
	c := validConfig()
	if got := c.Connector().MaxRetries; got != 2 {
		t.Errorf("MaxRetries = %d, want 2", got)
	}
	c.Backend.MaxRetries = 0
	if got := c.Connector().MaxRetries; got >= 0 {
		t.Errorf("MaxRetries = %d, want retries disabled", got)
	}
	if got := c.HTTP().BaseURL; got != "http://erp.local" {
		t.Errorf("HTTP().BaseURL = %q", got)
	}
}
