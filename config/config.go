package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/erpgate/cache"
	"github.com/jonwraymond/erpgate/connector"
	"github.com/jonwraymond/erpgate/encode"
	"github.com/jonwraymond/erpgate/observe"
	"github.com/jonwraymond/erpgate/secret"
)

// Transports understood by the server.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Cache stores.
const (
	StoreMemory = "memory"
	StoreBolt   = "bolt"
)

// Config is the complete erpgate configuration.
type Config struct {
	// Backend configures the ERP REST API.
	Backend BackendConfig `yaml:"backend"`

	// Cache configures the result cache.
	Cache CacheConfig `yaml:"cache"`

	// Output configures response encoding.
	Output OutputConfig `yaml:"output"`

	// Server configures the MCP transport.
	Server ServerConfig `yaml:"server"`

	// Telemetry configures logs, traces and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// SecretsDir is the base for relative secretref:file: references.
	SecretsDir string `yaml:"secrets_dir"`
}

// BackendConfig configures the connector.
type BackendConfig struct {
	// URL is the ERP root, e.g. https://erp.example.com.
	URL string `yaml:"url"`

	// APIKey is sent as DOLAPIKEY. Supports ${VAR} and secretref values.
	APIKey string `yaml:"api_key"`

	// Timeout bounds a single HTTP exchange.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries after the first attempt.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`

	// BaseDelay is the first backoff wait.
	// Default: 500ms
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxBackoff caps a single backoff wait.
	// Default: 10s
	MaxBackoff time.Duration `yaml:"max_backoff"`

	Jitter bool `yaml:"jitter"`

	// MaxConcurrent limits in-flight backend calls. Zero means unlimited.
	MaxConcurrent int `yaml:"max_concurrent"`

	// RatePerSecond throttles backend calls. Zero means unlimited.
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// CacheConfig configures the cache manager.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`

	// Store is "memory" or "bolt".
	// Default: memory
	Store string `yaml:"store"`

	// Path is the bbolt file, required when Store is "bolt".
	Path string `yaml:"path"`

	// Prefix starts every key.
	// Default: erp
	Prefix string `yaml:"prefix"`

	// OpTimeout bounds one store operation.
	// Default: 250ms
	OpTimeout time.Duration `yaml:"op_timeout"`

	// Coalesce shares one backend load between concurrent identical misses.
	Coalesce bool `yaml:"coalesce"`

	// Classes overrides TTL class lifetimes, e.g. {short: 10s}.
	Classes map[cache.TTLClass]time.Duration `yaml:"classes"`

	// Entities overrides the TTL class of an entity.
	Entities map[string]cache.TTLClass `yaml:"entities"`

	// Invalidates replaces the dependents purged when an entity is written.
	Invalidates map[string][]string `yaml:"invalidates"`
}

// OutputConfig configures the response encoder.
type OutputConfig struct {
	// Format is the default output format.
	// Default: tabular
	Format string `yaml:"format"`
}

// ServerConfig configures the MCP protocol boundary.
type ServerConfig struct {
	// Transport is "stdio" or "http".
	// Default: stdio
	Transport string `yaml:"transport"`

	// Addr is the HTTP listen address.
	// Default: :8080
	Addr string `yaml:"addr"`

	// AuthEnabled guards /mcp with API keys or JWTs.
	// Default: true
	AuthEnabled bool `yaml:"auth_enabled"`

	// APIKeys are accepted bearer keys. Supports ${VAR} and secretref values.
	APIKeys []string `yaml:"api_keys"`

	// JWTSecret enables HS256 bearer tokens when set.
	JWTSecret string `yaml:"jwt_secret"`

	JWTIssuer   string `yaml:"jwt_issuer"`
	JWTAudience string `yaml:"jwt_audience"`

	// RateLimitPerMinute is the per-principal request budget.
	// Default: 100
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig configures observe.
type TelemetryConfig struct {
	ServiceName string                `yaml:"service_name"`
	LogLevel    string                `yaml:"log_level"`
	Tracing     observe.TracingConfig `yaml:"tracing"`
	Metrics     observe.MetricsConfig `yaml:"metrics"`
}

// Default returns the configuration used before the file and environment
// are applied.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 2,
			BaseDelay:  500 * time.Millisecond,
			MaxBackoff: 10 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Store:     StoreMemory,
			Prefix:    cache.DefaultPrefix,
			OpTimeout: 250 * time.Millisecond,
		},
		Output: OutputConfig{Format: string(encode.FormatTabular)},
		Server: ServerConfig{
			Transport:          TransportStdio,
			Addr:               ":8080",
			AuthEnabled:        true,
			RateLimitPerMinute: 100,
			ShutdownTimeout:    10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "erpgate",
			LogLevel:    "info",
			Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
		},
	}
}

// Load builds a Config from path (optional), the environment and secret
// references, then validates it.
func Load(ctx context.Context, path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.resolveSecrets(ctx, secret.DefaultResolver(cfg.SecretsDir)); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) resolveSecrets(ctx context.Context, r *secret.Resolver) error {
	err := r.ResolveFields(ctx, map[string]*string{
		"backend.url":       &c.Backend.URL,
		"backend.api_key":   &c.Backend.APIKey,
		"server.jwt_secret": &c.Server.JWTSecret,
		"cache.path":        &c.Cache.Path,
	})
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	keys, err := r.ResolveSlice(ctx, c.Server.APIKeys)
	if err != nil {
		return fmt.Errorf("config: resolve server.api_keys: %w", err)
	}
	c.Server.APIKeys = keys
	return nil
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Backend.URL == "" {
		add("backend.url is required")
	}
	if c.Backend.MaxRetries < 0 {
		add("backend.max_retries must be >= 0, got %d", c.Backend.MaxRetries)
	}
	if c.Backend.MaxConcurrent < 0 || c.Backend.RatePerSecond < 0 {
		add("backend limits must be >= 0")
	}

	if _, err := encode.ParseFormat(c.Output.Format); err != nil {
		add("output.format %q is not supported", c.Output.Format)
	}

	switch c.Cache.Store {
	case StoreMemory:
	case StoreBolt:
		if c.Cache.Enabled && c.Cache.Path == "" {
			add("cache.path is required for the bolt store")
		}
	default:
		add("cache.store %q is not memory or bolt", c.Cache.Store)
	}
	for class := range c.Cache.Classes {
		if !cache.ValidClass(class) {
			add("cache.classes: unknown ttl class %q", class)
		}
	}
	for entity, class := range c.Cache.Entities {
		if !cache.ValidClass(class) {
			add("cache.entities.%s: unknown ttl class %q", entity, class)
		}
	}
	policy := c.Policy()
	if err := policy.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	}
	for entity, deps := range policy.Invalidates {
		for _, e := range append([]string{entity}, deps...) {
			if _, ok := policy.Entities[e]; !ok {
				add("cache.invalidates: unknown entity %q", e)
			}
		}
	}

	switch c.Server.Transport {
	case TransportStdio:
	case TransportHTTP:
		if c.Server.Addr == "" {
			add("server.addr is required for the http transport")
		}
		if c.Server.AuthEnabled && len(c.Server.APIKeys) == 0 && c.Server.JWTSecret == "" {
			add("server: auth is enabled but no api_keys or jwt_secret are configured")
		}
	default:
		add("server.transport %q is not stdio or http", c.Server.Transport)
	}
	if c.Server.RateLimitPerMinute < 0 {
		add("server.rate_limit_per_minute must be >= 0")
	}
	if slices.Contains(c.Server.APIKeys, "") {
		add("server.api_keys contains an empty key")
	}

	obs := c.Observe()
	if err := obs.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	}

	return errors.Join(errs...)
}

// Policy merges the cache overrides into cache.DefaultPolicy.
func (c Config) Policy() cache.Policy {
	p := cache.DefaultPolicy()
	for class, d := range c.Cache.Classes {
		p.Classes[class] = d
	}
	for entity, class := range c.Cache.Entities {
		p.Entities[entity] = class
	}
	for entity, deps := range c.Cache.Invalidates {
		p.Invalidates[entity] = slices.Clone(deps)
	}
	return p
}

// Connector returns the connector settings.
func (c Config) Connector() connector.Config {
	retries := c.Backend.MaxRetries
	if retries == 0 {
		retries = -1
	}
	return connector.Config{
		MaxRetries:     retries,
		BaseDelay:      c.Backend.BaseDelay,
		MaxBackoff:     c.Backend.MaxBackoff,
		Jitter:         c.Backend.Jitter,
		AttemptTimeout: c.Backend.Timeout,
		MaxConcurrent:  c.Backend.MaxConcurrent,
		RatePerSecond:  c.Backend.RatePerSecond,
	}
}

// HTTP returns the HTTP backend settings.
func (c Config) HTTP() connector.HTTPConfig {
	return connector.HTTPConfig{BaseURL: c.Backend.URL, APIKey: c.Backend.APIKey}
}

// Format returns the parsed default output format.
func (c Config) Format() encode.Format {
	f, err := encode.ParseFormat(c.Output.Format)
	if err != nil {
		return encode.FormatTabular
	}
	return f
}

// Observe returns the telemetry settings.
func (c Config) Observe() observe.Config {
	return observe.Config{
		ServiceName: c.Telemetry.ServiceName,
		Tracing:     c.Telemetry.Tracing,
		Metrics:     c.Telemetry.Metrics,
		Logging:     observe.LoggingConfig{Enabled: true, Level: c.Telemetry.LogLevel},
	}
}
