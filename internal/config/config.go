// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

// Package config loads staffauth configuration.
//
// Sources are layered in order: built-in defaults, an optional YAML file,
// then command-line flags that were explicitly set. DATABASE_URL and
// REDIS_URL fill their keys when nothing else did.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/tablewise/staffauth/internal/auth"
	"github.com/tablewise/staffauth/internal/ratelimit"
)

// Rate limiter backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the full service configuration.
type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
	Database  DatabaseConfig  `koanf:"database"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Hasher    HasherConfig    `koanf:"hasher"`
	Sweeper   SweeperConfig   `koanf:"sweeper"`
	Reset     ResetConfig     `koanf:"reset"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// HTTPConfig configures the public listener.
type HTTPConfig struct {
	Addr          string        `koanf:"addr"`
	SecureCookies bool          `koanf:"secure_cookies"`
	TrustProxy    bool          `koanf:"trust_proxy"`
	ReadTimeout   time.Duration `koanf:"read_timeout"`
	WriteTimeout  time.Duration `koanf:"write_timeout"`
	IdleTimeout   time.Duration `koanf:"idle_timeout"`
	MaxBodyBytes  int64         `koanf:"max_body_bytes"`
	Routes        []RouteRule   `koanf:"routes"`
}

// RouteRule restricts paths matching Pattern to Roles.
type RouteRule struct {
	Pattern string   `koanf:"pattern"`
	Roles   []string `koanf:"roles"`
}

// MetricsConfig configures the observability listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// RateLimitConfig configures login throttling.
type RateLimitConfig struct {
	Backend     string        `koanf:"backend"`
	RedisURL    string        `koanf:"redis_url"`
	Window      time.Duration `koanf:"window"`
	MaxAttempts int           `koanf:"max_attempts"`
}

// HasherConfig bounds concurrent password hashing. Zero means GOMAXPROCS.
type HasherConfig struct {
	Concurrency int `koanf:"concurrency"`
}

// SweeperConfig configures expiry sweeping.
type SweeperConfig struct {
	Interval time.Duration `koanf:"interval"`
}

// ResetConfig configures reset links handed to the dispatcher.
type ResetConfig struct {
	BaseURL string `koanf:"base_url"`
	// LogLinks writes reset links to the log unredacted. Development only.
	LogLinks bool `koanf:"log_links"`
}

// TelemetryConfig configures OTLP trace export. Empty endpoint disables it.
type TelemetryConfig struct {
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	Insecure     bool   `koanf:"insecure"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:          ":8080",
			SecureCookies: true,
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  15 * time.Second,
			IdleTimeout:   60 * time.Second,
			MaxBodyBytes:  64 << 10,
			Routes:        defaultRoutes(),
		},
		Metrics:  MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:      LogConfig{Format: "json", Level: "info"},
		Database: DatabaseConfig{},
		RateLimit: RateLimitConfig{
			Backend:     BackendMemory,
			Window:      ratelimit.DefaultWindow,
			MaxAttempts: ratelimit.DefaultMaxAttempts,
		},
		Sweeper: SweeperConfig{Interval: auth.DefaultSweepInterval},
		Reset:   ResetConfig{BaseURL: "http://localhost:8080/reset-password"},
	}
}

func defaultRoutes() []RouteRule {
	admin := string(auth.RoleAdmin)
	owner := string(auth.RoleOwner)
	dashboards := []struct {
		path  string
		roles []string
	}{
		{"/admin", []string{admin}},
		{"/owner", []string{owner, admin}},
		{"/waiter", []string{string(auth.RoleWaiter), owner, admin}},
		{"/kitchen", []string{string(auth.RoleChef), owner, admin}},
	}
	rules := make([]RouteRule, 0, 2*len(dashboards))
	for _, d := range dashboards {
		rules = append(rules,
			RouteRule{Pattern: d.path, Roles: d.roles},
			RouteRule{Pattern: d.path + "/**", Roles: d.roles})
	}
	return rules
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, _, err := net.SplitHostPort(c.HTTP.Addr); err != nil {
		add("http.addr %q: %v", c.HTTP.Addr, err)
	}
	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			add("metrics.addr %q: %v", c.Metrics.Addr, err)
		}
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 || c.HTTP.IdleTimeout <= 0 {
		add("http timeouts must be positive")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		add("http.max_body_bytes must be positive")
	}
	for i, rule := range c.HTTP.Routes {
		if _, err := glob.Compile(rule.Pattern, '/'); err != nil {
			add("http.routes[%d].pattern %q: %v", i, rule.Pattern, err)
		}
		for _, r := range rule.Roles {
			if _, err := auth.ParseRole(r); err != nil {
				add("http.routes[%d].roles: unknown role %q", i, r)
			}
		}
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		add("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	if c.Database.URL != "" {
		if u, err := url.Parse(c.Database.URL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			add("database.url must be a postgres:// URL")
		}
	}

	switch c.RateLimit.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.RateLimit.RedisURL == "" {
			add("ratelimit.redis_url is required for the redis backend")
		} else if !strings.HasPrefix(c.RateLimit.RedisURL, "redis://") && !strings.HasPrefix(c.RateLimit.RedisURL, "rediss://") {
			add("ratelimit.redis_url must be a redis:// or rediss:// URL")
		}
	default:
		add("ratelimit.backend must be %q or %q, got %q", BackendMemory, BackendRedis, c.RateLimit.Backend)
	}
	if c.RateLimit.Window <= 0 {
		add("ratelimit.window must be positive")
	}
	if c.RateLimit.MaxAttempts <= 0 {
		add("ratelimit.max_attempts must be positive")
	}

	if c.Hasher.Concurrency < 0 {
		add("hasher.concurrency must not be negative")
	}
	if c.Sweeper.Interval <= 0 {
		add("sweeper.interval must be positive")
	}
	if u, err := url.Parse(c.Reset.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("reset.base_url must be an absolute URL")
	}

	if len(errs) > 0 {
		return oops.Code("CONFIG_INVALID").Wrap(errors.Join(errs...))
	}
	return nil
}

// RequireDatabase reports a missing database URL.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url or DATABASE_URL is required")
	}
	return nil
}
