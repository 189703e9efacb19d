// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Flag names bound by BindFlags, mapped to their config keys.
var flagKeys = map[string]string{
	"http-addr":              "http.addr",
	"secure-cookies":         "http.secure_cookies",
	"trust-proxy":            "http.trust_proxy",
	"metrics-addr":           "metrics.addr",
	"log-format":             "log.format",
	"log-level":              "log.level",
	"database-url":           "database.url",
	"ratelimit-backend":      "ratelimit.backend",
	"ratelimit-redis-url":    "ratelimit.redis_url",
	"ratelimit-window":       "ratelimit.window",
	"ratelimit-max-attempts": "ratelimit.max_attempts",
	"hasher-concurrency":     "hasher.concurrency",
	"sweeper-interval":       "sweeper.interval",
	"reset-base-url":         "reset.base_url",
	"otlp-endpoint":          "telemetry.otlp_endpoint",
	"otlp-insecure":          "telemetry.insecure",
}

// BindFlags registers the overridable settings on fs with defaults from Default.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http-addr", d.HTTP.Addr, "public HTTP listen address")
	fs.Bool("secure-cookies", d.HTTP.SecureCookies, "mark session cookies Secure")
	fs.Bool("trust-proxy", d.HTTP.TrustProxy, "use the rightmost X-Forwarded-For hop (appended by the proxy) as the client address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health listen address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("database-url", "", "PostgreSQL URL (default: $DATABASE_URL)")
	fs.String("ratelimit-backend", d.RateLimit.Backend, "login rate limiter backend (memory or redis)")
	fs.String("ratelimit-redis-url", "", "Redis URL for the redis backend (default: $REDIS_URL)")
	fs.Duration("ratelimit-window", d.RateLimit.Window, "login rate limit window")
	fs.Int("ratelimit-max-attempts", d.RateLimit.MaxAttempts, "login attempts allowed per window")
	fs.Int("hasher-concurrency", d.Hasher.Concurrency, "concurrent password hashes (0 = GOMAXPROCS)")
	fs.Duration("sweeper-interval", d.Sweeper.Interval, "expired session and reset token sweep interval")
	fs.String("reset-base-url", d.Reset.BaseURL, "base URL of the reset password page")
	fs.String("otlp-endpoint", "", "OTLP gRPC trace endpoint (empty = disabled)")
	fs.Bool("otlp-insecure", false, "disable TLS for the OTLP exporter")
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// empty) and the flags explicitly set on fs (may be nil).
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	// Configured routes replace the defaults rather than merging by index.
	if k.Exists("http.routes") {
		cfg.HTTP.Routes = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if cfg.RateLimit.RedisURL == "" {
		cfg.RateLimit.RedisURL = os.Getenv("REDIS_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
