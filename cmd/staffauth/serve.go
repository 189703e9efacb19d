// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tablewise/staffauth/internal/auth"
	"github.com/tablewise/staffauth/internal/config"
	"github.com/tablewise/staffauth/internal/httpapi"
	"github.com/tablewise/staffauth/internal/logging"
	"github.com/tablewise/staffauth/internal/notify"
	"github.com/tablewise/staffauth/internal/observability"
	"github.com/tablewise/staffauth/internal/ratelimit"
	"github.com/tablewise/staffauth/internal/telemetry"
)

const (
	serviceName     = "staffauth"
	shutdownTimeout = 10 * time.Second
)

// serveConfig holds flags that only apply to serve.
type serveConfig struct {
	autoMigrate bool
}

func newServeCmd(deps *Deps) *cobra.Command {
	scfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the staff auth HTTP service",
		Long: `Run the HTTP API, the metrics and health server and the
background sweeper for expired sessions and reset tokens.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, scfg, cmd, deps)
		},
	}

	config.BindFlags(cmd.Flags())
	cmd.Flags().BoolVar(&scfg.autoMigrate, "auto-migrate", false, "apply pending migrations before serving")

	return cmd
}

func newLogger(cfg *config.Config, deps *Deps) *slog.Logger {
	return logging.SetupWithLevel(serviceName, version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level), deps.LogWriter)
}

// runServeWithDeps starts the service with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, scfg *serveConfig, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()
	logger := newLogger(cfg, deps)
	slog.SetDefault(logger)

	logger.Info("starting staffauth",
		"http_addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"ratelimit_backend", cfg.RateLimit.Backend)

	shutdownTracing, err := deps.TelemetrySetup(ctx, telemetry.Options{
		ServiceName: serviceName,
		Version:     version,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return oops.With("operation", "set up telemetry").Wrap(err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("error flushing traces", "error", err)
		}
	}()

	if scfg.autoMigrate {
		if err := autoMigrate(cfg, deps, logger); err != nil {
			return err
		}
	}

	repos, err := deps.RepositoryFactory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repos.Close()
	logger.Info("storage ready")

	dispatcher, err := notify.NewLogDispatcher(cfg.Reset.BaseURL, cfg.Reset.LogLinks, logger)
	if err != nil {
		return err
	}
	svc, err := newServices(repos, deps.HasherFactory(cfg.Hasher.Concurrency), dispatcher, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		registry    prometheus.Registerer
		httpMetrics *observability.HTTPMetrics
		obsServer   *observability.Server
	)
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, repos.Ping, logger)
		registry = obsServer.Registry()
		httpMetrics = obsServer.HTTPMetrics()
	}

	limiter, closeLimiter, err := newLimiter(cfg.RateLimit, registry)
	if err != nil {
		return err
	}
	defer closeLimiter()

	sweeper := auth.NewSweeper(map[string]auth.ExpirySweeper{
		"sessions":     svc.sessions,
		"reset_tokens": svc.resets,
	}, cfg.Sweeper.Interval, logger)
	defer sweeper.Close()

	handler, err := httpapi.NewHandler(httpapi.Deps{
		Auth:     svc.auth,
		Sessions: svc.sessions,
		Resets:   svc.resets,
		Limiter:  limiter,
		Metrics:  httpMetrics,
		Logger:   logger,
	}, httpapi.OptionsFromConfig(cfg.HTTP))
	if err != nil {
		return oops.With("operation", "create http handler").Wrap(err)
	}

	server := httpapi.NewServer(cfg.HTTP.Addr, handler.Routes(), httpapi.Timeouts{
		Read:  cfg.HTTP.ReadTimeout,
		Write: cfg.HTTP.WriteTimeout,
		Idle:  cfg.HTTP.IdleTimeout,
	}, logger)
	httpErrCh, err := server.Start()
	if err != nil {
		return oops.With("operation", "start http server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, httpErrCh, "http", logger)

	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			if stopErr := server.Stop(stopCtx); stopErr != nil {
				logger.Warn("failed to stop http server during cleanup", "error", stopErr)
			}
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
	}

	cmd.Println("staffauth serving on", server.Addr())
	deps.OnReady(server.Addr())

	<-ctx.Done()
	logger.Info("shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := server.Stop(stopCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(stopCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels ctx when a server reports a serve error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			logger.Error("server failed", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

func autoMigrate(cfg *config.Config, deps *Deps, logger *slog.Logger) error {
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	migrator, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()
	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	logger.Info("migrations applied")
	return nil
}

// newLimiter builds the configured login limiter and its cleanup.
func newLimiter(cfg config.RateLimitConfig, reg prometheus.Registerer) (ratelimit.Limiter, func(), error) {
	limits := ratelimit.Config{Window: cfg.Window, MaxAttempts: cfg.MaxAttempts}

	switch cfg.Backend {
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, oops.Code("CONFIG_INVALID").With("key", "ratelimit.redis_url").Wrap(err)
		}
		client := redis.NewClient(opts)
		limiter, err := ratelimit.NewRedisLimiter(client, limits)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return limiter, func() { _ = client.Close() }, nil
	case config.BackendMemory, "":
		var limiter *ratelimit.MemoryLimiter
		if reg != nil {
			limiter = ratelimit.NewMemoryLimiterWithRegistry(limits, reg)
		} else {
			limiter = ratelimit.NewMemoryLimiter(limits)
		}
		return limiter, limiter.Close, nil
	default:
		return nil, nil, oops.Code("CONFIG_INVALID").Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}

