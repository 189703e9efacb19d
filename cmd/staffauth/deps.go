// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/samber/oops"

	"github.com/tablewise/staffauth/internal/auth"
	authpg "github.com/tablewise/staffauth/internal/auth/postgres"
	"github.com/tablewise/staffauth/internal/config"
	"github.com/tablewise/staffauth/internal/store"
	"github.com/tablewise/staffauth/internal/telemetry"
)

// Repositories bundles the storage behind the auth services.
type Repositories struct {
	Users    auth.UserRepository
	Sessions auth.SessionRepository
	Resets   auth.ResetTokenRepository
	// Ping reports storage health for readiness.
	Ping  func(ctx context.Context) error
	Close func()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// RepositoryFactory opens storage.
	// Default: PostgreSQL via store.Connect
	RepositoryFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Repositories, error)

	// MigratorFactory creates a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// HasherFactory creates the password hasher.
	// Default: bcrypt bounded to the configured concurrency
	HasherFactory func(concurrency int) auth.PasswordHasher

	// TelemetrySetup installs tracing.
	// Default: telemetry.Setup
	TelemetrySetup func(ctx context.Context, opts telemetry.Options) (telemetry.ShutdownFunc, error)

	// LogWriter receives service logs.
	// Default: os.Stderr
	LogWriter io.Writer

	// Stdin supplies passwords to user commands.
	// Default: os.Stdin
	Stdin io.Reader

	// OnReady is called with the bound HTTP address once serving.
	OnReady func(httpAddr string)
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.RepositoryFactory == nil {
		out.RepositoryFactory = openPostgres
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if out.HasherFactory == nil {
		out.HasherFactory = func(concurrency int) auth.PasswordHasher {
			return auth.NewBoundedHasher(auth.NewBcryptHasher(), concurrency)
		}
	}
	if out.TelemetrySetup == nil {
		out.TelemetrySetup = telemetry.Setup
	}
	if out.LogWriter == nil {
		out.LogWriter = os.Stderr
	}
	if out.Stdin == nil {
		out.Stdin = os.Stdin
	}
	if out.OnReady == nil {
		out.OnReady = func(string) {}
	}
	return &out
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Repositories, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	pool, err := store.Connect(ctx, cfg.Database.URL, store.ConnectOptions{Logger: logger})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	return &Repositories{
		Users:    authpg.NewUserRepository(pool),
		Sessions: authpg.NewSessionRepository(pool),
		Resets:   authpg.NewResetTokenRepository(pool),
		Ping:     pool.Ping,
		Close:    pool.Close,
	}, nil
}

// services are the auth services built over one set of repositories.
type services struct {
	hasher   auth.PasswordHasher
	sessions *auth.SessionStore
	auth     *auth.Service
	resets   *auth.PasswordResetService
}

func newServices(repos *Repositories, hasher auth.PasswordHasher, dispatcher auth.ResetDispatcher, logger *slog.Logger) (*services, error) {
	sessions, err := auth.NewSessionStoreWithLogger(repos.Sessions, repos.Users, logger)
	if err != nil {
		return nil, oops.With("operation", "create session store").Wrap(err)
	}
	authSvc, err := auth.NewAuthServiceWithLogger(repos.Users, sessions, hasher, logger)
	if err != nil {
		return nil, oops.With("operation", "create auth service").Wrap(err)
	}
	resets, err := auth.NewPasswordResetServiceWithLogger(repos.Users, repos.Resets, sessions, hasher, dispatcher, logger)
	if err != nil {
		return nil, oops.With("operation", "create password reset service").Wrap(err)
	}
	return &services{hasher: hasher, sessions: sessions, auth: authSvc, resets: resets}, nil
}
