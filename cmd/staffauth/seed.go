// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tablewise/staffauth/internal/auth"
	"github.com/tablewise/staffauth/internal/config"
	"github.com/tablewise/staffauth/pkg/errutil"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file    string
	timeout time.Duration
}

// SeedFile lists staff accounts to create.
type SeedFile struct {
	Staff []SeedStaff `yaml:"staff"`
}

// SeedStaff is one account in a SeedFile. Exactly one of Password and
// PasswordHash is set.
type SeedStaff struct {
	Tenant       string `yaml:"tenant"`
	Email        string `yaml:"email"`
	Name         string `yaml:"name"`
	Role         string `yaml:"role"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
}

func newSeedCmd(deps *Deps) *cobra.Command {
	scfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create staff accounts from a YAML file",
		Long: `Creates the staff accounts listed in a YAML file.
This command is idempotent - accounts whose email already exists are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(scfg.file)
			if err != nil {
				return oops.Code("SEED_READ_FAILED").With("path", scfg.file).Wrap(err)
			}
			seed, err := parseSeedFile(data)
			if err != nil {
				return err
			}
			return withRepositories(cmd, deps, func(ctx context.Context, d *Deps, repos *Repositories, cfg *config.Config) error {
				ctx, cancel := context.WithTimeout(ctx, scfg.timeout)
				defer cancel()

				created, skipped, err := applySeed(ctx, repos.Users, d.HasherFactory(cfg.Hasher.Concurrency), seed)
				if err != nil {
					return err
				}
				cmd.Printf("Seeded %d account(s), skipped %d existing\n", created, skipped)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&scfg.file, "file", "f", "", "YAML file listing staff accounts")
	cmd.Flags().DurationVar(&scfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().String("database-url", "", "PostgreSQL URL (default: $DATABASE_URL)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// parseSeedFile decodes and checks a seed file before anything is written.
func parseSeedFile(data []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, oops.Code("SEED_INVALID").Wrap(err)
	}
	for i, s := range seed.Staff {
		if (s.Password == "") == (s.PasswordHash == "") {
			return nil, oops.Code("SEED_INVALID").
				With("index", i).
				With("email", s.Email).
				Errorf("exactly one of password and password_hash must be set")
		}
		if _, err := parseTenant(s.Tenant); err != nil {
			return nil, oops.With("index", i).Wrap(err)
		}
		if _, err := auth.ParseRole(s.Role); err != nil {
			return nil, oops.With("index", i).Wrap(err)
		}
	}
	return &seed, nil
}

// applySeed creates each account that does not exist yet.
func applySeed(ctx context.Context, users auth.UserRepository, hasher auth.PasswordHasher, seed *SeedFile) (created, skipped int, err error) {
	for _, s := range seed.Staff {
		tenantID, err := parseTenant(s.Tenant)
		if err != nil {
			return created, skipped, err
		}
		role, err := auth.ParseRole(s.Role)
		if err != nil {
			return created, skipped, err
		}

		_, err = users.GetByEmail(ctx, s.Email, nil)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, auth.ErrNotFound) {
			return created, skipped, oops.Code("SEED_FAILED").With("email", s.Email).Wrap(err)
		}

		if s.PasswordHash != "" {
			user, err := auth.NewStaffUser(tenantID, s.Email, s.Name, s.PasswordHash, role)
			if err != nil {
				return created, skipped, oops.With("email", s.Email).Wrap(err)
			}
			err = users.Create(ctx, user)
		} else {
			_, err = createUser(ctx, users, hasher, newStaff{
				TenantID: tenantID,
				Email:    s.Email,
				Name:     s.Name,
				Role:     role,
				Password: s.Password,
			})
		}
		if errutil.CodeOf(err) == auth.CodeEmailTaken {
			skipped++
			continue
		}
		if err != nil {
			return created, skipped, oops.With("email", s.Email).Wrap(err)
		}
		created++
	}
	return created, skipped, nil
}
