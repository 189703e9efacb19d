// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tablewise/staffauth/internal/auth"
	"github.com/tablewise/staffauth/internal/config"
)

// userConfig holds flags shared by the user subcommands.
type userConfig struct {
	tenant string
	email  string
	name   string
	role   string
}

func newUserCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage staff accounts",
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (default: $DATABASE_URL)")

	cmd.AddCommand(newUserCreateCmd(deps))
	cmd.AddCommand(newUserSetActiveCmd(deps, "deactivate", false))
	cmd.AddCommand(newUserSetActiveCmd(deps, "activate", true))
	cmd.AddCommand(newUserSessionsCmd(deps))
	return cmd
}

func newUserCreateCmd(deps *Deps) *cobra.Command {
	ucfg := &userConfig{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		Long: `Create an active staff account. The password is read from the first
line of standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRepositories(cmd, deps, func(ctx context.Context, d *Deps, repos *Repositories, cfg *config.Config) error {
				tenantID, err := parseTenant(ucfg.tenant)
				if err != nil {
					return err
				}
				role, err := auth.ParseRole(ucfg.role)
				if err != nil {
					return err
				}
				password, err := readPassword(d.Stdin)
				if err != nil {
					return err
				}

				user, err := createUser(ctx, repos.Users, d.HasherFactory(cfg.Hasher.Concurrency), newStaff{
					TenantID: tenantID,
					Email:    ucfg.email,
					Name:     ucfg.name,
					Role:     role,
					Password: password,
				})
				if err != nil {
					return err
				}
				cmd.Printf("Created %s (%s) with id %s\n", user.Email, user.Role, user.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ucfg.tenant, "tenant", "", "tenant UUID")
	cmd.Flags().StringVar(&ucfg.email, "email", "", "login email")
	cmd.Flags().StringVar(&ucfg.name, "name", "", "display name")
	cmd.Flags().StringVar(&ucfg.role, "role", "", "role (admin, owner, waiter, chef)")
	for _, name := range []string{"tenant", "email", "name", "role"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newUserSetActiveCmd(deps *Deps, use string, active bool) *cobra.Command {
	ucfg := &userConfig{}
	short := "Deactivate a staff account and end its sessions"
	if active {
		short = "Reactivate a staff account"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRepositories(cmd, deps, func(ctx context.Context, d *Deps, repos *Repositories, cfg *config.Config) error {
				user, err := lookupUser(ctx, repos.Users, ucfg.email, ucfg.tenant)
				if err != nil {
					return err
				}
				if err := repos.Users.SetActive(ctx, user.ID, active); err != nil {
					return oops.Code("USER_UPDATE_FAILED").With("user_id", user.ID.String()).Wrap(err)
				}
				if active {
					cmd.Printf("Activated %s\n", user.Email)
					return nil
				}

				sessions, err := auth.NewSessionStoreWithLogger(repos.Sessions, repos.Users, newLogger(cfg, d))
				if err != nil {
					return err
				}
				n, err := sessions.RevokeAllForUser(ctx, user.ID)
				if err != nil {
					return err
				}
				cmd.Printf("Deactivated %s and revoked %d session(s)\n", user.Email, n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ucfg.tenant, "tenant", "", "tenant UUID (optional)")
	cmd.Flags().StringVar(&ucfg.email, "email", "", "login email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// SessionInfo is one active session as printed by user sessions.
type SessionInfo struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
}

func newUserSessionsCmd(deps *Deps) *cobra.Command {
	ucfg := &userConfig{}
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List the active sessions of a staff account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRepositories(cmd, deps, func(ctx context.Context, d *Deps, repos *Repositories, cfg *config.Config) error {
				user, err := lookupUser(ctx, repos.Users, ucfg.email, ucfg.tenant)
				if err != nil {
					return err
				}
				store, err := auth.NewSessionStoreWithLogger(repos.Sessions, repos.Users, newLogger(cfg, d))
				if err != nil {
					return err
				}
				sessions, err := store.ListActive(ctx, user.ID)
				if err != nil {
					return err
				}

				infos := make([]SessionInfo, 0, len(sessions))
				for _, s := range sessions {
					infos = append(infos, SessionInfo{
						ID:           s.ID.String(),
						CreatedAt:    s.CreatedAt.UTC(),
						LastActivity: s.LastActivityAt.UTC(),
						ExpiresAt:    s.ExpiresAt.UTC(),
						IPAddress:    s.IPAddress,
						UserAgent:    s.UserAgent,
					})
				}
				if jsonOutput {
					data, err := json.MarshalIndent(infos, "", "  ")
					if err != nil {
						return oops.Code("OUTPUT_FAILED").Wrap(err)
					}
					cmd.Println(string(data))
					return nil
				}
				cmd.Print(formatSessionTable(infos))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ucfg.tenant, "tenant", "", "tenant UUID (optional)")
	cmd.Flags().StringVar(&ucfg.email, "email", "", "login email")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output sessions as JSON")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func formatSessionTable(infos []SessionInfo) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tLAST ACTIVE\tEXPIRES\tIP\tUSER AGENT")
	for _, s := range infos {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ID,
			s.CreatedAt.Format(time.RFC3339), s.LastActivity.Format(time.RFC3339), s.ExpiresAt.Format(time.RFC3339),
			orDash(s.IPAddress), orDash(s.UserAgent))
	}
	_ = w.Flush()
	fmt.Fprintf(&buf, "%d active session(s)\n", len(infos))
	return buf.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// lookupUser finds the account for email, scoped to tenant when it is set.
func lookupUser(ctx context.Context, users auth.UserRepository, email, tenant string) (*auth.StaffUser, error) {
	var tenantID *uuid.UUID
	if tenant != "" {
		id, err := parseTenant(tenant)
		if err != nil {
			return nil, err
		}
		tenantID = &id
	}
	user, err := users.GetByEmail(ctx, email, tenantID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, oops.Code("USER_NOT_FOUND").With("email", email).Errorf("no staff account with that email")
		}
		return nil, oops.Code("USER_LOOKUP_FAILED").Wrap(err)
	}
	return user, nil
}

// newStaff describes an account to create.
type newStaff struct {
	TenantID uuid.UUID
	Email    string
	Name     string
	Role     auth.Role
	Password string
}

func createUser(ctx context.Context, users auth.UserRepository, hasher auth.PasswordHasher, in newStaff) (*auth.StaffUser, error) {
	if utf8.RuneCountInString(in.Password) < auth.MinPasswordLength {
		return nil, oops.Code(auth.CodeResetPasswordTooShort).
			With("min", auth.MinPasswordLength).
			Errorf("password must be at least %d characters", auth.MinPasswordLength)
	}
	hash, err := hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, oops.Code("USER_CREATE_FAILED").With("operation", "hash password").Wrap(err)
	}
	user, err := auth.NewStaffUser(in.TenantID, in.Email, in.Name, hash, in.Role)
	if err != nil {
		return nil, err
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func parseTenant(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, oops.Code("USER_INVALID_TENANT").With("tenant", s).Errorf("tenant must be a UUID")
	}
	return id, nil
}

// readPassword returns the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", oops.Code("PASSWORD_READ_FAILED").Errorf("no password on standard input")
	}
	return line, nil
}

// withRepositories loads config, opens storage and closes it after fn.
func withRepositories(cmd *cobra.Command, deps *Deps, fn func(ctx context.Context, d *Deps, repos *Repositories, cfg *config.Config) error) error {
	deps = deps.withDefaults()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	repos, err := deps.RepositoryFactory(ctx, cfg, newLogger(cfg, deps))
	if err != nil {
		return err
	}
	defer repos.Close()
	return fn(ctx, deps, repos, cfg)
}
