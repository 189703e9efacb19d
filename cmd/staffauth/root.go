// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/tablewise/staffauth/internal/config"
	"github.com/tablewise/staffauth/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the staffauth CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmdWithDeps(nil)
}

func newRootCmdWithDeps(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staffauth",
		Short: "Staff authentication and session service",
		Long: `staffauth authenticates restaurant staff, issues cookie sessions,
throttles and locks out password guessing, and runs password resets.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/staffauth/config.yaml)")

	cmd.AddCommand(newServeCmd(deps))
	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newUserCmd(deps))
	cmd.AddCommand(newSeedCmd(deps))
	cmd.AddCommand(newSweepCmd(deps))
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// loadConfig layers the config file and the command's changed flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		p, err := xdg.DefaultConfigFile()
		if err != nil {
			return nil, err
		}
		path = p
	}
	//nolint:wrapcheck // config errors carry their own codes
	return config.Load(path, cmd.Flags())
}
