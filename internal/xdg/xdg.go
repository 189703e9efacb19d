// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

// Package xdg resolves XDG Base Directory paths for staffauth.
package xdg

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "staffauth"

// ConfigFileName is the file looked up in ConfigDir when no --config is given.
const ConfigFileName = "config.yaml"

// ConfigDir returns $XDG_CONFIG_HOME/staffauth, falling back to ~/.config/staffauth.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns the path of the default config file when it
// exists, or "" when it does not.
func DefaultConfigFile() (string, error) {
	path := filepath.Join(ConfigDir(), ConfigFileName)
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return path, nil
	case errors.Is(err, os.ErrNotExist):
		return "", nil
	default:
		return "", oops.Code("CONFIG_STAT_FAILED").With("path", path).Wrap(err)
	}
}
