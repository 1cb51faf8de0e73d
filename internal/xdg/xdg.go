// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package xdg resolves gatehouse's XDG Base Directory paths.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "gatehouse"

// ConfigDir returns $XDG_CONFIG_HOME/gatehouse, falling back to ~/.config.
func ConfigDir() string {
	return dir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns $XDG_STATE_HOME/gatehouse, falling back to ~/.local/state.
func StateDir() string {
	return dir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

// ConfigFile is the default configuration file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// TokenFile is where the CLI keeps the bearer token between invocations.
func TokenFile() string {
	return filepath.Join(StateDir(), "token")
}

func dir(env, fallback string) string {
	base := os.Getenv(env)
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), fallback)
	}
	return filepath.Join(base, appName)
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("XDG_MKDIR_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
