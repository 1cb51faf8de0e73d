// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/logging"
)

const serviceName = "gatehouse"

// NewRootCmd creates the root command for the gatehouse CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gatehouse",
		Short: "Gatehouse - username/password authentication service",
		Long: `Gatehouse registers accounts, verifies passwords and issues signed
bearer tokens. The same binary runs the server and acts as its client.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default: XDG_CONFIG_HOME/gatehouse/config.yaml)")
	config.AddLoggingFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPruneCmd())
	cmd.AddCommand(NewRegisterCmd())
	cmd.AddCommand(NewLoginCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewLogoutCmd())
	cmd.AddCommand(NewWhoamiCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig reads configuration for cmd, honouring --config and any
// configuration flags cmd defines.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, err := cmd.Flags().GetString("config")
	if err != nil {
		file = ""
	}
	//nolint:wrapcheck // config errors already carry codes
	return config.Load(config.LoadOptions{File: file, Flags: cmd.Flags()})
}

// setupLogging installs the default logger described by cfg. Logs go to the
// command's error stream so client output stays clean.
func setupLogging(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	//nolint:wrapcheck // logging errors already carry codes
	return logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
}
