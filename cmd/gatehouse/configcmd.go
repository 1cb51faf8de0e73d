// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/config"
)

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the config file, GATEHOUSE_*
environment variables and flags have been merged. The token secret and any
database password are masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return printConfig(cmd, cfg)
		},
	}
	config.AddServerFlags(cmd.Flags())
	config.AddClientFlags(cmd.Flags())
	return cmd
}

func printConfig(cmd *cobra.Command, cfg *config.Config) error {
	data, err := cfg.YAML()
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}
	if _, err := cmd.OutOrStdout().Write(data); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}
