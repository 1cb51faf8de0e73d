// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/store"
)

// revocationPruner deletes expired revocation entries.
type revocationPruner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// NewPruneCmd creates the prune subcommand.
func NewPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete expired token revocations",
		Long: `Delete revocation entries for tokens that have expired anyway.
Run it periodically, for example from cron, when auth.revocation is on.`,
		Args: cobra.NoArgs,
		RunE: runPrune,
	}
	cmd.Flags().String("database-url", "", "PostgreSQL URL")
	return cmd
}

func runPrune(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := setupLogging(cmd, cfg)
	if err != nil {
		return err
	}
	if err := requireDatabase(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := store.Connect(ctx, cfg.Database.URL, store.ConnectOptions{Logger: logger})
	if err != nil {
		return err //nolint:wrapcheck // store errors carry codes
	}
	defer pool.Close()

	return prune(ctx, cmd, postgres.NewRevocationRepository(pool))
}

func prune(ctx context.Context, cmd *cobra.Command, revocations revocationPruner) error {
	n, err := revocations.DeleteExpired(ctx)
	if err != nil {
		return err //nolint:wrapcheck // repository errors carry codes
	}
	cmd.Printf("Pruned %d expired revocation(s)\n", n)
	return nil
}
