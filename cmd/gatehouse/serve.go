// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/memory"
	"github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/internal/web"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication API",
		Long: `Run the HTTP authentication API and, unless metrics.addr is empty,
the metrics and health probe server. Without database.url accounts are kept
in memory and lost on exit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := setupLogging(cmd, cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, cfg, logger, nil)
		},
	}
	config.AddServerFlags(cmd.Flags())
	return cmd
}

// services holds the components serve wires together.
type services struct {
	auth  *auth.Service
	db    *pgxpool.Pool
	ready observability.ReadinessChecker
}

func (s *services) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// buildServices wires storage, hashing and tokens according to cfg.
func buildServices(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services, error) {
	key, err := signingKey(cfg, logger)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenService(auth.TokenServiceConfig{
		SigningKey: key,
		TTL:        cfg.Auth.Token.TTL,
		Issuer:     cfg.Auth.Token.Issuer,
	})
	if err != nil {
		return nil, oops.With("operation", "create token service").Wrap(err)
	}

	hasher, err := auth.NewArgon2idHasher(cfg.Argon2Params())
	if err != nil {
		return nil, oops.With("operation", "create password hasher").Wrap(err)
	}
	hashes, err := auth.NewHashPool(hasher, cfg.Auth.HashWorkers)
	if err != nil {
		return nil, oops.With("operation", "create hash pool").Wrap(err)
	}

	svcs := &services{}
	var (
		users       auth.UserRepository
		revocations auth.RevocationList
	)
	if cfg.Database.URL == "" {
		logger.Warn("database.url is empty; accounts are kept in memory and lost on exit")
		users = memory.NewUserRepository()
		if cfg.Auth.Revocation {
			revocations = memory.NewRevocationList()
		}
	} else {
		pool, err := store.Connect(ctx, cfg.Database.URL, store.ConnectOptions{Logger: logger})
		if err != nil {
			return nil, err //nolint:wrapcheck // store errors carry codes
		}
		svcs.db = pool
		svcs.ready = func(ctx context.Context) error {
			return pool.Ping(ctx) //nolint:wrapcheck // readiness only reports
		}
		users = postgres.NewUserRepository(pool)
		if cfg.Auth.Revocation {
			revocations = postgres.NewRevocationRepository(pool)
		}
	}

	svcs.auth, err = auth.NewServiceWithLogger(users, hashes, tokens, auth.ServiceConfig{
		MinPasswordLength: cfg.Auth.PasswordMinLength,
		Lockout:           cfg.LockoutPolicy(),
		Revocations:       revocations,
	}, logger)
	if err != nil {
		svcs.Close()
		return nil, oops.With("operation", "create auth service").Wrap(err)
	}
	return svcs, nil
}

// signingKey returns the configured secret or, when none is set, a random
// key that invalidates every token on restart.
func signingKey(cfg *config.Config, logger *slog.Logger) ([]byte, error) {
	if cfg.Auth.Token.Secret != "" {
		return []byte(cfg.Auth.Token.Secret), nil
	}
	logger.Warn("auth.token.secret is empty; using a random signing key, tokens will not survive a restart")
	//nolint:wrapcheck // auth errors carry codes
	return auth.GenerateSigningKey()
}

// startedFunc is told the listening addresses once serve is up. metricsAddr
// is empty when the observability server is disabled.
type startedFunc func(apiAddr, metricsAddr string)

// runServe serves until ctx is cancelled or a server fails.
func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, started startedFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svcs, err := buildServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svcs.Close()

	opts := []web.Option{web.WithLogger(logger)}

	var obsServer *observability.Server
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, svcs.ready, logger)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, logger, "observability")
		opts = append(opts, web.WithMetrics(obsServer.Metrics()))
	}

	apiServer := web.NewServer(cfg.HTTP.Addr, web.NewHandler(svcs.auth, opts...).Routes(), logger)
	apiErrCh, err := apiServer.Start()
	if err != nil {
		if obsServer != nil {
			stopServer(logger, "observability", obsServer)
		}
		return oops.With("operation", "start api server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, logger, "api")

	metricsAddr := ""
	if obsServer != nil {
		metricsAddr = obsServer.Addr()
	}
	cmd.Printf("Gatehouse listening on %s\n", apiServer.Addr())
	logger.Info("gatehouse ready",
		"api_addr", apiServer.Addr(),
		"metrics_addr", metricsAddr,
		"persistent", svcs.db != nil,
	)
	if started != nil {
		started(apiServer.Addr(), metricsAddr)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	stopServer(logger, "api", apiServer)
	if obsServer != nil {
		stopServer(logger, "observability", obsServer)
	}

	logger.Info("shutdown complete")
	return nil
}

type stopper interface {
	Stop(ctx context.Context) error
}

func stopServer(logger *slog.Logger, name string, s stopper) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), web.ShutdownTimeout)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when the channel closes or ctx is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, logger *slog.Logger, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
