// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"bufio"
	"context"

	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/client"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// newAuthClient builds a client that keeps its token in the configured file.
func newAuthClient(cmd *cobra.Command) (*client.AuthClient, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := setupLogging(cmd, cfg); err != nil {
		return nil, err
	}
	c, err := client.New(cfg.Client.BaseURL,
		client.NewFileTokenStore(cfg.TokenFile()),
		client.WithTimeout(cfg.Client.Timeout),
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // client errors carry codes
	}
	return client.NewAuthClient(c), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// NewRegisterCmd creates the register subcommand.
func NewRegisterCmd() *cobra.Command {
	return newCredentialsCmd("register", "Create an account and log in", true,
		(*client.AuthClient).Register, "Registered")
}

// NewLoginCmd creates the login subcommand.
func NewLoginCmd() *cobra.Command {
	return newCredentialsCmd("login", "Log in and store the session token", false,
		(*client.AuthClient).Login, "Logged in")
}

type credentialsFunc func(a *client.AuthClient, ctx context.Context, username, password string) (*client.Session, error)

func newCredentialsCmd(name, short string, confirm bool, fn credentialsFunc, verb string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name + " [USERNAME]",
		Short: short,
		Long: short + `. The password is read from the terminal, or from the
first line of stdin with --password-stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, err := newAuthClient(cmd)
			if err != nil {
				return err
			}
			fromStdin, _ := cmd.Flags().GetBool("password-stdin")

			in := bufio.NewReader(cmd.InOrStdin())
			username, err := promptUsername(cmd, in, args)
			if err != nil {
				return err
			}
			password, err := promptPassword(cmd, in, fromStdin, confirm)
			if err != nil {
				return err
			}

			session, err := fn(ac, commandContext(cmd), username, password)
			if err != nil {
				return err
			}
			cmd.Printf("%s as %s\n", verb, session.User.Username)
			return nil
		},
	}
	config.AddClientFlags(cmd.Flags())
	cmd.Flags().Bool("password-stdin", false, "read the password from stdin")
	return cmd
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check whether the stored token is still valid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ac, err := newAuthClient(cmd)
			if err != nil {
				return err
			}
			ok, err := ac.Status(commandContext(cmd))
			if err != nil {
				return err //nolint:wrapcheck // client errors carry codes
			}
			if ok {
				cmd.Println("Authenticated")
			} else {
				cmd.Println("Not authenticated")
			}
			return nil
		},
	}
	config.AddClientFlags(cmd.Flags())
	return cmd
}

// NewWhoamiCmd creates the whoami subcommand.
func NewWhoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the account the stored token belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ac, err := newAuthClient(cmd)
			if err != nil {
				return err
			}
			user, err := ac.Me(commandContext(cmd))
			if err != nil {
				return err //nolint:wrapcheck // client errors carry codes
			}
			cmd.Printf("%s (%s)\n", user.Username, user.ID)
			return nil
		},
	}
	config.AddClientFlags(cmd.Flags())
	return cmd
}

// NewLogoutCmd creates the logout subcommand.
func NewLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored token and forget it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ac, err := newAuthClient(cmd)
			if err != nil {
				return err
			}
			if err := ac.Logout(commandContext(cmd)); err != nil {
				if client.StatusCode(err) == 0 && errutil.Code(err) != "CLIENT_REQUEST_FAILED" {
					// The local token store failed.
					return err //nolint:wrapcheck // client errors carry codes
				}
				cmd.PrintErrf("warning: server logout failed: %v\n", err)
			}
			cmd.Println("Logged out")
			return nil
		},
	}
	config.AddClientFlags(cmd.Flags())
	return cmd
}
