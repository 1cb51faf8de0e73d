// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package config

import (
	"github.com/knadh/koanf/providers/posflag"
	"github.com/spf13/pflag"
)

// flagKeys maps flag names to configuration keys. Flags not listed here are
// not configuration.
var flagKeys = map[string]string{
	"http-addr":    "http.addr",
	"metrics-addr": "metrics.addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"database-url": "database.url",
	"server":       "client.base_url",
	"token-file":   "client.token_file",
	"timeout":      "client.timeout",
	"password-min": "auth.password_min_length",
	"hash-workers": "auth.hash_workers",
}

func flagKey(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

// AddLoggingFlags registers flags shared by every command.
func AddLoggingFlags(fs *pflag.FlagSet) {
	fs.String("log-format", "", "log format: json or text")
	fs.String("log-level", "", "log level: debug, info, warn or error")
}

// AddServerFlags registers flags for commands that run server-side.
func AddServerFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", "", "API listen address")
	fs.String("metrics-addr", "", "metrics and health listen address (empty disables)")
	fs.String("database-url", "", "PostgreSQL URL (empty uses the in-memory store)")
	fs.Int("password-min", 0, "minimum password length")
	fs.Int("hash-workers", 0, "concurrent password hash computations")
}

// AddClientFlags registers flags for commands that talk to a server.
func AddClientFlags(fs *pflag.FlagSet) {
	fs.String("server", "", "gatehouse base URL")
	fs.String("token-file", "", "file holding the bearer token")
	fs.Duration("timeout", 0, "request timeout")
}
