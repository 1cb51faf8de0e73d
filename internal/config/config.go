// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package config loads gatehouse configuration. Sources are layered, later
// ones winning: built-in defaults, a YAML file, GATEHOUSE_* environment
// variables, then command-line flags.
package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/internal/xdg"
)

// EnvPrefix prefixes every environment variable read by Load. Nested keys are
// separated by a double underscore: GATEHOUSE_AUTH__TOKEN__SECRET.
const EnvPrefix = "GATEHOUSE_"

// Config is the full gatehouse configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http" yaml:"http"`
	Metrics  MetricsConfig  `koanf:"metrics" yaml:"metrics"`
	Log      LogConfig      `koanf:"log" yaml:"log"`
	Database DatabaseConfig `koanf:"database" yaml:"database"`
	Auth     AuthConfig     `koanf:"auth" yaml:"auth"`
	Client   ClientConfig   `koanf:"client" yaml:"client"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format"`
	Level  string `koanf:"level" yaml:"level"`
}

// DatabaseConfig configures PostgreSQL. An empty URL selects the in-memory
// store, which loses all accounts on restart.
type DatabaseConfig struct {
	URL string `koanf:"url" yaml:"url"`
}

// AuthConfig holds the authentication policy.
type AuthConfig struct {
	Token             TokenConfig   `koanf:"token" yaml:"token"`
	PasswordMinLength int           `koanf:"password_min_length" yaml:"password_min_length"`
	HashWorkers       int           `koanf:"hash_workers" yaml:"hash_workers"`
	Argon2            Argon2Config  `koanf:"argon2" yaml:"argon2"`
	Lockout           LockoutConfig `koanf:"lockout" yaml:"lockout"`
	Revocation        bool          `koanf:"revocation" yaml:"revocation"`
}

// TokenConfig configures token signing. An empty Secret means a random key
// per process.
type TokenConfig struct {
	Secret string        `koanf:"secret" yaml:"secret"`
	TTL    time.Duration `koanf:"ttl" yaml:"ttl"`
	Issuer string        `koanf:"issuer" yaml:"issuer"`
}

// Argon2Config holds the argon2id cost parameters.
type Argon2Config struct {
	Time    uint32 `koanf:"time" yaml:"time"`
	Memory  uint32 `koanf:"memory" yaml:"memory"`
	Threads uint8  `koanf:"threads" yaml:"threads"`
}

// LockoutConfig configures account lockout. Threshold 0 disables it.
type LockoutConfig struct {
	Threshold int           `koanf:"threshold" yaml:"threshold"`
	Duration  time.Duration `koanf:"duration" yaml:"duration"`
}

// ClientConfig configures the CLI client commands.
type ClientConfig struct {
	BaseURL   string        `koanf:"base_url" yaml:"base_url"`
	TokenFile string        `koanf:"token_file" yaml:"token_file"`
	Timeout   time.Duration `koanf:"timeout" yaml:"timeout"`
}

func defaults() map[string]any {
	argon := auth.DefaultArgon2Params()
	return map[string]any{
		"http.addr":                ":8080",
		"metrics.addr":             "127.0.0.1:9100",
		"log.format":               "json",
		"log.level":                "info",
		"database.url":             "",
		"auth.token.secret":        "",
		"auth.token.ttl":           auth.DefaultTokenTTL.String(),
		"auth.token.issuer":        auth.DefaultTokenIssuer,
		"auth.password_min_length": auth.DefaultMinPasswordLength,
		"auth.hash_workers":        0,
		"auth.argon2.time":         argon.Time,
		"auth.argon2.memory":       argon.Memory,
		"auth.argon2.threads":      argon.Threads,
		"auth.lockout.threshold":   auth.DefaultLockoutThreshold,
		"auth.lockout.duration":    auth.DefaultLockoutDuration.String(),
		"auth.revocation":          true,
		"client.base_url":          "http://127.0.0.1:8080",
		"client.token_file":        "",
		"client.timeout":           "30s",
	}
}

// LoadOptions select the sources Load reads.
type LoadOptions struct {
	// File is the YAML file to read. When empty, xdg.ConfigFile() is read if
	// it exists. A named file that does not exist is an error.
	File string
	// Flags are applied last. Only flags the user changed override other sources.
	Flags *pflag.FlagSet
}

// Load reads, merges and validates the configuration.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	path, required := opts.File, true
	if path == "" {
		path, required = xdg.ConfigFile(), false
	}
	if err := loadFile(k, path, required); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, flagKey(opts.Flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_LOAD_FAILED").With("file", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("file", path).Wrap(err)
	}
	return nil
}

// envKey maps GATEHOUSE_AUTH__TOKEN__TTL to auth.token.ttl.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate rejects configurations the server or client cannot run with.
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
	}

	switch {
	case c.HTTP.Addr == "":
		return invalid("http.addr", "http.addr is required")
	case c.Log.Format != "json" && c.Log.Format != "text":
		return invalid("log.format", "log.format must be json or text, got %q", c.Log.Format)
	case c.Auth.Token.TTL <= 0:
		return invalid("auth.token.ttl", "auth.token.ttl must be positive")
	case c.Auth.Token.Secret != "" && len(c.Auth.Token.Secret) < auth.MinSigningKeyBytes:
		return invalid("auth.token.secret", "auth.token.secret must be at least %d bytes", auth.MinSigningKeyBytes)
	case c.Auth.PasswordMinLength < 1 || c.Auth.PasswordMinLength > auth.MaxPasswordLength:
		return invalid("auth.password_min_length", "auth.password_min_length must be between 1 and %d", auth.MaxPasswordLength)
	case c.Auth.HashWorkers < 0:
		return invalid("auth.hash_workers", "auth.hash_workers must not be negative")
	case c.Auth.Lockout.Threshold < 0 || c.Auth.Lockout.Duration < 0:
		return invalid("auth.lockout", "auth.lockout threshold and duration must not be negative")
	case c.Client.Timeout <= 0:
		return invalid("client.timeout", "client.timeout must be positive")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.With("key", "log.level").Wrap(err)
	}
	if err := c.Argon2Params().Validate(); err != nil {
		return oops.With("key", "auth.argon2").Wrap(err)
	}
	return nil
}

// Argon2Params converts the argon2 section to hasher parameters.
func (c *Config) Argon2Params() auth.Argon2Params {
	p := auth.DefaultArgon2Params()
	p.Time = c.Auth.Argon2.Time
	p.Memory = c.Auth.Argon2.Memory
	p.Threads = c.Auth.Argon2.Threads
	return p
}

// LockoutPolicy converts the lockout section.
func (c *Config) LockoutPolicy() auth.LockoutPolicy {
	return auth.LockoutPolicy{Threshold: c.Auth.Lockout.Threshold, Duration: c.Auth.Lockout.Duration}
}

// TokenFile returns the configured token file or the XDG default.
func (c *Config) TokenFile() string {
	if c.Client.TokenFile != "" {
		return c.Client.TokenFile
	}
	return xdg.TokenFile()
}

const redacted = "[redacted]"

// YAML renders c as a config file with secrets masked.
func (c *Config) YAML() ([]byte, error) {
	out := *c
	if out.Auth.Token.Secret != "" {
		out.Auth.Token.Secret = redacted
	}
	if out.Database.URL != "" {
		if u, err := url.Parse(out.Database.URL); err == nil {
			out.Database.URL = u.Redacted()
		} else {
			out.Database.URL = redacted
		}
	}
	data, err := yamlv3.Marshal(&out)
	if err != nil {
		return nil, oops.Code("CONFIG_ENCODE_FAILED").Wrap(err)
	}
	return data, nil
}
