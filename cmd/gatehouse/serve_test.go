// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/config"
)

// testConfig returns an in-memory configuration with cheap hashing.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	isolate(t)
	cfg, err := config.Load(config.LoadOptions{})
	require.NoError(t, err)
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Metrics.Addr = "127.0.0.1:0"
	cfg.Auth.Argon2 = config.Argon2Config{Time: 1, Memory: 1024, Threads: 1}
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestBuildServices_InMemory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Token.Secret = strings.Repeat("k", 32)

	svcs, err := buildServices(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer svcs.Close()

	assert.Nil(t, svcs.db)
	assert.Nil(t, svcs.ready, "memory store is always ready")

	session, err := svcs.auth.Register(context.Background(), "alice", "password123")
	require.NoError(t, err)
	claims, err := svcs.auth.Authenticate(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func TestBuildServices_ConfiguredSecretIsStable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Token.Secret = strings.Repeat("s", 32)

	first, err := buildServices(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	session, err := first.auth.Register(context.Background(), "alice", "password123")
	require.NoError(t, err)

	// A second process with the same secret accepts the token.
	second, err := buildServices(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	_, err = second.auth.Authenticate(context.Background(), session.Token)
	assert.NoError(t, err)
}

func TestSigningKey_RandomWhenUnset(t *testing.T) {
	cfg := testConfig(t)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	a, err := signingKey(cfg, logger)
	require.NoError(t, err)
	b, err := signingKey(cfg, logger)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.Contains(t, logs.String(), "random signing key")
}

func TestRunServe_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type addrs struct{ api, metrics string }
	started := make(chan addrs, 1)
	done := make(chan error, 1)

	cmd := NewServeCmd()
	cmd.SetOut(io.Discard)
	go func() {
		done <- runServe(ctx, cmd, cfg, discardLogger(), func(api, metrics string) {
			started <- addrs{api, metrics}
		})
	}()

	var a addrs
	select {
	case a = <-started:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not start")
	}
	require.NotEmpty(t, a.metrics)

	resp, err := http.Post("http://"+a.api+"/api/auth/register", "application/json",
		strings.NewReader(`{"username":"alice","password":"password123"}`))
	require.NoError(t, err)
	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, session.Token)

	resp, err = http.Get("http://" + a.metrics + "/healthz/readiness")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + a.metrics + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `gatehouse_auth_attempts_total{operation="register",outcome="success"} 1`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func TestRunServe_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Addr = ""
	ctx, cancel := context.WithCancel(context.Background())

	cmd := NewServeCmd()
	cmd.SetOut(io.Discard)
	gotMetrics := "unset"
	err := runServe(ctx, cmd, cfg, discardLogger(), func(_, metrics string) {
		gotMetrics = metrics
		cancel()
	})
	require.NoError(t, err)
	assert.Empty(t, gotMetrics)
}

func TestRunServe_ListenFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Addr = "256.0.0.1:0"

	cmd := NewServeCmd()
	cmd.SetOut(io.Discard)
	err := runServe(context.Background(), cmd, cfg, discardLogger(), nil)
	require.Error(t, err)
}
