// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", ready, nil)
	_, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx) //nolint:errcheck // test cleanup
	})
	return server
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec,noctx // test-only request to local server
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, nil)

	server.Metrics().ObserveRequest("/api/auth/login", http.MethodPost, http.StatusOK, 20*time.Millisecond)
	server.Metrics().RecordAuth("login", OutcomeSuccess)

	status, body := get(t, "http://"+server.Addr()+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, "gatehouse_http_requests_total")
	assert.Contains(t, body, "gatehouse_http_request_duration_seconds")
	assert.Contains(t, body, `gatehouse_auth_attempts_total{operation="login",outcome="success"} 1`)
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveRequest("/api/auth/status", http.MethodGet, http.StatusOK, time.Millisecond)
	m.ObserveRequest("/api/auth/status", http.MethodGet, http.StatusOK, time.Millisecond)
	m.ObserveRequest("/api/auth/login", http.MethodPost, http.StatusUnauthorized, time.Millisecond)
	m.RecordAuth("login", OutcomeRejected)

	assert.InDelta(t, 2, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/auth/status", "GET", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/auth/login", "POST", "401")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("login", OutcomeRejected)), 0)
}

func TestServer_Liveness(t *testing.T) {
	server := startServer(t, func(context.Context) error { return errors.New("db down") })

	status, body := get(t, "http://"+server.Addr()+"/healthz/liveness")
	assert.Equal(t, http.StatusOK, status, "liveness ignores readiness")
	assert.Equal(t, "ok", strings.TrimSpace(body))
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		ready      ReadinessChecker
		wantStatus int
		wantBody   string
	}{
		{name: "nil checker", wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "ready", ready: func(context.Context) error { return nil }, wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "not ready", ready: func(context.Context) error { return errors.New("db down") }, wantStatus: http.StatusServiceUnavailable, wantBody: "not ready"},
		{
			name: "checker gets a deadline",
			ready: func(ctx context.Context) error {
				if _, ok := ctx.Deadline(); !ok {
					return errors.New("no deadline")
				}
				return nil
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, tt.ready)
			status, body := get(t, "http://"+server.Addr()+"/healthz/readiness")
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(body))
		})
	}
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)
	_, err := server.Start()
	require.Error(t, err)
}

func TestServer_StopWithoutStart(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, nil)
	assert.Empty(t, server.Addr())
	require.NoError(t, server.Stop(context.Background()))
}

func TestServer_ListenFailure(t *testing.T) {
	first := startServer(t, nil)

	second := NewServer(first.Addr(), nil, nil)
	_, err := second.Start()
	require.Error(t, err)

	// A failed start can be retried.
	second.addr = "127.0.0.1:0"
	_, err = second.Start()
	require.NoError(t, err)
	require.NoError(t, second.Stop(context.Background()))
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, nil)
	errCh, err := server.Start()
	require.NoError(t, err)
	defer func() { _ = server.Stop(context.Background()) }() //nolint:errcheck // test cleanup

	require.NoError(t, server.listener.Close())

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for serve error")
	}
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	require.NoError(t, server.Stop(context.Background()))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error channel to close")
	}
}
