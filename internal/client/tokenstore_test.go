// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gatehouse/gatehouse/pkg/errutil"
)

func TestMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTokenStore("")

	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, s.SetToken(ctx, "one"))
	tok, err = s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "one", tok)

	require.NoError(t, s.ClearToken(ctx))
	tok, err = s.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestFileTokenStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "token")
	s := NewFileTokenStore(path)

	tok, err := s.Token(ctx)
	require.NoError(t, err, "missing file means no token")
	assert.Empty(t, tok)

	require.NoError(t, s.SetToken(ctx, "secret-token"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var stored map[string]string
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, "secret-token", stored[TokenKey])

	// A fresh store sees the persisted value.
	tok, err = NewFileTokenStore(path).Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", tok)

	require.NoError(t, s.ClearToken(ctx))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.ClearToken(ctx), "clearing twice is fine")
}

func TestFileTokenStore_KeepsOtherKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte(`{"other":"value"}`), 0o600))

	s := NewFileTokenStore(path)
	require.NoError(t, s.SetToken(ctx, "tok"))
	require.NoError(t, s.ClearToken(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"other":"value"}`, string(data))
}

func TestFileTokenStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := NewFileTokenStore(path).Token(context.Background())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "TOKEN_STORE_READ_FAILED")
}

func TestFileTokenStore_DefaultPath(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	s := NewFileTokenStore("")
	assert.Equal(t, filepath.Join(state, "gatehouse", "token"), s.Path())
}

func TestFileTokenStore_ConcurrentWriters(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "token")
	s := NewFileTokenStore(path)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.SetToken(ctx, fmt.Sprintf("token-%d", i)))
		}(i)
	}
	wg.Wait()

	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^token-[0-7]$`, tok)
}
