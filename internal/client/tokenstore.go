// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package client

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/xdg"
)

// TokenKey is the key the session token is stored under.
const TokenKey = "gatehouse.token"

// TokenStore holds the session token between requests.
// Implementations must be safe for concurrent use.
type TokenStore interface {
	// Token returns the stored token, or "" when there is none.
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// MemoryTokenStore keeps the token in memory.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore returns a store holding token, which may be "".
func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

// Token implements TokenStore.
func (m *MemoryTokenStore) Token(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

// SetToken implements TokenStore.
func (m *MemoryTokenStore) SetToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// ClearToken implements TokenStore.
func (m *MemoryTokenStore) ClearToken(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

// FileTokenStore persists the token in a JSON file readable only by its owner.
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

// NewFileTokenStore returns a store backed by path. An empty path selects
// the default under the XDG state directory.
func NewFileTokenStore(path string) *FileTokenStore {
	if path == "" {
		path = xdg.TokenFile()
	}
	return &FileTokenStore{path: path}
}

// Path returns the file the token is stored in.
func (f *FileTokenStore) Path() string {
	return f.path
}

// Token implements TokenStore. A missing file means no token.
func (f *FileTokenStore) Token(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return "", err
	}
	return values[TokenKey], nil
}

// SetToken implements TokenStore.
func (f *FileTokenStore) SetToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	values[TokenKey] = token
	return f.write(values)
}

// ClearToken implements TokenStore. Clearing an absent token is not an error.
func (f *FileTokenStore) ClearToken(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := values[TokenKey]; !ok {
		return nil
	}
	delete(values, TokenKey)
	if len(values) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return oops.Code("TOKEN_STORE_WRITE_FAILED").With("path", f.path).Wrap(err)
		}
		return nil
	}
	return f.write(values)
}

func (f *FileTokenStore) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, oops.Code("TOKEN_STORE_READ_FAILED").With("path", f.path).Wrap(err)
	}
	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, oops.Code("TOKEN_STORE_READ_FAILED").
			With("path", f.path).
			Wrapf(err, "token file is corrupt")
	}
	return values, nil
}

// write replaces the file atomically so a crash never leaves half a token.
func (f *FileTokenStore) write(values map[string]string) error {
	dir := filepath.Dir(f.path)
	if err := xdg.EnsureDir(dir); err != nil {
		return err
	}
	data, err := json.Marshal(values)
	if err != nil {
		return oops.Code("TOKEN_STORE_WRITE_FAILED").With("path", f.path).Wrap(err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return oops.Code("TOKEN_STORE_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return oops.Code("TOKEN_STORE_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return oops.Code("TOKEN_STORE_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return oops.Code("TOKEN_STORE_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return oops.Code("TOKEN_STORE_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	return nil
}
