// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/samber/oops"
)

// API paths of the auth endpoints.
const (
	PathLogin    = "/api/auth/login"
	PathRegister = "/api/auth/register"
	PathStatus   = "/api/auth/status"
	PathLogout   = "/api/auth/logout"
	PathMe       = "/api/auth/me"
)

// CodeServerError is used when an error response carries no code of its own.
const CodeServerError = "CLIENT_SERVER_ERROR"

// User is the account view returned by the server.
type User struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Session is returned by Login and Register.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// AuthClient drives the login flow and is the only writer of the token store.
type AuthClient struct {
	c *Client
}

// NewAuthClient wraps c.
func NewAuthClient(c *Client) *AuthClient {
	return &AuthClient{c: c}
}

// Login authenticates and stores the returned token.
func (a *AuthClient) Login(ctx context.Context, username, password string) (*Session, error) {
	return a.credentials(ctx, PathLogin, username, password)
}

// Register creates an account and stores the returned token.
func (a *AuthClient) Register(ctx context.Context, username, password string) (*Session, error) {
	return a.credentials(ctx, PathRegister, username, password)
}

func (a *AuthClient) credentials(ctx context.Context, path, username, password string) (*Session, error) {
	body := JSONBody(map[string]string{"username": username, "password": password})
	var session Session
	if err := a.call(ctx, http.MethodPost, path, body, &session); err != nil {
		return nil, err
	}
	if session.Token == "" {
		return nil, oops.Code(CodeServerError).With("path", path).Errorf("server returned no token")
	}
	if err := a.c.tokens.SetToken(ctx, session.Token); err != nil {
		return nil, oops.Code("CLIENT_TOKEN_SAVE_FAILED").Wrap(err)
	}
	return &session, nil
}

// Status reports whether the stored token is accepted by the server.
func (a *AuthClient) Status(ctx context.Context) (bool, error) {
	var out struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := a.call(ctx, http.MethodGet, PathStatus, nil, &out); err != nil {
		return false, err
	}
	return out.Authenticated, nil
}

// Me returns the account the stored token belongs to.
func (a *AuthClient) Me(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := a.call(ctx, http.MethodGet, PathMe, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Logout asks the server to revoke the token, then clears the local copy
// whatever the server said. Without a stored token nothing is sent.
func (a *AuthClient) Logout(ctx context.Context) error {
	token, err := a.c.tokens.Token(ctx)
	if err != nil {
		return oops.Code("CLIENT_TOKEN_UNAVAILABLE").Wrap(err)
	}

	var callErr error
	if token != "" {
		callErr = a.call(ctx, http.MethodPost, PathLogout, nil, nil)
	}
	if err := a.c.tokens.ClearToken(ctx); err != nil {
		return oops.Code("CLIENT_TOKEN_SAVE_FAILED").Wrap(err)
	}
	return callErr
}

// call sends a request and decodes a 200 response into out. Any other status
// becomes an error carrying the server's code and message.
func (a *AuthClient) call(ctx context.Context, method, path string, body Body, out any) error {
	resp, err := a.c.Do(ctx, method, path, body, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return oops.Code(CodeServerError).
			With("path", path).
			With("status", resp.StatusCode).
			Wrapf(err, "decode response")
	}
	return nil
}

func responseError(resp *http.Response) error {
	var eb errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &eb); err != nil || eb.Error == "" {
		eb.Error = http.StatusText(resp.StatusCode)
	}
	if eb.Code == "" {
		eb.Code = CodeServerError
	}
	builder := oops.Code(eb.Code).
		With("status", resp.StatusCode).
		With("path", resp.Request.URL.Path)
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		builder = builder.With("retry_after", ra)
	}
	return builder.Errorf("%s", eb.Error)
}

// StatusCode returns the HTTP status attached to an error from AuthClient,
// or 0 when the error did not come from a server response.
func StatusCode(err error) int {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 0
	}
	status, _ := oopsErr.Context()["status"].(int)
	return status
}
