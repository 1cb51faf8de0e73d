// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package client sends requests to a gatehouse server with the stored
// session token attached.
package client

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
)

// DefaultTimeout bounds a whole request when no HTTP client is supplied.
const DefaultTimeout = 30 * time.Second

// Client sends authorized requests. Responses are returned untouched for
// every status code; interpreting them is the caller's job.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenStore
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the overall request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// New creates a Client for baseURL that reads its token from tokens.
func New(baseURL string, tokens TokenStore, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, oops.Code("CLIENT_CONFIG_INVALID").Errorf("token store is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, oops.Code("CLIENT_CONFIG_INVALID").With("base_url", baseURL).Wrap(err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, oops.Code("CLIENT_CONFIG_INVALID").
			With("base_url", baseURL).
			Errorf("base URL must be http or https")
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Tokens returns the store the client reads its token from.
func (c *Client) Tokens() TokenStore {
	return c.tokens
}

// Do sends a request to path, relative to the base URL.
//
// Headers are merged in three layers: computed defaults (Accept and, for
// JSON bodies, Content-Type), then header, then Authorization. Authorization
// is always computed from the token store; a caller-supplied value is
// dropped, and no Authorization header is sent when there is no token.
//
// A RawBody never gets a computed Content-Type. Content-Type is sent for it
// only when the caller passes one, either to RawBody or in header; pass ""
// to send the payload with no Content-Type at all. Multipart uploads need the
// boundary from multipart.Writer.FormDataContentType, which only the caller
// knows.
func (c *Client) Do(ctx context.Context, method, path string, body Body, header http.Header) (*http.Response, error) {
	req, err := c.NewRequest(ctx, method, path, body, header)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, oops.Code("CLIENT_REQUEST_FAILED").
			With("method", method).
			With("path", path).
			Wrap(err)
	}
	return resp, nil
}

// NewRequest builds the request Do would send.
func (c *Client) NewRequest(ctx context.Context, method, path string, body Body, header http.Header) (*http.Request, error) {
	target := c.resolve(path)

	var (
		payload     io.Reader
		contentType string
	)
	if body != nil {
		r, ct, err := body.open()
		if err != nil {
			return nil, err
		}
		payload, contentType = r, ct
	}

	req, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, oops.Code("CLIENT_REQUEST_FAILED").
			With("method", method).
			With("url", target).
			Wrap(err)
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, values := range header {
		if http.CanonicalHeaderKey(key) == "Authorization" {
			continue
		}
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, oops.Code("CLIENT_TOKEN_UNAVAILABLE").Wrap(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) resolve(path string) string {
	base := strings.TrimSuffix(c.baseURL.String(), "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
