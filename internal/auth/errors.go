// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateUsername is returned by UserRepository.Create when the
// username (compared case-insensitively) is already registered.
var ErrDuplicateUsername = errors.New("username already exists")

// ErrRevoked is returned when a token has been explicitly revoked.
var ErrRevoked = errors.New("token revoked")

// Error codes attached to oops errors returned by this package.
// The HTTP layer maps them onto status codes.
const (
	CodeValidation         = "AUTH_VALIDATION"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidToken       = "AUTH_INVALID_TOKEN"
	CodeUnauthorized       = "AUTH_UNAUTHORIZED"
	CodeAccountLocked      = "AUTH_ACCOUNT_LOCKED"
	CodeUsernameTaken      = "AUTH_USERNAME_TAKEN"
)
