// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package auth provides authentication primitives for Gatehouse.
//
// # Domain Types
//
// A User is created with NewUser, which validates the username and requires a
// password hash. Plaintext passwords never reach a User; they are hashed by a
// PasswordHasher, normally through a HashPool so that CPU-bound hashing is
// bounded across concurrent requests.
//
// Only PublicUser is ever serialized. It has no password hash field.
//
// # Tokens
//
// TokenService issues HS256 JWTs carrying the user id, username, issuance and
// expiry. Verification is all-or-nothing. A RevocationList may be attached so
// that logout invalidates a token before it expires.
//
// # Services
//
// Service coordinates login, registration, status and logout on top of a
// UserRepository. It is transport-free; internal/web adapts it to HTTP.
package auth
