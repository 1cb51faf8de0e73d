// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MaxUsernameLength is the longest accepted username, in runes.
const MaxUsernameLength = 64

// Password validation constraints.
const (
	DefaultMinPasswordLength = 8
	MaxPasswordLength        = 128
)

// User represents a registered account.
type User struct {
	ID             ulid.ULID
	Username       string
	PasswordHash   string
	CreatedAt      time.Time
	LastLogin      *time.Time
	FailedAttempts int
	LockedUntil    *time.Time
}

// PublicUser is the caller-visible view of a User. It never carries the
// password hash.
type PublicUser struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// NewUser creates a validated User with a fresh ID.
func NewUser(username, passwordHash string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Public returns the caller-visible view of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID.String(),
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

// ValidateUsername accepts any non-empty string of printable characters
// without whitespace, up to MaxUsernameLength runes. Email addresses and
// dotted names are valid.
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code(CodeValidation).With("field", "username").Errorf("username is required")
	}
	if !utf8.ValidString(username) {
		return oops.Code(CodeValidation).With("field", "username").Errorf("username must be valid UTF-8")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return oops.Code(CodeValidation).
			With("field", "username").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if strings.IndexFunc(username, func(r rune) bool { return unicode.IsSpace(r) || !unicode.IsPrint(r) }) >= 0 {
		return oops.Code(CodeValidation).
			With("field", "username").
			Errorf("username must not contain spaces or control characters")
	}
	return nil
}

// ValidatePassword checks password strength. Length is counted in runes.
func ValidatePassword(password string, minLength int) error {
	if password == "" {
		return oops.Code(CodeValidation).With("field", "password").Errorf("password is required")
	}
	if minLength <= 0 {
		minLength = DefaultMinPasswordLength
	}
	n := utf8.RuneCountInString(password)
	if n < minLength {
		return oops.Code(CodeValidation).
			With("field", "password").
			With("min", minLength).
			Errorf("password must be at least %d characters", minLength)
	}
	if n > MaxPasswordLength {
		return oops.Code(CodeValidation).
			With("field", "password").
			With("max", MaxPasswordLength).
			Errorf("password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}

// UserRepository manages user persistence.
// Implementations must be safe for concurrent use.
type UserRepository interface {
	// Create stores a new user. The uniqueness check and insert are a single
	// atomic step; a taken username returns an error wrapping ErrDuplicateUsername.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*User, error)

	// UpdateLastLogin records a successful login.
	UpdateLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// UpdateLoginState stores the lockout counters.
	UpdateLoginState(ctx context.Context, id ulid.ULID, failedAttempts int, lockedUntil *time.Time) error

	// UpdatePassword replaces the password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
