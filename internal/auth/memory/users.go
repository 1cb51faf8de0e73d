// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package memory provides in-process implementations of the auth repositories.
// They are used when no database is configured and in tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// UserRepository implements auth.UserRepository in memory.
type UserRepository struct {
	mu         sync.RWMutex
	byID       map[ulid.ULID]*auth.User
	byUsername map[string]ulid.ULID
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:       make(map[ulid.ULID]*auth.User),
		byUsername: make(map[string]ulid.ULID),
	}
}

var _ auth.UserRepository = (*UserRepository)(nil)

func usernameKey(username string) string {
	return strings.ToLower(username)
}

// Create stores a new user. The uniqueness check and the insert happen under
// one write lock.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	if user == nil {
		return oops.Code("USER_CREATE_FAILED").Errorf("user cannot be nil")
	}
	key := usernameKey(user.Username)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byUsername[key]; taken {
		return oops.Code("USER_CREATE_FAILED").
			With("username", user.Username).
			Wrap(auth.ErrDuplicateUsername)
	}
	if _, exists := r.byID[user.ID]; exists {
		return oops.Code("USER_CREATE_FAILED").
			With("id", user.ID.String()).
			Errorf("user id already exists")
	}

	stored := cloneUser(user)
	r.byID[user.ID] = stored
	r.byUsername[key] = user.ID
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return cloneUser(user), nil
}

// GetByUsername retrieves a user by username (case-insensitive).
func (r *UserRepository) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[usernameKey(username)]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	return cloneUser(r.byID[id]), nil
}

// UpdateLastLogin records a successful login.
func (r *UserRepository) UpdateLastLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	return r.update(id, func(u *auth.User) {
		t := at.UTC()
		u.LastLogin = &t
	})
}

// UpdateLoginState stores the lockout counters.
func (r *UserRepository) UpdateLoginState(_ context.Context, id ulid.ULID, failedAttempts int, lockedUntil *time.Time) error {
	return r.update(id, func(u *auth.User) {
		u.FailedAttempts = failedAttempts
		u.LockedUntil = copyTime(lockedUntil)
	})
}

// UpdatePassword replaces the password hash.
func (r *UserRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	if passwordHash == "" {
		return oops.Code("USER_UPDATE_FAILED").Errorf("password hash cannot be empty")
	}
	return r.update(id, func(u *auth.User) {
		u.PasswordHash = passwordHash
	})
}

// Len returns the number of stored users.
func (r *UserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *UserRepository) update(id ulid.ULID, fn func(*auth.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	fn(user)
	return nil
}

func cloneUser(u *auth.User) *auth.User {
	c := *u
	c.LastLogin = copyTime(u.LastLogin)
	c.LockedUntil = copyTime(u.LockedUntil)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
