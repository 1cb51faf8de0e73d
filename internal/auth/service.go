// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
)

// ServiceConfig holds the policy knobs of a Service.
type ServiceConfig struct {
	// MinPasswordLength defaults to DefaultMinPasswordLength.
	MinPasswordLength int
	Lockout           LockoutPolicy
	// Revocations is optional. When nil, logout has no server-side effect.
	Revocations RevocationList
	// Now overrides the clock; nil uses time.Now.
	Now func() time.Time
}

// Session is the result of a successful login or registration.
type Session struct {
	Token  string
	Claims *Claims
	User   PublicUser
}

// Service provides authentication operations.
type Service struct {
	users       UserRepository
	hashes      *HashPool
	tokens      *TokenService
	revocations RevocationList
	minPassword int
	lockout     LockoutPolicy
	now         func() time.Time
	logger      *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a new Service with a no-op logger.
// Returns an error if any required dependency is nil.
func NewService(users UserRepository, hashes *HashPool, tokens *TokenService, cfg ServiceConfig) (*Service, error) {
	return NewServiceWithLogger(users, hashes, tokens, cfg, slog.New(slog.DiscardHandler))
}

// NewServiceWithLogger creates a new Service with the provided logger.
func NewServiceWithLogger(users UserRepository, hashes *HashPool, tokens *TokenService, cfg ServiceConfig, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if hashes == nil {
		return nil, oops.Errorf("hash pool is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token service is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = DefaultMinPasswordLength
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		users:       users,
		hashes:      hashes,
		tokens:      tokens,
		revocations: cfg.Revocations,
		minPassword: cfg.MinPasswordLength,
		lockout:     cfg.Lockout,
		now:         cfg.Now,
		logger:      logger,
	}, nil
}

// MinPasswordLength returns the configured minimum password length.
func (s *Service) MinPasswordLength() int {
	return s.minPassword
}

// Login authenticates a user and issues a token.
// Uses constant-time operations to prevent timing-based username enumeration:
// unknown usernames still pay for a full password verification.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, oops.Code(CodeValidation).With("field", "username").Errorf("username is required")
	}
	if password == "" {
		return nil, oops.Code(CodeValidation).With("field", "password").Errorf("password is required")
	}

	user, lookupErr := s.users.GetByUsername(ctx, username)

	var targetHash string
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = s.dummy()
	default:
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by username").
			Wrap(lookupErr)
	}

	valid, verifyErr := s.hashes.Verify(ctx, password, targetHash)
	if verifyErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "verify password").Wrap(verifyErr)
		}
		if !userExists {
			return nil, invalidCredentials()
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}

	now := s.now()

	// Checked after verification so a locked account answers in the same
	// time, and before the password result so the answer does not depend on it.
	if userExists && s.lockout.IsLocked(user.LockedUntil, now) {
		return nil, oops.Code(CodeAccountLocked).
			With("user_id", user.ID.String()).
			With("retry_after", s.lockout.Remaining(user.LockedUntil, now)).
			Errorf("account is temporarily locked")
	}

	if !userExists || !valid {
		if userExists {
			s.recordFailure(ctx, user, now)
		}
		return nil, invalidCredentials()
	}

	if user.FailedAttempts > 0 || user.LockedUntil != nil {
		if err := s.users.UpdateLoginState(ctx, user.ID, 0, nil); err != nil {
			s.logger.WarnContext(ctx, "failed to reset login failures",
				"user_id", user.ID.String(), "error", err)
		}
		user.FailedAttempts = 0
		user.LockedUntil = nil
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		// Login succeeds regardless.
		s.logger.WarnContext(ctx, "failed to record last login",
			"user_id", user.ID.String(), "error", err)
	} else {
		at := now.UTC()
		user.LastLogin = &at
	}

	if s.hashes.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	return s.issue(user)
}

// Register creates a user and issues a token for it.
func (s *Service) Register(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, oops.Code(CodeValidation).With("field", "username").Errorf("username is required")
	}
	if password == "" {
		return nil, oops.Code(CodeValidation).With("field", "password").Errorf("password is required")
	}
	if err := ValidatePassword(password, s.minPassword); err != nil {
		return nil, err
	}
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	hash, err := s.hashes.Hash(ctx, password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(username, hash)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = s.now().UTC()

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return nil, oops.Code(CodeUsernameTaken).
				With("username", username).
				Errorf("username already taken")
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			With("username", username).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String(), "username", user.Username)
	return s.issue(user)
}

// Authenticate verifies a bearer token and checks it has not been revoked.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	if s.revocations == nil {
		return claims, nil
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, oops.Code("AUTH_REVOCATION_CHECK_FAILED").
			With("token_id", claims.TokenID).
			Wrap(err)
	}
	if revoked {
		return nil, oops.Code(CodeInvalidToken).
			With("token_id", claims.TokenID).
			Wrap(ErrRevoked)
	}
	return claims, nil
}

// Status reports whether token authenticates. It never fails.
func (s *Service) Status(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	if _, err := s.Authenticate(ctx, token); err != nil {
		s.logger.DebugContext(ctx, "status check rejected token", "error", err)
		return false
	}
	return true
}

// Logout revokes the token described by claims when a revocation list is
// configured. Without one it only acknowledges.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if claims == nil {
		return oops.Code(CodeUnauthorized).Errorf("missing or invalid credentials")
	}
	if s.revocations == nil {
		return nil
	}
	if err := s.revocations.Revoke(ctx, claims.TokenID, claims.UserID, claims.ExpiresAt); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "revoke token").
			With("token_id", claims.TokenID).
			Wrap(err)
	}
	return nil
}

// CurrentUser returns the account a token was issued to.
func (s *Service) CurrentUser(ctx context.Context, claims *Claims) (*PublicUser, error) {
	if claims == nil {
		return nil, oops.Code(CodeUnauthorized).Errorf("missing or invalid credentials")
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUnauthorized).
				With("user_id", claims.UserID.String()).
				Errorf("missing or invalid credentials")
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}
	pub := user.Public()
	return &pub, nil
}

// PruneRevocations deletes expired revocation entries.
func (s *Service) PruneRevocations(ctx context.Context) (int64, error) {
	if s.revocations == nil {
		return 0, nil
	}
	n, err := s.revocations.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("AUTH_PRUNE_FAILED").Wrap(err)
	}
	return n, nil
}

func (s *Service) issue(user *User) (*Session, error) {
	token, claims, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_FAILED").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return &Session{Token: token, Claims: claims, User: user.Public()}, nil
}

func (s *Service) recordFailure(ctx context.Context, user *User, now time.Time) {
	failures, lockedUntil := s.lockout.RecordFailure(user.FailedAttempts, user.LockedUntil, now)
	if err := s.users.UpdateLoginState(ctx, user.ID, failures, lockedUntil); err != nil {
		s.logger.WarnContext(ctx, "failed to record login failure",
			"user_id", user.ID.String(), "error", err)
		return
	}
	if lockedUntil != nil && (user.LockedUntil == nil || !user.LockedUntil.After(now)) {
		s.logger.WarnContext(ctx, "account locked after repeated failures",
			"user_id", user.ID.String(), "failed_attempts", failures)
	}
}

func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hashes.Hash(ctx, password)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to upgrade password hash", "user_id", user.ID.String(), "error", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
		s.logger.WarnContext(ctx, "failed to store upgraded password hash", "user_id", user.ID.String(), "error", err)
		return
	}
	user.PasswordHash = newHash
}

// dummy returns a hash in the current format for a password nobody knows,
// so lookups of unknown usernames cost as much as real verifications.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		secret := make([]byte, 16)
		_, _ = rand.Read(secret) //nolint:errcheck // crypto/rand.Read does not fail on supported platforms
		hash, err := s.hashes.hasher.Hash(hex.EncodeToString(secret))
		if err != nil {
			hash = fallbackDummyHash
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// fallbackDummyHash is NOT a credential; its key can never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention.
const fallbackDummyHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid username or password")
}
