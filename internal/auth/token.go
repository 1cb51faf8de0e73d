// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"crypto/rand"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token configuration defaults.
const (
	DefaultTokenTTL    = 24 * time.Hour
	DefaultTokenIssuer = "gatehouse"
	MinSigningKeyBytes = 32
	tokenLeeway        = 30 * time.Second
)

// Claims identifies the user a token was issued to.
type Claims struct {
	UserID    ulid.ULID
	Username  string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// jwtClaims is the wire form of Claims.
type jwtClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenServiceConfig configures a TokenService.
type TokenServiceConfig struct {
	// SigningKey is the HMAC key. Must be at least MinSigningKeyBytes long.
	SigningKey []byte
	TTL        time.Duration
	Issuer     string
	// Now overrides the clock; nil uses time.Now.
	Now func() time.Time
}

// TokenService issues and verifies signed session tokens.
type TokenService struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenService creates a TokenService. The key is copied.
func NewTokenService(cfg TokenServiceConfig) (*TokenService, error) {
	if len(cfg.SigningKey) < MinSigningKeyBytes {
		return nil, oops.Code("CONFIG_INVALID").
			With("min_bytes", MinSigningKeyBytes).
			Errorf("token signing key must be at least %d bytes", MinSigningKeyBytes)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultTokenIssuer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)

	s := &TokenService{
		key:    key,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    cfg.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(tokenLeeway),
		jwt.WithTimeFunc(s.now),
	)
	return s, nil
}

// GenerateSigningKey returns a random key suitable for TokenServiceConfig.SigningKey.
func GenerateSigningKey() ([]byte, error) {
	key := make([]byte, MinSigningKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return nil, oops.Code("TOKEN_KEY_GENERATE_FAILED").
			With("requested_bytes", MinSigningKeyBytes).
			Wrap(err)
	}
	return key, nil
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the given user.
func (s *TokenService) Issue(userID ulid.ULID, username string) (string, *Claims, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return "", nil, oops.Code("TOKEN_ISSUE_FAILED").Errorf("user ID cannot be zero")
	}
	if username == "" {
		return "", nil, oops.Code("TOKEN_ISSUE_FAILED").Errorf("username cannot be empty")
	}

	// JWT timestamps have second precision.
	now := s.now().Truncate(time.Second)
	claims := &Claims{
		UserID:    userID,
		Username:  username,
		TokenID:   ulid.Make().String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID.String(),
			ID:        claims.TokenID,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			NotBefore: jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", nil, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "sign token").
			Wrap(err)
	}
	return signed, claims, nil
}

// Verify validates a token and returns its claims.
// Any failure, whether signature, shape, issuer, or expiry, returns a
// CodeInvalidToken error and no claims.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, oops.Code(CodeInvalidToken).Errorf("token cannot be empty")
	}

	var wire jwtClaims
	token, err := s.parser.ParseWithClaims(tokenString, &wire, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		return nil, oops.Code(CodeInvalidToken).Wrap(err)
	}
	if !token.Valid {
		return nil, oops.Code(CodeInvalidToken).Errorf("invalid token")
	}

	userID, err := ulid.Parse(wire.Subject)
	if err != nil {
		return nil, oops.Code(CodeInvalidToken).With("claim", "sub").Wrap(err)
	}
	if wire.Username == "" {
		return nil, oops.Code(CodeInvalidToken).Errorf("token has no username claim")
	}
	if wire.ID == "" {
		return nil, oops.Code(CodeInvalidToken).Errorf("token has no id claim")
	}
	if wire.IssuedAt == nil || wire.ExpiresAt == nil {
		return nil, oops.Code(CodeInvalidToken).Errorf("token has no issuance or expiry claim")
	}

	return &Claims{
		UserID:    userID,
		Username:  wire.Username,
		TokenID:   wire.ID,
		IssuedAt:  wire.IssuedAt.Time,
		ExpiresAt: wire.ExpiresAt.Time,
	}, nil
}
