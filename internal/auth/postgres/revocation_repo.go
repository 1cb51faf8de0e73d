// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// RevocationRepository implements auth.RevocationList using PostgreSQL.
type RevocationRepository struct {
	pool Pool
}

// NewRevocationRepository creates a new RevocationRepository.
func NewRevocationRepository(pool Pool) *RevocationRepository {
	return &RevocationRepository{pool: pool}
}

var _ auth.RevocationList = (*RevocationRepository)(nil)

// Revoke records tokenID as revoked until expiresAt.
func (r *RevocationRepository) Revoke(ctx context.Context, tokenID string, userID ulid.ULID, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO revoked_tokens (token_id, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_id) DO UPDATE
		SET expires_at = GREATEST(revoked_tokens.expires_at, EXCLUDED.expires_at)
	`, tokenID, userID.String(), expiresAt)
	if err != nil {
		return oops.Code("REVOCATION_CREATE_FAILED").
			With("operation", "insert revoked token").
			With("token_id", tokenID).
			Wrap(err)
	}
	return nil
}

// IsRevoked reports whether tokenID has been revoked.
func (r *RevocationRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_id = $1)`, tokenID,
	).Scan(&revoked)
	if err != nil {
		return false, oops.Code("REVOCATION_LOOKUP_FAILED").
			With("operation", "check revoked token").
			With("token_id", tokenID).
			Wrap(err)
	}
	return revoked, nil
}

// DeleteExpired removes entries whose expiry has passed.
func (r *RevocationRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, oops.Code("REVOCATION_DELETE_FAILED").
			With("operation", "delete expired revocations").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}
