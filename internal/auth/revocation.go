// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// RevocationList records tokens that were logged out before their expiry.
// Entries only need to live until the token's own expiry.
type RevocationList interface {
	// Revoke records tokenID as revoked until expiresAt. Revoking twice is not an error.
	Revoke(ctx context.Context, tokenID string, userID ulid.ULID, expiresAt time.Time) error

	// IsRevoked reports whether tokenID has been revoked.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// DeleteExpired removes entries whose expiry has passed and returns the
	// count of deleted records.
	DeleteExpired(ctx context.Context) (int64, error)
}
