// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// RevocationList implements auth.RevocationList in memory.
type RevocationList struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewRevocationList creates an empty RevocationList.
func NewRevocationList() *RevocationList {
	return NewRevocationListWithClock(time.Now)
}

// NewRevocationListWithClock creates an empty RevocationList using now as its clock.
func NewRevocationListWithClock(now func() time.Time) *RevocationList {
	return &RevocationList{
		entries: make(map[string]time.Time),
		now:     now,
	}
}

var _ auth.RevocationList = (*RevocationList)(nil)

// Revoke records tokenID as revoked until expiresAt.
func (l *RevocationList) Revoke(_ context.Context, tokenID string, _ ulid.ULID, expiresAt time.Time) error {
	if tokenID == "" {
		return oops.Code("REVOCATION_INVALID").Errorf("token id cannot be empty")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.entries[tokenID]; !ok || expiresAt.After(existing) {
		l.entries[tokenID] = expiresAt
	}
	return nil
}

// IsRevoked reports whether tokenID has been revoked.
func (l *RevocationList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[tokenID]
	return ok, nil
}

// DeleteExpired removes entries whose expiry has passed.
func (l *RevocationList) DeleteExpired(_ context.Context) (int64, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int64
	for id, exp := range l.entries {
		if !exp.After(now) {
			delete(l.entries, id)
			n++
		}
	}
	return n, nil
}
