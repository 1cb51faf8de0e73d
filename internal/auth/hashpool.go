// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"runtime"

	"github.com/samber/oops"
	"golang.org/x/sync/semaphore"
)

// HashPool bounds the number of password hash computations running at once.
// Each argon2id call allocates its full memory cost.
type HashPool struct {
	hasher PasswordHasher
	sem    *semaphore.Weighted
	size   int64
}

// NewHashPool wraps hasher with at most workers concurrent computations.
// workers <= 0 selects GOMAXPROCS.
func NewHashPool(hasher PasswordHasher, workers int) (*HashPool, error) {
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &HashPool{
		hasher: hasher,
		sem:    semaphore.NewWeighted(int64(workers)),
		size:   int64(workers),
	}, nil
}

// Size returns the maximum number of concurrent computations.
func (p *HashPool) Size() int {
	return int(p.size)
}

// Hash hashes password once a worker slot is free.
// Returns ctx.Err() (wrapped) if the context ends while waiting.
func (p *HashPool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.acquire(ctx); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	return p.hasher.Hash(password)
}

// Verify checks password against hash once a worker slot is free.
func (p *HashPool) Verify(ctx context.Context, password, hash string) (bool, error) {
	if err := p.acquire(ctx); err != nil {
		return false, err
	}
	defer p.sem.Release(1)

	return p.hasher.Verify(password, hash)
}

// NeedsUpgrade is cheap and does not take a worker slot.
func (p *HashPool) NeedsUpgrade(hash string) bool {
	return p.hasher.NeedsUpgrade(hash)
}

func (p *HashPool) acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return oops.Code("AUTH_HASH_CANCELLED").
			With("operation", "acquire hash worker").
			Wrap(err)
	}
	return nil
}
