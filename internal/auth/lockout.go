// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"time"
)

// Lockout defaults.
const (
	// DefaultLockoutThreshold is the number of consecutive failures that triggers a lockout.
	DefaultLockoutThreshold = 7

	// DefaultLockoutDuration is the time an account is locked after reaching the threshold.
	DefaultLockoutDuration = 15 * time.Minute
)

// LockoutPolicy locks an account after repeated login failures.
// A zero Threshold disables lockout.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockoutPolicy returns the default lockout policy.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Threshold: DefaultLockoutThreshold,
		Duration:  DefaultLockoutDuration,
	}
}

// Enabled reports whether the policy ever locks accounts.
func (p LockoutPolicy) Enabled() bool {
	return p.Threshold > 0 && p.Duration > 0
}

// IsLocked returns true if lockedUntil is after now.
func (p LockoutPolicy) IsLocked(lockedUntil *time.Time, now time.Time) bool {
	return p.Enabled() && lockedUntil != nil && lockedUntil.After(now)
}

// Remaining returns how long the lock lasts from now, or zero when unlocked.
func (p LockoutPolicy) Remaining(lockedUntil *time.Time, now time.Time) time.Duration {
	if !p.IsLocked(lockedUntil, now) {
		return 0
	}
	return lockedUntil.Sub(now)
}

// RecordFailure returns the counters after one more failure.
// The lock is set when the new count reaches the threshold. An expired lock
// restarts counting from one.
func (p LockoutPolicy) RecordFailure(failedAttempts int, lockedUntil *time.Time, now time.Time) (int, *time.Time) {
	if lockedUntil != nil && !lockedUntil.After(now) {
		failedAttempts = 0
	}
	failedAttempts++
	if !p.Enabled() || failedAttempts < p.Threshold {
		return failedAttempts, nil
	}
	until := now.Add(p.Duration)
	return failedAttempts, &until
}
