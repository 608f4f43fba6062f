package domain

import "time"

// Lockout policy defaults.
const (
	DefaultMaxFailedAttempts = 5
	DefaultLockDuration      = 2 * time.Hour
)

// LockoutPolicy parameterises the failed-login state machine.
type LockoutPolicy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

// DefaultLockoutPolicy locks for two hours after five consecutive failures.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{MaxAttempts: DefaultMaxFailedAttempts, LockDuration: DefaultLockDuration}
}

// IsLocked is the only authority on lock state. An expiry in the past is
// treated as if no lock were set.
func IsLocked(now time.Time, lockExpiry *time.Time) bool {
	return lockExpiry != nil && lockExpiry.After(now)
}

// RecordFailedAttempt applies one failed authentication to a. It reports
// whether this attempt moved the account into the locked state.
func (p LockoutPolicy) RecordFailedAttempt(a *Account, now time.Time) (lockedNow bool) {
	if a.LockExpiry != nil && !a.LockExpiry.After(now) {
		a.FailedAttempts = 1
		a.LockExpiry = nil
		return false
	}
	a.FailedAttempts++
	if a.FailedAttempts >= p.MaxAttempts && !IsLocked(now, a.LockExpiry) {
		expiry := now.Add(p.LockDuration)
		a.LockExpiry = &expiry
		return true
	}
	return false
}

// RecordSuccessfulLogin clears the failure counter and any lock.
func RecordSuccessfulLogin(a *Account, now time.Time) {
	a.FailedAttempts = 0
	a.LockExpiry = nil
	a.LastLogin = &now
}
