package security

import "time"

// IsExpired reports whether a credential with the given absolute expiry has
// expired. An expiry exactly equal to the current instant counts as expired:
// every read path must treat an entry with expires_at <= now as absent.
// A zero time means no expiration.
func IsExpired(expiresAt time.Time) bool {
	return IsExpiredAt(expiresAt, time.Now())
}

// IsExpiredAt reports whether expiresAt has passed relative to now.
// Split out so tests can pin the clock.
func IsExpiredAt(expiresAt, now time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return !now.Before(expiresAt)
}

// ExpiresSoon reports whether the credential will expire within threshold.
func ExpiresSoon(expiresAt time.Time, threshold time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return time.Now().Add(threshold).After(expiresAt)
}
