package security

import "time"

// IsExpired reports whether expiresAt lies in the past relative to now, after
// allowing gracePeriod for clock skew. A zero expiresAt never expires.
func IsExpired(expiresAt, now time.Time, gracePeriod time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return now.After(expiresAt.Add(gracePeriod))
}

// ExpiresIn returns the whole seconds remaining until expiresAt, never negative.
func ExpiresIn(expiresAt, now time.Time) int64 {
	if expiresAt.IsZero() {
		return 0
	}
	d := expiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int64(d.Round(time.Second) / time.Second)
}
