package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		grace     time.Duration
		want      bool
	}{
		{name: "expired 10 minutes ago", expiresAt: now.Add(-10 * time.Minute), want: true},
		{name: "expires in 10 minutes", expiresAt: now.Add(10 * time.Minute), want: false},
		{name: "expires exactly now", expiresAt: now, want: false},
		{name: "one second past expiry", expiresAt: now.Add(-time.Second), want: true},
		{name: "within grace period", expiresAt: now.Add(-time.Second), grace: 5 * time.Second, want: false},
		{name: "beyond grace period", expiresAt: now.Add(-10 * time.Second), grace: 5 * time.Second, want: true},
		{name: "zero time never expires", expiresAt: time.Time{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExpired(tt.expiresAt, now, tt.grace))
		})
	}
}

func TestExpiresIn(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(3600), ExpiresIn(now.Add(time.Hour), now))
	assert.Equal(t, int64(0), ExpiresIn(now.Add(-time.Hour), now))
	assert.Equal(t, int64(0), ExpiresIn(time.Time{}, now))
}
