package security

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(10, 20, nil)
	defer rl.Stop()

	require.NotNil(t, rl)
	assert.Equal(t, 20, rl.burst)
	assert.Equal(t, DefaultMaxLimiterEntries, rl.maxEntries)
	assert.NotNil(t, rl.logger)
}

func TestNewRateLimiter_NegativeMaxEntries(t *testing.T) {
	rl := NewRateLimiterWithMaxEntries(1, 1, -5, slog.Default())
	defer rl.Stop()

	assert.Equal(t, DefaultMaxLimiterEntries, rl.maxEntries)
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(1, 5, slog.Default())
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("client-a"), "request %d should be allowed", i+1)
	}
	assert.False(t, rl.Allow("client-a"), "request beyond burst should be limited")
}

func TestRateLimiter_Allow_SeparateIdentifiers(t *testing.T) {
	rl := NewRateLimiter(1, 2, slog.Default())
	defer rl.Stop()

	assert.True(t, rl.Allow("client-a"))
	assert.True(t, rl.Allow("client-a"))
	assert.False(t, rl.Allow("client-a"))

	assert.True(t, rl.Allow("client-b"), "other identifiers keep their own budget")
}

func TestRateLimiter_LRUEviction(t *testing.T) {
	rl := NewRateLimiterWithMaxEntries(1, 1, 2, slog.Default())
	defer rl.Stop()

	rl.Allow("a")
	rl.Allow("b")
	rl.Allow("c")

	assert.Equal(t, 2, rl.Len())

	rl.mu.Lock()
	_, hasA := rl.entries["a"]
	rl.mu.Unlock()
	assert.False(t, hasA, "least recently used entry should be evicted")

	// "a" comes back with a fresh bucket
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, slog.Default())
	defer rl.Stop()

	rl.Allow("idle")
	rl.Allow("active")

	rl.mu.Lock()
	rl.entries["idle"].Value.(*limiterEntry).lastAccess = time.Now().Add(-time.Hour)
	// keep recency order consistent with the timestamps
	rl.lru.MoveToBack(rl.entries["idle"])
	rl.mu.Unlock()

	rl.Cleanup(30 * time.Minute)

	assert.Equal(t, 1, rl.Len())
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}
