package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	now := time.Unix(0, 0)
	rl := newRateLimiter(RateLimitConfig{Burst: 3, RefillInterval: 3 * time.Second})
	rl.now = func() time.Time { return now }
	rl.lastCheck = now

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow(), "token %d", i)
	}
	assert.False(t, rl.allow())

	now = now.Add(time.Second)
	assert.True(t, rl.allow())
	assert.False(t, rl.allow())

	now = now.Add(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow())
	}
	assert.False(t, rl.allow(), "refill is capped at the burst size")
}

func TestRateLimiter_InvalidConfigFallsBack(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{})
	assert.Equal(t, 1.0, rl.capacity)
	assert.True(t, rl.allow())
}
