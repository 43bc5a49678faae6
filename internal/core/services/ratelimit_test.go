package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Property: each user is capped at capacity immediate actions before
// the registry starts rejecting, independent of other users' buckets.
func TestRateLimiterRegistry_CapsPerUser(t *testing.T) {
	registry := NewRateLimiterRegistry(3, 3)

	var userAAllowed int
	for i := 0; i < 5; i++ {
		if registry.Allow(1) {
			userAAllowed++
		}
	}
	assert.Equal(t, 3, userAAllowed, "burst capacity of 3 tokens for user 1")

	assert.True(t, registry.Allow(2), "a different user's bucket is untouched by user 1's usage")
}

func TestRateLimiterRegistry_IndependentPerUser(t *testing.T) {
	registry := NewRateLimiterRegistry(1, 1)

	assert.True(t, registry.Allow(10))
	assert.False(t, registry.Allow(10), "user 10's single token is already spent")
	assert.True(t, registry.Allow(20), "user 20 has its own untouched bucket")
}
