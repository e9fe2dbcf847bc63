package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryRateLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to the limit then denies", func(t *testing.T) {
		rl := NewMemoryRateLimiter()

		for i := 0; i < 5; i++ {
			allowed, _ := rl.CheckLimit(ctx, "ip:1.2.3.4", 5, time.Minute)
			assert.True(t, allowed, "request %d should be allowed", i)
		}

		allowed, resetAt := rl.CheckLimit(ctx, "ip:1.2.3.4", 5, time.Minute)
		assert.False(t, allowed)
		assert.True(t, resetAt.After(time.Now()))
	})

	t.Run("keys are independent", func(t *testing.T) {
		rl := NewMemoryRateLimiter()

		for i := 0; i < 3; i++ {
			rl.CheckLimit(ctx, "ip:1.1.1.1", 3, time.Minute)
		}
		allowed, _ := rl.CheckLimit(ctx, "ip:1.1.1.1", 3, time.Minute)
		assert.False(t, allowed)

		allowed, _ = rl.CheckLimit(ctx, "ip:2.2.2.2", 3, time.Minute)
		assert.True(t, allowed)
	})

	t.Run("window slides", func(t *testing.T) {
		rl := NewMemoryRateLimiter()

		allowed, _ := rl.CheckLimit(ctx, "ip:3.3.3.3", 1, 10*time.Millisecond)
		assert.True(t, allowed)
		allowed, _ = rl.CheckLimit(ctx, "ip:3.3.3.3", 1, 10*time.Millisecond)
		assert.False(t, allowed)

		time.Sleep(20 * time.Millisecond)

		allowed, _ = rl.CheckLimit(ctx, "ip:3.3.3.3", 1, 10*time.Millisecond)
		assert.True(t, allowed)
	})
}
