package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AdmitsLimitThenRejects(t *testing.T) {
	for _, strategy := range []LimitStrategy{FixedWindow, SlidingWindow, TokenBucket} {
		t.Run(string(strategy), func(t *testing.T) {
			clock := newClock()
			rl := NewRateLimiter(RateLimitConfig{
				Enabled:        true,
				Strategy:       strategy,
				WindowSize:     time.Minute,
				MaxRequests:    5,
				BurstAllowance: 2,
			}).WithClock(clock.Now)

			for i := 0; i < 7; i++ {
				d := rl.Allow("u1", "10.0.0.1")
				require.True(t, d.Allowed, "request %d", i+1)
				assert.Equal(t, 7, d.Limit)
			}

			d := rl.Allow("u1", "10.0.0.1")
			assert.False(t, d.Allowed)
			assert.Greater(t, d.RetryAfter, time.Duration(0))
			assert.LessOrEqual(t, d.RetryAfter, time.Minute)
		})
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(RateLimitConfig{
		Enabled:     true,
		Strategy:    SlidingWindow,
		WindowSize:  time.Minute,
		MaxRequests: 1,
	}).WithClock(clock.Now)

	assert.True(t, rl.Allow("u1", "ip-a").Allowed)
	assert.False(t, rl.Allow("u1", "ip-a").Allowed)
	assert.True(t, rl.Allow("u1", "ip-b").Allowed)
	assert.True(t, rl.Allow("u2", "ip-a").Allowed)
}

func TestRateLimiter_SlidingWindowRecovers(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(RateLimitConfig{
		Enabled:     true,
		Strategy:    SlidingWindow,
		WindowSize:  10 * time.Second,
		MaxRequests: 2,
	}).WithClock(clock.Now)

	assert.True(t, rl.Allow("u", "ip").Allowed)
	clock.Advance(4 * time.Second)
	assert.True(t, rl.Allow("u", "ip").Allowed)

	d := rl.Allow("u", "ip")
	require.False(t, d.Allowed)
	assert.Equal(t, 6*time.Second, d.RetryAfter)

	clock.Advance(6 * time.Second)
	assert.True(t, rl.Allow("u", "ip").Allowed)
}

func TestRateLimiter_FixedWindowResets(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(RateLimitConfig{
		Enabled:     true,
		Strategy:    FixedWindow,
		WindowSize:  10 * time.Second,
		MaxRequests: 1,
	}).WithClock(clock.Now)

	assert.True(t, rl.Allow("u", "ip").Allowed)
	assert.False(t, rl.Allow("u", "ip").Allowed)
	clock.Advance(10 * time.Second)
	assert.True(t, rl.Allow("u", "ip").Allowed)
}

func TestRateLimiter_DisabledAlwaysAllows(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Enabled: false, MaxRequests: 1})
	for i := 0; i < 10; i++ {
		assert.True(t, rl.Allow("u", "ip").Allowed)
	}
	assert.Equal(t, int64(0), rl.Stats()["rejected"])
}

func TestRateLimiter_CleanupDropsIdleKeys(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(RateLimitConfig{
		Enabled:     true,
		WindowSize:  time.Second,
		MaxRequests: 1,
	}).WithClock(clock.Now)

	rl.Allow("u", "ip")
	require.Equal(t, 1, rl.Stats()["active_keys"])

	clock.Advance(5 * time.Second)
	rl.cleanup()
	assert.Equal(t, 0, rl.Stats()["active_keys"])
}

func TestRateLimiter_NeverExceedsLimitWithinWindow(t *testing.T) {
	for _, strategy := range []LimitStrategy{FixedWindow, SlidingWindow, TokenBucket} {
		t.Run(string(strategy), func(t *testing.T) {
			clock := newClock()
			rl := NewRateLimiter(RateLimitConfig{
				Enabled:        true,
				Strategy:       strategy,
				WindowSize:     time.Minute,
				MaxRequests:    4,
				BurstAllowance: 1,
			}).WithClock(clock.Now)

			var admitted []time.Time
			for i := 0; i < 40; i++ {
				if rl.Allow("u", "ip").Allowed {
					admitted = append(admitted, clock.Now())
				}
				clock.Advance(5 * time.Second)
			}
			require.NotEmpty(t, admitted)

			for i, start := range admitted {
				n := 0
				for _, at := range admitted[i:] {
					if at.Sub(start) < time.Minute {
						n++
					}
				}
				assert.LessOrEqual(t, n, 5, "window starting at %s", start)
			}
		})
	}
}
