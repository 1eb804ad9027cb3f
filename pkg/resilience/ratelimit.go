package resilience

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"toolAdvisor/pkg/logger"
)

type LimitStrategy string

const (
	FixedWindow   LimitStrategy = "fixed_window"
	SlidingWindow LimitStrategy = "sliding_window"
	TokenBucket   LimitStrategy = "token_bucket"
)

type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Strategy        LimitStrategy `yaml:"strategy"`
	WindowSize      time.Duration `yaml:"window_size"`
	MaxRequests     int           `yaml:"max_requests"`
	BurstAllowance  int           `yaml:"burst_allowance"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:         true,
		Strategy:        SlidingWindow,
		WindowSize:      time.Minute,
		MaxRequests:     60,
		BurstAllowance:  10,
		CleanupInterval: 5 * time.Minute,
	}
}

// Limit is the number of requests admitted per window for one key.
func (c RateLimitConfig) Limit() int {
	return c.MaxRequests + c.BurstAllowance
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type windowState struct {
	start    time.Time
	count    int
	hits     []time.Time
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter admits at most MaxRequests+BurstAllowance requests per
// WindowSize for each (user, IP) key.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu       sync.Mutex
	windows  map[string]*windowState
	rejected int64
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	def := DefaultRateLimitConfig()
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.BurstAllowance < 0 {
		cfg.BurstAllowance = 0
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	switch cfg.Strategy {
	case FixedWindow, SlidingWindow, TokenBucket:
	default:
		cfg.Strategy = def.Strategy
	}
	return &RateLimiter{
		cfg:     cfg,
		now:     time.Now,
		windows: make(map[string]*windowState),
	}
}

func (r *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
	return r
}

func limiterKey(userID, ip string) string {
	return userID + "|" + ip
}

func (r *RateLimiter) Allow(userID, ip string) Decision {
	limit := r.cfg.Limit()
	if !r.cfg.Enabled {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	key := limiterKey(userID, ip)
	w, ok := r.windows[key]
	if !ok {
		w = &windowState{start: now}
		r.windows[key] = w
	}
	w.lastSeen = now

	var d Decision
	switch r.cfg.Strategy {
	case FixedWindow:
		d = r.allowFixed(w, now, limit)
	case TokenBucket:
		d = r.allowTokenBucket(w, now, limit)
	default:
		d = r.allowSliding(w, now, limit)
	}
	if !d.Allowed {
		r.rejected++
	}
	return d
}

func (r *RateLimiter) allowFixed(w *windowState, now time.Time, limit int) Decision {
	if now.Sub(w.start) >= r.cfg.WindowSize {
		w.start = now
		w.count = 0
	}
	if w.count >= limit {
		return Decision{
			Allowed:    false,
			Limit:      limit,
			RetryAfter: w.start.Add(r.cfg.WindowSize).Sub(now),
		}
	}
	w.count++
	return Decision{Allowed: true, Limit: limit, Remaining: limit - w.count}
}

func (r *RateLimiter) allowSliding(w *windowState, now time.Time, limit int) Decision {
	cutoff := now.Add(-r.cfg.WindowSize)
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	w.hits = w.hits[i:]

	if len(w.hits) >= limit {
		return Decision{
			Allowed:    false,
			Limit:      limit,
			RetryAfter: w.hits[0].Add(r.cfg.WindowSize).Sub(now),
		}
	}
	w.hits = append(w.hits, now)
	return Decision{Allowed: true, Limit: limit, Remaining: limit - len(w.hits)}
}

// allowTokenBucket paces requests with a bucket refilling MaxRequests tokens
// per window and holding at most MaxRequests+BurstAllowance. The admitted
// timestamps are still capped per sliding window, since a continuously
// refilled bucket alone lets more than limit through in one window.
func (r *RateLimiter) allowTokenBucket(w *windowState, now time.Time, limit int) Decision {
	if w.limiter == nil {
		every := r.cfg.WindowSize / time.Duration(r.cfg.MaxRequests)
		w.limiter = rate.NewLimiter(rate.Every(every), limit)
	}

	cutoff := now.Add(-r.cfg.WindowSize)
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	w.hits = w.hits[i:]
	if len(w.hits) >= limit {
		return Decision{
			Allowed:    false,
			Limit:      limit,
			RetryAfter: w.hits[0].Add(r.cfg.WindowSize).Sub(now),
		}
	}

	if !w.limiter.AllowN(now, 1) {
		missing := 1 - w.limiter.TokensAt(now)
		wait := time.Duration(missing / float64(w.limiter.Limit()) * float64(time.Second))
		return Decision{Allowed: false, Limit: limit, RetryAfter: wait}
	}
	w.hits = append(w.hits, now)

	remaining := int(math.Floor(w.limiter.TokensAt(now)))
	if left := limit - len(w.hits); left < remaining {
		remaining = left
	}
	return Decision{Allowed: true, Limit: limit, Remaining: remaining}
}

// Reset forgets the state of one key.
func (r *RateLimiter) Reset(userID, ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.windows, limiterKey(userID, ip))
}

// StartCleanup drops idle keys until ctx is done.
func (r *RateLimiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.cfg.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.cleanup()
			}
		}
	}()
}

func (r *RateLimiter) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-2 * r.cfg.WindowSize)
	removed := 0
	for key, w := range r.windows {
		if w.lastSeen.Before(cutoff) {
			delete(r.windows, key)
			removed++
		}
	}
	if removed > 0 {
		logger.Debug("rate_limit_cleanup", "removed_keys", removed, "remaining", len(r.windows))
	}
}

func (r *RateLimiter) Stats() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]any{
		"enabled":         r.cfg.Enabled,
		"strategy":        string(r.cfg.Strategy),
		"window_seconds":  r.cfg.WindowSize.Seconds(),
		"max_requests":    r.cfg.MaxRequests,
		"burst_allowance": r.cfg.BurstAllowance,
		"active_keys":     len(r.windows),
		"rejected":        r.rejected,
	}
}
