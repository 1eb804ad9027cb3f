package cache

import "time"

type Strategy string

const (
	StrategyLRU      Strategy = "lru"
	StrategyLFU      Strategy = "lfu"
	StrategyTTL      Strategy = "ttl"
	StrategyAdaptive Strategy = "adaptive"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyLRU, StrategyLFU, StrategyTTL, StrategyAdaptive:
		return true
	}
	return false
}

// Entry is one cached value. It is fresh until ExpiresAt and may still be
// served stale until StaleUntil.
type Entry[T any] struct {
	Key          string
	Value        T
	CreatedAt    time.Time
	ExpiresAt    time.Time
	StaleUntil   time.Time
	LastAccess   time.Time
	Hits         int64
	Cost         time.Duration
	Tags         []string
	Dependencies []string
}

func (e *Entry[T]) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

func (e *Entry[T]) Servable(now time.Time) bool {
	return now.Before(e.StaleUntil)
}

func (e *Entry[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// SetOptions describe how long and under which labels a value is stored.
type SetOptions struct {
	TTL time.Duration
	// MaxAge bounds how old a stale value may be when served. Values below TTL
	// disable stale serving for the entry.
	MaxAge       time.Duration
	Tags         []string
	Dependencies []string
	Cost         time.Duration
}

func newEntry[T any](key string, value T, opts SetOptions, now time.Time) Entry[T] {
	maxAge := opts.MaxAge
	if maxAge < opts.TTL {
		maxAge = opts.TTL
	}
	return Entry[T]{
		Key:          key,
		Value:        value,
		CreatedAt:    now,
		ExpiresAt:    now.Add(opts.TTL),
		StaleUntil:   now.Add(maxAge),
		LastAccess:   now,
		Cost:         opts.Cost,
		Tags:         append([]string(nil), opts.Tags...),
		Dependencies: append([]string(nil), opts.Dependencies...),
	}
}
