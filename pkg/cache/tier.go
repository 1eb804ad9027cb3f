package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Tier is a byte-oriented lower cache level (redis, postgres, in-process LRU).
// A missing key is reported as (nil, false, nil).
type Tier interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type lruItem struct {
	data      []byte
	expiresAt time.Time
}

// LRUTier is a size-bounded in-process tier. It stands in for a remote L2
// when none is configured.
type LRUTier struct {
	name  string
	items *lru.Cache[string, lruItem]
	mu    sync.RWMutex
	now   func() time.Time
}

var _ Tier = (*LRUTier)(nil)

func NewLRUTier(name string, size int) (*LRUTier, error) {
	if size <= 0 {
		size = 10000
	}
	items, err := lru.New[string, lruItem](size)
	if err != nil {
		return nil, fmt.Errorf("create lru tier: %w", err)
	}
	return &LRUTier{name: name, items: items, now: time.Now}, nil
}

func (t *LRUTier) WithClock(now func() time.Time) *LRUTier {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
	return t
}

func (t *LRUTier) Name() string { return t.name }

func (t *LRUTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	item, ok := t.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	t.mu.RLock()
	now := t.now()
	t.mu.RUnlock()
	if !item.expiresAt.IsZero() && !now.Before(item.expiresAt) {
		t.items.Remove(key)
		return nil, false, nil
	}
	return item.data, true, nil
}

func (t *LRUTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	item := lruItem{data: value}
	if ttl > 0 {
		t.mu.RLock()
		item.expiresAt = t.now().Add(ttl)
		t.mu.RUnlock()
	}
	t.items.Add(key, item)
	return nil
}

func (t *LRUTier) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		t.items.Remove(k)
	}
	return nil
}

func (t *LRUTier) Len() int { return t.items.Len() }
