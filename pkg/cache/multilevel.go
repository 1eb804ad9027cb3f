package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"toolAdvisor/pkg/logger"
)

const LevelL1 = "l1"

type Config struct {
	Strategy             Strategy      `yaml:"strategy"`
	MaxEntries           int           `yaml:"max_entries"`
	AdaptiveWindow       int           `yaml:"adaptive_window"`
	StaleWhileRevalidate bool          `yaml:"stale_while_revalidate"`
	CleanupInterval      time.Duration `yaml:"cleanup_interval"`
	RevalidateWorkers    int           `yaml:"revalidate_workers"`
	RevalidateTimeout    time.Duration `yaml:"revalidate_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Strategy:             StrategyAdaptive,
		MaxEntries:           1000,
		AdaptiveWindow:       defaultAdaptiveWindow,
		StaleWhileRevalidate: true,
		CleanupInterval:      time.Minute,
		RevalidateWorkers:    4,
		RevalidateTimeout:    10 * time.Second,
	}
}

// Level is a lower tier together with the longest time it may hold an entry.
// A zero TTL keeps entries for as long as they are servable.
type Level struct {
	Tier Tier
	TTL  time.Duration
}

type Result[T any] struct {
	Value T
	Level string
	Age   time.Duration
	Stale bool
}

type keyMeta struct {
	tags       []string
	deps       []string
	staleUntil time.Time
}

type Stats struct {
	L1            MemoryStats      `json:"l1"`
	LevelHits     map[string]int64 `json:"level_hits"`
	Misses        int64            `json:"misses"`
	StaleServed   int64            `json:"stale_served"`
	Revalidations int64            `json:"revalidations"`
	TierErrors    int64            `json:"tier_errors"`
	IndexedKeys   int              `json:"indexed_keys"`
	Tags          int              `json:"tags"`
}

// MultiLevel reads through L1 then each lower level in order, promoting hits
// upward, and writes through every level. Tag and dependency indexes are held
// in process.
type MultiLevel[T any] struct {
	cfg    Config
	l1     *Memory[T]
	levels []Level
	now    func() time.Time

	refresh singleflight.Group
	sem     chan struct{}
	wg      sync.WaitGroup

	mu       sync.Mutex
	meta     map[string]keyMeta
	tagIndex map[string]map[string]struct{}
	depIndex map[string]map[string]struct{}

	statsMu       sync.Mutex
	levelHits     map[string]int64
	misses        int64
	staleServed   int64
	revalidations int64
	tierErrors    int64
}

func NewMultiLevel[T any](cfg Config, levels ...Level) *MultiLevel[T] {
	def := DefaultConfig()
	if !cfg.Strategy.Valid() {
		cfg.Strategy = def.Strategy
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.RevalidateWorkers <= 0 {
		cfg.RevalidateWorkers = def.RevalidateWorkers
	}
	if cfg.RevalidateTimeout <= 0 {
		cfg.RevalidateTimeout = def.RevalidateTimeout
	}

	l1 := NewMemory[T](cfg.MaxEntries, cfg.Strategy)
	l1.SetAdaptiveWindow(cfg.AdaptiveWindow)

	kept := make([]Level, 0, len(levels))
	for _, lv := range levels {
		if lv.Tier != nil {
			kept = append(kept, lv)
		}
	}

	return &MultiLevel[T]{
		cfg:       cfg,
		l1:        l1,
		levels:    kept,
		now:       time.Now,
		sem:       make(chan struct{}, cfg.RevalidateWorkers),
		meta:      make(map[string]keyMeta),
		tagIndex:  make(map[string]map[string]struct{}),
		depIndex:  make(map[string]map[string]struct{}),
		levelHits: make(map[string]int64),
	}
}

// WithClock swaps the time source of the cache and its L1; used by tests.
func (c *MultiLevel[T]) WithClock(now func() time.Time) *MultiLevel[T] {
	c.now = now
	c.l1.withClock(now)
	return c
}

func levelName(i int) string {
	return fmt.Sprintf("l%d", i+2)
}

// Get looks the key up level by level. A stale value is returned only when
// stale-while-revalidate is enabled; the caller decides whether to refresh.
func (c *MultiLevel[T]) Get(ctx context.Context, key string) (Result[T], bool) {
	now := c.now()

	if e, ok := c.l1.Get(key); ok {
		if res, ok := c.serve(e, LevelL1, now); ok {
			return res, true
		}
	}

	for i, lv := range c.levels {
		data, ok, err := lv.Tier.Get(ctx, key)
		if err != nil {
			c.tierError("get", lv.Tier, key, err)
			continue
		}
		if !ok {
			continue
		}
		e, err := decodeEntry[T](key, data)
		if err != nil {
			c.tierError("decode", lv.Tier, key, err)
			continue
		}
		if !e.Servable(now) {
			continue
		}
		res, ok := c.serve(e, levelName(i), now)
		if !ok {
			continue
		}
		c.promote(ctx, e, i, data)
		return res, true
	}

	c.statsMu.Lock()
	c.misses++
	c.statsMu.Unlock()
	return Result[T]{}, false
}

func (c *MultiLevel[T]) serve(e Entry[T], level string, now time.Time) (Result[T], bool) {
	stale := !e.Fresh(now)
	if stale && !c.cfg.StaleWhileRevalidate {
		return Result[T]{}, false
	}

	c.statsMu.Lock()
	c.levelHits[level]++
	if stale {
		c.staleServed++
	}
	c.statsMu.Unlock()

	return Result[T]{
		Value: e.Value,
		Level: level,
		Age:   e.Age(now),
		Stale: stale,
	}, true
}

// promote copies an entry found at level idx into L1 and every level above it.
func (c *MultiLevel[T]) promote(ctx context.Context, e Entry[T], idx int, data []byte) {
	c.l1.Set(e)
	c.index(e.Key, e.Tags, e.Dependencies, e.StaleUntil)

	now := c.now()
	for i := 0; i < idx; i++ {
		lv := c.levels[i]
		if err := lv.Tier.Set(ctx, e.Key, data, c.tierTTL(lv, e, now)); err != nil {
			c.tierError("promote", lv.Tier, e.Key, err)
		}
	}
	logger.Debug("cache_promote", "key", e.Key, "from", levelName(idx))
}

func (c *MultiLevel[T]) tierTTL(lv Level, e Entry[T], now time.Time) time.Duration {
	ttl := e.StaleUntil.Sub(now)
	if lv.TTL > 0 && lv.TTL < ttl {
		ttl = lv.TTL
	}
	return ttl
}

// Set writes the value through every level. Lower-level failures are
// reported but the value stays cached in L1.
func (c *MultiLevel[T]) Set(ctx context.Context, key string, value T, opts SetOptions) error {
	if opts.TTL <= 0 {
		return fmt.Errorf("cache set %q: ttl must be positive", key)
	}
	now := c.now()
	e := newEntry(key, value, opts, now)
	c.l1.Set(e)
	c.index(key, e.Tags, e.Dependencies, e.StaleUntil)

	if len(c.levels) == 0 {
		return nil
	}
	data, err := encodeEntry(e)
	if err != nil {
		return err
	}

	var errs []error
	for _, lv := range c.levels {
		if err := lv.Tier.Set(ctx, key, data, c.tierTTL(lv, e, now)); err != nil {
			c.tierError("set", lv.Tier, key, err)
			errs = append(errs, fmt.Errorf("%s: %w", lv.Tier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Revalidate refreshes key in the background. Concurrent refreshes of one key
// share a single load, and at most RevalidateWorkers loads run at once; it
// reports false when the refresh was not scheduled.
func (c *MultiLevel[T]) Revalidate(key string, load func(ctx context.Context) (T, SetOptions, error)) bool {
	select {
	case c.sem <- struct{}{}:
	default:
		logger.Debug("cache_revalidate_skipped", "key", key, "reason", "workers_busy")
		return false
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() { <-c.sem }()

		_, err, _ := c.refresh.Do(key, func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RevalidateTimeout)
			defer cancel()

			value, opts, err := load(ctx)
			if err != nil {
				return nil, err
			}
			c.statsMu.Lock()
			c.revalidations++
			c.statsMu.Unlock()
			return nil, c.Set(ctx, key, value, opts)
		})
		if err != nil {
			logger.Warn("cache_revalidate_failed", "key", key, "error", err)
		}
	}()
	return true
}

func (c *MultiLevel[T]) index(key string, tags, deps []string, staleUntil time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unindexLocked(key)
	c.meta[key] = keyMeta{tags: tags, deps: deps, staleUntil: staleUntil}
	for _, t := range tags {
		addTo(c.tagIndex, t, key)
	}
	for _, d := range deps {
		addTo(c.depIndex, d, key)
	}
}

func (c *MultiLevel[T]) unindexLocked(key string) {
	m, ok := c.meta[key]
	if !ok {
		return
	}
	for _, t := range m.tags {
		removeFrom(c.tagIndex, t, key)
	}
	for _, d := range m.deps {
		removeFrom(c.depIndex, d, key)
	}
	delete(c.meta, key)
}

func addTo(idx map[string]map[string]struct{}, label, key string) {
	set, ok := idx[label]
	if !ok {
		set = make(map[string]struct{})
		idx[label] = set
	}
	set[key] = struct{}{}
}

func removeFrom(idx map[string]map[string]struct{}, label, key string) {
	set, ok := idx[label]
	if !ok {
		return
	}
	delete(set, key)
	if len(set) == 0 {
		delete(idx, label)
	}
}

// InvalidateTags removes every entry carrying any of tags.
func (c *MultiLevel[T]) InvalidateTags(ctx context.Context, tags ...string) (int, error) {
	c.mu.Lock()
	keys := make(map[string]struct{})
	for _, t := range tags {
		for k := range c.tagIndex[t] {
			keys[k] = struct{}{}
		}
	}
	c.mu.Unlock()
	return c.remove(ctx, setKeys(keys))
}

// InvalidateDependencies removes the entries depending on deps. Removed keys
// are themselves treated as dependencies, so invalidation cascades.
func (c *MultiLevel[T]) InvalidateDependencies(ctx context.Context, deps ...string) (int, error) {
	c.mu.Lock()
	seen := make(map[string]struct{})
	queue := append([]string(nil), deps...)
	visited := make(map[string]struct{}, len(deps))
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		if _, ok := visited[d]; ok {
			continue
		}
		visited[d] = struct{}{}
		for k := range c.depIndex[d] {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			queue = append(queue, k)
		}
	}
	c.mu.Unlock()
	return c.remove(ctx, setKeys(seen))
}

func (c *MultiLevel[T]) InvalidateKeys(ctx context.Context, keys ...string) (int, error) {
	return c.remove(ctx, keys)
}

// Clear drops every entry this process knows about.
func (c *MultiLevel[T]) Clear(ctx context.Context) (int, error) {
	c.mu.Lock()
	keys := make([]string, 0, len(c.meta))
	for k := range c.meta {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	n, err := c.remove(ctx, keys)
	if extra := c.l1.Clear(); extra > 0 {
		n += extra
	}
	return n, err
}

func setKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func (c *MultiLevel[T]) remove(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	removed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := c.meta[k]; ok {
			removed[k] = struct{}{}
		}
		c.unindexLocked(k)
	}
	c.mu.Unlock()

	c.l1.Delete(keys...)

	var errs []error
	for _, lv := range c.levels {
		if err := lv.Tier.Delete(ctx, keys...); err != nil {
			c.tierError("delete", lv.Tier, "", err)
			errs = append(errs, fmt.Errorf("%s: %w", lv.Tier.Name(), err))
		}
	}
	return len(removed), errors.Join(errs...)
}

// Start runs periodic cleanup until ctx is done.
func (c *MultiLevel[T]) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cfg.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Cleanup()
			}
		}
	}()
}

// Cleanup drops unservable entries from L1 and the indexes.
func (c *MultiLevel[T]) Cleanup() int {
	n := c.l1.Cleanup()
	now := c.now()

	c.mu.Lock()
	for k, m := range c.meta {
		if !now.Before(m.staleUntil) {
			c.unindexLocked(k)
		}
	}
	c.mu.Unlock()

	if n > 0 {
		logger.Debug("cache_cleanup", "removed", n)
	}
	return n
}

// Wait blocks until background refreshes and the cleanup loop have finished.
func (c *MultiLevel[T]) Wait() {
	c.wg.Wait()
}

func (c *MultiLevel[T]) Stats() Stats {
	c.mu.Lock()
	indexed, tags := len(c.meta), len(c.tagIndex)
	c.mu.Unlock()

	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	hits := make(map[string]int64, len(c.levelHits))
	for k, v := range c.levelHits {
		hits[k] = v
	}
	return Stats{
		L1:            c.l1.Stats(),
		LevelHits:     hits,
		Misses:        c.misses,
		StaleServed:   c.staleServed,
		Revalidations: c.revalidations,
		TierErrors:    c.tierErrors,
		IndexedKeys:   indexed,
		Tags:          tags,
	}
}

func (c *MultiLevel[T]) tierError(op string, tier Tier, key string, err error) {
	c.statsMu.Lock()
	c.tierErrors++
	c.statsMu.Unlock()
	logger.Warn("cache_tier_error",
		"op", op,
		"tier", tier.Name(),
		"key", key,
		"error", err,
	)
}
