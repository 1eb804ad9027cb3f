package cache

import (
	"sync"
	"time"

	"toolAdvisor/pkg/logger"
)

const (
	defaultAdaptiveWindow = 200
	adaptiveDropTolerance = 0.05
)

// Memory is the bounded in-process L1 store.
type Memory[T any] struct {
	mu       sync.Mutex
	entries  map[string]*Entry[T]
	capacity int
	strategy Strategy
	// active is the eviction policy in force; differs from strategy only
	// when strategy is adaptive.
	active Strategy
	now    func() time.Time

	window      int
	windowHits  int
	windowTotal int
	lastHitRate float64
	hasLastRate bool
	hits        int64
	misses      int64
	evictions   int64
	switches    int64
}

func NewMemory[T any](capacity int, strategy Strategy) *Memory[T] {
	if capacity <= 0 {
		capacity = 1000
	}
	if !strategy.Valid() {
		strategy = StrategyLRU
	}
	active := strategy
	if strategy == StrategyAdaptive {
		active = StrategyLRU
	}
	return &Memory[T]{
		entries:  make(map[string]*Entry[T], capacity),
		capacity: capacity,
		strategy: strategy,
		active:   active,
		now:      time.Now,
		window:   defaultAdaptiveWindow,
	}
}

func (m *Memory[T]) withClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// SetAdaptiveWindow sets how many lookups make up one hit-rate sample.
func (m *Memory[T]) SetAdaptiveWindow(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.window = n
	m.mu.Unlock()
}

// Get returns a servable entry. Entries past StaleUntil are dropped.
func (m *Memory[T]) Get(key string) (Entry[T], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[key]
	if ok && !e.Servable(now) {
		delete(m.entries, key)
		ok = false
	}
	m.observe(ok)
	if !ok {
		m.misses++
		return Entry[T]{}, false
	}
	m.hits++
	e.Hits++
	e.LastAccess = now
	return *e, true
}

func (m *Memory[T]) Set(e Entry[T]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.entries[e.Key]; ok {
		e.Hits = old.Hits
		m.entries[e.Key] = &e
		return
	}
	if len(m.entries) >= m.capacity {
		m.evictLocked()
	}
	m.entries[e.Key] = &e
}

func (m *Memory[T]) Delete(keys ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, k := range keys {
		if _, ok := m.entries[k]; ok {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

func (m *Memory[T]) Clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	m.entries = make(map[string]*Entry[T], m.capacity)
	return n
}

func (m *Memory[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Cleanup drops entries that can no longer be served and returns their count.
func (m *Memory[T]) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for k, e := range m.entries {
		if !e.Servable(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

func (m *Memory[T]) ActiveStrategy() Strategy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

type MemoryStats struct {
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	Strategy  string  `json:"strategy"`
	Active    string  `json:"active_strategy"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Switches  int64   `json:"strategy_switches"`
	HitRate   float64 `json:"hit_rate"`
}

func (m *Memory[T]) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rate float64
	if total := m.hits + m.misses; total > 0 {
		rate = float64(m.hits) / float64(total)
	}
	return MemoryStats{
		Size:      len(m.entries),
		Capacity:  m.capacity,
		Strategy:  string(m.strategy),
		Active:    string(m.active),
		Hits:      m.hits,
		Misses:    m.misses,
		Evictions: m.evictions,
		Switches:  m.switches,
		HitRate:   rate,
	}
}

// observe feeds the adaptive policy. A hit rate falling by more than the
// tolerance between two windows flips LRU and LFU.
func (m *Memory[T]) observe(hit bool) {
	if m.strategy != StrategyAdaptive {
		return
	}
	m.windowTotal++
	if hit {
		m.windowHits++
	}
	if m.windowTotal < m.window {
		return
	}

	rate := float64(m.windowHits) / float64(m.windowTotal)
	if m.hasLastRate && rate < m.lastHitRate-adaptiveDropTolerance {
		from := m.active
		if m.active == StrategyLRU {
			m.active = StrategyLFU
		} else {
			m.active = StrategyLRU
		}
		m.switches++
		logger.Info("cache_strategy_switch",
			"from", string(from),
			"to", string(m.active),
			"hit_rate", rate,
			"previous_hit_rate", m.lastHitRate,
		)
	}
	m.lastHitRate = rate
	m.hasLastRate = true
	m.windowHits = 0
	m.windowTotal = 0
}

func (m *Memory[T]) evictLocked() {
	now := m.now()
	for k, e := range m.entries {
		if !e.Servable(now) {
			delete(m.entries, k)
			m.evictions++
		}
	}
	if len(m.entries) < m.capacity {
		return
	}

	var victim *Entry[T]
	for _, e := range m.entries {
		if victim == nil || m.before(e, victim) {
			victim = e
		}
	}
	if victim != nil {
		delete(m.entries, victim.Key)
		m.evictions++
	}
}

// before reports whether a should be evicted ahead of b.
func (m *Memory[T]) before(a, b *Entry[T]) bool {
	switch m.active {
	case StrategyLFU:
		if a.Hits != b.Hits {
			return a.Hits < b.Hits
		}
	case StrategyTTL:
		if !a.ExpiresAt.Equal(b.ExpiresAt) {
			return a.ExpiresAt.Before(b.ExpiresAt)
		}
	}
	if !a.LastAccess.Equal(b.LastAccess) {
		return a.LastAccess.Before(b.LastAccess)
	}
	return a.Key < b.Key
}
