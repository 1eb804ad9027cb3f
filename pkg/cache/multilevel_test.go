package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string   `json:"name"`
	Score float64  `json:"score"`
	Tags  []string `json:"tags"`
}

type brokenTier struct{}

func (brokenTier) Name() string { return "broken" }
func (brokenTier) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (brokenTier) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (brokenTier) Delete(context.Context, ...string) error { return nil }

func newLevels(t *testing.T, clock *testClock) (*LRUTier, *LRUTier) {
	t.Helper()
	l2, err := NewLRUTier("l2-lru", 100)
	require.NoError(t, err)
	l3, err := NewLRUTier("l3-lru", 100)
	require.NoError(t, err)
	l2.WithClock(clock.Now)
	l3.WithClock(clock.Now)
	return l2, l3
}

func TestMultiLevel_SetThenGetHitsL1(t *testing.T) {
	clock := newTestClock()
	l2, l3 := newLevels(t, clock)
	c := NewMultiLevel[payload](DefaultConfig(), Level{Tier: l2}, Level{Tier: l3}).WithClock(clock.Now)
	ctx := context.Background()

	want := payload{Name: "formatter", Score: 0.8, Tags: []string{"x"}}
	require.NoError(t, c.Set(ctx, "k1", want, SetOptions{TTL: time.Minute}))

	res, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, LevelL1, res.Level)
	assert.Equal(t, want, res.Value)
	assert.False(t, res.Stale)
	assert.Equal(t, 1, l2.Len())
	assert.Equal(t, 1, l3.Len())
}

func TestMultiLevel_FallThroughPromotes(t *testing.T) {
	clock := newTestClock()
	l2, l3 := newLevels(t, clock)
	ctx := context.Background()

	writer := NewMultiLevel[payload](DefaultConfig(), Level{Tier: l3}).WithClock(clock.Now)
	want := payload{Name: "linter", Score: 0.6}
	require.NoError(t, writer.Set(ctx, "k1", want, SetOptions{TTL: time.Minute, Tags: []string{"user:1"}}))

	reader := NewMultiLevel[payload](DefaultConfig(), Level{Tier: l2}, Level{Tier: l3}).WithClock(clock.Now)
	clock.Advance(10 * time.Second)

	res, ok := reader.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, "l3", res.Level)
	assert.Equal(t, want, res.Value)
	assert.Equal(t, 10*time.Second, res.Age)
	assert.Equal(t, 1, l2.Len())

	res, ok = reader.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, LevelL1, res.Level)

	n, err := reader.InvalidateTags(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMultiLevel_TierErrorsAreMisses(t *testing.T) {
	c := NewMultiLevel[payload](DefaultConfig(), Level{Tier: brokenTier{}})
	ctx := context.Background()

	err := c.Set(ctx, "k", payload{Name: "a"}, SetOptions{TTL: time.Minute})
	assert.Error(t, err)

	res, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, LevelL1, res.Level)

	_, ok = c.Get(ctx, "missing")
	assert.False(t, ok)
	assert.GreaterOrEqual(t, c.Stats().TierErrors, int64(2))
}

func TestMultiLevel_StaleWhileRevalidate(t *testing.T) {
	clock := newTestClock()
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.StaleWhileRevalidate = true
	c := NewMultiLevel[payload](cfg).WithClock(clock.Now)

	require.NoError(t, c.Set(ctx, "k", payload{Name: "old"}, SetOptions{TTL: time.Minute, MaxAge: 10 * time.Minute}))
	clock.Advance(2 * time.Minute)

	res, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.True(t, res.Stale)
	assert.Equal(t, "old", res.Value.Name)

	started := c.Revalidate("k", func(context.Context) (payload, SetOptions, error) {
		return payload{Name: "new"}, SetOptions{TTL: time.Minute}, nil
	})
	require.True(t, started)
	c.Wait()

	res, ok = c.Get(ctx, "k")
	require.True(t, ok)
	assert.False(t, res.Stale)
	assert.Equal(t, "new", res.Value.Name)
	assert.Equal(t, int64(1), c.Stats().Revalidations)
}

func TestMultiLevel_StaleIsMissWithoutRevalidate(t *testing.T) {
	clock := newTestClock()
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.StaleWhileRevalidate = false
	c := NewMultiLevel[payload](cfg).WithClock(clock.Now)

	require.NoError(t, c.Set(ctx, "k", payload{Name: "old"}, SetOptions{TTL: time.Minute, MaxAge: 10 * time.Minute}))
	clock.Advance(2 * time.Minute)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMultiLevel_RevalidateSharesLoad(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RevalidateWorkers = 8
	c := NewMultiLevel[payload](cfg)

	var loads atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (payload, SetOptions, error) {
		loads.Add(1)
		<-release
		return payload{Name: "fresh"}, SetOptions{TTL: time.Minute}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Revalidate("k", load)
		}()
	}
	wg.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	c.Wait()

	assert.Equal(t, int32(1), loads.Load())
}

func TestMultiLevel_TagInvalidationRemovesOnlyTagged(t *testing.T) {
	clock := newTestClock()
	l2, _ := newLevels(t, clock)
	c := NewMultiLevel[payload](DefaultConfig(), Level{Tier: l2}).WithClock(clock.Now)
	ctx := context.Background()

	opts := func(tags ...string) SetOptions { return SetOptions{TTL: time.Minute, Tags: tags} }
	require.NoError(t, c.Set(ctx, "a", payload{Name: "a"}, opts("user:1", "intent:debug")))
	require.NoError(t, c.Set(ctx, "b", payload{Name: "b"}, opts("user:1")))
	require.NoError(t, c.Set(ctx, "c", payload{Name: "c"}, opts("user:2")))

	n, err := c.InvalidateTags(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, okA := c.Get(ctx, "a")
	_, okB := c.Get(ctx, "b")
	_, okC := c.Get(ctx, "c")
	assert.False(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)

	n, err = c.InvalidateTags(ctx, "intent:debug")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMultiLevel_DependencyInvalidationCascades(t *testing.T) {
	c := NewMultiLevel[payload](DefaultConfig())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "profile", payload{}, SetOptions{TTL: time.Minute, Dependencies: []string{"catalog"}}))
	require.NoError(t, c.Set(ctx, "reco", payload{}, SetOptions{TTL: time.Minute, Dependencies: []string{"profile"}}))
	require.NoError(t, c.Set(ctx, "other", payload{}, SetOptions{TTL: time.Minute}))

	n, err := c.InvalidateDependencies(ctx, "catalog")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok := c.Get(ctx, "reco")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "other")
	assert.True(t, ok)
}

func TestMultiLevel_ClearAndCleanup(t *testing.T) {
	clock := newTestClock()
	c := NewMultiLevel[payload](DefaultConfig()).WithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", payload{}, SetOptions{TTL: time.Minute, Tags: []string{"t"}}))
	require.NoError(t, c.Set(ctx, "b", payload{}, SetOptions{TTL: time.Hour}))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, c.Cleanup())
	assert.Equal(t, 1, c.Stats().IndexedKeys)
	assert.Equal(t, 0, c.Stats().Tags)

	n, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMultiLevel_SetRejectsZeroTTL(t *testing.T) {
	c := NewMultiLevel[payload](DefaultConfig())
	assert.Error(t, c.Set(context.Background(), "k", payload{}, SetOptions{}))
}
