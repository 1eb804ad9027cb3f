package scoring

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolAdvisor/domain"
)

func TestModelStore_ApplyRewards(t *testing.T) {
	store := NewModelStore(DefaultStoreConfig())

	cases := map[domain.FeedbackType]float64{
		domain.FeedbackShown:     0,
		domain.FeedbackSelected:  1,
		domain.FeedbackCompleted: 3,
		domain.FeedbackDismissed: -1,
	}
	for typ, want := range cases {
		got, err := store.Apply(feedback("u", "t", typ))
		require.NoError(t, err)
		assert.Equal(t, want, got, typ)
	}
	assert.Equal(t, 4, store.UserSupport("u"))

	_, err := store.Apply(feedback("u", "t", "clicked"))
	assert.Error(t, err)
	assert.Equal(t, 4, store.UserSupport("u"))
}

func TestModelStore_SnapshotIsDeepCopy(t *testing.T) {
	store := NewModelStore(DefaultStoreConfig())
	_, err := store.Apply(feedback("u", "t", domain.FeedbackSelected))
	require.NoError(t, err)

	snap := store.Snapshot()
	snap.Interactions["u"]["t"] = 100
	snap.Arms["t"].Count = 100

	again := store.Snapshot()
	assert.Equal(t, 1.0, again.Interactions["u"]["t"])
	assert.Equal(t, 1, again.Arms["t"].Count)
}

func TestModelStore_RestoreAndDirty(t *testing.T) {
	src := NewModelStore(DefaultStoreConfig())
	_, err := src.Apply(feedback("u", "t", domain.FeedbackCompleted))
	require.NoError(t, err)
	assert.True(t, src.TakeDirty())
	assert.False(t, src.TakeDirty())

	dst := NewModelStore(DefaultStoreConfig())
	dst.Restore(src.Snapshot())
	assert.Equal(t, 1, dst.UserSupport("u"))
	assert.False(t, dst.TakeDirty())

	dst.Restore(&ModelState{})
	assert.Equal(t, 0, dst.UserSupport("u"))
	_, err = dst.Apply(feedback("u", "t", domain.FeedbackSelected))
	assert.NoError(t, err)
}

func TestModelStore_DecayPrunesFadedInteractions(t *testing.T) {
	cfg := DefaultStoreConfig()
	cfg.DecayRate = 0.5
	store := NewModelStore(cfg)
	_, err := store.Apply(feedback("u", "t", domain.FeedbackSelected))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		store.Decay()
	}
	assert.Empty(t, store.Snapshot().Interactions)
}

func TestCapArms_DropsOldestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	arms := make(map[string]*ArmState)
	for i := 0; i < 5; i++ {
		arm := newArmState()
		arm.LastUpdated = base.Add(time.Duration(i) * time.Hour)
		arms[fmt.Sprintf("tool-%d", i)] = arm
	}

	capArms(arms, 3)

	assert.Len(t, arms, 3)
	assert.NotContains(t, arms, "tool-0")
	assert.NotContains(t, arms, "tool-1")
	assert.Contains(t, arms, "tool-4")
}

func TestInvert_RoundTrip(t *testing.T) {
	arm := newArmState()
	for _, x := range []vector{
		{1, 0.33, 0.25, 0.5, 0.1, 0.9, 0},
		{1, 0.66, 1, 0.2, 0.7, 0.5, 0.3},
		{1, 0, 0.5, 0.5, 0.5, 0.5, 0.8},
	} {
		addOuter(&arm.A, x)
	}

	inv, err := invert(arm.A)
	require.NoError(t, err)

	for i := range featureDim {
		for j := range featureDim {
			sum := 0.0
			for k := range featureDim {
				sum += arm.A[i][k] * inv[k][j]
			}
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, sum, 1e-9)
		}
	}

	_, err = invert(matrix{})
	assert.Error(t, err)
}
