package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolAdvisor/domain"
)

type recordingRepo struct {
	mu     sync.Mutex
	events []*domain.UsageEvent
	block  chan struct{}
	err    error
}

func (r *recordingRepo) SaveEvent(_ context.Context, ev *domain.UsageEvent) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestDispatcher_DeliversAndDrainsOnClose(t *testing.T) {
	repo := &recordingRepo{}
	d := NewDispatcher(repo, Config{QueueSize: 16})

	for i := 0; i < 10; i++ {
		assert.True(t, d.Track(&domain.UsageEvent{EventType: "recommendation_served", UserID: "u1"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	assert.Equal(t, 10, repo.count())

	assert.False(t, d.Track(&domain.UsageEvent{EventType: "late"}))
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	repo := &recordingRepo{block: make(chan struct{})}
	d := NewDispatcher(repo, Config{QueueSize: 1})

	accepted := 0
	for i := 0; i < 5; i++ {
		if d.Track(&domain.UsageEvent{EventType: "e", UserID: "u"}) {
			accepted++
		}
	}
	// one event held by the blocked consumer, one in the queue
	assert.LessOrEqual(t, accepted, 2)
	assert.Equal(t, int64(5-accepted), d.Dropped())

	close(repo.block)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, accepted, repo.count())
}

func TestDispatcher_SaveErrorsDoNotStopConsumer(t *testing.T) {
	repo := &recordingRepo{err: errors.New("insert failed")}
	d := NewDispatcher(repo, Config{QueueSize: 4})

	d.Track(&domain.UsageEvent{EventType: "a"})
	d.Track(&domain.UsageEvent{EventType: "b"})
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 2, repo.count())
}

func TestDispatcher_CloseHonoursContext(t *testing.T) {
	repo := &recordingRepo{block: make(chan struct{})}
	d := NewDispatcher(repo, Config{QueueSize: 2})
	d.Track(&domain.UsageEvent{EventType: "stuck"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)

	close(repo.block)
	require.NoError(t, d.Close(context.Background()))
}
