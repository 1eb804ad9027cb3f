package analytics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"toolAdvisor/domain"
	"toolAdvisor/pkg/logger"
	"toolAdvisor/pkg/metrics"
)

var ErrClosed = errors.New("analytics dispatcher closed")

// EventRepository persists usage events.
type EventRepository interface {
	SaveEvent(ctx context.Context, ev *domain.UsageEvent) error
}

type Config struct {
	QueueSize    int           `yaml:"queue_size"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

func DefaultConfig() Config {
	return Config{QueueSize: 1024, WriteTimeout: 2 * time.Second}
}

// Dispatcher fires usage events at the repository from a single background
// consumer. Tracking never blocks the caller.
type Dispatcher struct {
	repo    EventRepository
	cfg     Config
	queue   chan *domain.UsageEvent
	done    chan struct{}
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

func NewDispatcher(repo EventRepository, cfg Config) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	d := &Dispatcher{
		repo:  repo,
		cfg:   cfg,
		queue: make(chan *domain.UsageEvent, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Track enqueues ev. It reports false when the event was dropped.
func (d *Dispatcher) Track(ev *domain.UsageEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	select {
	case d.queue <- ev:
		return true
	default:
		d.dropped.Add(1)
		metrics.AnalyticsDropped.Inc()
		logger.Warn("analytics_event_dropped", "event_type", ev.EventType, "user_id", ev.UserID)
		return false
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		d.write(ev)
	}
}

func (d *Dispatcher) write(ev *domain.UsageEvent) {
	if d.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.WriteTimeout)
	defer cancel()

	if err := d.repo.SaveEvent(ctx, ev); err != nil {
		logger.Error("analytics_save_failed", "event_type", ev.EventType, "user_id", ev.UserID, "error", err)
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped is the number of events discarded on a full queue.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}
