package recommendation

import (
	"context"
	"time"

	"toolAdvisor/domain"
	"toolAdvisor/pkg/logger"
)

// StreamRecommendations emits an initial event for req, then an update for
// every context update received and, when StreamRefreshInterval is set, on
// every tick. Failures become error events and the stream carries on. The
// channel closes when ctx is done or updates is closed; scoring already in
// flight is left to finish for any other waiter.
func (e *Engine) StreamRecommendations(ctx context.Context, req domain.RecommendationRequest, updates <-chan domain.ContextUpdate) <-chan domain.StreamEvent {
	out := make(chan domain.StreamEvent, 1)

	go func() {
		defer close(out)

		var tick <-chan time.Time
		if e.cfg.StreamRefreshInterval > 0 {
			t := time.NewTicker(e.cfg.StreamRefreshInterval)
			defer t.Stop()
			tick = t.C
		}

		if !e.emit(ctx, out, domain.StreamInitial, req) {
			return
		}

		for {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				req = u.Apply(req)
				req.RequestID = ""
				if !e.emit(ctx, out, domain.StreamUpdate, req) {
					return
				}
			case <-tick:
				req.RequestID = ""
				if !e.emit(ctx, out, domain.StreamUpdate, req) {
					return
				}
			}
		}
	}()
	return out
}

// emit scores req and sends the event; it reports false once ctx is done.
func (e *Engine) emit(ctx context.Context, out chan<- domain.StreamEvent, typ domain.StreamEventType, req domain.RecommendationRequest) bool {
	resp, err := e.GetRecommendations(ctx, req)
	if ctx.Err() != nil {
		return false
	}

	ev := domain.StreamEvent{Type: typ, Data: resp, Timestamp: e.now()}
	if err != nil {
		status := resp.Status
		ev = domain.StreamEvent{Type: domain.StreamError, Error: &status, Timestamp: e.now()}
		logger.Debug("reco_stream_error",
			"trace_id", TraceIDFromContext(ctx),
			"user_id", req.UserID,
			"code", status.Code,
		)
	}

	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
