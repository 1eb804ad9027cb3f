package recommendation

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"

	"toolAdvisor/domain"
	"toolAdvisor/pkg/logger"
	"toolAdvisor/pkg/metrics"
)

const eventFeedback = "feedback"

// ErrToolNotFound is returned by tool providers for unknown ids.
var ErrToolNotFound = errors.New("tool not found")

// RecordFeedback folds a user reaction into the learned model and drops the
// user's cached rankings.
func (e *Engine) RecordFeedback(ctx context.Context, ev domain.FeedbackEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if err := e.validate.Struct(ev); err != nil {
		return domain.NewValidationError("invalid feedback: %v", err)
	}

	if _, err := e.tools.GetTool(ctx, ev.ToolID); err != nil {
		if errors.Is(err, ErrToolNotFound) {
			return domain.NewValidationError("unknown tool %q", ev.ToolID)
		}
		return domain.NewInternalError("load tool", err)
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	reward, err := e.store.Apply(ev)
	if err != nil {
		return domain.NewValidationError("%v", err)
	}

	variant := ""
	if e.variants != nil {
		if a, ok := e.variants.GetVariant(ctx, ev.UserID); ok {
			variant = a.Variant
		}
	}
	metrics.FeedbackEvents.WithLabelValues(string(ev.Type), variant).Inc()

	n, err := e.cache.InvalidateTags(ctx, UserTag(ev.UserID))
	if err != nil {
		logger.Warn("cache_invalidate_failed",
			"user_id", ev.UserID,
			"error", domain.NewCacheError("invalidate user", err),
		)
	}

	if e.analytics != nil {
		e.analytics.Track(&domain.UsageEvent{
			EventType: eventFeedback,
			UserID:    ev.UserID,
			ToolID:    ev.ToolID,
			Variant:   variant,
			Properties: datatypes.JSONMap{
				"type":   string(ev.Type),
				"reward": reward,
			},
		})
	}

	logger.Debug("reco_feedback",
		"trace_id", TraceIDFromContext(ctx),
		"user_id", ev.UserID,
		"tool_id", ev.ToolID,
		"type", string(ev.Type),
		"variant", variant,
		"reward", reward,
		"invalidated", n,
	)
	return nil
}
