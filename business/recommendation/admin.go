package recommendation

import (
	"context"
	"fmt"

	"toolAdvisor/domain"
	"toolAdvisor/pkg/logger"
	"toolAdvisor/pkg/resilience"
)

// Health thresholds.
const (
	degradedErrorRate  = 0.1
	unhealthyErrorRate = 0.5
	minHealthSample    = 20
)

// ResetModel drops everything learned from feedback, persists the empty
// state and clears results scored with the old one.
func (e *Engine) ResetModel(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	e.store.Reset()
	if err := e.persistModel(ctx); err != nil {
		return err
	}
	e.store.TakeDirty()

	n, err := e.cache.Clear(ctx)
	if err != nil {
		return domain.NewCacheError("clear after model reset", err)
	}
	logger.Info("model_reset", "invalidated", n)
	return nil
}

// ResetCircuit forces the scoring circuit closed and returns its new state.
func (e *Engine) ResetCircuit() string {
	e.breaker.Reset()
	return e.breaker.State().String()
}

// InvalidateCache drops every entry matched by any of the criteria. Cache
// failures are reported in the result, never returned.
func (e *Engine) InvalidateCache(ctx context.Context, c domain.InvalidationCriteria) domain.InvalidationResult {
	res := domain.InvalidationResult{Errors: []string{}}
	if c.IsEmpty() {
		res.Errors = append(res.Errors, "no invalidation criteria given")
		return res
	}

	record := func(what string, n int, err error) {
		res.Invalidated += n
		if err != nil {
			ce := domain.NewCacheError(fmt.Sprintf("invalidate %s", what), err)
			res.Errors = append(res.Errors, ce.Error())
			logger.Warn("cache_invalidate_failed", "what", what, "error", ce)
		}
	}

	if c.All {
		n, err := e.cache.Clear(ctx)
		record("all", n, err)
		logger.Info("cache_invalidated", "all", true, "invalidated", res.Invalidated)
		return res
	}

	tags := append([]string(nil), c.Tags...)
	if c.UserID != "" {
		tags = append(tags, UserTag(c.UserID))
	}
	if len(tags) > 0 {
		n, err := e.cache.InvalidateTags(ctx, tags...)
		record("tags", n, err)
	}
	if len(c.Dependencies) > 0 {
		n, err := e.cache.InvalidateDependencies(ctx, c.Dependencies...)
		record("dependencies", n, err)
	}
	if len(c.Keys) > 0 {
		n, err := e.cache.InvalidateKeys(ctx, c.Keys...)
		record("keys", n, err)
	}

	logger.Info("cache_invalidated",
		"trace_id", TraceIDFromContext(ctx),
		"user_id", c.UserID,
		"tags", len(c.Tags),
		"dependencies", len(c.Dependencies),
		"keys", len(c.Keys),
		"invalidated", res.Invalidated,
	)
	return res
}

// HealthStatus summarises the engine: unhealthy while the circuit is open or
// most requests fail, degraded while half-open, when failures are frequent
// or when a lower cache tier is erroring.
func (e *Engine) HealthStatus(ctx context.Context) domain.HealthStatus {
	requests := e.counters.requests.Load()
	failures := e.counters.failures.Load()
	hits := e.counters.cacheHits.Load()

	errorRate, hitRate, avgMs := 0.0, 0.0, 0.0
	if requests > 0 {
		errorRate = float64(failures) / float64(requests)
		hitRate = float64(hits) / float64(requests)
		avgMs = float64(e.counters.latencyMicro.Load()) / float64(requests) / 1000
	}

	cs := e.cache.Stats()
	breaker := e.breaker.Snapshot()

	state := domain.HealthHealthy
	switch {
	case e.breaker.State() == resilience.StateOpen,
		requests >= minHealthSample && errorRate >= unhealthyErrorRate:
		state = domain.HealthUnhealthy
	case e.breaker.State() == resilience.StateHalfOpen,
		requests >= minHealthSample && errorRate >= degradedErrorRate,
		cs.TierErrors > 0:
		state = domain.HealthDegraded
	}

	levelHits := make(map[string]any, len(cs.LevelHits))
	for k, v := range cs.LevelHits {
		levelHits[k] = v
	}

	return domain.HealthStatus{
		Status: state,
		Metrics: map[string]float64{
			"requests_total":     float64(requests),
			"failures_total":     float64(failures),
			"error_rate":         errorRate,
			"cache_hit_rate":     hitRate,
			"deduplicated_total": float64(e.counters.deduplicated.Load()),
			"avg_latency_ms":     avgMs,
			"breaker_rejected":   float64(breaker.Rejected),
			"breaker_failures":   float64(breaker.Failures),
		},
		CacheStats: map[string]any{
			"l1_size":             cs.L1.Size,
			"l1_capacity":         cs.L1.Capacity,
			"l1_strategy":         cs.L1.Strategy,
			"l1_active_strategy":  cs.L1.Active,
			"l1_hit_rate":         cs.L1.HitRate,
			"l1_evictions":        cs.L1.Evictions,
			"l1_strategy_changes": cs.L1.Switches,
			"level_hits":          levelHits,
			"misses":              cs.Misses,
			"stale_served":        cs.StaleServed,
			"revalidations":       cs.Revalidations,
			"tier_errors":         cs.TierErrors,
			"indexed_keys":        cs.IndexedKeys,
			"tags":                cs.Tags,
		},
		CircuitBreakerState: breaker.State,
		RateLimiter:         e.limiter.Stats(),
		CheckedAt:           e.now(),
	}
}
