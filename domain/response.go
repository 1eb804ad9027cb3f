package domain

import "time"

type CacheInfo struct {
	CacheHit     bool    `json:"cache_hit"`
	Level        string  `json:"level,omitempty"`
	AgeMs        float64 `json:"age_ms"`
	Stale        bool    `json:"stale"`
	Deduplicated bool    `json:"deduplicated,omitempty"`
}

// PerformanceMetrics carries per-stage wall time in milliseconds.
type PerformanceMetrics struct {
	StagesMs map[string]float64 `json:"stages_ms"`
	TotalMs  float64            `json:"total_ms"`
}

type Status struct {
	Success  bool     `json:"success"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	// RetryAfterSeconds is set for rate-limited responses.
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`
}

const StatusCodeOK = "OK"

type RecommendationResponse struct {
	RequestID       string                     `json:"request_id"`
	UserID          string                     `json:"user_id"`
	Recommendations []ContextualRecommendation `json:"recommendations"`
	Alternatives    []Counterfactual           `json:"alternatives,omitempty"`
	Variant         string                     `json:"variant,omitempty"`
	CacheInfo       CacheInfo                  `json:"cache_info"`
	Performance     PerformanceMetrics         `json:"performance_metrics"`
	Status          Status                     `json:"status"`
	GeneratedAt     time.Time                  `json:"generated_at"`
}

type StreamEventType string

const (
	StreamInitial StreamEventType = "initial"
	StreamUpdate  StreamEventType = "update"
	StreamError   StreamEventType = "error"
)

type StreamEvent struct {
	Type      StreamEventType         `json:"type"`
	Data      *RecommendationResponse `json:"data,omitempty"`
	Error     *Status                 `json:"error,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

// InvalidationCriteria selects cache entries to drop. Criteria combine as a union.
type InvalidationCriteria struct {
	UserID       string   `json:"user_id,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Keys         []string `json:"keys,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	All          bool     `json:"all,omitempty"`
}

func (c InvalidationCriteria) IsEmpty() bool {
	return c.UserID == "" && len(c.Tags) == 0 && len(c.Keys) == 0 && len(c.Dependencies) == 0 && !c.All
}

type InvalidationResult struct {
	Invalidated int      `json:"invalidated"`
	Errors      []string `json:"errors"`
}

type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

type HealthStatus struct {
	Status              HealthState        `json:"status"`
	Metrics             map[string]float64 `json:"metrics"`
	CacheStats          map[string]any     `json:"cache_stats"`
	CircuitBreakerState string             `json:"circuit_breaker_state"`
	RateLimiter         map[string]any     `json:"rate_limiter"`
	CheckedAt           time.Time          `json:"checked_at"`
}
