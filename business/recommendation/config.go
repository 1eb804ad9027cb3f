package recommendation

import (
	"time"

	"toolAdvisor/business/analytics"
	"toolAdvisor/business/confidence"
	"toolAdvisor/business/experiment"
	"toolAdvisor/business/scoring"
	"toolAdvisor/domain"
	"toolAdvisor/pkg/cache"
	"toolAdvisor/pkg/resilience"
)

// Config carries every engine tunable. Zero values are not defaults: start
// from DefaultConfig and override.
type Config struct {
	// SchemaVersion is folded into every cache key; bumping it orphans old entries.
	SchemaVersion string `yaml:"schema_version"`

	Weights             scoring.Weights `yaml:"weights"`
	ConfidenceThreshold float64         `yaml:"confidence_threshold"`
	MaxRecommendations  int             `yaml:"max_recommendations"`
	MaxAlternatives     int             `yaml:"max_alternatives"`
	MaxHistory          int             `yaml:"max_history"`

	RequestTimeout        time.Duration `yaml:"request_timeout"`
	MaxBatchSize          int           `yaml:"max_batch_size"`
	MaxConcurrentRequests int           `yaml:"max_concurrent_requests"`
	StreamRefreshInterval time.Duration `yaml:"stream_refresh_interval"`
	RetrainInterval       time.Duration `yaml:"retrain_interval"`
	HideInternalErrors    bool          `yaml:"hide_internal_errors"`

	Cache cache.Config `yaml:"cache"`
	// CacheTTL is scaled by 0.5 + mean confidence of the stored result.
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	CacheMaxAge time.Duration `yaml:"cache_max_age"`
	L2TTL       time.Duration `yaml:"l2_ttl"`
	L3TTL       time.Duration `yaml:"l3_ttl"`

	RateLimit   resilience.RateLimitConfig `yaml:"rate_limit"`
	Breaker     resilience.BreakerConfig   `yaml:"circuit_breaker"`
	Confidence  confidence.Config          `yaml:"confidence"`
	Store       scoring.StoreConfig        `yaml:"model"`
	Experiments experiment.Config          `yaml:"experiments"`
	Analytics   analytics.Config           `yaml:"analytics"`
}

func DefaultConfig() Config {
	return Config{
		SchemaVersion:         "1",
		Weights:               scoring.DefaultWeights(),
		ConfidenceThreshold:   0.3,
		MaxRecommendations:    5,
		MaxAlternatives:       3,
		MaxHistory:            20,
		RequestTimeout:        5 * time.Second,
		MaxBatchSize:          50,
		MaxConcurrentRequests: 8,
		RetrainInterval:       10 * time.Minute,
		HideInternalErrors:    true,
		Cache:                 cache.DefaultConfig(),
		CacheTTL:              5 * time.Minute,
		CacheMaxAge:           15 * time.Minute,
		L2TTL:                 30 * time.Minute,
		L3TTL:                 2 * time.Hour,
		RateLimit:             resilience.DefaultRateLimitConfig(),
		Breaker:               resilience.DefaultBreakerConfig(),
		Confidence:            confidence.DefaultConfig(),
		Store:                 scoring.DefaultStoreConfig(),
		Experiments:           experiment.Config{Experiment: "default", RefreshInterval: 30 * time.Second},
		Analytics:             analytics.DefaultConfig(),
	}
}

// Validate checks the configuration once, at construction.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if err := c.Confidence.Weights.Validate(); err != nil {
		return err
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return domain.NewConfigurationError("confidence threshold must be within [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.MaxRecommendations <= 0 {
		return domain.NewConfigurationError("max recommendations must be positive, got %d", c.MaxRecommendations)
	}
	if c.MaxAlternatives < 0 {
		return domain.NewConfigurationError("max alternatives must not be negative, got %d", c.MaxAlternatives)
	}
	if c.MaxHistory <= 0 {
		return domain.NewConfigurationError("max history must be positive, got %d", c.MaxHistory)
	}
	if c.RequestTimeout <= 0 {
		return domain.NewConfigurationError("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.MaxBatchSize <= 0 || c.MaxConcurrentRequests <= 0 {
		return domain.NewConfigurationError("batch size and concurrency must be positive")
	}
	if c.StreamRefreshInterval < 0 || c.RetrainInterval < 0 {
		return domain.NewConfigurationError("intervals must not be negative")
	}
	if c.CacheTTL <= 0 {
		return domain.NewConfigurationError("cache ttl must be positive, got %s", c.CacheTTL)
	}
	if c.CacheMaxAge != 0 && c.CacheMaxAge < c.CacheTTL {
		return domain.NewConfigurationError("cache max age %s is shorter than ttl %s", c.CacheMaxAge, c.CacheTTL)
	}
	if c.Cache.Strategy != "" && !c.Cache.Strategy.Valid() {
		return domain.NewConfigurationError("unknown cache strategy %q", c.Cache.Strategy)
	}
	if c.RateLimit.Enabled {
		switch c.RateLimit.Strategy {
		case resilience.FixedWindow, resilience.SlidingWindow, resilience.TokenBucket:
		default:
			return domain.NewConfigurationError("unknown rate limit strategy %q", c.RateLimit.Strategy)
		}
		if c.RateLimit.WindowSize <= 0 || c.RateLimit.MaxRequests <= 0 || c.RateLimit.BurstAllowance < 0 {
			return domain.NewConfigurationError("rate limit window and max requests must be positive")
		}
	}
	if c.Breaker.FailureThreshold <= 0 || c.Breaker.RecoveryTimeout <= 0 || c.Breaker.MonitoringWindow <= 0 {
		return domain.NewConfigurationError("circuit breaker threshold, recovery timeout and monitoring window must be positive")
	}
	return nil
}
