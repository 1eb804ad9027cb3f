package recommendation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"toolAdvisor/business/confidence"
	"toolAdvisor/business/experiment"
	"toolAdvisor/business/explanation"
	"toolAdvisor/business/scoring"
	"toolAdvisor/domain"
	"toolAdvisor/pkg/cache"
	"toolAdvisor/pkg/logger"
	"toolAdvisor/pkg/metrics"
	"toolAdvisor/pkg/resilience"
)

const breakerName = "scoring"

// ---- Collaborators ----

// ToolProvider is the catalog of recommendable tools.
type ToolProvider interface {
	GetTool(ctx context.Context, id string) (*domain.Tool, error)
	ListTools(ctx context.Context) ([]domain.Tool, error)
}

type ModelStateRepository interface {
	LoadModelState(ctx context.Context) (*scoring.ModelState, error)
	SaveModelState(ctx context.Context, state *scoring.ModelState) error
}

// AnalyticsSink receives usage events. Track must not block.
type AnalyticsSink interface {
	Track(ev *domain.UsageEvent) bool
}

type VariantAssigner interface {
	GetVariant(ctx context.Context, userID string) (experiment.Assignment, bool)
}

// Dependencies are the collaborators of one engine. Tools is required.
type Dependencies struct {
	Tools     ToolProvider
	ModelRepo ModelStateRepository
	Analytics AnalyticsSink
	Variants  VariantAssigner
	L2        cache.Tier
	L3        cache.Tier
	// Algorithms replaces the default scorers built on the model store.
	Algorithms []scoring.Algorithm
	Now        func() time.Time
}

// ---- Engine ----

type Engine struct {
	cfg       Config
	tools     ToolProvider
	modelRepo ModelStateRepository
	analytics AnalyticsSink
	variants  VariantAssigner
	now       func() time.Time

	store     *scoring.ModelStore
	ranker    *scoring.Ranker
	analyzer  *confidence.Analyzer
	explainer *explanation.Generator
	cache     *cache.MultiLevel[domain.RecommendationResponse]
	breaker   *resilience.CircuitBreaker
	limiter   *resilience.RateLimiter
	flights   singleflight.Group
	validate  *validator.Validate

	counters counters

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type counters struct {
	requests     atomic.Int64
	failures     atomic.Int64
	cacheHits    atomic.Int64
	deduplicated atomic.Int64
	latencyMicro atomic.Int64
}

// Option customises an engine after construction; used mainly by tests.
type Option func(*Engine)

// WithExplanationGenerator swaps the explanation generator.
func WithExplanationGenerator(g *explanation.Generator) Option {
	return func(e *Engine) {
		e.explainer = g
	}
}

func NewEngine(cfg Config, deps Dependencies, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Tools == nil {
		return nil, domain.NewConfigurationError("a tool provider is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	store := scoring.NewModelStore(cfg.Store)
	algorithms := deps.Algorithms
	if len(algorithms) == 0 {
		algorithms = []scoring.Algorithm{
			scoring.NewCollaborative(store),
			scoring.NewContentBased(),
			scoring.NewContextual(store),
		}
	}
	ranker, err := scoring.NewRanker(algorithms...)
	if err != nil {
		return nil, err
	}
	analyzer, err := confidence.NewAnalyzer(cfg.Confidence)
	if err != nil {
		return nil, err
	}

	cacheCfg := cfg.Cache
	var levels []cache.Level
	if deps.L2 != nil {
		levels = append(levels, cache.Level{Tier: deps.L2, TTL: cfg.L2TTL})
	}
	if deps.L3 != nil {
		levels = append(levels, cache.Level{Tier: deps.L3, TTL: cfg.L3TTL})
	}

	breakerCfg := cfg.Breaker
	userHook := breakerCfg.OnStateChange
	breakerCfg.OnStateChange = func(name string, from, to resilience.State) {
		metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		if userHook != nil {
			userHook(name, from, to)
		}
	}

	e := &Engine{
		cfg:       cfg,
		tools:     deps.Tools,
		modelRepo: deps.ModelRepo,
		analytics: deps.Analytics,
		variants:  deps.Variants,
		now:       now,
		store:     store,
		ranker:    ranker,
		analyzer:  analyzer,
		explainer: explanation.NewGenerator(),
		cache:     cache.NewMultiLevel[domain.RecommendationResponse](cacheCfg, levels...).WithClock(now),
		breaker:   resilience.NewCircuitBreaker(breakerName, breakerCfg).WithClock(now),
		limiter:   resilience.NewRateLimiter(cfg.RateLimit).WithClock(now),
		validate:  validator.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Store exposes the learned model; it is owned by the engine.
func (e *Engine) Store() *scoring.ModelStore {
	return e.store
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Start loads persisted model state and launches the background workers:
// cache cleanup, rate limiter cleanup and the retraining tick.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil
	}

	if e.modelRepo != nil {
		st, err := e.modelRepo.LoadModelState(ctx)
		if err != nil {
			return fmt.Errorf("load model state: %w", err)
		}
		if st != nil {
			e.store.Restore(st)
			logger.Info("model_state_loaded", "arms", len(st.Arms), "users", len(st.Events))
		}
	}

	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.started = true

	e.cache.Start(bg)
	e.limiter.StartCleanup(bg)

	if e.cfg.RetrainInterval > 0 {
		e.wg.Add(1)
		go e.retrainLoop(bg)
	}
	return nil
}

func (e *Engine) retrainLoop(ctx context.Context) {
	defer e.wg.Done()
	t := time.NewTicker(e.cfg.RetrainInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.Retrain(ctx)
		}
	}
}

// Retrain decays the learned state and persists it when it changed.
func (e *Engine) Retrain(ctx context.Context) {
	start := e.now()
	e.store.Decay()
	if !e.store.TakeDirty() {
		return
	}
	if err := e.persistModel(ctx); err != nil {
		logger.Error("model_state_persist_failed", "error", err)
		return
	}
	logger.Info("model_retrained", "took_ms", float64(e.now().Sub(start).Microseconds())/1000)
}

func (e *Engine) persistModel(ctx context.Context) error {
	if e.modelRepo == nil {
		return nil
	}
	if err := e.modelRepo.SaveModelState(ctx, e.store.Snapshot()); err != nil {
		return fmt.Errorf("save model state: %w", err)
	}
	return nil
}

// Close stops background work, persists the model and clears the cache.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.started = false
	e.mu.Unlock()

	e.wg.Wait()
	e.cache.Wait()

	err := e.persistModel(ctx)
	if _, cerr := e.cache.Clear(ctx); cerr != nil {
		logger.Warn("cache_clear_failed", "error", cerr)
	}
	return err
}
