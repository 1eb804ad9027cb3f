package recommendation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"

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

const (
	StageValidation     = "validation"
	StageDedupWait      = "dedup_wait"
	StageCircuitBreaker = "circuit_breaker"
	StageRateLimit      = "rate_limit"
	StageCacheLookup    = "cache_lookup"
	StageScoring        = "scoring"
	StageConfidence     = "confidence"
	StageExplanation    = "explanation"
	StageCacheStore     = "cache_store"
)

// Cache labels attached to stored responses.
const (
	DependencyCatalog     = "catalog"
	DependencyExperiments = "experiments"

	hiddenErrorMessage = "internal error"
	eventServed        = "recommendation_served"
)

func UserTag(userID string) string { return "user:" + userID }

func ToolTag(toolID string) string { return "tool:" + toolID }

func userModelDependency(userID string) string { return "user-model:" + userID }

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// stageTimer accumulates per-stage wall time. It is owned by one goroutine.
type stageTimer struct {
	now    func() time.Time
	stages map[string]float64
}

func newStageTimer(now func() time.Time) *stageTimer {
	return &stageTimer{now: now, stages: make(map[string]float64)}
}

func (t *stageTimer) track(stage string, start time.Time) {
	d := t.now().Sub(start)
	t.stages[stage] += ms(d)
	metrics.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

func (t *stageTimer) merge(other map[string]float64) {
	for k, v := range other {
		t.stages[k] += v
	}
}

// scored is the outcome of one scoring pass.
type scored struct {
	resp   domain.RecommendationResponse
	opts   cache.SetOptions
	stages map[string]float64
	err    error
}

// GetRecommendations runs one request through the pipeline: validation,
// deduplication, circuit breaker, rate limit, cache lookup and, on a miss,
// scoring with confidence analysis and explanations. The returned response
// is never nil; on failure its status block carries the error code.
func (e *Engine) GetRecommendations(ctx context.Context, req domain.RecommendationRequest) (*domain.RecommendationResponse, error) {
	started := e.now()
	timer := newStageTimer(e.now)
	e.counters.requests.Add(1)

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	t0 := e.now()
	req = normalizeRequest(req, e.cfg.MaxHistory, e.cfg.MaxRecommendations)
	err := e.validateRequest(req)
	timer.track(StageValidation, t0)
	if err != nil {
		return e.fail(ctx, req, err, timer, started)
	}
	if err := ctx.Err(); err != nil {
		return e.fail(ctx, req, e.contextError(err), timer, started)
	}

	key := cacheKey(e.cfg.SchemaVersion, req)

	// the shared computation outlives any single waiter
	t0 = e.now()
	flight := e.flights.DoChan(dedupKey(key, req), func() (any, error) {
		return e.execute(context.WithoutCancel(ctx), req, key)
	})

	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		return e.fail(ctx, req, e.contextError(ctx.Err()), timer, started)
	}
	if res.Shared {
		timer.track(StageDedupWait, t0)
		e.counters.deduplicated.Add(1)
		metrics.DeduplicatedRequests.Inc()
	}
	if res.Err != nil {
		return e.fail(ctx, req, res.Err, timer, started)
	}

	resp := e.finish(res.Val.(*domain.RecommendationResponse), req, timer, started, res.Shared)
	metrics.RecommendationRequests.WithLabelValues(domain.StatusCodeOK).Inc()
	e.trackServed(resp)

	logger.Debug("reco_served",
		"trace_id", TraceIDFromContext(ctx),
		"request_id", resp.RequestID,
		"user_id", resp.UserID,
		"count", len(resp.Recommendations),
		"cache_hit", resp.CacheInfo.CacheHit,
		"cache_level", resp.CacheInfo.Level,
		"deduplicated", resp.CacheInfo.Deduplicated,
		"variant", resp.Variant,
		"total_ms", resp.Performance.TotalMs,
	)
	return resp, nil
}

// execute is the deduplicated part of the pipeline.
func (e *Engine) execute(ctx context.Context, req domain.RecommendationRequest, key string) (*domain.RecommendationResponse, error) {
	timer := newStageTimer(e.now)

	t0 := e.now()
	err := e.breaker.Ready()
	timer.track(StageCircuitBreaker, t0)
	if err != nil {
		return nil, domain.NewCircuitOpenError(err)
	}

	t0 = e.now()
	decision := e.limiter.Allow(req.UserID, req.ClientIP)
	timer.track(StageRateLimit, t0)
	if !decision.Allowed {
		metrics.RateLimitRejections.Inc()
		return nil, domain.NewRateLimitError(decision.RetryAfter)
	}

	t0 = e.now()
	hit, ok := e.cache.Get(ctx, key)
	timer.track(StageCacheLookup, t0)
	if ok {
		e.counters.cacheHits.Add(1)
		metrics.CacheLookups.WithLabelValues(hit.Level).Inc()
		if hit.Stale {
			e.cache.Revalidate(key, e.refresh(req))
		}
		resp := hit.Value
		resp.CacheInfo = domain.CacheInfo{
			CacheHit: true,
			Level:    hit.Level,
			AgeMs:    ms(hit.Age),
			Stale:    hit.Stale,
		}
		resp.Performance = domain.PerformanceMetrics{StagesMs: timer.stages}
		return &resp, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	var out scored
	err = e.breaker.Execute(ctx, func(ctx context.Context) error {
		out = e.scoreWithTimeout(ctx, req)
		return out.err
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, domain.NewCircuitOpenError(err)
		}
		return nil, err
	}
	timer.merge(out.stages)

	t0 = e.now()
	if err := e.cache.Set(ctx, key, out.resp, out.opts); err != nil {
		logger.Warn("reco_cache_store_failed",
			"trace_id", TraceIDFromContext(ctx),
			"user_id", req.UserID,
			"error", domain.NewCacheError("store recommendation", err),
		)
	}
	timer.track(StageCacheStore, t0)

	resp := out.resp
	resp.CacheInfo = domain.CacheInfo{}
	resp.Performance = domain.PerformanceMetrics{StagesMs: timer.stages}
	return &resp, nil
}

// refresh reloads a stale entry through the circuit breaker.
func (e *Engine) refresh(req domain.RecommendationRequest) func(ctx context.Context) (domain.RecommendationResponse, cache.SetOptions, error) {
	return func(ctx context.Context) (domain.RecommendationResponse, cache.SetOptions, error) {
		var out scored
		err := e.breaker.Execute(ctx, func(ctx context.Context) error {
			out = e.scoreWithTimeout(ctx, req)
			return out.err
		})
		if err != nil {
			return domain.RecommendationResponse{}, cache.SetOptions{}, err
		}
		return out.resp, out.opts, nil
	}
}

// scoreWithTimeout bounds one scoring pass by RequestTimeout.
func (e *Engine) scoreWithTimeout(ctx context.Context, req domain.RecommendationRequest) scored {
	tctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	done := make(chan scored, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- scored{err: domain.NewInternalError("scoring panicked", fmt.Errorf("%v", r))}
			}
		}()
		done <- e.score(tctx, req)
	}()

	select {
	case out := <-done:
		return out
	case <-tctx.Done():
		logger.Warn("reco_scoring_timeout",
			"trace_id", TraceIDFromContext(ctx),
			"user_id", req.UserID,
			"timeout", e.cfg.RequestTimeout.String(),
		)
		return scored{err: domain.NewTimeoutError(e.cfg.RequestTimeout, tctx.Err())}
	}
}

// score runs the ranker, the confidence analyzer and the explanation
// generator for a normalised request.
func (e *Engine) score(ctx context.Context, req domain.RecommendationRequest) scored {
	started := e.now()
	timer := newStageTimer(e.now)

	t0 := e.now()
	tools, err := e.candidates(ctx, req)
	if err != nil {
		return scored{err: err}
	}

	weights := e.cfg.Weights
	var variant experiment.Assignment
	if e.variants != nil {
		if a, ok := e.variants.GetVariant(ctx, req.UserID); ok {
			variant = a
			if a.Weights != nil {
				weights = *a.Weights
			}
		}
	}

	in := scoring.Input{
		UserID:  req.UserID,
		Message: req.Message,
		History: req.History,
		Context: req.Context,
		Now:     e.now(),
	}
	rank, err := e.ranker.Rank(ctx, in, tools, scoring.RankOptions{
		Weights:             weights,
		ConfidenceThreshold: e.cfg.ConfidenceThreshold,
		MaxResults:          req.MaxResults,
		Alternatives:        e.cfg.MaxAlternatives,
	})
	timer.track(StageScoring, t0)
	if err != nil {
		return scored{err: e.scoringError(err)}
	}

	var warnings []string
	failed := make([]domain.AlgorithmName, 0, len(rank.Failures))
	for _, f := range rank.Failures {
		failed = append(failed, f.Algorithm)
		metrics.AlgorithmFailures.WithLabelValues(string(f.Algorithm)).Inc()
		warnings = append(warnings, fmt.Sprintf("%s scoring unavailable, neutral scores used", f.Algorithm))
	}

	t0 = e.now()
	support := e.store.UserSupport(req.UserID)
	hasText := req.Message != "" || len(req.History) > 0
	recs := make([]domain.ContextualRecommendation, 0, len(rank.Ranked))
	for i, st := range rank.Ranked {
		analysis := e.analyzer.Analyze(confidence.Input{
			Scores:      st.Scores,
			Confidences: st.Confidences,
			Weights:     weights,
			Failed:      failed,
			Context:     req.Context,
			HasText:     hasText,
			UserSupport: support,
		})
		recs = append(recs, domain.ContextualRecommendation{
			ToolID:               st.Tool.ID,
			ToolName:             st.Tool.Name,
			Rank:                 i + 1,
			Scores:               st.Scores,
			Confidence:           analysis.OverallConfidence,
			Interval:             analysis.Interval,
			Reasons:              st.Reasons,
			EstimatedOutcome:     estimatedOutcome(st.Tool),
			EstimatedTimeSeconds: st.Tool.AvgCompletionSeconds,
			Analysis:             analysis,
			AlgorithmVersions:    rank.Versions,
		})
	}
	timer.track(StageConfidence, t0)

	var alternatives []domain.Counterfactual
	if req.IncludeExplanations {
		t0 = e.now()
		for i := range recs {
			exp := e.explainer.Explain(explanation.Request{
				Recommendation: recs[i],
				Context:        req.Context,
				Weights:        weights,
				Brief:          req.BriefExplanations,
			})
			if exp.Degraded {
				metrics.DegradedExplanations.Inc()
				warnings = append(warnings, fmt.Sprintf("explanation for %s is degraded", recs[i].ToolID))
			}
			recs[i].Explanation = exp
		}
		if len(recs) > 0 {
			alts := make([]explanation.Alternative, 0, len(rank.Alternatives))
			for _, st := range rank.Alternatives {
				alts = append(alts, explanation.Alternative{ToolID: st.Tool.ID, ToolName: st.Tool.Name, Scores: st.Scores})
			}
			alternatives = explanation.Counterfactuals(recs[0], alts, e.cfg.MaxAlternatives)
		}
		timer.track(StageExplanation, t0)
	}

	message := fmt.Sprintf("%d recommendations generated", len(recs))
	if len(recs) == 0 {
		message = "no tools matched the request"
	}

	resp := domain.RecommendationResponse{
		UserID:          req.UserID,
		Recommendations: recs,
		Alternatives:    alternatives,
		Variant:         variant.Variant,
		Status: domain.Status{
			Success:  true,
			Code:     domain.StatusCodeOK,
			Message:  message,
			Warnings: warnings,
		},
		GeneratedAt: e.now(),
	}
	return scored{
		resp:   resp,
		opts:   e.storeOptions(req, resp, e.now().Sub(started)),
		stages: timer.stages,
	}
}

// storeOptions derives TTL, tags and dependencies for a fresh response.
// Confident results live longer: TTL = CacheTTL * (0.5 + mean confidence).
func (e *Engine) storeOptions(req domain.RecommendationRequest, resp domain.RecommendationResponse, cost time.Duration) cache.SetOptions {
	mean := 0.0
	for _, r := range resp.Recommendations {
		mean += r.Confidence
	}
	if n := len(resp.Recommendations); n > 0 {
		mean /= float64(n)
	}
	ttl := time.Duration(float64(e.cfg.CacheTTL) * (0.5 + mean))

	tags := []string{UserTag(req.UserID)}
	for _, r := range resp.Recommendations {
		tags = append(tags, ToolTag(r.ToolID))
	}
	if resp.Variant != "" {
		tags = append(tags, "variant:"+resp.Variant)
	}
	if req.Context.Intent != "" {
		tags = append(tags, "intent:"+req.Context.Intent)
	}
	if req.Context.WorkflowStage != "" {
		tags = append(tags, "stage:"+req.Context.WorkflowStage)
	}

	return cache.SetOptions{
		TTL:          ttl,
		MaxAge:       e.cfg.CacheMaxAge,
		Tags:         tags,
		Dependencies: []string{DependencyCatalog, DependencyExperiments, userModelDependency(req.UserID)},
		Cost:         cost,
	}
}

// candidates intersects the request's constraint set with the catalog.
func (e *Engine) candidates(ctx context.Context, req domain.RecommendationRequest) ([]domain.Tool, error) {
	all, err := e.tools.ListTools(ctx)
	if err != nil {
		return nil, domain.NewInternalError("list tools", fmt.Errorf("tool catalog: %w", err))
	}
	if len(req.CandidateToolIDs) == 0 {
		return all, nil
	}

	want := make(map[string]bool, len(req.CandidateToolIDs))
	for _, id := range req.CandidateToolIDs {
		want[id] = true
	}
	out := make([]domain.Tool, 0, len(req.CandidateToolIDs))
	for _, t := range all {
		if want[t.ID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func estimatedOutcome(t domain.Tool) string {
	if t.SuccessRate <= 0 {
		return ""
	}
	return fmt.Sprintf("%.0f%% of similar tasks completed successfully", domain.Clamp01(t.SuccessRate)*100)
}

func (e *Engine) validateRequest(req domain.RecommendationRequest) error {
	if err := e.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return domain.NewValidationError("invalid request: %s", strings.Join(fields, ", "))
		}
		return domain.NewValidationError("invalid request: %v", err)
	}
	if req.Context.IsEmpty() && req.Message == "" && len(req.History) == 0 {
		return domain.NewValidationError("request context is empty: provide a message, history or context fields")
	}
	return nil
}

func (e *Engine) scoringError(err error) error {
	var ee *domain.EngineError
	if errors.As(err, &ee) {
		return ee
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTimeoutError(e.cfg.RequestTimeout, err)
	}
	return domain.NewScoringError("rank candidates", err)
}

func (e *Engine) contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTimeoutError(e.cfg.RequestTimeout, err)
	}
	return domain.NewInternalError("request canceled", err)
}

// finish gives one waiter its own copy of a possibly shared response.
func (e *Engine) finish(shared *domain.RecommendationResponse, req domain.RecommendationRequest, timer *stageTimer, started time.Time, deduplicated bool) *domain.RecommendationResponse {
	out := *shared
	out.RequestID = req.RequestID
	out.CacheInfo.Deduplicated = deduplicated

	timer.merge(shared.Performance.StagesMs)
	total := e.now().Sub(started)
	out.Performance = domain.PerformanceMetrics{StagesMs: timer.stages, TotalMs: ms(total)}
	e.counters.latencyMicro.Add(total.Microseconds())
	return &out
}

func (e *Engine) fail(ctx context.Context, req domain.RecommendationRequest, err error, timer *stageTimer, started time.Time) (*domain.RecommendationResponse, error) {
	ee := domain.AsEngineError(err)
	e.counters.failures.Add(1)
	metrics.RecommendationRequests.WithLabelValues(string(ee.Code)).Inc()

	msg := ee.Message
	if e.cfg.HideInternalErrors && !ee.Surfaced() {
		msg = hiddenErrorMessage
	}
	status := domain.Status{
		Success: false,
		Code:    string(ee.Code),
		Message: msg,
		Errors:  []string{msg},
	}
	if ee.RetryAfter > 0 {
		status.RetryAfterSeconds = int(math.Ceil(ee.RetryAfter.Seconds()))
	}

	logger.Warn("reco_request_failed",
		"trace_id", TraceIDFromContext(ctx),
		"request_id", req.RequestID,
		"user_id", req.UserID,
		"code", string(ee.Code),
		"error", err,
	)

	total := e.now().Sub(started)
	e.counters.latencyMicro.Add(total.Microseconds())
	return &domain.RecommendationResponse{
		RequestID:       req.RequestID,
		UserID:          req.UserID,
		Recommendations: []domain.ContextualRecommendation{},
		Performance:     domain.PerformanceMetrics{StagesMs: timer.stages, TotalMs: ms(total)},
		Status:          status,
		GeneratedAt:     e.now(),
	}, ee
}

// trackServed fires a usage event without waiting for it.
func (e *Engine) trackServed(resp *domain.RecommendationResponse) {
	if e.analytics == nil {
		return
	}
	ev := &domain.UsageEvent{
		EventType: eventServed,
		UserID:    resp.UserID,
		RequestID: resp.RequestID,
		Variant:   resp.Variant,
		Properties: datatypes.JSONMap{
			"count":        len(resp.Recommendations),
			"cache_hit":    resp.CacheInfo.CacheHit,
			"cache_level":  resp.CacheInfo.Level,
			"stale":        resp.CacheInfo.Stale,
			"deduplicated": resp.CacheInfo.Deduplicated,
			"total_ms":     resp.Performance.TotalMs,
		},
	}
	if len(resp.Recommendations) > 0 {
		ev.ToolID = resp.Recommendations[0].ToolID
	}
	e.analytics.Track(ev)
}
