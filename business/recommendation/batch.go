package recommendation

import (
	"context"

	"golang.org/x/sync/errgroup"

	"toolAdvisor/domain"
	"toolAdvisor/pkg/logger"
)

// BatchGetRecommendations runs every request through the pipeline with at
// most MaxConcurrentRequests in flight. Items fail independently: each
// response carries its own status and the batch itself only fails when it is
// empty or larger than MaxBatchSize.
func (e *Engine) BatchGetRecommendations(ctx context.Context, reqs []domain.RecommendationRequest) ([]*domain.RecommendationResponse, error) {
	if len(reqs) == 0 {
		return nil, domain.NewValidationError("batch contains no requests")
	}
	if len(reqs) > e.cfg.MaxBatchSize {
		return nil, domain.NewValidationError("batch of %d requests exceeds the limit of %d", len(reqs), e.cfg.MaxBatchSize)
	}

	out := make([]*domain.RecommendationResponse, len(reqs))
	var g errgroup.Group
	g.SetLimit(e.cfg.MaxConcurrentRequests)
	for i := range reqs {
		g.Go(func() error {
			resp, _ := e.GetRecommendations(ctx, reqs[i])
			out[i] = resp
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range out {
		if !r.Status.Success {
			failed++
		}
	}
	logger.Debug("reco_batch_done",
		"trace_id", TraceIDFromContext(ctx),
		"size", len(reqs),
		"failed", failed,
	)
	return out, nil
}
