package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"toolAdvisor/business/experiment"
	"toolAdvisor/business/recommendation"
	"toolAdvisor/domain"
	"toolAdvisor/pkg/logger"
)

type (
	AdminHandler struct {
		validate    *validator.Validate
		engine      EngineAdmin
		experiments ExperimentManager
	}

	CacheInvalidator interface {
		InvalidateCache(ctx context.Context, c domain.InvalidationCriteria) domain.InvalidationResult
	}

	EngineAdmin interface {
		CacheInvalidator
		ResetModel(ctx context.Context) error
		ResetCircuit() string
	}

	ExperimentManager interface {
		Experiment() string
		Enabled() bool
		Variants(ctx context.Context) []domain.ExperimentVariant
		SetVariants(ctx context.Context, rows []domain.ExperimentVariant) error
	}

	ExperimentsResponse struct {
		Experiment string                     `json:"experiment"`
		Enabled    bool                       `json:"enabled"`
		Variants   []domain.ExperimentVariant `json:"variants"`
	}

	UpdateExperimentsRequest struct {
		Variants []domain.ExperimentVariant `json:"variants" validate:"required,dive"`
	}
)

var (
	_ EngineAdmin       = (*recommendation.Engine)(nil)
	_ ExperimentManager = (*experiment.Assigner)(nil)
)

func NewAdminHandler(engine EngineAdmin, experiments ExperimentManager) *AdminHandler {
	return &AdminHandler{
		validate:    validator.New(),
		engine:      engine,
		experiments: experiments,
	}
}

// POST /api/v1/admin/cache/invalidate
func (h *AdminHandler) InvalidateCache(c echo.Context) error {
	var criteria domain.InvalidationCriteria
	if err := c.Bind(&criteria); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if criteria.IsEmpty() {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "no invalidation criteria given"})
	}

	res := h.engine.InvalidateCache(c.Request().Context(), criteria)
	logger.Info("admin_cache_invalidated",
		"admin_id", c.Get("user_id"),
		"invalidated", res.Invalidated,
		"errors", len(res.Errors),
	)

	return c.JSON(http.StatusOK, fres.Response.StatusOK(res))
}

// GET /api/v1/admin/experiments
func (h *AdminHandler) GetExperiments(c echo.Context) error {
	return c.JSON(http.StatusOK, fres.Response.StatusOK(ExperimentsResponse{
		Experiment: h.experiments.Experiment(),
		Enabled:    h.experiments.Enabled(),
		Variants:   h.experiments.Variants(c.Request().Context()),
	}))
}

// PUT /api/v1/admin/experiments
// body: { "variants": [ExperimentVariant, ...] }
func (h *AdminHandler) UpdateExperiments(c echo.Context) error {
	ctx := c.Request().Context()

	var body UpdateExperimentsRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid body: " + err.Error()})
	}
	if err := h.validate.Struct(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.experiments.SetVariants(ctx, body.Variants); err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		}
		return writeError(c, err)
	}

	res := h.engine.InvalidateCache(ctx, domain.InvalidationCriteria{
		Dependencies: []string{recommendation.DependencyExperiments},
	})

	return c.JSON(http.StatusOK, fres.Response.StatusOK(echo.Map{
		"experiment":  h.experiments.Experiment(),
		"variants":    h.experiments.Variants(ctx),
		"invalidated": res.Invalidated,
	}))
}

// POST /api/v1/admin/model/reset
func (h *AdminHandler) ResetModel(c echo.Context) error {
	if err := h.engine.ResetModel(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	logger.Info("admin_model_reset", "admin_id", c.Get("user_id"))

	return c.JSON(http.StatusOK, fres.Response.StatusOK("model reset"))
}

// POST /api/v1/admin/circuit/reset
func (h *AdminHandler) ResetCircuit(c echo.Context) error {
	state := h.engine.ResetCircuit()
	logger.Info("admin_circuit_reset", "admin_id", c.Get("user_id"), "state", state)

	return c.JSON(http.StatusOK, fres.Response.StatusOK(echo.Map{"circuit_breaker_state": state}))
}
