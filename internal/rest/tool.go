package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"toolAdvisor/business/recommendation"
	"toolAdvisor/domain"
)

type (
	ToolHandler struct {
		validate *validator.Validate
		tools    ToolStore
		cache    CacheInvalidator
	}

	ToolStore interface {
		GetTool(ctx context.Context, id string) (*domain.Tool, error)
		ListTools(ctx context.Context) ([]domain.Tool, error)
		UpsertTool(ctx context.Context, tool *domain.Tool) error
		DeleteTool(ctx context.Context, id string) error
	}

	ToolRequest struct {
		Name                 string   `json:"name" validate:"required,max=200"`
		Description          string   `json:"description" validate:"max=8000"`
		Category             string   `json:"category" validate:"max=100"`
		Keywords             []string `json:"keywords" validate:"max=100"`
		Guidelines           []string `json:"guidelines" validate:"max=50"`
		Intents              []string `json:"intents" validate:"max=50"`
		WorkflowStages       []string `json:"workflow_stages" validate:"max=50"`
		Devices              []string `json:"devices" validate:"max=20"`
		MinSkillLevel        string   `json:"min_skill_level" validate:"omitempty,oneof=beginner intermediate advanced expert"`
		AvgCompletionSeconds int      `json:"avg_completion_seconds" validate:"gte=0"`
		SuccessRate          float64  `json:"success_rate" validate:"gte=0,lte=1"`
	}
)

func NewToolHandler(tools ToolStore, cache CacheInvalidator) *ToolHandler {
	return &ToolHandler{
		validate: validator.New(),
		tools:    tools,
		cache:    cache,
	}
}

// GET /api/v1/tools
func (h *ToolHandler) ListTools(c echo.Context) error {
	tools, err := h.tools.ListTools(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(tools))
}

// GET /api/v1/tools/:id
func (h *ToolHandler) GetTool(c echo.Context) error {
	tool, err := h.tools.GetTool(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, recommendation.ErrToolNotFound) {
			return c.JSON(http.StatusNotFound, ResponseError{Message: "tool not found"})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(tool))
}

// PUT /api/v1/admin/tools/:id
func (h *ToolHandler) UpsertTool(c echo.Context) error {
	ctx := c.Request().Context()

	var req ToolRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	tool := &domain.Tool{
		ID:                   c.Param("id"),
		Name:                 req.Name,
		Description:          req.Description,
		Category:             req.Category,
		Keywords:             req.Keywords,
		Guidelines:           req.Guidelines,
		Intents:              req.Intents,
		WorkflowStages:       req.WorkflowStages,
		Devices:              req.Devices,
		MinSkillLevel:        domain.SkillLevel(req.MinSkillLevel),
		AvgCompletionSeconds: req.AvgCompletionSeconds,
		SuccessRate:          req.SuccessRate,
	}
	if err := h.tools.UpsertTool(ctx, tool); err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	h.invalidate(ctx, tool.ID)
	return c.JSON(http.StatusOK, fres.Response.StatusOK(tool))
}

// DELETE /api/v1/admin/tools/:id
func (h *ToolHandler) DeleteTool(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	if err := h.tools.DeleteTool(ctx, id); err != nil {
		if errors.Is(err, recommendation.ErrToolNotFound) {
			return c.JSON(http.StatusNotFound, ResponseError{Message: "tool not found"})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	h.invalidate(ctx, id)
	return c.JSON(http.StatusOK, fres.Response.StatusOK("tool deleted"))
}

// invalidate drops rankings that could have included the tool.
func (h *ToolHandler) invalidate(ctx context.Context, toolID string) {
	h.cache.InvalidateCache(ctx, domain.InvalidationCriteria{
		Tags:         []string{recommendation.ToolTag(toolID)},
		Dependencies: []string{recommendation.DependencyCatalog},
	})
}
