package rest

import (
	"context"
	"net/http"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"

	"toolAdvisor/domain"
)

type (
	HealthHandler struct {
		service HealthReporter
	}

	HealthReporter interface {
		HealthStatus(ctx context.Context) domain.HealthStatus
	}
)

func NewHealthHandler(svc HealthReporter) *HealthHandler {
	return &HealthHandler{service: svc}
}

// GET /api/v1/health
func (h *HealthHandler) Health(c echo.Context) error {
	status := h.service.HealthStatus(c.Request().Context())
	if status.Status == domain.HealthUnhealthy {
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(status))
}
