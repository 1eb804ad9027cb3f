package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"toolAdvisor/internal/middleware"
	"toolAdvisor/internal/rest"
)

func SetRecommendationRoutes(api *echo.Group, handler *rest.RecommendationHandler, authRequired echo.MiddlewareFunc) {
	reco := api.Group("/recommendations", authRequired)
	reco.POST("", handler.Recommend)
	reco.POST("/batch", handler.Batch)
	reco.GET("/stream", handler.Stream)

	api.POST("/feedback", handler.Feedback, authRequired)
}

func SetHealthRoutes(e *echo.Echo, api *echo.Group, handler *rest.HealthHandler) {
	api.GET("/health", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func SetToolRoutes(api *echo.Group, handler *rest.ToolHandler, authRequired echo.MiddlewareFunc) {
	tools := api.Group("/tools", authRequired)
	tools.GET("", handler.ListTools)
	tools.GET("/:id", handler.GetTool)
}

func SetProfileRoutes(api *echo.Group, handler *rest.ProfileHandler, authRequired echo.MiddlewareFunc) {
	profiles := api.Group("/profiles", authRequired, middleware.SelfOrAdmin())
	profiles.GET("/:user_id", handler.GetProfile)
	profiles.PUT("/:user_id", handler.UpsertProfile)
}

func SetAdminRoutes(api *echo.Group, admin *rest.AdminHandler, tools *rest.ToolHandler, authRequired echo.MiddlewareFunc) {
	grp := api.Group("/admin", authRequired, middleware.AdminOnly())

	grp.POST("/cache/invalidate", admin.InvalidateCache)
	grp.GET("/experiments", admin.GetExperiments)
	grp.PUT("/experiments", admin.UpdateExperiments)
	grp.POST("/model/reset", admin.ResetModel)
	grp.POST("/circuit/reset", admin.ResetCircuit)

	grp.PUT("/tools/:id", tools.UpsertTool)
	grp.DELETE("/tools/:id", tools.DeleteTool)
}
