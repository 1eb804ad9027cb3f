package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"toolAdvisor/business/recommendation"
)

const HeaderTraceID = "X-Trace-ID"

// TraceID reuses the caller's trace or request id, or mints one, and threads
// it through the request context and the response headers.
func TraceID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(HeaderTraceID)
			if id == "" {
				id = req.Header.Get(echo.HeaderXRequestID)
			}
			if id == "" {
				id = uuid.NewString()
			}

			c.SetRequest(req.WithContext(recommendation.WithTraceID(req.Context(), id)))
			c.Response().Header().Set(HeaderTraceID, id)
			c.Set("trace_id", id)

			return next(c)
		}
	}
}
