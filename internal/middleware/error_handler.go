package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"toolAdvisor/pkg/logger"
	jsonres "toolAdvisor/pkg/response"
)

// ErrorHandler renders errors that escape handlers in the common error body.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "internal server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		message = fmt.Sprint(he.Message)
	} else {
		logger.Error("unhandled_error",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, jsonres.Error(http.StatusText(code), message, nil))
	}
	if err != nil {
		logger.Error("error_response_failed", "error", err)
	}
}
