package rest

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"toolAdvisor/domain"
	jsonres "toolAdvisor/pkg/response"
)

// ResponseError represent the response error struct
type ResponseError struct {
	Message string `json:"message"`
}

func httpStatus(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation, domain.CodeConfiguration:
		return http.StatusBadRequest
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	case domain.CodeCircuitOpen:
		return http.StatusServiceUnavailable
	case domain.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeStatus renders a failed response status block with the matching HTTP
// status and, for rate limits, a Retry-After header.
func writeStatus(c echo.Context, requestID string, status domain.Status) error {
	if status.RetryAfterSeconds > 0 {
		c.Response().Header().Set("Retry-After", strconv.Itoa(status.RetryAfterSeconds))
	}
	body := jsonres.Error(status.Code, status.Message, echo.Map{"request_id": requestID})
	body.RetryAfterSeconds = status.RetryAfterSeconds
	return c.JSON(httpStatus(domain.ErrorCode(status.Code)), body)
}

// writeError renders any service error. Messages of unexpected errors are
// not exposed.
func writeError(c echo.Context, err error) error {
	ee := domain.AsEngineError(err)
	msg := ee.Message
	if ee.Code == domain.CodeInternal {
		msg = "internal error"
	}
	return writeStatus(c, "", domain.Status{
		Success:           false,
		Code:              string(ee.Code),
		Message:           msg,
		RetryAfterSeconds: int(math.Ceil(ee.RetryAfter.Seconds())),
	})
}

func callerID(c echo.Context) (string, bool) {
	id, ok := c.Get("user_id").(string)
	return id, ok && id != ""
}
