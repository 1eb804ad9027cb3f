package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode is the stable code surfaced in a response status block.
type ErrorCode string

const (
	CodeValidation    ErrorCode = "VALIDATION_ERROR"
	CodeRateLimited   ErrorCode = "RATE_LIMITED"
	CodeCircuitOpen   ErrorCode = "CIRCUIT_OPEN"
	CodeScoring       ErrorCode = "SCORING_ERROR"
	CodeExplanation   ErrorCode = "EXPLANATION_ERROR"
	CodeCache         ErrorCode = "CACHE_ERROR"
	CodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeInternal      ErrorCode = "INTERNAL_ERROR"
)

type EngineError struct {
	Code       ErrorCode
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is matches any *EngineError carrying the same code.
func (e *EngineError) Is(target error) bool {
	var t *EngineError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Surfaced reports whether the error fails a request instead of degrading it.
func (e *EngineError) Surfaced() bool {
	switch e.Code {
	case CodeValidation, CodeRateLimited, CodeScoring, CodeCircuitOpen, CodeTimeout:
		return true
	default:
		return false
	}
}

// Sentinels usable with errors.Is.
var (
	ErrValidation    = &EngineError{Code: CodeValidation}
	ErrRateLimited   = &EngineError{Code: CodeRateLimited}
	ErrCircuitOpen   = &EngineError{Code: CodeCircuitOpen}
	ErrScoring       = &EngineError{Code: CodeScoring}
	ErrConfiguration = &EngineError{Code: CodeConfiguration}
	ErrTimeout       = &EngineError{Code: CodeTimeout}
)

func NewValidationError(format string, args ...any) *EngineError {
	return &EngineError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NewConfigurationError(format string, args ...any) *EngineError {
	return &EngineError{Code: CodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

func NewRateLimitError(retryAfter time.Duration) *EngineError {
	return &EngineError{
		Code:       CodeRateLimited,
		Message:    fmt.Sprintf("rate limit exceeded, retry after %s", retryAfter.Round(time.Millisecond)),
		RetryAfter: retryAfter,
	}
}

func NewCircuitOpenError(err error) *EngineError {
	return &EngineError{
		Code:    CodeCircuitOpen,
		Message: "recommendation service temporarily unavailable",
		Err:     err,
	}
}

func NewScoringError(msg string, err error) *EngineError {
	return &EngineError{Code: CodeScoring, Message: msg, Err: err}
}

func NewExplanationError(msg string, err error) *EngineError {
	return &EngineError{Code: CodeExplanation, Message: msg, Err: err}
}

func NewCacheError(msg string, err error) *EngineError {
	return &EngineError{Code: CodeCache, Message: msg, Err: err}
}

func NewTimeoutError(after time.Duration, err error) *EngineError {
	return &EngineError{
		Code:    CodeTimeout,
		Message: fmt.Sprintf("scoring exceeded request timeout of %s", after),
		Err:     err,
	}
}

func NewInternalError(msg string, err error) *EngineError {
	return &EngineError{Code: CodeInternal, Message: msg, Err: err}
}

// AsEngineError converts any error into an *EngineError, wrapping unknown
// errors as INTERNAL_ERROR.
func AsEngineError(err error) *EngineError {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee
	}
	return NewInternalError("unexpected error", err)
}
