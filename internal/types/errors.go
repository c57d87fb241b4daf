package types

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is the error taxonomy surfaced to handlers. Code is stable for
// clients, Status is the HTTP mapping, Meta carries reconciliation context
// (conversation id, persisted messages, limits).
type APIError struct {
	Code    string
	Message string
	Status  int
	Meta    map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func ErrQuotaExceeded(limit int) *APIError {
	return &APIError{
		Code:    "USAGE_LIMIT_EXCEEDED",
		Message: "Monthly message limit reached",
		Status:  http.StatusForbidden,
		Meta: map[string]any{
			"limit":      limit,
			"upgradeUrl": "/pricing",
		},
	}
}

func ErrAnalysisQuotaExceeded(limit int) *APIError {
	return &APIError{
		Code:    "USAGE_LIMIT_EXCEEDED",
		Message: fmt.Sprintf("Monthly analysis limit reached (%d). Upgrade to Pro for unlimited analyses.", limit),
		Status:  http.StatusForbidden,
		Meta:    map[string]any{"limit": limit, "upgradeUrl": "/pricing"},
	}
}

func ErrNotFound(what string) *APIError {
	return &APIError{
		Code:    "NOT_FOUND",
		Message: what + " not found",
		Status:  http.StatusNotFound,
	}
}

func ErrUnauthorized(msg string) *APIError {
	return &APIError{
		Code:    "UNAUTHORIZED",
		Message: msg,
		Status:  http.StatusUnauthorized,
	}
}

func ErrValidation(msg string) *APIError {
	return &APIError{
		Code:    "VALIDATION_ERROR",
		Message: msg,
		Status:  http.StatusBadRequest,
	}
}

// ErrServiceUnavailable covers generation failures. Meta keeps the
// conversation id and both persisted messages so clients can reconcile
// their transcript.
func ErrServiceUnavailable(meta map[string]any) *APIError {
	return &APIError{
		Code:    "AI_SERVICE_ERROR",
		Message: "AI service temporarily unavailable",
		Status:  http.StatusServiceUnavailable,
		Meta:    meta,
	}
}
