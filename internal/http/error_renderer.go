package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	apperrors "github.com/dialcoach/partner-api/internal/errors"
)

// Envelope codes returned to partners. Internal AppError codes are mapped onto
// this fixed vocabulary so the wire contract never leaks taxonomy changes.
const (
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeForbidden               = "FORBIDDEN"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeInvalidInput            = "INVALID_INPUT"
	CodeNotFound                = "NOT_FOUND"
	CodeCompanyNotFound         = "COMPANY_NOT_FOUND"
	CodeAgentNotFound           = "AGENT_NOT_FOUND"
	CodeJobNotFound             = "JOB_NOT_FOUND"
	CodeConflict                = "CONFLICT"
	CodeRateLimitExceeded       = "RATE_LIMIT_EXCEEDED"
	CodeServiceUnavailable      = "SERVICE_UNAVAILABLE"
	CodeInternalError           = "INTERNAL_ERROR"
)

type errorBody struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// WriteEnvelope writes the standard error envelope with the given status,
// envelope code, and message.
func WriteEnvelope(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: errorBody{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}})
}

// RenderError translates an application error into the envelope using the
// generic NOT_FOUND code for missing resources.
func RenderError(w http.ResponseWriter, err error) {
	RenderErrorCode(w, err, CodeNotFound)
}

// RenderErrorCode translates an application error into the envelope.
// notFoundCode is the resource-specific code to use when the error is a
// not-found (COMPANY_NOT_FOUND, AGENT_NOT_FOUND, JOB_NOT_FOUND, ...).
func RenderErrorCode(w http.ResponseWriter, err error, notFoundCode string) {
	switch {
	case apperrors.IsValidation(err), apperrors.IsForeignKey(err):
		writeValidationError(w, err)
	case apperrors.IsUnauthorized(err):
		WriteEnvelope(w, http.StatusUnauthorized, CodeUnauthorized, err.Error())
	case apperrors.IsForbidden(err):
		WriteEnvelope(w, http.StatusForbidden, CodeForbidden, err.Error())
	case apperrors.IsNotFound(err):
		WriteEnvelope(w, http.StatusNotFound, notFoundCode, err.Error())
	case apperrors.IsConflict(err):
		WriteEnvelope(w, http.StatusConflict, CodeConflict, err.Error())
	case apperrors.IsRateLimited(err):
		WriteEnvelope(w, http.StatusTooManyRequests, CodeRateLimitExceeded, err.Error())
	case apperrors.IsUnavailable(err):
		WriteEnvelope(w, http.StatusServiceUnavailable, CodeServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded), apperrors.IsTimeout(err):
		WriteEnvelope(w, http.StatusGatewayTimeout, CodeInternalError, "request timed out")
	default:
		// Never leak internal error details to partners.
		WriteEnvelope(w, http.StatusInternalServerError, CodeInternalError, "internal server error")
	}
}

// writeValidationError renders INVALID_INPUT, attaching the offending field
// as details when the error names one.
func writeValidationError(w http.ResponseWriter, err error) {
	body := errorBody{
		Code:      CodeInvalidInput,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	}
	if field := apperrors.GetField(err); field != "" {
		body.Details = map[string]string{"field": field}
	}
	WriteJSON(w, http.StatusBadRequest, errorEnvelope{Error: body})
}
