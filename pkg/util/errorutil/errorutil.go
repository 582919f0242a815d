package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to callers.
const (
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInvalidDate       = "INVALID_DATE"
	CodeFieldLocked       = "FIELD_LOCKED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewInvalidTransition reports a status change the lifecycle does not allow.
func NewInvalidTransition(current, requested, reason string) error {
	msg := fmt.Sprintf("cannot transition from %s to %s", current, requested)
	if reason != "" {
		msg += ": " + reason
	}
	return NewDomainError(CodeInvalidTransition, msg, http.StatusConflict, map[string]any{
		"current":   current,
		"requested": requested,
	})
}

// NewOperationNotAllowed reports an operation the ticket's current status
// does not permit yet. It shares the INVALID_TRANSITION code.
func NewOperationNotAllowed(current, operation, reason string) error {
	return NewDomainError(CodeInvalidTransition, fmt.Sprintf("cannot %s while ticket is %s: %s", operation, current, reason), http.StatusConflict, map[string]any{
		"current":   current,
		"requested": operation,
	})
}

// NewInvalidDate reports a confirmation attempted against a stale lawful start date.
func NewInvalidDate(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidDate, message, http.StatusUnprocessableEntity, details)
}

// NewFieldLocked reports a mutation of frozen ticket data.
func NewFieldLocked(status string, fields []string) error {
	return NewDomainError(CodeFieldLocked, "ticket data is locked in status "+status, http.StatusLocked, map[string]any{
		"status": status,
		"fields": fields,
	})
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err wraps a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
