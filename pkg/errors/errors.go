package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Booking and make-up workflow errors. All of them are recoverable by
// the caller: pick another slot, request an extension, or refresh and
// retry against the resolved record.
var (
	ErrMakeupWindowExceeded   = New("MAKEUP_60D_EXCEEDED", http.StatusUnprocessableEntity, "make-up date is beyond the allowed window from the original session")
	ErrHolidayConflict        = New("HOLIDAY_CONFLICT", http.StatusConflict, "target date is a holiday")
	ErrDeadlineExceeded       = New("ENROLLMENT_DEADLINE_EXCEEDED", http.StatusUnprocessableEntity, "regular slot booking is past the enrollment effective end date")
	ErrSlotTaken              = New("SLOT_TAKEN", http.StatusConflict, "student already has an active session at this slot")
	ErrProposalResolved       = New("PROPOSAL_ALREADY_RESOLVED", http.StatusConflict, "proposal has already been resolved")
	ErrSlotResolved           = New("SLOT_ALREADY_RESOLVED", http.StatusConflict, "slot has already been resolved")
	ErrDuplicatePendingExists = New("DUPLICATE_PENDING_REQUEST", http.StatusConflict, "a pending request already exists for this session")
)

// WithDetails returns a copy of the error carrying structured context
// such as the enrollment id and effective end date behind a deadline
// failure.
func WithDetails(err *Error, details map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Details = details
	return &clone
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
