package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Common errors exposed to the rest of the application.
var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Permission denied",
		StatusCode: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrRateLimit = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests, please slow down",
		StatusCode: http.StatusTooManyRequests,
	}
)

// Check-in and enrollment error kinds. Each carries a distinct code so clients
// can render specific guidance instead of a generic failure.
var (
	ErrInvalidClass = &AppError{
		Code:       "class.invalid",
		Message:    "The referenced class does not exist",
		StatusCode: http.StatusNotFound,
	}
	ErrClassNotFound = &AppError{
		Code:       "class.not_found",
		Message:    "Class could not be found",
		StatusCode: http.StatusNotFound,
	}
	ErrInvalidToken = &AppError{
		Code:       "checkin.invalid_token",
		Message:    "Check-in code not recognised, ask your trainer for a new code",
		StatusCode: http.StatusNotFound,
	}
	ErrTokenExpired = &AppError{
		Code:       "checkin.token_expired",
		Message:    "This check-in code has expired, ask your trainer for a new code",
		StatusCode: http.StatusGone,
	}
	ErrTokenInactive = &AppError{
		Code:       "checkin.token_inactive",
		Message:    "This check-in session has been closed by the trainer",
		StatusCode: http.StatusGone,
	}
	ErrTokenExhausted = &AppError{
		Code:       "checkin.token_exhausted",
		Message:    "This check-in code has reached its usage limit",
		StatusCode: http.StatusGone,
	}
	ErrNotEnrolled = &AppError{
		Code:       "checkin.not_enrolled",
		Message:    "You are not enrolled in this class",
		StatusCode: http.StatusForbidden,
	}
	ErrDuplicateCheckIn = &AppError{
		Code:       "checkin.duplicate",
		Message:    "You have already checked in with this code",
		StatusCode: http.StatusConflict,
	}
	ErrScanTypeNotAllowed = &AppError{
		Code:       "checkin.scan_type_not_allowed",
		Message:    "This session does not accept that scan direction",
		StatusCode: http.StatusConflict,
	}
	ErrMemberNotFound = &AppError{
		Code:       "member.not_found",
		Message:    "Member could not be found",
		StatusCode: http.StatusNotFound,
	}
	ErrMemberEmailTaken = &AppError{
		Code:       "member.email_taken",
		Message:    "A member with this email already exists",
		StatusCode: http.StatusConflict,
	}
	ErrAlreadyEnrolled = &AppError{
		Code:       "enrollment.already_enrolled",
		Message:    "You already hold a seat in this class",
		StatusCode: http.StatusConflict,
	}
	ErrStorageUnavailable = &AppError{
		Code:       "storage.unavailable",
		Message:    "Storage is temporarily unavailable, please retry",
		StatusCode: http.StatusServiceUnavailable,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}
