package apperror

import (
	"errors"
	"net/http"
)

// AppError is an error with the HTTP status and message a client sees.
// Cause is kept for logs only.
type AppError struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
	Cause   error        `json:"-"`
}

// FieldError is a validation failure on one request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

var (
	ErrInternalServer    = &AppError{Code: http.StatusInternalServerError, Message: "Internal server error"}
	ErrPrintUnavailable  = &AppError{Code: http.StatusServiceUnavailable, Message: "Print system unavailable"}
	ErrChannelNotAllowed = &AppError{Code: http.StatusForbidden, Message: "Bridge channel not allowed"}
)

// Internal wraps a storage or printer failure as a generic 500.
func Internal(cause error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: ErrInternalServer.Message, Cause: cause}
}

func NewValidationError(fieldErrors []FieldError) *AppError {
	return &AppError{
		Code:    http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Errors:  fieldErrors,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{Code: http.StatusConflict, Message: message}
}

func NewBadRequestError(message string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: message}
}

func NewServiceUnavailableError(message string) *AppError {
	return &AppError{Code: http.StatusServiceUnavailable, Message: message}
}

// GetAppError returns the AppError in err's chain. Anything else becomes
// ErrInternalServer so driver and printer messages never reach clients.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer
}
