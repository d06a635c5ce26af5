package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"gonzs/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context. The code of an inner AppError
// is kept; domain sentinels are mapped with CodeOf.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    CodeOf(err),
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// CodeOf returns the code of the outermost AppError in the chain, or derives
// one from the domain sentinels.
func CodeOf(err error) string {
	var appErr *AppError
	switch {
	case err == nil:
		return ""
	case stderrors.As(err, &appErr):
		return appErr.Code
	case core.IsDegenerate(err):
		return CodeDegenerateDistribution
	case core.IsInvalidArgument(err):
		return CodeInvalidInput
	case core.IsNotFoundError(err):
		return CodeNotFound
	default:
		return CodeInternalError
	}
}

// HTTPStatus maps an error onto the status code the API answers with
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidInput, CodeValidationError:
		return http.StatusBadRequest
	case CodeDegenerateDistribution:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Predefined error codes
const (
	CodeConfigInvalid          = "CONFIG_INVALID"
	CodeDatabaseError          = "DATABASE_ERROR"
	CodeValidationError        = "VALIDATION_ERROR"
	CodeNotFound               = "NOT_FOUND"
	CodeInternalError          = "INTERNAL_ERROR"
	CodeInvalidInput           = "INVALID_INPUT"
	CodeDegenerateDistribution = "DEGENERATE_DISTRIBUTION"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

// NotFound keeps core.ErrNotFound in the chain so errors.Is still matches
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Cause:   core.NewNotFoundError(resource, id),
	}
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}
