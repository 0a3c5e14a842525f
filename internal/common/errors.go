package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors.
// Kind is one of the sentinel errors below so callers can classify with errors.Is
// while Cause keeps the underlying failure.
type AppError struct {
	Code    string
	Message string
	Kind    error
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Error kinds. Every pipeline failure is exactly one of these.
var (
	ErrInput      = errors.New("input error")
	ErrBackend    = errors.New("model backend error")
	ErrValidation = errors.New("validation failed")
	ErrSink       = errors.New("sink error")
	ErrConfig     = errors.New("invalid configuration")
)

// Error codes used in AppError.Code.
const (
	CodeInput      = "INPUT_ERROR"
	CodeBackend    = "BACKEND_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeSink       = "SINK_ERROR"
	CodeConfig     = "CONFIG_ERROR"
)

// NewAppError builds an AppError of the given kind.
func NewAppError(code, message string, kind, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Kind:    kind,
		Cause:   cause,
	}
}

func NewInputError(message string, cause error) error {
	return NewAppError(CodeInput, message, ErrInput, cause)
}

func NewBackendError(message string, cause error) error {
	return NewAppError(CodeBackend, message, ErrBackend, cause)
}

func NewValidationError(message string, cause error) error {
	return NewAppError(CodeValidation, message, ErrValidation, cause)
}

func NewSinkError(message string, cause error) error {
	return NewAppError(CodeSink, message, ErrSink, cause)
}

func NewConfigError(message string) error {
	return NewAppError(CodeConfig, message, ErrConfig, nil)
}

// KindOf returns the sentinel kind carried by err, or nil when err is unclassified.
func KindOf(err error) error {
	for _, k := range []error{ErrInput, ErrBackend, ErrValidation, ErrSink, ErrConfig} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
