package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Common sentinel errors for quick checks
var (
	// ErrNotSubscribed is returned when a channel name has no active registration.
	ErrNotSubscribed = errors.New("not subscribed")

	// ErrNotInitialized is returned when no transport consumer exists yet.
	ErrNotInitialized = errors.New("not initialized")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("operation timeout")

	// ErrInternal is returned when an internal error occurs.
	ErrInternal = errors.New("internal error")
)

// Error is the base interface for all custom errors in the system.
// It extends the standard error interface with additional context.
type Error interface {
	error
	// Code returns the error code
	Code() string
	// Message returns the human-readable error message
	Message() string
	// Unwrap returns the underlying cause
	Unwrap() error
}

// BaseError provides a foundation for all typed errors.
type BaseError struct {
	code    string
	message string
	cause   error
	stack   []uintptr
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *BaseError) Code() string {
	return e.code
}

// Message returns the error message.
func (e *BaseError) Message() string {
	return e.message
}

// Unwrap returns the underlying cause.
func (e *BaseError) Unwrap() error {
	return e.cause
}

// Stack returns the captured stack trace.
func (e *BaseError) Stack() []uintptr {
	return e.stack
}

// captureStack captures the current stack trace.
func captureStack(skip int) []uintptr {
	const maxDepth = 32
	stack := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+2, stack)
	return stack[:n]
}

// StackTrace returns a formatted stack trace string.
func (e *BaseError) StackTrace() string {
	if len(e.stack) == 0 {
		return ""
	}

	var buf strings.Builder
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			fmt.Fprintf(&buf, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return buf.String()
}

// ConfigurationError represents an invalid client configuration, such as a
// connection attempt without a valid URL. Fatal to that attempt; never
// retried by the registry.
type ConfigurationError struct {
	*BaseError
	Field string
}

// NewConfigurationError creates a new configuration error.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{
		BaseError: &BaseError{
			code:    CodeConfiguration,
			message: message,
			stack:   captureStack(1),
		},
		Field: field,
	}
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.message)
	}
	return fmt.Sprintf("configuration error: %s", e.message)
}

// NotInitializedError is returned when an operation requiring a live
// transport consumer runs before any consumer exists.
type NotInitializedError struct {
	*BaseError
	Operation string
}

// NewNotInitializedError creates a new not-initialized error.
func NewNotInitializedError(operation string) *NotInitializedError {
	message := "transport consumer not initialized"
	if operation != "" {
		message = fmt.Sprintf("%s: transport consumer not initialized", operation)
	}
	return &NotInitializedError{
		BaseError: &BaseError{
			code:    CodeNotInitialized,
			message: message,
			cause:   ErrNotInitialized,
			stack:   captureStack(1),
		},
		Operation: operation,
	}
}

// NotSubscribedError is returned when an operation references a channel name
// with no active registration. Channel and Action are carried for
// diagnostics.
type NotSubscribedError struct {
	*BaseError
	Channel string
	Action  string
}

// NewNotSubscribedError creates a new not-subscribed error.
func NewNotSubscribedError(channel, action string) *NotSubscribedError {
	message := fmt.Sprintf("channel %q is not subscribed", channel)
	if action != "" {
		message = fmt.Sprintf("cannot perform %q: channel %q is not subscribed", action, channel)
	}
	return &NotSubscribedError{
		BaseError: &BaseError{
			code:    CodeNotSubscribed,
			message: message,
			cause:   ErrNotSubscribed,
			stack:   captureStack(1),
		},
		Channel: channel,
		Action:  action,
	}
}

// ValidationError represents an input validation error.
type ValidationError struct {
	*BaseError
	Field string
	Value interface{}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		BaseError: &BaseError{
			code:    CodeValidation,
			message: message,
			stack:   captureStack(1),
		},
		Field: field,
		Value: value,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.message)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

// TransportError represents a failure in the underlying WebSocket transport.
type TransportError struct {
	*BaseError
	URL string
}

// NewTransportError creates a new transport error.
func NewTransportError(url, message string, cause error) *TransportError {
	if message == "" {
		message = "transport failure"
	}
	return &TransportError{
		BaseError: &BaseError{
			code:    CodeTransport,
			message: message,
			cause:   cause,
			stack:   captureStack(1),
		},
		URL: url,
	}
}

// TimeoutError represents a timeout error.
type TimeoutError struct {
	*BaseError
	Operation string
	Duration  string
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(operation, duration string) *TimeoutError {
	message := "operation timeout"
	if operation != "" {
		message = fmt.Sprintf("%s timeout", operation)
	}
	return &TimeoutError{
		BaseError: &BaseError{
			code:    CodeTimeout,
			message: message,
			cause:   ErrTimeout,
			stack:   captureStack(1),
		},
		Operation: operation,
		Duration:  duration,
	}
}

// Wrap wraps an error with additional context.
// If the error is already one of our custom types, it preserves the code
// and adds to the cause chain. Otherwise, it creates an internal error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if e, ok := err.(Error); ok {
		return &BaseError{
			code:    e.Code(),
			message: message,
			cause:   err,
			stack:   captureStack(1),
		}
	}

	return &BaseError{
		code:    CodeInternal,
		message: message,
		cause:   err,
		stack:   captureStack(1),
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// New creates a new error with a message.
func New(message string) error {
	return &BaseError{
		code:    CodeInternal,
		message: message,
		stack:   captureStack(1),
	}
}

// Newf creates a new error with a formatted message.
func Newf(format string, args ...interface{}) error {
	return New(fmt.Sprintf(format, args...))
}
