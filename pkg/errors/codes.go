package errors

// Error codes for categorizing errors surfaced by the cable client.
const (
	// CodeOK indicates success (not an error).
	CodeOK = "OK"

	// CodeUnknown indicates an unknown error occurred.
	CodeUnknown = "UNKNOWN"

	// CodeConfiguration indicates the client was configured incorrectly,
	// e.g. a connection was attempted without a valid URL.
	CodeConfiguration = "CONFIGURATION_ERROR"

	// CodeNotInitialized indicates an operation requiring a live transport
	// consumer was called before any consumer existed.
	CodeNotInitialized = "NOT_INITIALIZED"

	// CodeNotSubscribed indicates an operation referenced a channel name
	// with no active registration.
	CodeNotSubscribed = "NOT_SUBSCRIBED"

	// CodeValidation indicates input validation failed.
	CodeValidation = "VALIDATION_ERROR"

	// CodeTransport indicates the underlying WebSocket transport failed.
	CodeTransport = "TRANSPORT_ERROR"

	// CodeTimeout indicates an operation timed out.
	CodeTimeout = "TIMEOUT"

	// CodeInternal indicates internal errors.
	CodeInternal = "INTERNAL"
)

// ErrorCategory represents a high-level error category.
type ErrorCategory string

const (
	// CategoryCaller indicates the caller misused the API and retrying the
	// same call will fail again.
	CategoryCaller ErrorCategory = "CALLER_ERROR"

	// CategoryTransport indicates a failure in the underlying connection.
	CategoryTransport ErrorCategory = "TRANSPORT_ERROR"

	// CategoryInternal indicates an internal failure.
	CategoryInternal ErrorCategory = "INTERNAL_ERROR"
)

// GetCategory returns the category for an error code.
func GetCategory(code string) ErrorCategory {
	switch code {
	case CodeConfiguration, CodeNotInitialized, CodeNotSubscribed, CodeValidation:
		return CategoryCaller
	case CodeTransport, CodeTimeout:
		return CategoryTransport
	default:
		return CategoryInternal
	}
}

// IsRetryable returns true if an error with the given code may succeed on a
// later attempt. Retry itself is the transport collaborator's concern; the
// registry never retries internally.
func IsRetryable(code string) bool {
	switch code {
	case CodeTransport, CodeTimeout:
		return true
	default:
		return false
	}
}

// IsCallerError returns true if the error is a caller error.
func IsCallerError(code string) bool {
	return GetCategory(code) == CategoryCaller
}
