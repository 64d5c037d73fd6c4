package errors

import "errors"

// IsConfiguration checks if an error is a configuration error.
func IsConfiguration(err error) bool {
	if err == nil {
		return false
	}

	var configErr *ConfigurationError
	return errors.As(err, &configErr)
}

// IsNotInitialized checks if an error indicates a missing transport consumer.
func IsNotInitialized(err error) bool {
	if err == nil {
		return false
	}

	var notInitErr *NotInitializedError
	return errors.As(err, &notInitErr) || errors.Is(err, ErrNotInitialized)
}

// IsNotSubscribed checks if an error indicates a channel with no active registration.
func IsNotSubscribed(err error) bool {
	if err == nil {
		return false
	}

	var notSubErr *NotSubscribedError
	return errors.As(err, &notSubErr) || errors.Is(err, ErrNotSubscribed)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	if err == nil {
		return false
	}

	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsTransport checks if an error originated in the WebSocket transport.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}

	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// IsTimeout checks if an error indicates a timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr) || errors.Is(err, ErrTimeout)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	if err == nil {
		return CodeOK
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return customErr.Code()
	}

	// Try to infer from sentinel errors
	switch {
	case IsNotSubscribed(err):
		return CodeNotSubscribed
	case IsNotInitialized(err):
		return CodeNotInitialized
	case IsTimeout(err):
		return CodeTimeout
	default:
		return CodeInternal
	}
}

// GetErrorMessage extracts a human-readable message from an error.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return customErr.Message()
	}

	return err.Error()
}

// Cause returns the underlying cause of an error.
// It unwraps the error chain until it finds the root cause.
func Cause(err error) error {
	for {
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		underlying := unwrapper.Unwrap()
		if underlying == nil {
			return err
		}
		err = underlying
	}
}
