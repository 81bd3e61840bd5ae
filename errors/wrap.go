package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error
// chain. If err is nil, Wrap returns nil. If err is already a pacekit Error,
// its code, category and site carry through to the wrapper.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var terr *Error
	if errors.As(err, &terr) {
		wrapped := &Error{
			code:      terr.code,
			category:  terr.category,
			message:   message,
			cause:     err,
			site:      terr.site,
			timestamp: terr.timestamp,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	return New(ErrCodeRegistryUnavailable, message, append(opts, WithCause(err))...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error with a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// AsThrottleError attempts to extract a pacekit error from an error chain.
// Returns nil if none is found.
func AsThrottleError(err error) ThrottleError {
	var terr *Error
	if errors.As(err, &terr) {
		return terr
	}
	return nil
}

// Is checks if any error in the chain has the given error code.
func Is(err error, code ErrorCode) bool {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.code == code
	}
	return false
}

// IsFatal reports whether err must abort initialization rather than
// degrade to single-process pacing.
func IsFatal(err error) bool {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.category == CategoryFatal
	}
	return false
}
