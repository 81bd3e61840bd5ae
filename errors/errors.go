package errors

import (
	"fmt"
	"time"
)

// ThrottleError is the interface for all structured errors in pacekit.
// It extends the standard error interface with the context callers need to
// decide whether an error ends initialization or merely degrades pacing.
type ThrottleError interface {
	error

	// Code returns the specific error code identifying the failure type.
	Code() ErrorCode

	// Category returns the error category for handling decisions.
	Category() ErrorCategory

	// Recoverable returns true if the throttle degrades and continues.
	Recoverable() bool

	// Site returns the site key the error relates to, if any.
	Site() string

	// Unwrap returns the underlying error, if any.
	Unwrap() error
}

// Error is the concrete implementation of ThrottleError.
type Error struct {
	code      ErrorCode
	category  ErrorCategory
	message   string
	cause     error
	site      string
	timestamp time.Time
}

// Ensure Error implements ThrottleError.
var _ ThrottleError = (*Error)(nil)

// New creates a structured error with the given code and message.
func New(code ErrorCode, message string, opts ...Option) *Error {
	e := &Error{
		code:      code,
		category:  code.DefaultCategory(),
		message:   message,
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Newf creates a structured error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Category returns the error category.
func (e *Error) Category() ErrorCategory {
	return e.category
}

// Recoverable returns whether the throttle absorbs this error.
func (e *Error) Recoverable() bool {
	return e.category.IsRecoverable()
}

// Site returns the site key the error relates to, if set.
func (e *Error) Site() string {
	return e.site
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Timestamp returns when the error occurred.
func (e *Error) Timestamp() time.Time {
	return e.timestamp
}

// Option is a functional option for configuring an Error.
type Option func(*Error)

// WithCategory overrides the default category.
func WithCategory(cat ErrorCategory) Option {
	return func(e *Error) {
		e.category = cat
	}
}

// WithCause attaches the underlying error.
func WithCause(err error) Option {
	return func(e *Error) {
		e.cause = err
	}
}

// WithSite tags the error with the site key it relates to.
func WithSite(site string) Option {
	return func(e *Error) {
		e.site = site
	}
}
