package errors

// ErrorCategory classifies errors by their nature and handling semantics.
type ErrorCategory string

// Error categories define how errors should be handled.
const (
	// CategoryTransient indicates degraded-mode failures the throttle
	// absorbs by itself. Examples: registry file unreadable mid-run,
	// best-effort registry write lost to a concurrent peer.
	CategoryTransient ErrorCategory = "transient"

	// CategoryFatal indicates failures that must stop initialization.
	// Example: the shared registry exists but cannot be read before this
	// process has ever obtained a process identifier.
	CategoryFatal ErrorCategory = "fatal"

	// CategoryConfig indicates caller mistakes in configuration.
	// Examples: max delay below min delay, empty site key.
	CategoryConfig ErrorCategory = "config"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRecoverable returns true if errors in this category degrade service
// rather than require intervention. Transient registry trouble only costs
// multiplicity accuracy; the local pacing floor still holds.
func (c ErrorCategory) IsRecoverable() bool {
	return c == CategoryTransient
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes for the failure scenarios the throttle distinguishes.
const (
	// Transient errors
	ErrCodeRegistryUnavailable ErrorCode = "REGISTRY_UNAVAILABLE" // shared registry cannot be read or written
	ErrCodeMalformedEntry      ErrorCode = "MALFORMED_ENTRY"      // corrupt registry line
	ErrCodeWriteLost           ErrorCode = "WRITE_LOST"           // registry rewrite failed, peers see stale data

	// Fatal errors
	ErrCodeFirstAllocation ErrorCode = "FIRST_ALLOCATION" // registry unreadable before a pid was ever allocated

	// Config errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG" // configuration precondition violated
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeRegistryUnavailable, ErrCodeMalformedEntry, ErrCodeWriteLost:
		return CategoryTransient
	case ErrCodeFirstAllocation:
		return CategoryFatal
	case ErrCodeInvalidConfig:
		return CategoryConfig
	default:
		return CategoryTransient
	}
}

// codeDescriptions provides human-readable descriptions for error codes.
var codeDescriptions = map[ErrorCode]string{
	ErrCodeRegistryUnavailable: "shared registry unavailable",
	ErrCodeMalformedEntry:      "malformed registry entry",
	ErrCodeWriteLost:           "registry write lost",
	ErrCodeFirstAllocation:     "registry unreadable before first pid allocation",
	ErrCodeInvalidConfig:       "invalid configuration",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
