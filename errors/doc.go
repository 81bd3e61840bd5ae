// Package errors provides the structured error taxonomy for pacekit. It
// separates the failures a throttle absorbs silently from the one failure
// that must stop initialization, so long-running automated callers never
// crash on ordinary registry trouble.
//
// # Error Categories
//
// Errors are classified into three categories:
//
//   - Transient: Registry read/write trouble absorbed by degrading to
//     single-process pacing (the local delay floor still holds)
//   - Fatal: The shared registry exists but cannot be read before this
//     process has allocated its process identifier
//   - Config: Caller mistakes (invalid delay bounds, empty site key)
//
// # Usage
//
// Create a new error:
//
//	err := errors.New(errors.ErrCodeFirstAllocation, "cannot read registry")
//
// Wrap an existing error with context:
//
//	wrapped := errors.Wrap(err, "refreshing multiplicity")
//
// Decide whether to abort:
//
//	if errors.IsFatal(err) {
//	    return err // surface to the caller performing first initialization
//	}
//	// otherwise log and continue with degraded multiplicity
package errors
