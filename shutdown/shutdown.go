package shutdown

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	// ErrAlreadyShutdown indicates shutdown was already initiated.
	ErrAlreadyShutdown = errors.New("shutdown already initiated")

	// ErrTimeout indicates shutdown did not complete within the timeout.
	ErrTimeout = errors.New("shutdown timeout exceeded")

	// ErrReleaserFailed indicates one or more releasers failed.
	ErrReleaserFailed = errors.New("one or more releasers failed")
)

// Releaser is implemented by components that hold external state which must
// be surrendered on exit, like a throttle's entries in the shared registry.
type Releaser interface {
	// Release is called when shutdown is initiated. The context is
	// cancelled when the shutdown timeout is reached.
	Release(ctx context.Context) error
}

// ReleaseFunc is a convenience type for simple release functions.
type ReleaseFunc func(ctx context.Context) error

// Release implements Releaser.
func (f ReleaseFunc) Release(ctx context.Context) error {
	return f(ctx)
}

// Config configures the shutdown coordinator.
type Config struct {
	// DefaultTimeout is used when ShutdownWithTimeout is called with a
	// zero timeout and when a signal triggers shutdown. Default: 10s.
	DefaultTimeout time.Duration

	// OnRelease is called after each releaser finishes. Optional.
	OnRelease func(name string, d time.Duration, err error)
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 10 * time.Second,
	}
}

// registration pairs a releaser with its name for reporting.
type registration struct {
	name     string
	releaser Releaser
}
