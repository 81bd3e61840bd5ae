package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Coordinator runs registered releasers when the process shuts down.
//
// Releasers run in reverse registration order, so a throttle registered
// after its tracker releases before it, the same order a deferred cleanup
// stack would use.
type Coordinator struct {
	config Config

	mu           sync.Mutex
	releasers    []registration
	shutdownOnce sync.Once
	shutdownErr  error
	done         chan struct{}
	signalChan   chan os.Signal
}

// NewCoordinator creates a shutdown coordinator.
func NewCoordinator(config Config) *Coordinator {
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = DefaultConfig().DefaultTimeout
	}

	return &Coordinator{
		config:     config,
		done:       make(chan struct{}),
		signalChan: make(chan os.Signal, 1),
	}
}

// Register adds a releaser to run on shutdown.
func (c *Coordinator) Register(name string, r Releaser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releasers = append(c.releasers, registration{name: name, releaser: r})
}

// RegisterFunc is a convenience method for registering a function.
func (c *Coordinator) RegisterFunc(name string, fn func(ctx context.Context) error) {
	c.Register(name, ReleaseFunc(fn))
}

// Shutdown runs every registered releaser and returns the overall result.
// Calling it again after it has started returns ErrAlreadyShutdown until
// the first run finishes, then the first run's error.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	var err error
	c.shutdownOnce.Do(func() {
		err = c.release(ctx)
		c.shutdownErr = err
		close(c.done)
	})

	select {
	case <-c.done:
		return c.shutdownErr
	default:
		return ErrAlreadyShutdown
	}
}

// ShutdownWithTimeout runs Shutdown bounded by the given timeout, falling
// back to the configured default when zero.
func (c *Coordinator) ShutdownWithTimeout(timeout time.Duration) error {
	if timeout == 0 {
		timeout = c.config.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// HandleSignals triggers shutdown on SIGTERM or SIGINT. Registry entries
// left behind by a killed process only age out after the release window;
// releasing on signal lets peers speed back up immediately.
func (c *Coordinator) HandleSignals() {
	signal.Notify(c.signalChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-c.signalChan
		_ = c.ShutdownWithTimeout(c.config.DefaultTimeout)
	}()
}

// Trigger feeds the signal path manually, for tests.
func (c *Coordinator) Trigger() {
	select {
	case c.signalChan <- syscall.SIGTERM:
	default:
	}
}

// Done returns a channel closed when shutdown has completed.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the shutdown error. Only valid after Done is closed.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.shutdownErr
	default:
		return nil
	}
}

// release runs the registered releasers newest-first.
func (c *Coordinator) release(ctx context.Context) error {
	c.mu.Lock()
	releasers := make([]registration, len(c.releasers))
	copy(releasers, c.releasers)
	c.mu.Unlock()

	var overallErr error
	for i := len(releasers) - 1; i >= 0; i-- {
		select {
		case <-ctx.Done():
			return ErrTimeout
		default:
		}

		reg := releasers[i]
		start := time.Now()
		err := reg.releaser.Release(ctx)
		if err != nil && overallErr == nil {
			overallErr = ErrReleaserFailed
		}
		if c.config.OnRelease != nil {
			c.config.OnRelease(reg.name, time.Since(start), err)
		}
	}

	return overallErr
}
