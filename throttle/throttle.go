package throttle

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vinayprograms/pacekit/errors"
	"github.com/vinayprograms/pacekit/logging"
	"github.com/vinayprograms/pacekit/registry"
)

// Default pacing parameters.
const (
	// DefaultMinDelay is the floor for the nominal read delay.
	DefaultMinDelay = 1 * time.Second

	// DefaultMaxDelay caps the nominal delay before multiplicity scaling.
	DefaultMaxDelay = 60 * time.Second

	// DefaultWriteDelay is the baseline spacing between writes.
	DefaultWriteDelay = 10 * time.Second

	// DefaultCheckInterval is how long a multiplicity reading stays fresh
	// before the next acquire piggybacks a registry refresh.
	DefaultCheckInterval = 300 * time.Second

	// DefaultNoisyThreshold separates visible sleep notices from quiet ones.
	DefaultNoisyThreshold = 3 * time.Second

	// DefaultLag is the fallback wait when the server signals overload
	// without saying for how long.
	DefaultLag = 5 * time.Second

	// DefaultMaxLagWait caps any single backpressure wait.
	DefaultMaxLagWait = 120 * time.Second
)

// Config configures a Throttle.
type Config struct {
	// Site is the key of the remote resource being paced. Required.
	Site string

	// Tracker coordinates with peer processes through the shared registry.
	// Nil disables multiplicity entirely: no registry I/O happens and
	// delays are used as configured, for single-process operation.
	Tracker *registry.Tracker

	// MinDelay, MaxDelay and WriteDelay are the pacing bounds.
	// Zero values take the package defaults.
	MinDelay   time.Duration
	MaxDelay   time.Duration
	WriteDelay time.Duration

	// CheckInterval is how often the registry is re-read. Refresh is lazy,
	// piggybacked on acquires; there is no background timer.
	CheckInterval time.Duration

	// NoisyThreshold is the wait above which a visible notice is logged.
	NoisyThreshold time.Duration

	// DefaultLagWait and MaxLagWait bound server-backpressure waits.
	DefaultLagWait time.Duration
	MaxLagWait     time.Duration

	// Logger receives pacing events. Optional.
	Logger *logging.Logger

	// NowFunc and SleepFunc override the clock and the wait, for testing.
	NowFunc   func() time.Time
	SleepFunc func(time.Duration)
}

// Validate checks the configuration. Delay-bound mistakes are treated as
// caller preconditions and rejected here rather than at acquire time.
func (c *Config) Validate() error {
	if c.Site == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "throttle requires a site key")
	}
	if c.MinDelay < 0 || c.MaxDelay < 0 || c.WriteDelay < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "delays must not be negative",
			errors.WithSite(c.Site))
	}
	min := c.MinDelay
	if min == 0 {
		min = DefaultMinDelay
	}
	max := c.MaxDelay
	if max == 0 {
		max = DefaultMaxDelay
	}
	if max < min {
		return errors.New(errors.ErrCodeInvalidConfig, "max delay below min delay",
			errors.WithSite(c.Site))
	}
	return nil
}

// Throttle paces access to one site from one process.
//
// Read and write pacing run on independent locks: a blocked reader never
// blocks a writer and vice versa, while two concurrent callers of the same
// kind fully serialize. The only blocking point is the deliberate timed
// sleep inside Acquire and Lag; it blocks only the calling goroutine.
//
// Waits cannot be cancelled once started. Callers that need cancellation
// must layer it above the throttle.
type Throttle struct {
	site string
	id   string

	tracker *registry.Tracker
	log     *logging.Logger

	checkInterval  time.Duration
	noisyThreshold time.Duration
	defaultLag     time.Duration
	maxLagWait     time.Duration

	nowFunc   func() time.Time
	sleepFunc func(time.Duration)

	readMu  sync.Mutex // serializes read-kind acquires
	writeMu sync.Mutex // serializes write-kind acquires and lag waits

	mu               sync.Mutex // guards the pacing state below
	minDelay         time.Duration
	maxDelay         time.Duration
	delay            time.Duration // current nominal read delay
	writeDelay       time.Duration
	lastRead         time.Time
	lastWrite        time.Time
	nextMultiplicity float64
	multiplicity     int
	retryAfter       time.Duration
	checkTime        time.Time
	closed           bool
}

// New creates a throttle for cfg.Site. When a tracker is configured, the
// first registry refresh happens here; an unreadable registry before this
// process ever allocated its identifier is the one fatal error.
func New(cfg Config) (*Throttle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.MinDelay == 0 {
		cfg.MinDelay = DefaultMinDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.WriteDelay == 0 {
		cfg.WriteDelay = DefaultWriteDelay
	}
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.NoisyThreshold == 0 {
		cfg.NoisyThreshold = DefaultNoisyThreshold
	}
	if cfg.DefaultLagWait == 0 {
		cfg.DefaultLagWait = DefaultLag
	}
	if cfg.MaxLagWait == 0 {
		cfg.MaxLagWait = DefaultMaxLagWait
	}
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}
	if cfg.SleepFunc == nil {
		cfg.SleepFunc = time.Sleep
	}

	id := uuid.NewString()[:8]
	log := cfg.Logger
	if log != nil {
		log = log.WithComponent("throttle").WithThrottleID(id)
	}

	t := &Throttle{
		site:             cfg.Site,
		id:               id,
		tracker:          cfg.Tracker,
		log:              log,
		checkInterval:    cfg.CheckInterval,
		noisyThreshold:   cfg.NoisyThreshold,
		defaultLag:       cfg.DefaultLagWait,
		maxLagWait:       cfg.MaxLagWait,
		nowFunc:          cfg.NowFunc,
		sleepFunc:        cfg.SleepFunc,
		minDelay:         cfg.MinDelay,
		maxDelay:         cfg.MaxDelay,
		writeDelay:       cfg.WriteDelay,
		nextMultiplicity: 1.0,
		multiplicity:     1,
	}

	if t.tracker != nil {
		count, err := t.tracker.Check(t.site)
		if err != nil {
			return nil, err
		}
		t.multiplicity = count
		t.checkTime = t.nowFunc()
	}

	// Start the pacing window now, not at the first acquire.
	t.delay = t.minDelay
	t.writeDelay = clampDelay(t.writeDelay, t.minDelay, t.maxDelay)
	now := t.nowFunc()
	t.lastRead = now
	t.lastWrite = now

	return t, nil
}

// Acquire blocks until at least the nominal delay has passed since the
// previous access of the same kind. size is the number of items the caller
// is about to read or write; larger requests earn the server a
// proportionally longer recovery before the next call. Acquire never fails:
// registry trouble degrades pacing accuracy, it does not stop the caller.
func (t *Throttle) Acquire(size int, write bool) {
	if size < 1 {
		size = 1
	}

	kind := &t.readMu
	if write {
		kind = &t.writeMu
	}
	kind.Lock()
	defer kind.Unlock()

	t.mu.Lock()
	wait := t.waitTimeLocked(write, true)
	// One extra delay for each doubling of the request size: 64 items
	// buys the server six delays of recovery.
	t.nextMultiplicity = math.Log2(1 + float64(size))
	t.mu.Unlock()

	t.sleep(wait)

	t.mu.Lock()
	if write {
		t.lastWrite = t.nowFunc()
	} else {
		t.lastRead = t.nowFunc()
	}
	t.mu.Unlock()
}

// WaitTime reports how long an Acquire of the given kind would block if it
// ran right now. It neither sleeps nor mutates state, and unlike Acquire it
// never triggers a registry refresh.
func (t *Throttle) WaitTime(write bool) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waitTimeLocked(write, false)
}

// SetRetryAfter records a server-declared Retry-After value. The HTTP layer
// calls this when a response carries explicit backpressure; the next Lag
// honors it in preference to the caller's own estimate.
func (t *Throttle) SetRetryAfter(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retryAfter = d
}

// RetryAfter returns the recorded server-declared wait, 0 if unset.
func (t *Throttle) RetryAfter() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retryAfter
}

// SetDelays adjusts the nominal delays at runtime. Zero values keep the
// current settings. With absolute, the min/max bounds are pinned to delay
// so later clamping cannot move it. The pacing window restarts immediately.
func (t *Throttle) SetDelays(delay, writeDelay time.Duration, absolute bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if delay == 0 {
		delay = t.minDelay
	}
	if writeDelay == 0 {
		writeDelay = t.writeDelay
	}
	if absolute {
		t.minDelay = delay
		t.maxDelay = delay
	}
	t.delay = delay
	t.writeDelay = clampDelay(writeDelay, t.minDelay, t.maxDelay)

	now := t.nowFunc()
	t.lastRead = now
	t.lastWrite = now
}

// Multiplicity returns the most recent peer count, including this process.
func (t *Throttle) Multiplicity() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.multiplicity
}

// Site returns the site key this throttle paces.
func (t *Throttle) Site() string {
	return t.site
}

// Close removes this process's registry entries so peers' multiplicity
// shrinks immediately instead of waiting out the release window. Best
// effort and idempotent; the throttle keeps pacing locally if used again.
func (t *Throttle) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.checkTime = time.Time{}
	t.mu.Unlock()

	if t.tracker != nil {
		t.tracker.Release()
	}
	return nil
}

// sleep waits for d, announcing the delay when it exceeds the noisy
// threshold and logging it quietly otherwise.
func (t *Throttle) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if t.log != nil {
		t.log.SleepNotice(t.site, d, d > t.noisyThreshold)
	}
	t.sleepFunc(d)
}

// clampDelay bounds d into [min, max].
func clampDelay(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
