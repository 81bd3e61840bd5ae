package registry

import (
	stderrors "errors"
	"io/fs"
	"sync"
	"time"

	"github.com/vinayprograms/pacekit/errors"
	"github.com/vinayprograms/pacekit/logging"
)

// Default staleness windows, in line with the refresh interval throttles use.
const (
	// DefaultDropAfter is how old a peer's entry may be before it stops
	// counting toward multiplicity.
	DefaultDropAfter = 600 * time.Second

	// DefaultReleaseAfter is how old any entry may be before it is pruned
	// from the registry file entirely.
	DefaultReleaseAfter = 1200 * time.Second
)

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	// Store holds the shared registry. Required.
	Store Store

	// DropAfter is the window inside which a same-site peer entry counts
	// toward multiplicity. Default: 10 minutes.
	DropAfter time.Duration

	// ReleaseAfter is the window after which any entry is treated as dead
	// and pruned on the next rewrite. Default: 20 minutes.
	ReleaseAfter time.Duration

	// Logger receives registry events. Optional.
	Logger *logging.Logger

	// NowFunc overrides the clock, for testing.
	NowFunc func() time.Time
}

// Validate checks the configuration.
func (c *TrackerConfig) Validate() error {
	if c.Store == nil {
		return errors.New(errors.ErrCodeInvalidConfig, "tracker requires a store")
	}
	if c.DropAfter < 0 || c.ReleaseAfter < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "staleness windows must not be negative")
	}
	if c.DropAfter != 0 && c.ReleaseAfter != 0 && c.DropAfter > c.ReleaseAfter {
		return errors.New(errors.ErrCodeInvalidConfig, "drop window must not exceed release window")
	}
	return nil
}

// Tracker owns this process's identity in the shared registry and computes
// multiplicity for the sites it throttles.
//
// One Tracker serves the whole process: the process identifier is allocated
// once, on the first refresh, and reused for every site. Construct it at
// startup and hand it to each throttle instead of reaching for hidden global
// state.
type Tracker struct {
	mu           sync.Mutex
	store        Store
	dropAfter    time.Duration
	releaseAfter time.Duration
	log          *logging.Logger
	nowFunc      func() time.Time

	pid       int // 0 until allocated
	lastCheck time.Time
}

// NewTracker creates a tracker over the given store. No registry I/O happens
// until the first Check.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.DropAfter == 0 {
		cfg.DropAfter = DefaultDropAfter
	}
	if cfg.ReleaseAfter == 0 {
		cfg.ReleaseAfter = DefaultReleaseAfter
	}
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}

	return &Tracker{
		store:        cfg.Store,
		dropAfter:    cfg.DropAfter,
		releaseAfter: cfg.ReleaseAfter,
		log:          cfg.Logger,
		nowFunc:      cfg.NowFunc,
	}, nil
}

// Check refreshes this process's entry for site and returns the number of
// live cooperating processes targeting it, including this one.
//
// Two distinct predicates apply while scanning: entries younger than the
// release window are retained in the rewritten file regardless of site,
// while only same-site entries younger than the drop window count toward
// multiplicity. Cross-site entries are retained but never counted.
//
// The returned error is non-nil only for the fatal first-allocation case:
// the registry exists but cannot be read before this process has ever
// obtained a process identifier. All other registry trouble degrades to an
// empty registry and multiplicity 1.
func (t *Tracker) Check(site string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFunc()

	all, err := t.store.Read()
	if err != nil {
		if t.pid == 0 && !stderrors.Is(err, fs.ErrNotExist) {
			return 0, errors.WrapWithCode(err, errors.ErrCodeFirstAllocation,
				"reading shared registry", errors.WithSite(site))
		}
		if !stderrors.Is(err, fs.ErrNotExist) && t.log != nil {
			t.log.RegistryDegraded(site, err)
		}
		all = nil
	}

	count := 1
	candidate := 1
	allocated := t.pid != 0

	kept := make([]Entry, 0, len(all)+1)
	for _, e := range all {
		age := now.Sub(e.Time)
		if age > t.releaseAfter {
			continue // expired, drop from file
		}
		if age <= t.dropAfter && e.Site == site && e.PID != t.pid {
			count++
		}
		if e.Site != site || e.PID != t.pid {
			kept = append(kept, e)
		}
		if !allocated && e.PID >= candidate {
			candidate = e.PID + 1 // next unused process id
		}
	}

	if !allocated {
		t.pid = candidate
		if t.log != nil {
			t.log.PIDAssigned(t.pid)
		}
	}

	t.lastCheck = now
	kept = append(kept, Entry{PID: t.pid, Time: now, Site: site})

	if err := t.store.Write(kept); err != nil && t.log != nil {
		// Best effort: peers miss one refresh, nothing more.
		t.log.RegistryDegraded(site, errors.WrapWithCode(err,
			errors.ErrCodeWriteLost, "rewriting shared registry"))
	}

	if t.log != nil {
		t.log.MultiplicityFound(site, count)
	}
	return count, nil
}

// Release removes every entry owned by this process, across all sites, so
// peers' multiplicity counts shrink immediately instead of waiting out the
// release window. Best effort; failures are ignored.
func (t *Tracker) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFunc()

	all, err := t.store.Read()
	if err != nil {
		return
	}

	kept := make([]Entry, 0, len(all))
	for _, e := range all {
		if now.Sub(e.Time) <= t.releaseAfter && e.PID != t.pid {
			kept = append(kept, e)
		}
	}

	_ = t.store.Write(kept)
	if t.log != nil && t.pid != 0 {
		t.log.Released(t.pid)
	}
}

// PID returns the allocated process identifier, or 0 before the first Check.
func (t *Tracker) PID() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pid
}

// LastCheck returns the time of the most recent registry refresh.
func (t *Tracker) LastCheck() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastCheck
}
