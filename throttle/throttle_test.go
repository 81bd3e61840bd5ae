package throttle

import (
	"sync"
	"testing"
	"time"

	"github.com/vinayprograms/pacekit/errors"
	"github.com/vinayprograms/pacekit/registry"
)

// fakeEnv provides a controllable clock whose sleeps advance the clock
// instead of blocking, so pacing tests run instantly and deterministically.
type fakeEnv struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{now: time.Unix(1600000000, 0)}
}

func (f *fakeEnv) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeEnv) Sleep(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
}

func (f *fakeEnv) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeEnv) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}

// newTestTracker builds a tracker sharing the store and the fake clock.
func newTestTracker(t *testing.T, store registry.Store, env *fakeEnv) *registry.Tracker {
	t.Helper()
	tracker, err := registry.NewTracker(registry.TrackerConfig{
		Store:   store,
		NowFunc: env.Now,
	})
	if err != nil {
		t.Fatalf("NewTracker failed: %v", err)
	}
	return tracker
}

// newTestThrottle builds a throttle over the fake environment.
func newTestThrottle(t *testing.T, env *fakeEnv, cfg Config) *Throttle {
	t.Helper()
	if cfg.Site == "" {
		cfg.Site = "wiki1"
	}
	cfg.NowFunc = env.Now
	cfg.SleepFunc = env.Sleep
	th, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return th
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"missing site", Config{}, false},
		{"negative delay", Config{Site: "wiki1", MinDelay: -time.Second}, false},
		{"max below min", Config{Site: "wiki1", MinDelay: 10 * time.Second, MaxDelay: time.Second}, false},
		{"max below default min is fine when min raised", Config{Site: "wiki1", MinDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond}, true},
		{"defaults", Config{Site: "wiki1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected config to pass, got %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected config to fail")
				}
				if !errors.Is(err, errors.ErrCodeInvalidConfig) {
					t.Errorf("expected INVALID_CONFIG, got %v", err)
				}
			}
		})
	}
}

func TestAcquireSpacing(t *testing.T) {
	// With no peers, consecutive reads are spaced one nominal delay apart.
	env := newFakeEnv()
	th := newTestThrottle(t, env, Config{
		Tracker:  newTestTracker(t, registry.NewMemoryStore(), env),
		MinDelay: 2 * time.Second,
	})

	th.Acquire(1, false)
	th.Acquire(1, false)
	th.Acquire(1, false)

	sleeps := env.Sleeps()
	if len(sleeps) != 3 {
		t.Fatalf("expected 3 waits, got %v", sleeps)
	}
	for i, s := range sleeps {
		if s != 2*time.Second {
			t.Errorf("wait %d: expected 2s spacing, got %v", i, s)
		}
	}
}

func TestAcquireCountsElapsedTime(t *testing.T) {
	env := newFakeEnv()
	th := newTestThrottle(t, env, Config{
		Tracker:  newTestTracker(t, registry.NewMemoryStore(), env),
		MinDelay: 5 * time.Second,
	})

	th.Acquire(1, false)
	env.Advance(3 * time.Second) // caller does 3s of work
	th.Acquire(1, false)

	sleeps := env.Sleeps()
	if len(sleeps) != 2 {
		t.Fatalf("expected 2 waits, got %v", sleeps)
	}
	if sleeps[1] != 2*time.Second {
		t.Errorf("expected elapsed time to shorten the wait to 2s, got %v", sleeps[1])
	}
}

func TestAcquireNoWaitWhenOverdue(t *testing.T) {
	env := newFakeEnv()
	th := newTestThrottle(t, env, Config{
		Tracker:  newTestTracker(t, registry.NewMemoryStore(), env),
		MinDelay: time.Second,
	})

	env.Advance(time.Minute)
	th.Acquire(1, false)

	if sleeps := env.Sleeps(); len(sleeps) != 0 {
		t.Errorf("expected no sleep for an overdue acquire, got %v", sleeps)
	}
}

func TestReadWritePaceIndependently(t *testing.T) {
	env := newFakeEnv()
	th := newTestThrottle(t, env, Config{
		Tracker:    newTestTracker(t, registry.NewMemoryStore(), env),
		MinDelay:   time.Second,
		WriteDelay: 10 * time.Second,
	})

	th.Acquire(1, false) // sleeps 1s
	th.Acquire(1, true)  // write clock started at New: 10s - 1s elapsed = 9s
	th.Acquire(1, false) // read clock: 1s - 9s elapsed = overdue

	sleeps := env.Sleeps()
	want := []time.Duration{time.Second, 9 * time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("expected waits %v, got %v", want, sleeps)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Errorf("wait %d: expected %v, got %v", i, want[i], sleeps[i])
		}
	}
}

func TestSizeAffectsNextCall(t *testing.T) {
	// The size factor is recorded after the current wait is computed, so a
	// big request pays on the following acquire, not its own.
	env := newFakeEnv()
	th := newTestThrottle(t, env, Config{
		Tracker:  newTestTracker(t, registry.NewMemoryStore(), env),
		MinDelay: time.Second,
	})

	th.Acquire(63, false) // factor log2(64) = 6 recorded for next time
	th.Acquire(1, false)

	sleeps := env.Sleeps()
	if len(sleeps) != 2 {
		t.Fatalf("expected 2 waits, got %v", sleeps)
	}
	if sleeps[0] != time.Second {
		t.Errorf("the large request itself waits the old delay, got %v", sleeps[0])
	}
	if sleeps[1] != 6*time.Second {
		t.Errorf("expected the next wait to stretch to 6s, got %v", sleeps[1])
	}
}

func TestSingleProcessModeUsesRawDelays(t *testing.T) {
	// Without a tracker there is no registry I/O, no clamping and no
	// multiplicity scaling.
	env := newFakeEnv()
	th := newTestThrottle(t, env, Config{
		MinDelay:   2 * time.Second,
		WriteDelay: 5 * time.Second,
	})

	if th.Multiplicity() != 1 {
		t.Errorf("expected multiplicity 1, got %d", th.Multiplicity())
	}

	th.Acquire(63, false)
	th.Acquire(1, false) // size factor must not inflate the delay without a tracker

	sleeps := env.Sleeps()
	want := []time.Duration{2 * time.Second, 2 * time.Second}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Errorf("wait %d: expected %v, got %v", i, want[i], sleeps[i])
		}
	}
}

func TestSetDelaysAbsolute(t *testing.T) {
	env := newFakeEnv()
	th := newTestThrottle(t, env, Config{
		Tracker:  newTestTracker(t, registry.NewMemoryStore(), env),
		MinDelay: time.Second,
	})

	th.SetDelays(5*time.Second, 0, true)

	if got := th.WaitTime(false); got != 5*time.Second {
		t.Errorf("expected pinned 5s delay with a restarted window, got %v", got)
	}

	// Pinned bounds keep the size factor from moving the delay.
	th.Acquire(63, false)
	th.Acquire(1, false)
	sleeps := env.Sleeps()
	if sleeps[len(sleeps)-1] != 5*time.Second {
		t.Errorf("expected clamping to the pinned delay, got %v", sleeps)
	}
}

func TestSetDelaysRestartsWindow(t *testing.T) {
	env := newFakeEnv()
	th := newTestThrottle(t, env, Config{
		Tracker:  newTestTracker(t, registry.NewMemoryStore(), env),
		MinDelay: time.Second,
	})

	env.Advance(time.Minute)
	th.SetDelays(2*time.Second, 0, false)

	if got := th.WaitTime(false); got != 2*time.Second {
		t.Errorf("expected the full delay after a restart, got %v", got)
	}
}

func TestCloseReleasesRegistryEntries(t *testing.T) {
	env := newFakeEnv()
	store := registry.NewMemoryStore()
	tracker := newTestTracker(t, store, env)
	th := newTestThrottle(t, env, Config{Tracker: tracker})

	entries, _ := store.Read()
	if len(entries) != 1 {
		t.Fatalf("expected one registry entry after New, got %v", entries)
	}

	if err := th.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	entries, _ = store.Read()
	if len(entries) != 0 {
		t.Errorf("expected registry entries released on close, got %v", entries)
	}

	if err := th.Close(); err != nil {
		t.Errorf("close must be idempotent, got %v", err)
	}
}

func TestNewSurfacesFirstAllocationFailure(t *testing.T) {
	env := newFakeEnv()
	store := registry.NewMemoryStore()
	store.ReadErr = errTest{}
	tracker := newTestTracker(t, store, env)

	_, err := New(Config{
		Site:    "wiki1",
		Tracker: tracker,
		NowFunc: env.Now,
	})
	if err == nil {
		t.Fatal("expected first-allocation failure to surface from New")
	}
	if !errors.IsFatal(err) {
		t.Errorf("expected a fatal error, got %v", err)
	}
}

func TestConcurrentSameKindSerialize(t *testing.T) {
	// Same-kind callers fully serialize; with a real clock and a tiny
	// delay, total elapsed time must cover every wait.
	th, err := New(Config{
		Site:     "wiki1",
		MinDelay: 20 * time.Millisecond,
		MaxDelay: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			th.Acquire(1, false)
		}()
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("three serialized acquires finished too fast: %v", elapsed)
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
