package throttle

import "time"

// Lag pauses this process because the server has signaled overload. It is a
// stronger, resource-wide pause and shares the write lock's scope, so it
// also holds off pending writes.
//
// The wait is chosen by priority: a recorded Retry-After wins, never waiting
// less than it but also never less than a fifth of the caller's hint when
// the hint is disproportionately large; without a Retry-After the hint is
// used as-is, falling back to the configured default when no hint is given.
// The result is capped at the configured maximum, and time already spent
// queueing for the lock is subtracted so total observed lag stays accurate.
func (t *Throttle) Lag(hint time.Duration) {
	started := t.nowFunc()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	wait := hint
	if wait <= 0 {
		wait = t.defaultLag
	}
	if t.retryAfter > 0 {
		if floor := wait / 5; t.retryAfter > floor {
			wait = t.retryAfter
		} else {
			wait = floor
		}
	}
	if wait > t.maxLagWait {
		wait = t.maxLagWait
	}
	t.mu.Unlock()

	wait -= t.nowFunc().Sub(started)
	if wait <= 0 {
		return
	}

	if t.log != nil {
		t.log.LagWait(t.site, wait)
	}
	t.sleepFunc(wait)
}
