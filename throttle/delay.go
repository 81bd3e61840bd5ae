package throttle

import "time"

// nominalDelayLocked returns the target spacing between consecutive accesses
// of the given kind, before subtracting time already elapsed. Callers hold
// t.mu.
//
// With no tracker the configured baseline is returned untouched. Otherwise
// the baseline is clamped into [minDelay × size factor, maxDelay] and then
// scaled by the observed process multiplicity, so the collective rate across
// cooperating processes stays roughly constant as peers come and go.
func (t *Throttle) nominalDelayLocked(write, allowRefresh bool) time.Duration {
	base := t.delay
	if write {
		base = t.writeDelay
	}
	if t.tracker == nil {
		return base
	}

	if allowRefresh && t.nowFunc().After(t.checkTime.Add(t.checkInterval)) {
		t.refreshLocked()
	}

	// The cap applies after the size floor: the nominal delay never
	// exceeds maxDelay before multiplicity scaling, even for huge
	// requests.
	floor := time.Duration(float64(t.minDelay) * t.nextMultiplicity)
	if base < floor {
		base = floor
	}
	if base > t.maxDelay {
		base = t.maxDelay
	}
	return base * time.Duration(t.multiplicity)
}

// waitTimeLocked returns the remaining wait for an access of the given kind
// made right now. Callers hold t.mu.
func (t *Throttle) waitTimeLocked(write, allowRefresh bool) time.Duration {
	nominal := t.nominalDelayLocked(write, allowRefresh)

	last := t.lastRead
	if write {
		last = t.lastWrite
	}

	wait := nominal - t.nowFunc().Sub(last)
	if wait < 0 {
		return 0
	}
	return wait
}

// refreshLocked re-reads the shared registry and caches the new peer count.
// Registry trouble after the first allocation never reaches here as an
// error; the tracker degrades to counting only this process. Callers hold
// t.mu.
func (t *Throttle) refreshLocked() {
	count, err := t.tracker.Check(t.site)
	if err != nil {
		// Only possible before a pid was allocated, which New has already
		// done; keep the cached multiplicity.
		if t.log != nil {
			t.log.RegistryDegraded(t.site, err)
		}
		return
	}
	t.multiplicity = count
	t.checkTime = t.nowFunc()
}
