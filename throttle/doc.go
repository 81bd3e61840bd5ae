// Package throttle paces how often this process hits a shared rate-limited
// service, adapting to how many uncoordinated peer processes are doing the
// same.
//
// A Throttle guarantees a minimum spacing between consecutive accesses of
// the same kind (reads and writes pace independently) within one process.
// When wired to a registry.Tracker it also scales that spacing by the number
// of live peer processes targeting the same site, so the collective rate
// across all cooperating processes stays roughly constant with no central
// coordinator and no server-side support.
//
// # Usage
//
// One throttle per (process, site), sharing one tracker per process:
//
//	th, err := throttle.New(throttle.Config{
//	    Site:    "en.wikipedia.org",
//	    Tracker: tracker,
//	})
//	if err != nil {
//	    return err
//	}
//	defer th.Close()
//
//	th.Acquire(1, false) // blocks until a read is due
//	// ... issue the read ...
//
//	th.Acquire(10, true) // writing 10 items; blocks until a write is due
//	// ... issue the write ...
//
// # Size adaptation
//
// The size passed to Acquire feeds the next delay as log2(1+size): each
// doubling of request volume adds one delay's worth of recovery time rather
// than doubling the delay outright. Reading 64 items at once earns the
// server six delays before the next call.
//
// # Server backpressure
//
// When the service explicitly signals overload, Lag preempts nominal
// pacing:
//
//	th.SetRetryAfter(10 * time.Second) // from a Retry-After header
//	th.Lag(maxlag)                     // blocks, write-lock scope
//
// # Concurrency
//
// All methods are safe for concurrent use. Contending same-kind callers
// serialize in whatever order the mutex grants; there is no fairness
// guarantee and no way to cancel a wait in progress.
package throttle
