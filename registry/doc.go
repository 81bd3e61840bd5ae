// Package registry tracks which cooperating processes are currently
// throttling against which sites.
//
// Processes discover each other through a shared plain-text file with no
// central coordinator and no file locking. Each line records one process's
// last-known liveness for one site:
//
//	pid time site
//
// where pid is the registry-allocated process identifier, time is a decimal
// Unix timestamp, and site is an opaque token with no embedded whitespace.
// The file is fully rewritten on each refresh, sorted by (pid, site).
//
// # Self-healing coordination
//
// Concurrent writers can race and overwrite each other's entries; this is
// tolerated because every process re-asserts its own entry on each refresh
// cycle, so the registry converges within one refresh interval. Losing a
// write only degrades peers' multiplicity estimates — it never violates any
// process's own pacing floor.
//
// # Usage
//
// Construct one Tracker per process and share it across every site the
// process throttles:
//
//	store, err := registry.NewFileStore(path)
//	if err != nil {
//	    return err
//	}
//	tracker, err := registry.NewTracker(registry.TrackerConfig{Store: store})
//	if err != nil {
//	    return err
//	}
//
//	count, err := tracker.Check("en.wikipedia.org") // peers + self
//
// Call Release on graceful shutdown so peers' counts shrink immediately:
//
//	defer tracker.Release()
package registry
